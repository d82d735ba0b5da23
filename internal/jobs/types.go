// Package jobs defines the posting domain model and its status lifecycle.
package jobs

import (
	"time"

	"github.com/google/uuid"
)

// Company is a hiring company, unique by URL.
type Company struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	URL  string    `json:"url"`
}

// Location is a geographic location, unique by name. GeoID is the numeric
// geo identifier used by job boards; nil when unknown.
type Location struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	GeoID *int64    `json:"geo_id,omitempty"`
}

// Record is a single parsed, not-yet-deduplicated posting as extracted from
// a results page. Company, CompanyURL, Title, URL and PostedAt are required;
// a Record missing any of them is discarded before ingestion.
type Record struct {
	Company    string
	CompanyURL string
	Title      string
	URL        string
	Location   string
	PostedAt   time.Time
	FoundAt    time.Time
}

// Complete reports whether all required fields are present.
func (r Record) Complete() bool {
	return r.Company != "" && r.CompanyURL != "" && r.Title != "" && r.URL != "" && !r.PostedAt.IsZero()
}

// Job is a persisted posting, deduplicated by URL.
type Job struct {
	ID          uuid.UUID  `json:"id"`
	CompanyID   uuid.UUID  `json:"company_id"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	LocationID  *uuid.UUID `json:"location_id,omitempty"`
	PostedAt    *time.Time `json:"posted_at,omitempty"`
	TargetID    *uuid.UUID `json:"target_id,omitempty"`
	FoundAt     *time.Time `json:"found_at,omitempty"`
	Populated   bool       `json:"populated"`
	EasyApply   bool       `json:"easy_apply"`
	Description string     `json:"description"`
	RawHTML     string     `json:"-"`
	SnapshotURI string     `json:"snapshot_uri,omitempty"`
	Status      Status     `json:"status"`
	AppliedAt   *time.Time `json:"applied_at,omitempty"`
}

// EventKind distinguishes audit entry types.
type EventKind string

// Event kinds.
const (
	KindNote         EventKind = "note"
	KindStatusChange EventKind = "status_change"
)

// Event is an immutable audit entry for a job's history. Events are only
// ever appended, never mutated or deleted.
type Event struct {
	ID        uuid.UUID `json:"id"`
	JobID     uuid.UUID `json:"job_id"`
	Kind      EventKind `json:"kind"`
	OldStatus Status    `json:"old_status,omitempty"`
	NewStatus Status    `json:"new_status,omitempty"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
