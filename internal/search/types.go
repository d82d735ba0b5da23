// Package search defines queries, sources and the crawl-target state used to
// drive batch runs.
package search

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// WorldwideGeoID is the sentinel geo identifier meaning no location
// restriction.
const WorldwideGeoID int64 = 92000000

// Query captures one saved job search.
type Query struct {
	ID           uuid.UUID `json:"id"`
	Keywords     string    `json:"keywords"`
	LocationName string    `json:"location_name,omitempty"`
	GeoID        int64     `json:"geo_id"`
	EasyApply    bool      `json:"easy_apply"`
	Onsite       bool      `json:"onsite"`
	Remote       bool      `json:"remote"`
	Hybrid       bool      `json:"hybrid"`
}

// String renders the query for logs and listings.
func (q Query) String() string {
	flex := make([]string, 0, 3)
	if q.Onsite {
		flex = append(flex, "onsite")
	}
	if q.Remote {
		flex = append(flex, "remote")
	}
	if q.Hybrid {
		flex = append(flex, "hybrid")
	}
	s := q.Keywords
	if len(flex) > 0 {
		s += " [" + strings.Join(flex, ",") + "]"
	}
	return s
}

// Source is an external listing site. Parser names the adapter that knows
// how to crawl it.
type Source struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Parser string    `json:"parser"`
}

// TargetStatus represents the run state of a crawl target.
type TargetStatus string

// Target statuses.
const (
	TargetIdle      TargetStatus = "idle"
	TargetScheduled TargetStatus = "scheduled"
	TargetRunning   TargetStatus = "running"
	TargetSuccess   TargetStatus = "success"
	TargetError     TargetStatus = "error"
)

// Target pairs a Query with a Source. Targets are created as the cross
// product whenever either side is registered. LastExecutedAt moves only on
// transition into TargetSuccess or TargetError.
type Target struct {
	ID             uuid.UUID    `json:"id"`
	Query          Query        `json:"query"`
	Source         Source       `json:"source"`
	Status         TargetStatus `json:"status"`
	LastExecutedAt *time.Time   `json:"last_executed_at,omitempty"`
	Active         bool         `json:"active"`
}
