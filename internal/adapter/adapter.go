// Package adapter contains site-specific crawl logic behind a capability
// interface. Adapters are selected by the parser name registered on a
// source; each one owns its interception profile and drives a dedicated
// browser session through the shared retry executor.
package adapter

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jobsift/jobsift/internal/browser"
	"github.com/jobsift/jobsift/internal/clock"
	"github.com/jobsift/jobsift/internal/jobs"
	"github.com/jobsift/jobsift/internal/search"
)

// Fetcher is the navigate-and-select surface adapters consume.
// *browser.Retrier implements it.
type Fetcher interface {
	Get(ctx context.Context, url string, match func(string) bool) (*browser.Response, error)
}

// Adapter is the minimal capability every source parser provides.
type Adapter interface {
	Name() string
}

// Searcher extracts job records from paginated result pages.
type Searcher interface {
	Adapter
	// PageCount estimates how many result pages the query yields. Estimation
	// failures yield 1 (one page is always attempted).
	PageCount(ctx context.Context, q search.Query) int
	// ExtractPage returns the records on one result page. A page that never
	// produced a usable response surfaces browser.ErrNoResponse.
	ExtractPage(ctx context.Context, q search.Query, page int, window time.Duration) ([]jobs.Record, error)
}

// Enricher fills in a stored job from its detail page. The expired flag is
// set when the posting no longer exists upstream.
type Enricher interface {
	Adapter
	Enrich(ctx context.Context, job *jobs.Job) (expired bool, err error)
}

// Prober validates session and proxy connectivity with a fixed fetch.
type Prober interface {
	Adapter
	Probe(ctx context.Context) (string, error)
}

// Deps are the collaborators injected into adapter constructors.
type Deps struct {
	Fetch  Fetcher
	Clock  clock.Clock
	Logger *zap.Logger
}

type registration struct {
	profile browser.Profile
	build   func(Deps) Adapter
}

var registry = map[string]registration{
	"linkedin": {
		profile: linkedinProfile(),
		build: func(d Deps) Adapter {
			return NewLinkedIn(d.Fetch, d.Clock, d.Logger)
		},
	},
	"ip": {
		profile: browser.Profile{},
		build: func(d Deps) Adapter {
			return NewIPCheck(d.Fetch, d.Logger)
		},
	},
}

// ProfileFor returns the interception profile registered for a parser name.
func ProfileFor(name string) (browser.Profile, error) {
	reg, ok := registry[name]
	if !ok {
		return browser.Profile{}, fmt.Errorf("unknown source parser %q", name)
	}
	return reg.profile, nil
}

// Open builds the named adapter wired to its own browser session and retry
// executor. The returned close function tears the session down and is safe
// to call regardless of how far the crawl got.
func Open(
	name string,
	browserCfg browser.Config,
	retryCfg browser.RetryConfig,
	clk clock.Clock,
	logger *zap.Logger,
) (Adapter, func(), error) {
	reg, ok := registry[name]
	if !ok {
		return nil, nil, fmt.Errorf("unknown source parser %q", name)
	}
	session := browser.NewSession(browserCfg, reg.profile, logger)
	retr := browser.NewRetrier(session, retryCfg, logger)
	a := reg.build(Deps{Fetch: retr, Clock: clk, Logger: logger})
	return a, session.Destroy, nil
}
