package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jobsift/jobsift/internal/metrics"
)

// ErrNoResponse indicates every attempt failed to produce a usable response.
// Callers treat this as a retryable-exhausted outcome: the page is skipped,
// the run continues.
var ErrNoResponse = errors.New("no usable response")

// ExhaustedError wraps ErrNoResponse with the last observed response status,
// so callers can distinguish a vanished page (404) from other exhaustion.
type ExhaustedError struct {
	LastStatus int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("no usable response (last status %d)", e.LastStatus)
}

// Unwrap makes errors.Is(err, ErrNoResponse) hold.
func (e *ExhaustedError) Unwrap() error {
	return ErrNoResponse
}

// Navigator is the session surface the retry executor drives. *Session
// implements it.
type Navigator interface {
	Alive() bool
	Create(ctx context.Context) error
	Destroy()
	Navigate(ctx context.Context, url string) (*Visit, error)
}

// RetryConfig sets the bounds of the backoff loop.
type RetryConfig struct {
	Attempts    int
	BackoffBase time.Duration
}

// Retry defaults.
const (
	DefaultAttempts    = 8
	DefaultBackoffBase = time.Second
)

// BackoffDelay returns the sleep after the given zero-based attempt:
// base × 2^attempt.
func BackoffDelay(base time.Duration, attempt int) time.Duration {
	return base << attempt
}

// Retrier wraps navigate-and-select with bounded exponential backoff. Both
// driver-level faults and soft-failure responses are retried identically,
// with the session recreated before every retry rather than reusing the
// possibly-compromised one.
type Retrier struct {
	nav    Navigator
	cfg    RetryConfig
	logger *zap.Logger
}

// NewRetrier builds a Retrier; zero config fields fall back to defaults.
func NewRetrier(nav Navigator, cfg RetryConfig, logger *zap.Logger) *Retrier {
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultBackoffBase
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Retrier{nav: nav, cfg: cfg, logger: logger}
}

// Get navigates to the URL and returns the selected response. match is the
// adapter's content matcher; nil selects with the default policy. On
// exhaustion it returns an ExhaustedError wrapping ErrNoResponse.
func (r *Retrier) Get(ctx context.Context, url string, match func(string) bool) (*Response, error) {
	lastStatus := 0
	for attempt := 0; attempt < r.cfg.Attempts; attempt++ {
		if !r.nav.Alive() {
			if err := r.nav.Create(ctx); err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				r.logger.Warn("session create failed",
					zap.Int("attempt", attempt),
					zap.Error(err),
				)
				metrics.ObserveRetry("session_fault")
				if err := r.sleep(ctx, BackoffDelay(r.cfg.BackoffBase, attempt)); err != nil {
					return nil, err
				}
				continue
			}
		}

		visit, err := r.nav.Navigate(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.logger.Warn("navigation fault",
				zap.String("url", url),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			metrics.ObserveRetry("session_fault")
			r.nav.Destroy()
			if err := r.sleep(ctx, BackoffDelay(r.cfg.BackoffBase, attempt)); err != nil {
				return nil, err
			}
			continue
		}

		selected := SelectExchange(visit.Exchanges, match)
		if selected != nil && !SoftFailure(selected.Status) {
			return &Response{URL: selected.URL, Status: selected.Status, HTML: visit.HTML}, nil
		}
		if selected != nil {
			lastStatus = selected.Status
		} else if st := newestStatus(visit.Exchanges); st != 0 {
			// selection rejected everything; remember what the site actually
			// answered so callers can tell a vanished page from exhaustion
			lastStatus = st
		}
		r.logger.Warn("no usable response",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Int("last_status", lastStatus),
		)
		metrics.ObserveRetry("soft_failure")
		r.nav.Destroy()
		if err := r.sleep(ctx, BackoffDelay(r.cfg.BackoffBase, attempt)); err != nil {
			return nil, err
		}
	}
	return nil, &ExhaustedError{LastStatus: lastStatus}
}

func newestStatus(exchanges []Exchange) int {
	for i := len(exchanges) - 1; i >= 0; i-- {
		if exchanges[i].Status != 0 {
			return exchanges[i].Status
		}
	}
	return 0
}

func (r *Retrier) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
