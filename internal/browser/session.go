// Package browser manages headless Chrome sessions, request interception and
// retry-with-backoff navigation.
package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/jobsift/jobsift/internal/metrics"
)

// ErrSessionClosed indicates no live browser session is available.
var ErrSessionClosed = errors.New("browser session closed")

// Config controls browser session behavior.
type Config struct {
	// ExecPath points at the browser executable; empty uses chromedp's
	// default lookup.
	ExecPath string
	// Proxy routes all session traffic through the given endpoint.
	Proxy             string
	UserAgent         string
	NavigationTimeout time.Duration
}

// Session owns exactly one headless browser at a time. Create tears down any
// existing browser before launching a fresh one; Destroy is idempotent and
// never fails on an already-closed session. Navigations are sequential; the
// underlying browser is not safe for concurrent use.
type Session struct {
	cfg     Config
	profile Profile
	logger  *zap.Logger

	mu            sync.Mutex
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewSession builds a Session; no browser is launched until Create.
func NewSession(cfg Config, profile Profile, logger *zap.Logger) *Session {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Session{
		cfg:     cfg,
		profile: profile,
		logger:  logger,
	}
}

// Create launches a fresh headless browser, tearing down any existing one
// first. It is the unit of crash recovery: callers that detect a dead
// session recreate it rather than salvaging individual requests.
func (s *Session) Create(ctx context.Context) error {
	s.Destroy()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	if s.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(s.cfg.ExecPath))
	}
	if s.cfg.Proxy != "" {
		opts = append(opts, chromedp.ProxyServer(s.cfg.Proxy))
	}
	if s.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(s.cfg.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("browser warmup: %w", err)
	}

	s.mu.Lock()
	s.allocCancel = allocCancel
	s.browserCtx = browserCtx
	s.browserCancel = browserCancel
	s.mu.Unlock()

	metrics.ObserveSessionRecreation()
	s.logger.Debug("browser session created",
		zap.String("proxy", s.cfg.Proxy),
		zap.String("exec_path", s.cfg.ExecPath),
	)

	// stop ctx-driven callers from holding a session their context outlived
	if err := ctx.Err(); err != nil {
		s.Destroy()
		return err
	}
	return nil
}

// Destroy tears down the browser. Safe to call on an already-closed or
// never-created session.
func (s *Session) Destroy() {
	s.mu.Lock()
	browserCancel := s.browserCancel
	allocCancel := s.allocCancel
	s.browserCtx = nil
	s.browserCancel = nil
	s.allocCancel = nil
	s.mu.Unlock()

	if browserCancel != nil {
		browserCancel()
	}
	if allocCancel != nil {
		allocCancel()
	}
}

// Alive reports whether a live browser is attached.
func (s *Session) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.browserCtx != nil && s.browserCtx.Err() == nil
}

// Navigate opens the URL in a fresh tab, applies the interception profile,
// waits for the DOM to settle and returns the rendered page together with
// every captured exchange.
func (s *Session) Navigate(ctx context.Context, rawURL string) (*Visit, error) {
	s.mu.Lock()
	browserCtx := s.browserCtx
	s.mu.Unlock()
	if browserCtx == nil || browserCtx.Err() != nil {
		return nil, ErrSessionClosed
	}

	tabCtx, cancelTab := chromedp.NewContext(browserCtx)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, s.cfg.NavigationTimeout)
	defer cancelTask()

	stop := forwardCancel(ctx, cancelTask)
	defer stop()

	capture := &exchangeCapture{}
	s.listen(tabCtx, capture)

	start := time.Now()
	var html string
	tasks := chromedp.Tasks{
		fetch.Enable(),
		network.Enable(),
		emulation.SetUserAgentOverride(s.userAgent()),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(taskCtx, tasks); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", rawURL, err)
	}
	metrics.ObserveNavigation(time.Since(start))

	return &Visit{HTML: html, Exchanges: capture.snapshot()}, nil
}

func (s *Session) userAgent() string {
	if s.cfg.UserAgent != "" {
		return s.cfg.UserAgent
	}
	return "jobsift/0.1"
}

// listen wires the interception profile into the tab: paused requests are
// admitted or aborted, and received responses are captured in order.
func (s *Session) listen(tabCtx context.Context, capture *exchangeCapture) {
	chromedp.ListenTarget(tabCtx, func(ev any) {
		switch e := ev.(type) {
		case *fetch.EventRequestPaused:
			go s.resolvePaused(tabCtx, e)
		case *network.EventResponseReceived:
			if e.Response == nil {
				return
			}
			capture.add(Exchange{
				URL:    e.Response.URL,
				Status: int(e.Response.Status),
			})
		}
	})
}

// resolvePaused continues or aborts one paused request. Aborts surface to
// the page as a failed (not-found) fetch.
func (s *Session) resolvePaused(tabCtx context.Context, ev *fetch.EventRequestPaused) {
	c := chromedp.FromContext(tabCtx)
	execCtx := cdp.WithExecutor(tabCtx, c.Target)

	host, path := splitRequestURL(ev.Request.URL)
	if s.profile.Admit(host, path) {
		if err := fetch.ContinueRequest(ev.RequestID).Do(execCtx); err != nil {
			s.logger.Debug("continue request", zap.String("url", ev.Request.URL), zap.Error(err))
		}
		return
	}

	s.logger.Debug("aborting request", zap.String("host", host), zap.String("path", path))
	if err := fetch.FailRequest(ev.RequestID, network.ErrorReasonBlockedByClient).Do(execCtx); err != nil {
		s.logger.Debug("fail request", zap.String("url", ev.Request.URL), zap.Error(err))
	}
}

func splitRequestURL(raw string) (host, path string) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", ""
	}
	return u.Host, trimPath(u.Path)
}

type exchangeCapture struct {
	mu        sync.Mutex
	exchanges []Exchange
}

func (c *exchangeCapture) add(e Exchange) {
	c.mu.Lock()
	c.exchanges = append(c.exchanges, e)
	c.mu.Unlock()
}

func (c *exchangeCapture) snapshot() []Exchange {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Exchange, len(c.exchanges))
	copy(out, c.exchanges)
	return out
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
