// Command jobsift crawls job listing sites into a local store.
//
// Usage:
//
//	jobsift [-config file] serve
//	jobsift [-config file] search [-source parser]
//	jobsift [-config file] populate [-source parser]
//	jobsift [-config file] getip
//	jobsift [-config file] download [-parser name] [-static] <url>
//	jobsift [-config file] reset [-source parser]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	gcstorage "cloud.google.com/go/storage"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jobsift/jobsift/internal/adapter"
	"github.com/jobsift/jobsift/internal/api"
	"github.com/jobsift/jobsift/internal/browser"
	"github.com/jobsift/jobsift/internal/clock"
	"github.com/jobsift/jobsift/internal/config"
	"github.com/jobsift/jobsift/internal/crawl"
	"github.com/jobsift/jobsift/internal/fetcher/static"
	"github.com/jobsift/jobsift/internal/ingest"
	"github.com/jobsift/jobsift/internal/logging"
	"github.com/jobsift/jobsift/internal/notify"
	"github.com/jobsift/jobsift/internal/scheduler"
	"github.com/jobsift/jobsift/internal/snapshot"
	"github.com/jobsift/jobsift/internal/storage/memory"
	"github.com/jobsift/jobsift/internal/storage/postgres"
	"github.com/jobsift/jobsift/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "jobsift: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "jobsift: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd := args[0]; cmd {
	case "serve":
		err = runServe(ctx, cfg, logger)
	case "search":
		err = runSearch(ctx, cfg, logger, args[1:])
	case "populate":
		err = runPopulate(ctx, cfg, logger, args[1:])
	case "getip":
		err = runGetIP(ctx, cfg, logger)
	case "download":
		err = runDownload(ctx, cfg, logger, args[1:])
	case "reset":
		err = runReset(ctx, cfg, args[1:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Error("command failed", zap.String("command", args[0]), zap.Error(err))
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr,
		"usage: jobsift [-config file] <serve|search|populate|getip|download|reset> [args]")
}

func browserConfig(cfg config.Config) browser.Config {
	return browser.Config{
		ExecPath:          cfg.Browser.ExecPath,
		Proxy:             cfg.Browser.Proxy,
		UserAgent:         cfg.Browser.UserAgent,
		NavigationTimeout: cfg.NavTimeout(),
	}
}

func retryConfig(cfg config.Config) browser.RetryConfig {
	return browser.RetryConfig{
		Attempts:    cfg.Retry.Attempts,
		BackoffBase: cfg.BackoffBase(),
	}
}

func openFunc(cfg config.Config, logger *zap.Logger) crawl.OpenFunc {
	return func(parser string) (adapter.Adapter, func(), error) {
		return adapter.Open(parser, browserConfig(cfg), retryConfig(cfg), clock.System{}, logger)
	}
}

// openStore selects Postgres when a DSN is configured and falls back to the
// in-memory store otherwise.
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (store.Store, func(), error) {
	if cfg.DB.DSN == "" {
		logger.Warn("no db.dsn configured, using in-memory store")
		return memory.New(), func() {}, nil
	}
	pg, err := postgres.New(ctx, postgres.Config{DSN: cfg.DB.DSN})
	if err != nil {
		return nil, nil, err
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		pg.Close()
		return nil, nil, err
	}
	return pg, pg.Close, nil
}

func newIngestor(ctx context.Context, cfg config.Config, st store.Store, logger *zap.Logger) (*ingest.Ingestor, func(), error) {
	var cache ingest.Cache
	closers := []func(){}
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("redis url: %w", err)
		}
		client := redis.NewClient(opts)
		closers = append(closers, func() { _ = client.Close() })
		cache = ingest.NewRedisCache(client, 0)
	}

	var pub notify.Publisher
	if cfg.PubSub.ProjectID != "" && cfg.PubSub.TopicName != "" {
		ps, err := notify.NewPubSub(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicName)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() { _ = ps.Close() })
		pub = ps
	}

	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	return ingest.New(st, cache, pub, logger), closeAll, nil
}

func newSnapshots(ctx context.Context, cfg config.Config) (snapshot.Store, error) {
	switch cfg.Snapshot.Backend {
	case "local":
		return snapshot.NewLocal(cfg.Snapshot.BaseDir)
	case "gcs":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		return snapshot.NewGCS(client, cfg.Snapshot.GCSBucket)
	default:
		return snapshot.NewMemory(), nil
	}
}

func runServe(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	ing, closeIngest, err := newIngestor(ctx, cfg, st, logger)
	if err != nil {
		return err
	}
	defer closeIngest()

	snaps, err := newSnapshots(ctx, cfg)
	if err != nil {
		return err
	}

	open := openFunc(cfg, logger)
	runner := crawl.NewRunner(st, ing, open, clock.System{}, logger)
	populator := crawl.NewPopulator(st, snaps, open, clock.System{}, logger)

	sched := scheduler.New(runner, populator, st, logger)
	if err := sched.Start(ctx, cfg.Scheduler.Spec); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}

	srv := api.New(st, cfg.Server.Port, logger)
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Start() }()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}
	<-sched.Stop().Done()
	return nil
}

func runSearch(ctx context.Context, cfg config.Config, logger *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	source := fs.String("source", "", "restrict to one source parser")
	_ = fs.Parse(args)

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()
	if err := requireSource(ctx, st, *source); err != nil {
		return err
	}

	ing, closeIngest, err := newIngestor(ctx, cfg, st, logger)
	if err != nil {
		return err
	}
	defer closeIngest()

	runner := crawl.NewRunner(st, ing, openFunc(cfg, logger), clock.System{}, logger)
	return runner.RunAll(ctx, *source)
}

func runPopulate(ctx context.Context, cfg config.Config, logger *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("populate", flag.ExitOnError)
	source := fs.String("source", "", "restrict to one source parser")
	_ = fs.Parse(args)

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()
	if err := requireSource(ctx, st, *source); err != nil {
		return err
	}

	snaps, err := newSnapshots(ctx, cfg)
	if err != nil {
		return err
	}

	populator := crawl.NewPopulator(st, snaps, openFunc(cfg, logger), clock.System{}, logger)
	populated, err := populator.Run(ctx, *source)
	fmt.Printf("populated %d jobs\n", populated)
	return err
}

// runGetIP prints the egress IP twice, recreating the browser session in
// between, proving both proxy wiring and crash recovery.
func runGetIP(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	profile, err := adapter.ProfileFor("ip")
	if err != nil {
		return err
	}
	session := browser.NewSession(browserConfig(cfg), profile, logger)
	defer session.Destroy()
	probe := adapter.NewIPCheck(browser.NewRetrier(session, retryConfig(cfg), logger), logger)

	ip, err := probe.Probe(ctx)
	if err != nil {
		return err
	}
	fmt.Println(ip)

	if err := session.Create(ctx); err != nil {
		return err
	}
	ip, err = probe.Probe(ctx)
	if err != nil {
		return err
	}
	fmt.Println(ip)
	return nil
}

func runDownload(ctx context.Context, cfg config.Config, logger *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("download", flag.ExitOnError)
	parser := fs.String("parser", "ip", "interception profile to fetch with")
	staticFetch := fs.Bool("static", false, "fetch over plain HTTP instead of the browser")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("download requires exactly one url")
	}
	url := fs.Arg(0)

	var html string
	if *staticFetch {
		f := static.New(static.Config{
			UserAgent: cfg.Browser.UserAgent,
			Proxy:     cfg.Browser.Proxy,
			Timeout:   cfg.NavTimeout(),
		})
		resp, err := f.Fetch(ctx, url)
		if err != nil {
			return err
		}
		html = resp.HTML
	} else {
		profile, err := adapter.ProfileFor(*parser)
		if err != nil {
			return err
		}
		session := browser.NewSession(browserConfig(cfg), profile, logger)
		defer session.Destroy()
		resp, err := browser.NewRetrier(session, retryConfig(cfg), logger).Get(ctx, url, nil)
		if err != nil {
			return err
		}
		html = resp.HTML
	}

	if err := os.MkdirAll(cfg.Download.Dir, 0o750); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}
	name := time.Now().UTC().Format("2006-01-02T15:04:05Z") + ".html"
	path := filepath.Join(cfg.Download.Dir, name)
	if err := os.WriteFile(path, []byte(html), 0o600); err != nil {
		return fmt.Errorf("write download: %w", err)
	}
	fmt.Println(path)
	return nil
}

func runReset(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	source := fs.String("source", "", "restrict to one source parser")
	_ = fs.Parse(args)

	logger := zap.NewNop()
	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()
	if err := requireSource(ctx, st, *source); err != nil {
		return err
	}

	n, err := st.ResetTargets(ctx, *source)
	if err != nil {
		return err
	}
	fmt.Printf("updated %d targets\n", n)
	return nil
}

func requireSource(ctx context.Context, st store.Store, parser string) error {
	if parser == "" {
		return nil
	}
	if _, err := st.GetSourceByParser(ctx, parser); err != nil {
		return fmt.Errorf("source %q does not exist", parser)
	}
	return nil
}
