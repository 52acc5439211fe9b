package app

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/georoute/internal/config"
	"github.com/MrSnakeDoc/georoute/internal/httpserver"
	"github.com/MrSnakeDoc/georoute/internal/httpserver/deps"
	"github.com/MrSnakeDoc/georoute/internal/index"
	"github.com/MrSnakeDoc/georoute/internal/ingest"
	"github.com/MrSnakeDoc/georoute/internal/logger"
	"github.com/MrSnakeDoc/georoute/internal/metrics"
	"github.com/MrSnakeDoc/georoute/internal/policy"
	"github.com/MrSnakeDoc/georoute/internal/reactor"
	"github.com/MrSnakeDoc/georoute/internal/redis"
	"github.com/MrSnakeDoc/georoute/internal/scheduler"
	"github.com/MrSnakeDoc/georoute/internal/sources/settings"
	redisstore "github.com/MrSnakeDoc/georoute/internal/store/redis"
	"github.com/MrSnakeDoc/georoute/internal/version"
)

// App owns every long-running component of the service.
type App struct {
	cfg         *config.Config
	logger      logger.Logger
	redisClient *goredis.Client
	pipeline    *ingest.Pipeline
	refresher   *scheduler.GeoRefresher
	compiler    *scheduler.Compiler
	dispatcher  *scheduler.Dispatcher
	watcher     *scheduler.ChangeWatcher
	collector   *scheduler.ProgressCollector
	settings    *settings.Source
	server      *httpserver.Server
}

// New connects to redis and wires the components. Nothing runs until Run.
func New(ctx context.Context, cfg *config.Config, loggerClient logger.Logger) (*App, error) {
	// Initialize Redis early - fail fast if unavailable
	redisClient, err := redis.Connect(ctx, redis.ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		DB:             cfg.RedisDB,
		DialTimeout:    cfg.RedisDT,
		ReadTimeout:    cfg.RedisRT,
		WriteTimeout:   cfg.RedisWT,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
		WarnThreshold:  cfg.RedisWarnThreshold,
	}, loggerClient)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	m := metrics.New()
	store := redisstore.NewStore(redisClient)
	memIndex := index.NewMemoryIndex()
	auth := policy.NewAuthenticator()

	fetcher := ingest.NewFetcher(ingest.FetcherOptions{
		Mirrors:      cfg.Mirrors,
		Timeout:      cfg.FetchTimeout,
		SizeEstimate: cfg.SizeEstimate,
		UserAgent:    version.UserAgent(),
	}, loggerClient.With(logger.String("component", "fetcher")), m)

	pipeline := ingest.NewPipeline(store, fetcher, ingest.Options{
		Categories:  cfg.Categories,
		MinListSize: cfg.MinListSize,
		BundledPath: cfg.BundledSnapshot,
	}, loggerClient.With(logger.String("component", "ingest")), m)

	refresher := scheduler.NewGeoRefresher(pipeline,
		loggerClient.With(logger.String("component", "geo_refresher")),
		cfg.RetryInitial, cfg.RetryMax)
	compiler := scheduler.NewCompiler(store, memIndex, auth,
		loggerClient.With(logger.String("component", "compiler")), m)
	dispatcher := scheduler.NewDispatcher(refresher, compiler,
		loggerClient.With(logger.String("component", "dispatcher")), cfg.UpdateInterval)
	watcher := scheduler.NewChangeWatcher(store, dispatcher,
		loggerClient.With(logger.String("component", "change_watcher")))
	collector := scheduler.NewProgressCollector(store, func() bool { return pipelineBusy(pipeline) },
		loggerClient.With(logger.String("component", "progress_gc")),
		cfg.GCInterval, scheduler.DefaultStaleThreshold)

	var settingsSource *settings.Source
	if cfg.SettingsFile != "" {
		settingsSource = settings.NewSource(cfg.SettingsFile, store,
			loggerClient.With(logger.String("component", "settings")), m)
	} else {
		loggerClient.Info("settings file not configured, settings are read from redis only")
	}

	d := deps.Deps{
		Logger:       loggerClient,
		StartTime:    time.Now(),
		Version:      version.Version,
		Commit:       version.Commit,
		BuildDate:    version.BuildDate,
		GoVersion:    version.GoVersion,
		TimeNow:      time.Now,
		AllowedHosts: cfg.AllowedHosts,
		AllowedCIDRS: cfg.AllowedCIDRS,
		TrustProxy:   cfg.TrustProxy,
		Store:        store,
		MemoryIndex:  memIndex,
		Auth:         auth,
		Pipeline:     pipeline,
		Reload: func() bool {
			return dispatcher.Dispatch(reactor.Event{Kind: reactor.ManualRefresh})
		},
		Metrics:      m,
		ChallengeRPM: cfg.ChallengeRPM,
	}

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		redisClient: redisClient,
		pipeline:    pipeline,
		refresher:   refresher,
		compiler:    compiler,
		dispatcher:  dispatcher,
		watcher:     watcher,
		collector:   collector,
		settings:    settingsSource,
		server:      httpserver.New(cfg.ListenPort, loggerClient, d),
	}, nil
}

// Run starts every component and blocks until ctx is cancelled or one of
// them fails, then shuts down.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("starting " + version.String())

	g, gctx := errgroup.WithContext(ctx)

	// workers first so the startup effects find them listening
	g.Go(func() error { return a.refresher.Run(gctx) })
	g.Go(func() error { return a.compiler.Run(gctx) })
	g.Go(func() error { return a.watcher.Run(gctx) })
	g.Go(func() error { return a.collector.Run(gctx) })
	if a.settings != nil {
		g.Go(func() error {
			// the settings file is optional; losing its watch must not stop routing
			if err := a.settings.Run(gctx); err != nil {
				a.logger.Error("settings watcher stopped", logger.Error(err))
			}
			return nil
		})
	}
	g.Go(func() error { return a.dispatcher.Run(gctx) })

	g.Go(func() error {
		if err := a.server.Start(); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		if err := a.server.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("failed to stop server: %w", err)
		}
		return nil
	})

	err := g.Wait()

	if cerr := a.redisClient.Close(); cerr != nil {
		a.logger.Warn("failed to close redis", logger.Error(cerr))
	} else {
		a.logger.Info("redis closed cleanly")
	}
	_ = a.logger.Sync()

	if err != nil {
		return err
	}
	a.logger.Info("georoute stopped cleanly")
	return nil
}

func pipelineBusy(p *ingest.Pipeline) bool {
	switch p.State() {
	case ingest.StateChecking, ingest.StateDownloading, ingest.StateValidating:
		return true
	}
	return false
}
