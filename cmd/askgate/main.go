package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/nodecanvas/askgate/internal/capability"
	"github.com/nodecanvas/askgate/internal/config"
	"github.com/nodecanvas/askgate/internal/connection"
	"github.com/nodecanvas/askgate/internal/dispatch"
	"github.com/nodecanvas/askgate/internal/integration"
	"github.com/nodecanvas/askgate/internal/logging"
	"github.com/nodecanvas/askgate/internal/lua"
	"github.com/nodecanvas/askgate/internal/metrics"
	"github.com/nodecanvas/askgate/internal/orchestrator"
	"github.com/nodecanvas/askgate/internal/provider"
	"github.com/nodecanvas/askgate/internal/scheduler"
	"github.com/nodecanvas/askgate/internal/server"
	"github.com/nodecanvas/askgate/internal/state/store"
	"github.com/nodecanvas/askgate/internal/version"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Get())
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logging: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("askgate exited")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	logger.Info().Str("version", version.Get().Version).Msg("starting askgate")

	db, err := store.Open(cfg.State)
	if err != nil {
		return err
	}
	defer db.Close()
	queryLog := store.NewQueryLogStore(db)

	lookup, closeCache, err := buildLookup(ctx, cfg.Cache, store.NewConnectionStore(db), logger)
	if err != nil {
		return err
	}
	defer closeCache()

	m := metrics.New()
	registry := integration.DefaultRegistry()

	providers, err := buildProviders(cfg.Providers)
	if err != nil {
		return err
	}

	guard := dispatch.NewGuard()
	guard.Timeout = cfg.Orchestrator.ToolTimeout
	guard.MaxResultBytes = cfg.Orchestrator.MaxResultBytes
	if guard.MaxResultBytes < 0 {
		guard.MaxResultBytes = 0
	}
	dispatcher := dispatch.New(registry, buildExecutors(registry, cfg.Integrations),
		dispatch.WithGuard(guard),
		dispatch.WithAttachmentPolicy(cfg.Orchestrator.AttachmentPolicy),
		dispatch.WithMetrics(m),
		dispatch.WithLogger(logger),
	)
	resolver := capability.NewResolver(registry, lookup,
		capability.WithGmailWidening(cfg.Orchestrator.WidenGmail()),
		capability.WithLogger(logger),
	)

	opts := []orchestrator.Option{
		orchestrator.WithRules(cfg.Orchestrator.Rules),
		orchestrator.WithShortcutPolicy(cfg.Orchestrator.ShortcutPolicy),
		orchestrator.WithMaxIterations(cfg.Orchestrator.MaxIterations),
		orchestrator.WithMetrics(m),
		orchestrator.WithLogger(logger),
	}
	if cfg.Orchestrator.PrepareScript != "" {
		preparer, err := lua.Load(cfg.Orchestrator.PrepareScript)
		if err != nil {
			return fmt.Errorf("prepare script: %w", err)
		}
		logger.Info().Str("script", preparer.Path()).Msg("query preparer loaded")
		opts = append(opts, orchestrator.WithPreparer(preparer))
	}
	orch := orchestrator.New(providers, resolver, dispatcher, opts...)

	var jobs *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		jobs = scheduler.New(logger)
		retention := time.Duration(cfg.Scheduler.RetentionDays) * 24 * time.Hour
		if err := jobs.Add(scheduler.PruneQueryLog(cfg.Scheduler.PruneSchedule, retention, queryLog, logger)); err != nil {
			return err
		}
		jobs.Start()
	}

	srvOpts := []server.Option{
		server.WithQueryLog(queryLog),
		server.WithHealthCheck(db.Ping),
		server.WithMetrics(m),
		server.WithAPIToken(cfg.Server.APIToken),
		server.WithLogger(logger),
	}
	if jobs != nil {
		srvOpts = append(srvOpts, server.WithJobs(jobs))
	}
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.New(orch, srvOpts...).Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", cfg.Server.Addr).
			Strs("providers", providers.IDs()).
			Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	if jobs != nil {
		if err := jobs.Stop(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("scheduler shutdown")
		}
	}
	return nil
}

// buildLookup wraps the connection store with Redis when configured and an
// in-process cache otherwise.
func buildLookup(ctx context.Context, cfg config.CacheConfig, backing connection.Lookup, logger zerolog.Logger) (connection.Lookup, func(), error) {
	if cfg.RedisAddr == "" {
		return connection.NewCached(backing, connection.NewMemoryCache(cfg.TTL), cfg.TTL, logger), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		// Cached falls through to the store on cache errors.
		logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable at startup")
	}
	closeFn := func() { _ = client.Close() }
	return connection.NewCached(backing, connection.NewRedisCache(client), cfg.TTL, logger), closeFn, nil
}

func buildProviders(cfgs map[string]config.ProviderConfig) (*provider.Registry, error) {
	reg := provider.NewRegistry()
	for id, pc := range cfgs {
		p, err := provider.FromConfig(provider.ProviderConfig{
			ID:      id,
			BaseURL: pc.BaseURL,
			Path:    pc.Path,
			APIKey:  pc.APIKey,
			Timeout: pc.Timeout,
		})
		if err != nil {
			return nil, err
		}
		if err := reg.Register(p); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func buildExecutors(registry *integration.Registry, cfgs map[string]config.IntegrationConfig) map[string]integration.Executor {
	out := make(map[string]integration.Executor, len(cfgs))
	for name, ic := range cfgs {
		f, ok := registry.Get(name)
		if !ok {
			continue
		}
		switch ic.Mode {
		case config.ExecutorDryRun:
			out[name] = integration.NewHandlerExecutor(f, integration.DryRunOperations(f))
		default:
			opts := []integration.HTTPExecutorOption{integration.WithExecutorToken(ic.Token)}
			if ic.Timeout > 0 {
				opts = append(opts, integration.WithExecutorHTTPClient(&http.Client{Timeout: ic.Timeout}))
			}
			out[name] = integration.NewHTTPExecutor(name, ic.URL, opts...)
		}
	}
	return out
}
