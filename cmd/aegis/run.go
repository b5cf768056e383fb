package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"modex-hq/aegis/pkg/audit"
	"modex-hq/aegis/pkg/audit/recorder"
	"modex-hq/aegis/pkg/audit/retention"
	"modex-hq/aegis/pkg/audit/storage"
	"modex-hq/aegis/pkg/backend"
	"modex-hq/aegis/pkg/batch"
	"modex-hq/aegis/pkg/config"
	"modex-hq/aegis/pkg/engine"
	"modex-hq/aegis/pkg/ensemble"
	"modex-hq/aegis/pkg/routing"
	"modex-hq/aegis/pkg/server"
	"modex-hq/aegis/pkg/telemetry/health"
	"modex-hq/aegis/pkg/telemetry/logging"
	"modex-hq/aegis/pkg/telemetry/metrics"
	"modex-hq/aegis/pkg/telemetry/tracing"
)

// healthCheckInterval is how often backend health probes run.
const healthCheckInterval = 30 * time.Second

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the moderation server",
	Long: `Start the moderation server with the specified configuration.

The server listens on the configured address, routes image moderation
requests across the configured backend versions, and records every
decision to the audit store.

Examples:
  # Start with default config
  aegis run

  # Start with custom config
  aegis run --config /etc/aegis/config.yaml

  # Override listen address
  aegis run --listen 0.0.0.0:8080

  # Validate config without starting the server
  aegis run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.New(cfg.Telemetry.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.Install()
	defer logger.Close()

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Metrics
	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
	}

	// Tracing
	var tracer *tracing.Tracer
	if cfg.Telemetry.Tracing.Enabled {
		tracer, err = tracing.New(&cfg.Telemetry.Tracing)
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracer.Shutdown(shutdownCtx); err != nil {
				slog.Warn("tracer shutdown failed", "error", err)
			}
		}()
	}

	// Backend registry and batch assembler
	slog.Info("initializing backend registry")
	registry, err := backend.NewRegistry(cfg.Backends)
	if err != nil {
		return fmt.Errorf("failed to initialize backends: %w", err)
	}
	defer registry.Close()

	assembler := batch.NewAssembler(
		ensemble.NewRegistryDispatcher(registry),
		batch.SettingsFromConfig(cfg.Backends),
	)
	if collector != nil {
		assembler.OnSeal = func(kind backend.Kind, version, trigger string, size int, age time.Duration) {
			collector.Batch().RecordSeal(string(kind), trigger, size, age)
		}
	}
	defer assembler.Close()

	// Routing: policy store, sticky cache, router, optional file watch
	store, err := buildPolicyStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to install rollout policy: %w", err)
	}

	var sticky *routing.StickyCache
	if cfg.Routing.Sticky.Enabled {
		sticky = routing.NewStickyCache(cfg.Routing.Sticky.TTL, cfg.Routing.Sticky.MaxEntries)
		defer sticky.Stop()
	}
	router := routing.NewRouter(store, sticky)

	if collector != nil {
		if policy := store.Current(); policy != nil {
			collector.Routing().SetPolicyVersion(policy.Version)
		}
	}

	var watcherWG sync.WaitGroup
	if cfg.Routing.Watch && cfg.Routing.PolicyFile != "" {
		watcher, err := config.NewPolicyWatcher(cfg.Routing.PolicyFile)
		if err != nil {
			return fmt.Errorf("failed to start policy watcher: %w", err)
		}
		defer watcher.Stop()

		watcherWG.Add(1)
		go func() {
			defer watcherWG.Done()
			err := watcher.Watch(ctx, func(pf *config.PolicyFile) error {
				policy, err := store.Install(routing.WeightsFromConfig(pf.Policy))
				if collector != nil {
					collector.Routing().RecordPolicyUpdate(err == nil)
					if err == nil {
						collector.Routing().SetPolicyVersion(policy.Version)
					}
				}
				return err
			})
			if err != nil {
				slog.Error("policy watcher exited", "error", err)
			}
		}()
	}

	// Audit recording
	var auditRecorder *recorder.Recorder
	if cfg.Audit.Enabled {
		slog.Info("initializing audit store", "backend", cfg.Audit.Backend)

		var auditStorage audit.Storage
		switch cfg.Audit.Backend {
		case "sqlite":
			auditStorage, err = storage.NewSQLiteStorage(cfg.Audit.SQLite)
			if err != nil {
				return fmt.Errorf("failed to create SQLite storage: %w", err)
			}
		case "memory":
			auditStorage = storage.NewMemoryStorage()
		default:
			return fmt.Errorf("unsupported audit backend: %s", cfg.Audit.Backend)
		}
		defer auditStorage.Close()

		auditRecorder = recorder.NewRecorder(auditStorage, cfg.Audit.Recorder)
		defer auditRecorder.Close()

		if cfg.Audit.Retention.PruneSchedule != "" {
			pruner := retention.NewPruner(auditStorage, cfg.Audit.Retention)
			scheduler := retention.NewScheduler(pruner)
			if err := scheduler.Start(ctx); err != nil {
				slog.Warn("failed to start retention scheduler", "error", err)
			} else {
				defer scheduler.Stop()
			}
		}
	}

	// Decision pipeline
	interpreter := ensemble.NewInterpreter(cfg.Decision)
	invoker := ensemble.NewInvoker(registry, assembler,
		int64(cfg.Server.MaxConcurrent)*int64(len(backend.Kinds())))
	eng := engine.New(router, invoker, interpreter, auditRecorder, collector, tracer)

	// Health checker and background backend probes
	checker := health.New(2 * time.Second)
	checker.RegisterCheck("policy", func(ctx context.Context) error {
		if store.Current() == nil {
			return fmt.Errorf("no rollout policy installed")
		}
		return nil
	})
	checker.RegisterCheck("backends", func(ctx context.Context) error {
		for _, h := range registry.HealthSnapshot() {
			if h.IsHealthy {
				return nil
			}
		}
		return fmt.Errorf("no healthy backend available")
	})

	watcherWG.Add(1)
	go func() {
		defer watcherWG.Done()
		probeBackends(ctx, registry, collector)
	}()

	srv := server.New(cfg, server.Dependencies{
		Engine:   eng,
		Registry: registry,
		Router:   router,
		Checker:  checker,
		Metrics:  collector,
		Version: health.VersionInfo{
			Version:   Version,
			Commit:    GitCommit,
			BuildTime: BuildDate,
		},
	})

	slog.Info("starting server", "address", cfg.Server.ListenAddress)
	err = srv.Start(ctx)

	// Flush pending batch windows before the deferred teardown closes the
	// assembler and audit recorder.
	assembler.Flush()
	watcherWG.Wait()
	return err
}

// buildPolicyStore installs the initial rollout policy, preferring the policy
// file over the inline config when both are set.
func buildPolicyStore(cfg *config.Config) (*routing.Store, error) {
	if cfg.Routing.PolicyFile != "" {
		pf, err := config.LoadPolicyFile(cfg.Routing.PolicyFile)
		if err != nil {
			return nil, err
		}
		return routing.NewStore(routing.WeightsFromConfig(pf.Policy))
	}
	return routing.NewStoreFromConfig(cfg.Routing)
}

// probeBackends runs periodic health checks against every registered backend
// version and keeps the health gauges current.
func probeBackends(ctx context.Context, registry *backend.Registry, collector *metrics.Collector) {
	probe := func() {
		for _, kind := range registry.Kinds() {
			for _, version := range registry.Versions(kind) {
				inv, err := registry.Client(kind, version)
				if err != nil {
					continue
				}
				probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				healthy := inv.HealthCheck(probeCtx) == nil
				cancel()

				if collector != nil {
					collector.Backend().SetHealthy(string(kind), version, healthy)
				}
			}
		}
	}

	probe()
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probe()
		}
	}
}
