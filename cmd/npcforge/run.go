// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/npcforge/npcforge/internal/config"
	"github.com/npcforge/npcforge/internal/logging"
	"github.com/npcforge/npcforge/internal/observability"
	"github.com/npcforge/npcforge/internal/runtime"
	"github.com/npcforge/npcforge/internal/tick"
	"github.com/npcforge/npcforge/internal/world"
)

// shutdownTimeout bounds the final save and server shutdown.
const shutdownTimeout = 10 * time.Second

// NewRunCmd creates the run subcommand.
func NewRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the entity runtime",
		Long: `Start the tick loop with an in-process world host, restore stored
entities, and serve metrics and health checks until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithDeps(cmd.Context(), cmd, nil)
		},
	}
}

// runWithDeps runs the daemon with injectable dependencies.
// If deps is nil, default implementations are used.
func runWithDeps(ctx context.Context, cmd *cobra.Command, deps *RunDeps) error {
	if deps == nil {
		deps = &RunDeps{}
	}
	if deps.StoreOpener == nil {
		deps.StoreOpener = openStore
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, isReady observability.ReadinessChecker, logger *slog.Logger, regs ...observability.Registration) ObservabilityServer {
			return observability.NewServer(addr, isReady, logger, regs...)
		}
	}
	if deps.LogOutput == nil {
		deps.LogOutput = cmd.ErrOrStderr()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	logger := logging.New(version, cfg.LogFormat, slog.LevelInfo, deps.LogOutput)
	logger.Info("starting entity runtime",
		"storage_backend", cfg.StorageBackend,
		"tick_interval", cfg.TickInterval.String(),
		"worlds", cfg.Worlds,
	)

	store, closeStore, err := deps.StoreOpener(ctx, cfg, logger)
	if err != nil {
		return oops.Code("STORE_OPEN_FAILED").With("backend", cfg.StorageBackend).Wrap(err)
	}
	defer closeStore()

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var ready atomic.Bool
	loopOpts := []tick.Option{tick.WithLogger(logging.Component(logger, "tick"))}

	var obsServer ObservabilityServer
	if cfg.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.MetricsAddr, ready.Load, logger, runtime.RegisterMetrics)
		obsErrCh, startErr := obsServer.Start()
		if startErr != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").With("addr", cfg.MetricsAddr).Wrap(startErr)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability", logger)

		metrics := obsServer.Metrics()
		budget := cfg.TickInterval
		loopOpts = append(loopOpts, tick.WithStepObserver(func(elapsed time.Duration) {
			metrics.ObserveTick(elapsed, budget)
		}))
	}

	host := world.NewMemory(cfg.Worlds...)
	host.SetMaxPlayers(cfg.MaxPlayers)
	loop := tick.NewLoop(loopOpts...)

	rt, err := runtime.New(runtime.Options{
		Host:               host,
		Scheduler:          loop,
		Store:              store,
		Logger:             logger,
		InteractCooldown:   cfg.InteractCooldown,
		CooldownSweepTicks: cfg.CooldownSweepTicks,
		NametagPeriod:      cfg.NametagPeriod,
	})
	if err != nil {
		stopObservability(obsServer, logger)
		return err
	}

	restored := rt.Init(ctx, cfg.AutoLoad)
	ready.Store(true)
	cmd.Println("Entity runtime started")
	logger.Info("entity runtime ready", "restored", restored)

	runErr := loop.Run(ctx, cfg.TickInterval)
	ready.Store(false)
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer shutdownCancel()
	saved, removed := rt.Shutdown(shutdownCtx, cfg.SaveOnShutdown)
	cmd.Printf("Stopped: %d saved, %d removed\n", saved, removed)

	stopObservability(obsServer, logger)
	logger.Info("shutdown complete")
	return runErr
}

func stopObservability(s ObservabilityServer, logger *slog.Logger) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		logger.Warn("error stopping observability server", "error", err)
	}
}

// monitorServerErrors cancels the daemon when a server fails. It exits
// when the channel closes or ctx is done.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			logger.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
