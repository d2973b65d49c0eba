package serve

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bacalhau-project/simverify/cmd/util"
	"github.com/bacalhau-project/simverify/pkg/node"
	"github.com/bacalhau-project/simverify/pkg/telemetry"
	"github.com/bacalhau-project/simverify/pkg/version"
)

const DefaultShutdownTimeout = 30 * time.Second

type ServeOptions struct {
	// Workers overrides the configured number of workers when positive.
	Workers         int
	ShutdownTimeout time.Duration
}

func NewServeOptions() *ServeOptions {
	return &ServeOptions{ShutdownTimeout: DefaultShutdownTimeout}
}

func NewCmd() *cobra.Command {
	opts := NewServeOptions()
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the workers that advance persisted verification jobs",
		Long: `Run the workers that advance persisted verification jobs.

Jobs are created by the gateway through the orchestrator library and picked up
by any running worker. Stopping the process lets in-flight jobs finish until the
shutdown timeout expires; jobs abandoned past that are failed by housekeeping.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd, opts)
		},
	}
	serveCmd.Flags().IntVar(&opts.Workers, "workers", opts.Workers,
		"number of jobs run in parallel. Overrides the configured value.")
	serveCmd.Flags().DurationVar(&opts.ShutdownTimeout, "shutdown-timeout", opts.ShutdownTimeout,
		"how long to wait for in-flight jobs on shutdown")
	return serveCmd
}

func serve(cmd *cobra.Command, opts *ServeOptions) error {
	ctx := cmd.Context()
	cfg, ok := util.GetConfig(ctx)
	if !ok {
		return fmt.Errorf("configuration was not loaded")
	}
	if opts.Workers > 0 {
		cfg.Orchestrator.Workers = opts.Workers
	}
	if !cfg.Telemetry.MetricsDisabled {
		telemetry.SetupFromEnvs()
	}

	n, err := node.NewNode(ctx, node.NodeConfig{
		Config:             cfg,
		CleanupManager:     util.GetCleanupManager(ctx),
		DependencyInjector: node.NewStandardNodeDependencyInjector(),
	})
	if err != nil {
		return fmt.Errorf("error creating node: %w", err)
	}

	log.Ctx(ctx).Info().
		Str("version", version.Get().GitVersion).
		Str("store", cfg.Store.Type).
		Str("blob", cfg.Blob.Type).
		Msg("starting simverify")
	n.Start(ctx)

	<-ctx.Done()
	log.Ctx(ctx).Info().Msg("shutting down")

	// the command context is done, the shutdown needs its own deadline
	stopCtx, cancel := context.WithTimeout(telemetry.NewDetachedContext(ctx), opts.ShutdownTimeout)
	defer cancel()
	n.Stop(stopCtx)
	return nil
}
