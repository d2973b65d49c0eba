package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	configcmd "github.com/bacalhau-project/simverify/cmd/cli/config"
	"github.com/bacalhau-project/simverify/cmd/cli/serve"
	"github.com/bacalhau-project/simverify/cmd/cli/version"
	"github.com/bacalhau-project/simverify/cmd/util"
	"github.com/bacalhau-project/simverify/pkg/config"
	"github.com/bacalhau-project/simverify/pkg/logger"
	"github.com/bacalhau-project/simverify/pkg/system"
	"github.com/bacalhau-project/simverify/pkg/telemetry"
)

const dirEnvVar = "SIMVERIFY_DIR"

type RootOptions struct {
	ConfigDir string
	LogLevel  string
	LogMode   string
}

func NewRootOptions() *RootOptions {
	dir := os.Getenv(dirEnvVar)
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".simverify")
		}
	}
	return &RootOptions{ConfigDir: dir}
}

func NewRootCmd() *cobra.Command {
	opts := NewRootOptions()
	rootCmd := &cobra.Command{
		Use:           "simverify",
		Short:         "Run simulation archives on several simulators and compare their outputs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return util.GetCleanupManager(ctx).Cleanup(ctx)
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.ConfigDir, "config-dir", opts.ConfigDir,
		fmt.Sprintf("directory holding config.yaml and local state (env %s)", dirEnvVar))
	rootCmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", opts.LogLevel,
		"log level, one of trace, debug, info, warn, error. Overrides the configured level.")
	rootCmd.PersistentFlags().StringVar(&opts.LogMode, "log-mode", opts.LogMode,
		"log mode, one of default, json, combined. Overrides the configured mode.")

	rootCmd.AddCommand(serve.NewCmd())
	rootCmd.AddCommand(version.NewCmd())
	rootCmd.AddCommand(configcmd.NewCmd())
	return rootCmd
}

func (o *RootOptions) setup(cmd *cobra.Command) error {
	ctx := cmd.Context()

	// a missing .env file is fine, a malformed one is not
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env file: %w", err)
	}

	cfg, err := config.Load(o.ConfigDir)
	if err != nil {
		return err
	}
	if o.LogLevel != "" {
		cfg.Logging.Level = o.LogLevel
	}
	if o.LogMode != "" {
		cfg.Logging.Mode = o.LogMode
	}
	if err = logger.ConfigureLogging(cfg.Logging.Level, logger.LogMode(cfg.Logging.Mode)); err != nil {
		return err
	}

	cm := system.NewCleanupManager()
	cm.RegisterCallback(telemetry.Cleanup)
	ctx = util.WithCleanupManager(ctx, cm)
	ctx = util.WithConfig(ctx, cfg)
	ctx = log.Logger.WithContext(ctx)
	cmd.SetContext(ctx)
	return nil
}

// Execute runs the root command until it returns or the process is
// interrupted.
func Execute(ctx context.Context) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCmd()
	rootCmd.SetContext(ctx)
	if err := rootCmd.Execute(); err != nil {
		stop()
		util.Fatal(rootCmd, err, 1)
	}
}
