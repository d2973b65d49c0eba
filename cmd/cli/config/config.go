package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/bacalhau-project/simverify/cmd/util"
	"github.com/bacalhau-project/simverify/cmd/util/output"
	"github.com/bacalhau-project/simverify/pkg/config"
)

func NewCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Interact with the simverify configuration",
	}
	configCmd.AddCommand(newShowCmd())
	configCmd.AddCommand(newInitCmd())
	return configCmd
}

func newShowCmd() *cobra.Command {
	opts := output.OutputOptions{Format: output.YAMLFormat}
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, ok := util.GetConfig(cmd.Context())
			if !ok {
				return fmt.Errorf("configuration was not loaded")
			}
			if cfg.Blob.S3.SecretAccessKey != "" {
				cfg.Blob.S3.SecretAccessKey = "<redacted>"
			}
			return output.OutputNonTabular(cmd, opts, cfg)
		},
	}
	showCmd.Flags().StringVar((*string)(&opts.Format), "output", string(opts.Format),
		fmt.Sprintf("The output format (one of %v)", output.NonTabularFormats))
	showCmd.Flags().BoolVar(&opts.Pretty, "pretty", true, "Pretty print json output.")
	return showCmd
}

func newInitCmd() *cobra.Command {
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration to the config directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := cmd.Flags().GetString("config-dir")
			if err != nil {
				return err
			}
			path := config.FilePath(dir)
			if _, err = os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite it", path)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			if err = config.Write(dir, config.Default()); err != nil {
				return err
			}
			cmd.Printf("wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return initCmd
}
