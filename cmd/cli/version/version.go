package version

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/bacalhau-project/simverify/cmd/util/output"
	"github.com/bacalhau-project/simverify/pkg/models"
	"github.com/bacalhau-project/simverify/pkg/version"
)

type VersionOptions struct {
	OutputOpts output.OutputOptions
}

func NewVersionOptions() *VersionOptions {
	return &VersionOptions{
		OutputOpts: output.OutputOptions{Format: output.TableFormat},
	}
}

func NewCmd() *cobra.Command {
	oV := NewVersionOptions()

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Get the version of the binary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runVersion(cmd, oV)
		},
	}
	versionCmd.Flags().AddFlagSet(output.OutputFormatFlags(&oV.OutputOpts))
	return versionCmd
}

var versionColumns = []output.TableColumn[*models.BuildVersionInfo]{
	{
		ColumnConfig: table.ColumnConfig{Name: "version"},
		Value:        func(v *models.BuildVersionInfo) string { return v.GitVersion },
	},
	{
		ColumnConfig: table.ColumnConfig{Name: "commit"},
		Value:        func(v *models.BuildVersionInfo) string { return v.GitCommit },
	},
	{
		ColumnConfig: table.ColumnConfig{Name: "built"},
		Value: func(v *models.BuildVersionInfo) string {
			if v.BuildDate.IsZero() {
				return ""
			}
			return v.BuildDate.Format(time.RFC3339)
		},
	},
	{
		ColumnConfig: table.ColumnConfig{Name: "platform"},
		Value:        func(v *models.BuildVersionInfo) string { return v.GOOS + "/" + v.GOARCH },
	},
}

func runVersion(cmd *cobra.Command, oV *VersionOptions) error {
	if err := output.OutputOne(cmd, versionColumns, oV.OutputOpts, version.Get()); err != nil {
		return fmt.Errorf("error running version: %w", err)
	}
	return nil
}
