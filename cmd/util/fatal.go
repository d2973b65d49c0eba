package util

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// Fatal prints err on the error stream of cmd and exits with code. Tests
// swap it out to observe failures.
var Fatal = func(cmd *cobra.Command, err error, code int) {
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		cmd.PrintErrln("Error: " + msg)
	}
	os.Exit(code)
}
