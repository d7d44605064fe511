package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// exitError carries a specific process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

var rootCmd = &cobra.Command{
	Use:   "keeper",
	Short: "Keep a dashboard-managed game server running",
	Long: `keeper drives the hosting dashboard in a headless browser, infers the
server status from the rendered page and clicks start whenever the server
is not running. A small HTTP API exposes the status and manual controls.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.PersistentFlags().StringP("config", "c", "", "path to YAML config (defaults plus environment when omitted)")
	rootCmd.AddCommand(newRunCmd(), newCheckAuthCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			if ee.err != nil {
				fmt.Fprintln(os.Stderr, "keeper:", ee.err)
			}
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, "keeper:", err)
		os.Exit(1)
	}
}
