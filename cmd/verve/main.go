package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "verve",
		Short: "Server-driven live views for Go",
		Long: `Verve keeps stateful UI components on the server and their HTML in
sync with the browser through minimal patches over a WebSocket.

Components render plain HTML; interactions flow back as compact events,
handlers update state, and only the changed text and attributes travel
to the client.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
