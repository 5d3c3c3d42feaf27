// Command bridge runs the local sync agent: it watches configured project
// directories and keeps them synchronized with the server.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"specsync/internal/bridge"
)

var version = "dev"

func main() {
	var opts bridge.Options
	opts.Version = version

	root := &cobra.Command{
		Use:           "bridge",
		Short:         "Sync local spec directories with a specsync server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			err := bridge.Run(ctx, opts)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	flags := root.Flags()
	flags.StringVar(&opts.ServerURL, "server-url", "", "sync server base URL (e.g. https://sync.example.com)")
	flags.StringVar(&opts.APIKey, "api-key", "", "API key; omit to use the device-authorization flow")
	flags.StringArrayVar(&opts.ProjectPaths, "project", nil, "project directory to sync (repeatable)")
	flags.StringVar(&opts.Label, "label", "", "machine label shown in the server UI (default: hostname)")
	flags.BoolVar(&opts.AllowInsecure, "allow-insecure", false, "allow plaintext HTTP to non-local hosts")
	flags.StringVar(&opts.StateDir, "state-dir", "", "state directory (default: ~/.specsync)")

	if err := root.Execute(); err != nil {
		log.Fatalf("bridge: %v", err)
	}
}
