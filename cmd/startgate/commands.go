package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"startgate/internal/app/server"
	"startgate/internal/config"
	"startgate/internal/gate"
)

// exitNative is the exit status of `resolve` when the gate falls back.
const exitNative = 3

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:           "startgate",
		Short:         "Startup gate: pick the web surface or the native shell",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default configs/application.yaml)")

	loadConfig := func() config.Config {
		cfg := config.Load(cfgPath)
		config.SetupLogging(cfg.Server.LogLevel)
		return cfg
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the gate for this cold start and serve the decision API",
		RunE: func(_ *cobra.Command, _ []string) error {
			return server.Run(loadConfig())
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "resolve",
		Short: "Run one cold start and print the decision as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			d, err := server.Resolve(ctx, loadConfig())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(d); err != nil {
				return err
			}
			if d.Outcome == gate.OutcomeNative {
				stop()
				os.Exit(exitNative)
			}
			return nil
		},
	})

	return root
}
