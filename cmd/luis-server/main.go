package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/hyy20190326/luis-0509/internal/app"
	"github.com/hyy20190326/luis-0509/internal/config"
)

const version = "0.5.9"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	root := &cobra.Command{
		Use:   "luis-server",
		Short: "Streaming speech session service with intent notifications",
		Long: `luis-server accepts session commands over HTTP, streams call audio into a
speech recognizer per session and posts every recognition event to the
notification endpoint.

Env overrides use the LUIS_ prefix, e.g. LUIS_AUTH_KEY, LUIS_ENGINE_PROVIDER,
LUIS_KAFKA_BROKERS=k1:9092,k2:9092.`,
		Example: `  luis-server serve -c nsl.toml
  luis-server config -c nsl.toml`,
		SilenceUsage: true,
	}
	root.Version = version
	root.CompletionOptions.DisableDefaultCmd = true

	cfgPath := root.PersistentFlags().StringP("config", "c", "", "Path to config file (TOML)")

	serve := newServeCmd(cfgPath)
	root.AddCommand(serve)
	root.AddCommand(newConfigCmd(cfgPath))
	root.RunE = serve.RunE

	return root.Execute()
}

func newServeCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the service until SIGINT or SIGTERM",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return app.Serve(ctx, *cfgPath, nil)
		},
	}
}

func newConfigCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as TOML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			out, err := toml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
