package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/lite-site-auditor/internal/audit"
	"github.com/JakeFAU/lite-site-auditor/internal/config"
	"github.com/JakeFAU/lite-site-auditor/internal/server"
)

// configKeyType is the key for storing the loaded Config in the context.
type configKeyType string

const configKey configKeyType = "config"

// App is what commands need from the application. Tests inject a fake.
type App interface {
	Run(ctx context.Context) error
	Audit(ctx context.Context, rawURL string) (audit.Record, error)
	Close(ctx context.Context)
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfg config.Config) (App, error) {
	return server.Build(ctx, cfg, server.Options{})
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "auditor",
		Short: "A lite SEO site auditor.",
		Long: `auditor crawls a handful of pages from one site and reports on-page SEO
problems: missing titles and meta descriptions, heading and alt-text issues,
duplicate content, redirects, and broken links.`,
		SilenceUsage: true,

		// Runs before every subcommand's RunE.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a config file (yaml, json, or toml)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newAuditCmd())
	return cmd
}

func configFrom(ctx context.Context) (config.Config, error) {
	cfg, ok := ctx.Value(configKey).(config.Config)
	if !ok {
		return config.Config{}, errors.New("configuration not loaded")
	}
	return cfg, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
