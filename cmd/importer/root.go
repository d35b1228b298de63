package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jaki95/feedback-importer/config"
	"github.com/jaki95/feedback-importer/internal/batch"
)

type commandContext struct {
	configPath string
	baseURL    string
	token      string
	verbose    bool

	cfg *config.Config
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg := config.Default()
	if c.configPath != "" {
		loaded, err := config.Load(c.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if c.baseURL != "" {
		cfg.Client.BaseURL = c.baseURL
	}
	if c.token != "" {
		cfg.Client.Token = c.token
	}
	c.cfg = cfg
	return cfg, nil
}

func (c *commandContext) setupLogging(cmd *cobra.Command) {
	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

func (c *commandContext) newClient(cmd *cobra.Command) *batch.Client {
	cfg := c.cfg.Client
	return batch.NewClient(cfg.BaseURL,
		batch.WithToken(cfg.Token),
		batch.WithRequestTimeout(cfg.RequestTimeout),
		batch.WithUploadTimeout(cfg.UploadBaseTimeout, cfg.UploadPerMiBTimeout),
		batch.WithAuthExpired(func() {
			fmt.Fprintln(cmd.ErrOrStderr(), "Session expired. Sign in again and rerun the command.")
		}),
	)
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "importer",
		Short:         "Import feedback files through the batch import service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ctx.setupLogging(cmd)
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configPath, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&ctx.baseURL, "base-url", "", "Batch service base URL")
	rootCmd.PersistentFlags().StringVar(&ctx.token, "token", os.Getenv("IMPORTER_TOKEN"), "Bearer token for the batch service")
	rootCmd.PersistentFlags().BoolVarP(&ctx.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))

	return rootCmd
}
