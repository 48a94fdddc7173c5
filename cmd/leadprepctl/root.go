package main

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Lokman32/leadprep/internal/app"
	"github.com/Lokman32/leadprep/internal/config"
	"github.com/Lokman32/leadprep/internal/logging"
)

type appFactory func(ctx context.Context, configDir string) (*app.App, error)

func loadApp(ctx context.Context, configDir string) (*app.App, error) {
	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	log := logging.NewWithOutput(cfg.Logging.Level, "text", os.Stderr)
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return nil, errors.Wrap(err, "failed to init app")
	}
	return a, nil
}

func newRootCmd(newApp appFactory) *cobra.Command {
	var configDir string
	root := &cobra.Command{
		Use:           "leadprepctl",
		Short:         "Administer the lead-prep order service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configDir, "config", ".", "directory containing config.yaml")

	open := func(cmd *cobra.Command) (*app.App, error) {
		return newApp(cmd.Context(), configDir)
	}
	root.AddCommand(newTablesCmd(open), newUsersCmd(open), newPartsCmd(open))
	return root
}
