package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/tracksaver/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup writes the example config when none exists, then initializes the database.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configPath

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		config, err := shared.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load created config: %w", err)
		}
		r.config = config
		r.writePlain("✓ Config created at %s\n", configPath)
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)
	if _, err := r.database(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	r.writePlain("✓ Database ready at %s\n", shared.ExpandPath(r.config.Database.Path))

	if err := r.config.Validate(); err != nil {
		r.writePlainln("Next steps:")
		r.writePlain("1. Set spotify.client_id in %s (%v)\n", configPath, err)
		r.writePlain("2. Run 'tracksaver auth login'\n")
		return nil
	}

	r.writePlainln("Next steps:")
	r.writePlain("1. Run 'tracksaver auth login'\n")
	r.writePlain("2. Run 'tracksaver select <playlist-id>'\n")
	return nil
}
