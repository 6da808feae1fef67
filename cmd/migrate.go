package cmd

import (
	"context"
	"fmt"

	"github.com/CosmoTheDev/anonscan/internal/config"
	"github.com/CosmoTheDev/anonscan/internal/database"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Long: `Applies pending schema migrations for the configured database driver.
Running it again is a no-op.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		db, err := database.New(cfg.Database)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()

		if err := db.Migrate(context.Background()); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		fmt.Printf("%s schema up to date (%s)\n", okStyle.Render("✓"), db.Driver())
		return nil
	},
}
