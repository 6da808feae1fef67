package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CosmoTheDev/anonscan/internal/auth"
	"github.com/CosmoTheDev/anonscan/internal/backend"
	"github.com/CosmoTheDev/anonscan/internal/config"
	"github.com/CosmoTheDev/anonscan/internal/database"
	"github.com/CosmoTheDev/anonscan/internal/gateway"
	"github.com/CosmoTheDev/anonscan/internal/repository"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Verify configuration, database, backend and GitHub access",
	Long: `Checks that the database can be reached and migrated, the scan backend
answers its health endpoint, GitHub API quota is available and the
optional auth and warmer settings are usable.`,
	RunE: runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	allOK := true
	fail := func(err error) {
		fmt.Println(failStyle.Render("FAIL") + " (" + err.Error() + ")")
		allOK = false
	}

	fmt.Println(titleStyle.Render("anonscan doctor"))
	fmt.Println()

	// Database
	fmt.Print("Database ................. ")
	db, err := database.New(cfg.Database)
	if err != nil {
		fail(err)
	} else {
		err := db.Ping(ctx)
		if err == nil {
			err = db.Migrate(ctx)
		}
		if err != nil {
			fail(err)
		} else {
			target := cfg.Database.Path
			if cfg.Database.Driver != "sqlite" {
				target = "dsn configured"
			}
			fmt.Printf("%s (%s: %s)\n", okStyle.Render("OK"), db.Driver(), target)
		}
		_ = db.Close()
	}

	// Scan backend
	fmt.Print("Scan backend ............. ")
	if cfg.Backend.APIBaseURL == "" {
		fail(errors.New("backend.api_base_url not set"))
	} else if err := backend.New(cfg.Backend).Ping(ctx); err != nil {
		fail(err)
	} else {
		fmt.Printf("%s (%s)\n", okStyle.Render("OK"), cfg.Backend.APIBaseURL)
	}
	fmt.Print("Backend API key .......... ")
	if cfg.Backend.APIKey == "" {
		fmt.Println(warnStyle.Render("WARN") + " (not set; set ANONSCAN_BACKEND_API_KEY)")
	} else {
		fmt.Println(okStyle.Render("OK"))
	}

	// GitHub
	fmt.Print("GitHub API ............... ")
	gh, err := repository.NewGitHubClient(cfg.GitHub)
	if err != nil {
		fail(err)
	} else if remaining, limit, err := gh.RateLimit(ctx); err != nil {
		fail(err)
	} else {
		note := "token"
		if cfg.GitHub.Token == "" {
			note = "anonymous"
		}
		fmt.Printf("%s (%s of %s requests left, %s)\n", okStyle.Render("OK"),
			humanize.Comma(int64(remaining)), humanize.Comma(int64(limit)), note)
	}

	// Auth
	fmt.Print("Token verification ....... ")
	if !cfg.Auth.Enabled() {
		fmt.Println(dimStyle.Render("disabled (claims trust the request body)"))
	} else if _, err := auth.New(cfg.Auth); err != nil {
		fail(err)
	} else {
		fmt.Printf("%s (%s)\n", okStyle.Render("OK"), authMode(cfg.Auth))
	}

	// Warmer
	fmt.Print("Warmer schedule .......... ")
	if cfg.Warmer.Schedule == "" {
		fmt.Println(dimStyle.Render("disabled (cron endpoint only)"))
	} else if err := gateway.ValidateSchedule(cfg.Warmer.Schedule); err != nil {
		fail(err)
	} else {
		fmt.Printf("%s (%s, %d repos)\n", okStyle.Render("OK"), cfg.Warmer.Schedule, len(cfg.Warmer.Repos))
	}
	fmt.Print("Cron secret .............. ")
	if cfg.Warmer.CronSecret == "" {
		fmt.Println(warnStyle.Render("WARN") + " (not set; /api/cron/warm-cache is open)")
	} else {
		fmt.Println(okStyle.Render("OK"))
	}

	fmt.Println()
	if allOK {
		fmt.Println(okStyle.Render("All checks passed. anonscan is ready."))
	} else {
		fmt.Println(warnStyle.Render("Some checks failed. Fix the configuration and run 'anonscan doctor' again."))
	}
	return nil
}
