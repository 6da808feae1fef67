package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/CosmoTheDev/anonscan/internal/gateway"
	"github.com/spf13/cobra"
)

var warmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Scan the warmer allowlist once",
	Long: `Runs every repository in warmer.repos through the scan pipeline, the
same way GET /api/cron/warm-cache does, and prints one line per repository.
Repositories scanned within the cache window are served from cache.`,
	RunE: runWarm,
}

func runWarm(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, svc, closeDB, err := openService(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	if len(cfg.Warmer.Repos) == 0 {
		fmt.Println("warmer.repos is empty; nothing to do")
		return nil
	}

	outcomes := gateway.NewWarmer(svc.Dispatcher, cfg.Warmer.Repos).Run(ctx)
	failed := 0
	for _, o := range outcomes {
		took := (time.Duration(o.DurationMS) * time.Millisecond).Round(time.Millisecond)
		switch {
		case o.Status != "ok":
			failed++
			fmt.Printf("%s %s %s\n", failStyle.Render("✗"), o.RepoURL, dimStyle.Render(o.Code+" · "+took.String()))
		case o.Cached:
			fmt.Printf("%s %s %s\n", okStyle.Render("✓"), o.RepoURL, dimStyle.Render("cached · "+took.String()))
		default:
			fmt.Printf("%s %s %s\n", okStyle.Render("✓"), o.RepoURL, dimStyle.Render("scanned · "+took.String()))
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d repositories failed", failed, len(outcomes))
	}
	return nil
}
