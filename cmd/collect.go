package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"security-reviews/collector"
	"security-reviews/config"
	"security-reviews/scraper"
	"security-reviews/scraper/amazon"
	"security-reviews/scraper/appstore"
	"security-reviews/scraper/playstore"
	"security-reviews/scraper/reddit"
	"security-reviews/utils"
)

func init() {
	rootCmd.AddCommand(collectCmd)
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Scrape reviews for every target company from every configured source.",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := state.collect(cmd.Context())
		return err
	},
}

// collect runs the collector and returns the combined raw dataset path.
func (a *app) collect(ctx context.Context) (string, error) {
	a.logger.Info("=== Review collection starting ===")
	a.logger.Info("Companies: %v | sources: %v | concurrency: %d | rate: %dms",
		a.cfg.Companies, a.cfg.Sources, a.cfg.MaxConcurrency, a.cfg.RateLimitMs)

	sources, err := buildSources(a.cfg, a.logger)
	if err != nil {
		return "", err
	}

	mgr := collector.NewManager(sources, collector.Options{
		Companies:      a.cfg.Companies,
		MaxPerSource:   a.cfg.MaxReviewsPerSource,
		MinPerSource:   a.cfg.MinReviewsPerSource,
		MaxConcurrency: a.cfg.MaxConcurrency,
		RateLimitMs:    a.cfg.RateLimitMs,
		OutputDir:      a.cfg.RawDataDir,
	}, a.logger)

	res, err := mgr.Collect(ctx)
	if err != nil {
		return "", err
	}
	if len(res.Reviews) == 0 {
		return "", fmt.Errorf("no reviews were collected")
	}

	perSource := make(map[string]int, len(res.Stats))
	for name, st := range res.Stats {
		perSource[name] = st.ReviewsCollected
		a.logger.Info("[collect] %s: %d reviews, %d companies ok, %d failed",
			name, st.ReviewsCollected, st.CompaniesProcessed, st.CompaniesFailed)
	}
	a.metrics.ObserveCollection(perSource)

	return mgr.Save(res)
}

func buildSources(cfg *config.Config, logger *utils.Logger) ([]scraper.Source, error) {
	opts := scraper.Options{
		Logger: logger,
		Retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
		ChromeBin: cfg.ChromeBin,
	}

	sources := make([]scraper.Source, 0, len(cfg.Sources))
	for _, name := range cfg.Sources {
		switch name {
		case "reddit":
			sources = append(sources, reddit.New(opts, nil))
		case "playstore":
			sources = append(sources, playstore.New(opts))
		case "appstore":
			sources = append(sources, appstore.New(opts))
		case "amazon":
			sources = append(sources, amazon.New(opts))
		default:
			return nil, fmt.Errorf("%w: %q", config.ErrUnknownSource, name)
		}
	}
	return sources, nil
}
