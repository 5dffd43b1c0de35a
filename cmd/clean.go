package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"security-reviews/collector"
	"security-reviews/models"
	"security-reviews/services"
	"security-reviews/storage"
)

var (
	cleanInput  string
	cleanOutput string
	skipStore   bool
)

func init() {
	cleanCmd.Flags().StringVarP(&cleanInput, "input", "i", "", "Raw dataset (.json or .csv). Defaults to the newest combined file in RAW_DATA_DIR.")
	cleanCmd.Flags().StringVarP(&cleanOutput, "output", "o", "", "Cleaned dataset (.json or .csv). Defaults to PROCESSED_DATA_DIR/cleaned_reviews_<ts>.json.")
	cleanCmd.Flags().BoolVar(&skipStore, "no-store", false, "Do not write the cleaned reviews to the database.")
	rootCmd.AddCommand(cleanCmd)

	runCmd.Flags().BoolVar(&skipStore, "no-store", false, "Do not write the cleaned reviews to the database.")
	rootCmd.AddCommand(runCmd)
}

var cleanCmd = &cobra.Command{
	Use:   "clean [--input <raw.json>] [--output <clean.json>]",
	Short: "Run the normalization pipeline over a raw dataset.",
	RunE: func(cmd *cobra.Command, args []string) error {
		input := cleanInput
		if input == "" {
			latest, err := latestCombined(state.cfg.RawDataDir)
			if err != nil {
				return err
			}
			input = latest
		}
		return state.clean(input, cleanOutput)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Collect, then clean the freshly collected dataset.",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := state.collect(cmd.Context())
		if err != nil {
			return err
		}
		return state.clean(raw, "")
	},
}

func (a *app) clean(input, output string) error {
	a.logger.Info("=== Review cleaning starting ===")
	a.logger.Info("Input: %s", input)

	batch, err := storage.LoadRaw(input)
	if err != nil {
		return err
	}

	cleaner := services.NewCleaner(a.cfg.Cleaning, a.logger)
	reviews, report, err := cleaner.Clean(batch)
	if err != nil {
		return err
	}
	a.metrics.ObserveCleaning(report)

	if output == "" {
		output = filepath.Join(a.cfg.ProcessedDataDir,
			"cleaned_reviews_"+time.Now().UTC().Format(collector.FileTimestamp)+".json")
	}
	if err := storage.SaveClean(output, reviews, report); err != nil {
		return err
	}
	a.logger.Info("Cleaned dataset saved to %s", output)

	validation := services.ValidateDataset(reviews)
	for _, issue := range validation.Issues {
		a.logger.Warn("[validate] %s", issue)
	}

	insights := services.NewInsightService(a.logger)
	insights.PrintCleaningReport(report)

	if len(reviews) == 0 {
		a.logger.Warn("All reviews were dropped during cleaning")
		return nil
	}

	stored := reviews
	if !skipStore {
		stored, err = a.store(reviews)
		if err != nil {
			return err
		}
	}
	insights.Print(insights.Generate(stored))
	return nil
}

// store writes reviews to the configured database and reads them back. With
// storage disabled the input is returned unchanged.
func (a *app) store(reviews []*models.CleanReview) ([]*models.CleanReview, error) {
	w, err := storage.Open(a.cfg.StorageDriver, a.cfg.DSN())
	if errors.Is(err, storage.ErrStorageDisabled) {
		a.logger.Info("[storage] Disabled, skipping database write")
		return reviews, nil
	}
	if err != nil {
		return nil, err
	}
	defer w.Close()

	if err := w.Write(reviews); err != nil {
		return nil, err
	}
	a.logger.Info("[storage] Stored %d reviews (%s)", len(reviews), a.cfg.StorageDriver)

	fetched, err := w.FetchAll()
	if err != nil {
		a.logger.Error("[storage] Failed to read reviews back for insights: %v", err)
		return reviews, nil
	}
	return fetched, nil
}

// latestCombined returns the newest combined_reviews_<ts>.json in dir. The
// timestamp layout sorts lexically.
func latestCombined(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "combined_reviews_*.json"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no combined_reviews_*.json in %s, run collect first or pass --input", dir)
	}
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}
