package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"security-reviews/services"
	"security-reviews/storage"
)

func init() {
	rootCmd.AddCommand(insightsCmd)
}

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Print per-product insights from the stored clean reviews.",
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := storage.Open(state.cfg.StorageDriver, state.cfg.DSN())
		if errors.Is(err, storage.ErrStorageDisabled) {
			return fmt.Errorf("insights needs a database, set STORAGE_DRIVER to sqlite or postgres")
		}
		if err != nil {
			return err
		}
		defer w.Close()

		reviews, err := w.FetchAll()
		if err != nil {
			return err
		}
		if len(reviews) == 0 {
			state.logger.Warn("No stored reviews, run clean first")
			return nil
		}

		svc := services.NewInsightService(state.logger)
		svc.Print(svc.Generate(reviews))
		return nil
	},
}
