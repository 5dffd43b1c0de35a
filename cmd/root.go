// Package cmd holds the security-reviews command line.
package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"security-reviews/config"
	"security-reviews/metrics"
	"security-reviews/utils"
)

// app is the state shared by every subcommand, filled in before each run.
type app struct {
	cfg     *config.Config
	logger  *utils.Logger
	metrics *metrics.Recorder
	started time.Time
}

var (
	state    app
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:           "security-reviews",
	Short:         "Collect, clean and summarize security product reviews.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		state = app{
			cfg:     cfg,
			logger:  utils.NewLogger(cfg.LogLevel),
			metrics: metrics.New(),
			started: time.Now(),
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return state.flushMetrics(cmd.Name())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override LOG_LEVEL (debug, info, warn, error).")
}

// ExecuteContext runs the root command and flushes the logger. The caller
// decides how to exit on error.
func ExecuteContext(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if state.logger != nil {
		state.logger.Sync()
	}
	return err
}

func (a *app) flushMetrics(command string) error {
	if a.cfg == nil || a.cfg.MetricsTextfile == "" {
		return nil
	}
	now := time.Now()
	a.metrics.ObserveRun(command, now.Sub(a.started), now)
	if err := a.metrics.WriteTextfile(a.cfg.MetricsTextfile); err != nil {
		return err
	}
	a.logger.Debug("[metrics] Wrote %s", a.cfg.MetricsTextfile)
	return nil
}
