package main

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"stockpulse/internal/model"
)

var (
	analyzeStart    string
	analyzeEnd      string
	analyzeLookback int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze TICKER",
	Short: "Run one analysis, persist it and print the result as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newCore(cfg, log)
		if err != nil {
			return err
		}
		defer c.close()

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Analysis.ForecastTimeout+cfg.Provider.Timeout)
		defer cancel()
		res, err := c.service.Analyze(ctx, model.AnalysisRequest{
			Ticker:         strings.ToUpper(args[0]),
			StartDate:      analyzeStart,
			EndDate:        analyzeEnd,
			LookbackPeriod: analyzeLookback,
		})
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	now := time.Now()
	analyzeCmd.Flags().StringVar(&analyzeStart, "start", now.AddDate(-1, 0, 0).Format(model.DateLayout), "start date YYYY-MM-DD")
	analyzeCmd.Flags().StringVar(&analyzeEnd, "end", now.Format(model.DateLayout), "end date YYYY-MM-DD")
	analyzeCmd.Flags().IntVar(&analyzeLookback, "lookback", 0, "minimum observations (0 uses the configured default)")
}
