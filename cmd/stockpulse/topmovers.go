package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var topMoversLimit int

var topMoversCmd = &cobra.Command{
	Use:   "top-movers",
	Short: "Print the current top-movers snapshot from the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newCore(cfg, log)
		if err != nil {
			return err
		}
		defer c.close()

		movers, err := c.service.TopMovers(cmd.Context(), topMoversLimit)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TICKER\tPRICE\tCHANGE%\tSIGNAL")
		for _, m := range movers {
			fmt.Fprintf(w, "%s\t%.2f\t%+.2f\t%s\n", m.Ticker, m.Price, m.ChangePercent, m.Signal)
		}
		return w.Flush()
	},
}

func init() {
	topMoversCmd.Flags().IntVarP(&topMoversLimit, "limit", "n", 4, "number of entries")
}
