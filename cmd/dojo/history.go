package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hperssn/dojo/internal/recorder"
)

func newHistoryCmd(a *app) *cobra.Command {
	var since string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print recorded sessions and totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var from time.Time
			if since != "" {
				parsed, err := parseSince(since, time.Now())
				if err != nil {
					return err
				}
				from = parsed
			}

			docs, closeStore, err := a.openUserStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			rec := recorder.New(docs)
			entries, err := rec.History(cmd.Context(), from)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DATE\tINTERVALS\tTRAINING")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%d\t%s\n",
					e.Date.Local().Format("2006-01-02 15:04"),
					len(e.Intervals),
					time.Duration(e.TrainingSeconds())*time.Second)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			stats, err := rec.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d sessions, %s total\n",
				stats.TotalSessions, time.Duration(stats.TotalTrainingSeconds)*time.Second)
			return nil
		},
	}

	cmd.Flags().StringVar(&since, "since", "", "only sessions after this RFC3339 time or duration ago (e.g. 168h)")
	return cmd
}

// parseSince accepts an RFC3339 timestamp or a duration before now.
func parseSince(s string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("--since must be RFC3339 or a duration: %q", s)
	}
	return now.Add(-d), nil
}
