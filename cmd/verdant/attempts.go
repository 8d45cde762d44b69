package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/verdant-ai/verdant/pkg/attemptlog"
	"github.com/verdant-ai/verdant/pkg/models"
)

func newAttemptsCmd(configPath *string) *cobra.Command {
	var (
		requestID string
		endpoint  string
		outcome   string
		since     string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "attempts",
		Short: "Search the provider attempt log",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openAttemptLog(*configPath)
			if err != nil {
				return err
			}
			defer l.Close()

			opts := models.AttemptQueryOpts{
				RequestID: requestID,
				Endpoint:  endpoint,
				Outcome:   models.Outcome(outcome),
				Limit:     limit,
			}
			if since != "" {
				t, err := time.Parse("2006-01-02", since)
				if err != nil {
					return fmt.Errorf("invalid --since date (use YYYY-MM-DD): %w", err)
				}
				opts.Since = t
			}

			attempts, err := l.Query(context.Background(), opts)
			if err != nil {
				return err
			}
			if len(attempts) == 0 {
				fmt.Println("No attempts found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tREQUEST ID\tFEATURE\tENDPOINT\t#\tOUTCOME\tSTATUS\tLATENCY\tERROR")
			for _, a := range attempts {
				status := "-"
				if a.StatusCode != 0 {
					status = fmt.Sprint(a.StatusCode)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\t%dms\t%s\n",
					a.StartedAt.Local().Format("2006-01-02 15:04:05"), a.RequestID, a.Feature,
					a.EndpointName, a.AttemptNumber, a.Outcome, status, a.LatencyMs, a.Error)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&requestID, "request-id", "", "only attempts of this request")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "filter by provider name")
	cmd.Flags().StringVar(&outcome, "outcome", "", "filter by outcome (success, timeout, http_error, ...)")
	cmd.Flags().StringVar(&since, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 50, "max attempts to return")

	cmd.AddCommand(newAttemptsStatsCmd(configPath), newAttemptsCleanupCmd(configPath))
	return cmd
}

func newAttemptsStatsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show attempt counts by outcome and day",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openAttemptLog(*configPath)
			if err != nil {
				return err
			}
			defer l.Close()

			stats, err := l.Stats(context.Background())
			if err != nil {
				return err
			}
			if len(stats) == 0 {
				fmt.Println("No attempts recorded.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "DAY\tOUTCOME\tCOUNT")
			for _, s := range stats {
				fmt.Fprintf(w, "%s\t%s\t%d\n", s.Day, s.Outcome, s.Count)
			}
			return w.Flush()
		},
	}
}

func newAttemptsCleanupCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete attempts older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openAttemptLog(*configPath)
			if err != nil {
				return err
			}
			defer l.Close()

			deleted, err := l.Cleanup(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %d attempts.\n", deleted)
			return nil
		},
	}
}

func openAttemptLog(configPath string) (*attemptlog.Log, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return attemptlog.New(cfg.DBPath, cfg.Attempts.RetentionDays)
}
