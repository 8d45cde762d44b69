package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/verdant-ai/verdant/pkg/ledger"
	ledgerstore "github.com/verdant-ai/verdant/pkg/ledger/sqlite"
)

func newUsageCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Inspect usage allowances and change tiers",
	}
	cmd.AddCommand(
		newUsageStatusCmd(configPath),
		newUsageListCmd(configPath),
		newUsageTierCmd(configPath, "upgrade", "Move a user to the premium tier", (*ledger.Ledger).Upgrade),
		newUsageTierCmd(configPath, "downgrade", "Move a user back to the free tier", (*ledger.Ledger).Downgrade),
	)
	return cmd
}

// openLedger opens the usage ledger without the rest of the client.
func openLedger(configPath string) (*ledger.Ledger, *ledgerstore.Store, string, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, "", err
	}
	store, err := ledgerstore.New(cfg.DBPath)
	if err != nil {
		return nil, nil, "", err
	}
	return ledger.New(store, cfg.Usage), store, cfg.Usage.DefaultUser, nil
}

func userArg(args []string, defaultUser string) string {
	if len(args) > 0 {
		return args[0]
	}
	return defaultUser
}

func newUsageStatusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status [user]",
		Short: "Show usage against every limit of a user",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, store, defaultUser, err := openLedger(*configPath)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := context.Background()
			user := userArg(args, defaultUser)
			tier, statuses, err := l.Status(ctx, user)
			if err != nil {
				return err
			}
			reset, err := l.TimeUntilReset(ctx, user)
			if err != nil {
				return err
			}

			fmt.Printf("User: %s\nTier: %s\nDaily reset in: %s\n\n", user, tier, reset.Round(time.Minute))
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "FEATURE\tWINDOW\tUSED\tLIMIT\tREMAINING\tRESETS")
			for _, s := range statuses {
				if s.Limit == ledger.Unlimited {
					fmt.Fprintf(w, "%s\t%s\t%d\t-\tunlimited\t-\n", s.Feature, s.Window, s.Used)
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n",
					s.Feature, s.Window, s.Used, s.Limit, s.Remaining, s.ResetAt.Local().Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
}

func newUsageListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every user known to the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, _, err := openLedger(*configPath)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.List(context.Background())
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("No usage recorded.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "USER\tTIER\tUPDATED")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\n", r.UserID, r.Tier, r.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}
}

func newUsageTierCmd(configPath *string, use, short string, change func(*ledger.Ledger, context.Context, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [user]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, store, defaultUser, err := openLedger(*configPath)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := context.Background()
			user := userArg(args, defaultUser)
			if err := change(l, ctx, user); err != nil {
				return err
			}
			rec, err := l.Record(ctx, user)
			if err != nil {
				return err
			}
			fmt.Printf("%s is now on the %s tier.\n", user, rec.Tier)
			return nil
		},
	}
}
