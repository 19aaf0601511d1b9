package main

import (
	"fmt"
	"time"

	"payhub/internal/activity"
	"payhub/internal/config"
	"payhub/internal/gateway"
	"payhub/internal/order"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

func ordersCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Top-up order maintenance",
	}

	var (
		before string
		grace  time.Duration
	)
	expire := &cobra.Command{
		Use:   "expire-stale",
		Short: "Expire pending orders whose invoice lapsed",
		Long: `Moves pending top-up orders to expired once their invoice deadline is more
than the grace period before the reference time. Orders whose invoice was never
created are measured from the deadline they would have had.
The wallet is never touched. A callback that arrives later for one of these
orders is acknowledged as already processed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			if before != "" {
				t, err := time.Parse(time.RFC3339, before)
				if err != nil {
					return fmt.Errorf("--before: %w", err)
				}
				now = t
			}
			if grace < 0 {
				return fmt.Errorf("--grace must not be negative")
			}

			return e.withDB(func(cfg *config.Config, database *sqlx.DB) error {
				if !cmd.Flags().Changed("grace") {
					grace = cfg.TopUp.ExpiryGrace
				}
				registry := gateway.NewRegistryFromConfig(gateway.NewConfigRepository(database), cfg.Gateway)
				manager := order.NewManager(order.NewRepository(database), registry, activity.LogRecorder{}, order.Limits{
					MinAmount:       cfg.TopUp.MinAmount,
					MaxAmount:       cfg.TopUp.MaxAmount,
					InvoiceDuration: cfg.TopUp.InvoiceDuration,
					ExpiryGrace:     grace,
				})

				total := 0
				for {
					n, err := manager.ExpireStale(cmd.Context(), now)
					total += n
					if err != nil {
						return err
					}
					if n == 0 {
						break
					}
				}
				cut := manager.StaleCutoff(now)
				fmt.Fprintf(cmd.OutOrStdout(), "expired %d order(s) lapsed before %s\n", total, cut.ExpiredBefore.UTC().Format(time.RFC3339))
				return nil
			})
		},
	}
	expire.Flags().StringVar(&before, "before", "", "RFC3339 reference time (default now)")
	expire.Flags().DurationVar(&grace, "grace", 0, "time past the invoice deadline to wait (default TOPUP_EXPIRY_GRACE)")

	cmd.AddCommand(expire)
	return cmd
}
