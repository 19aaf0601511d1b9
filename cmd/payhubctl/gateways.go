package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"payhub/internal/config"
	"payhub/internal/gateway"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

func gatewaysCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gateways",
		Short: "Inspect and switch payment gateways",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List gateway configs with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withDB(func(_ *config.Config, database *sqlx.DB) error {
				cfgs, err := gateway.NewConfigRepository(database).List(cmd.Context())
				if err != nil {
					return fmt.Errorf("list gateways: %w", err)
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "PROVIDER\tACTIVE\tPRIMARY\tSECRET\tMETHODS")
				for _, c := range cfgs {
					creds, err := c.Credentials()
					if err != nil {
						return fmt.Errorf("%s: %w", c.Provider, err)
					}
					fmt.Fprintf(tw, "%s\t%t\t%t\t%s\t%s\n",
						c.Provider, c.IsActive, c.IsPrimary,
						creds.Redacted()["secret_key"],
						strings.Join(c.SupportedMethods, ","))
				}
				return tw.Flush()
			})
		},
	}

	setPrimary := &cobra.Command{
		Use:   "set-primary <provider>",
		Short: "Make a provider the active primary gateway",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := gateway.ParseProvider(args[0])
			if err != nil {
				return err
			}
			return e.withDB(func(_ *config.Config, database *sqlx.DB) error {
				if err := gateway.NewConfigRepository(database).SetPrimary(cmd.Context(), p); err != nil {
					return fmt.Errorf("set primary %s: %w", p, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now the primary gateway\n", p)
				return nil
			})
		},
	}

	cmd.AddCommand(list, setPrimary)
	return cmd
}
