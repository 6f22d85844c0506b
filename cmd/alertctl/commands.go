package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/incial/crm-api/internal/domain"
	"github.com/incial/crm-api/internal/service"
	"github.com/spf13/cobra"
)

// alertOps is the part of the alert service the CLI uses
type alertOps interface {
	Scan(ctx context.Context) (service.ScanResult, error)
	ListActive(ctx context.Context) ([]domain.AlertDTO, error)
	Summary(ctx context.Context) (*domain.AlertSummaryDTO, error)
	Dismiss(ctx context.Context, alertID uint, dismissedBy string) (*domain.AlertDTO, error)
}

type opener func(ctx context.Context) (alertOps, func(), error)

func newRootCmd(open opener) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "alertctl",
		Short:         "Run and inspect project delay alerts",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().Duration("timeout", 5*time.Minute, "Abort the command after this long")

	rootCmd.AddCommand(scanCmd(open))
	rootCmd.AddCommand(listCmd(open))
	rootCmd.AddCommand(summaryCmd(open))
	rootCmd.AddCommand(dismissCmd(open))

	return rootCmd
}

// withService runs fn with a connected service and a bounded context
func withService(cmd *cobra.Command, open opener, fn func(ctx context.Context, ops alertOps) error) error {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	ops, closeFn, err := open(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(ctx, ops)
}

func scanCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Sweep watched stages and raise overdue alerts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, open, func(ctx context.Context, ops alertOps) error {
				result, err := ops.Scan(ctx)
				if err != nil {
					return fmt.Errorf("scan failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "evaluated=%d created=%d failed=%d\n",
					result.Evaluated, result.Created, result.Failed)
				return nil
			})
		},
	}
}

func listCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active alerts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			return withService(cmd, open, func(ctx context.Context, ops alertOps) error {
				alerts, err := ops.ListActive(ctx)
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(alerts)
				}
				if len(alerts) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No active alerts")
					return nil
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tPROJECT\tTYPE\tSEVERITY\tOVERDUE\tCREATED")
				for _, a := range alerts {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%dd\t%s\n",
						a.ID, projectLabel(a), a.AlertType, a.Severity, a.DaysOverdue, a.CreatedAt)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().BoolP("json", "j", false, "Output as JSON")
	return cmd
}

func projectLabel(a domain.AlertDTO) string {
	if a.ProjectName != "" {
		return fmt.Sprintf("%s (#%d)", a.ProjectName, a.ProjectID)
	}
	return fmt.Sprintf("#%d", a.ProjectID)
}

func summaryCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Count active alerts by severity and type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, open, func(ctx context.Context, ops alertOps) error {
				s, err := ops.Summary(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "total=%d critical=%d warning=%d info=%d\n",
					s.TotalAlerts, s.CriticalAlerts, s.WarningAlerts, s.InfoAlerts)

				types := make([]string, 0, len(s.ByType))
				for t := range s.ByType {
					types = append(types, string(t))
				}
				sort.Strings(types)
				for _, t := range types {
					fmt.Fprintf(out, "  %-20s %d\n", t, s.ByType[domain.AlertType(t)])
				}
				return nil
			})
		},
	}
}

func dismissCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dismiss <alert-id>",
		Short: "Dismiss an active alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil || id == 0 {
				return fmt.Errorf("invalid alert id %q", args[0])
			}
			by, _ := cmd.Flags().GetString("by")

			return withService(cmd, open, func(ctx context.Context, ops alertOps) error {
				alert, err := ops.Dismiss(ctx, uint(id), by)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "dismissed alert %d (%s) for project %d\n",
					alert.ID, alert.AlertType, alert.ProjectID)
				return nil
			})
		},
	}
	cmd.Flags().String("by", "alertctl", "Recorded as the dismissing user")
	return cmd
}
