package cmd

import (
	"context"
	"fmt"

	"catalog-mirror/internal/domain"
	"catalog-mirror/internal/reconcile"
	"catalog-mirror/internal/repository"
	"catalog-mirror/internal/service"

	"github.com/spf13/cobra"
)

func newPullCommand(a *app) *cobra.Command {
	var only string

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Overwrite local categories and products with the remote catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := a.engine()
			if err != nil {
				return err
			}

			var run func(context.Context) (*reconcile.PullReport, error)
			switch only {
			case "":
				run = engine.Pull
			case "categories":
				run = engine.PullCategories
			case "products":
				run = engine.PullProducts
			default:
				return domain.NewValidationError("only", only, "must be categories or products")
			}

			report, err := run(cmd.Context())
			if report != nil {
				if perr := printJSON(cmd.OutOrStdout(), report); perr != nil {
					return perr
				}
			}
			return err
		},
	}

	cmd.Flags().StringVar(&only, "only", "", "pull only categories or products")
	return cmd
}

func newPushCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Send pending cost changes to the remote catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := a.engine()
			if err != nil {
				return err
			}

			report, err := engine.Push(cmd.Context())
			if report != nil {
				if perr := printJSON(cmd.OutOrStdout(), report); perr != nil {
					return perr
				}
			}
			return err
		},
	}
}

func newPendingCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List cost changes not yet sent to the remote catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.database()
			if err != nil {
				return err
			}

			catalog := service.NewCatalogService(repository.NewRepositories(db))
			entries, err := catalog.ListPending(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, e := range entries {
				old := "-"
				if e.OldCost.Valid {
					old = e.OldCost.Decimal.StringFixed(2)
				}
				fmt.Fprintf(out, "%d\t%s\tproduct %d (%s)\t%s -> %s\n",
					e.ID, e.CreatedAt.Format("2006-01-02 15:04:05"), e.ProductID, e.ProductName,
					old, e.NewCost.StringFixed(2))
			}
			fmt.Fprintf(out, "%d pending\n", len(entries))
			return nil
		},
	}
}

func newPingCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the remote catalog is reachable with the configured credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := a.engine()
			if err != nil {
				return err
			}

			status, err := engine.CheckConnection(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), status)
		},
	}
}
