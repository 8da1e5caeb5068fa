package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sharath018/field-visit-backend/internal/client"
)

func newListCmd() *cobra.Command {
	var opts client.ListOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List visits",
		Long:  "List visits visible to the current account, optionally filtered by designation and status.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := newAPIClient().ListVisits(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(cmd.OutOrStdout(), page)
			}
			if err := printVisitTable(cmd.OutOrStdout(), page.Visits); err != nil {
				return err
			}
			if page.TotalPages > 1 {
				fmt.Fprintf(cmd.OutOrStdout(), "\nPage %d of %d (%d visits)\n", page.Page, page.TotalPages, page.Total)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.PostedTo, "posted-to", "", "designation label or abbreviation")
	cmd.Flags().StringVar(&opts.Status, "status", "", "pending|submitted|approved|rejected|overdue")
	cmd.Flags().IntVar(&opts.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&opts.PageSize, "page-size", 20, "visits per page (max 100)")
	return cmd
}

func newOverdueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "overdue",
		Short: "List overdue visits eligible for repost",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := newAPIClient().ListOverdue(cmd.Context())
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(cmd.OutOrStdout(), list)
			}
			return printVisitTable(cmd.OutOrStdout(), list.Visits)
		},
	}
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one visit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newAPIClient().GetVisit(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(cmd.OutOrStdout(), v)
			}
			printVisit(cmd.OutOrStdout(), v)
			return nil
		},
	}
}

func newCountsCmd() *cobra.Command {
	var designation string

	cmd := &cobra.Command{
		Use:   "counts",
		Short: "Show dashboard counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newAPIClient().GetVisitCounts(cmd.Context(), designation)
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(cmd.OutOrStdout(), c)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Total visits:      %d\n", c.TotalVisits)
			fmt.Fprintf(w, "Pending approvals: %d\n", c.PendingApprovals)
			fmt.Fprintf(w, "Approved reports:  %d\n", c.ApprovedReports)
			fmt.Fprintf(w, "Repost requests:   %d\n", c.RepostRequests)
			return nil
		},
	}
	cmd.Flags().StringVar(&designation, "designation", "", "restrict counts to one designation")
	return cmd
}
