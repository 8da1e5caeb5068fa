package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sharath018/field-visit-backend/internal/client"
)

func newCreateCmd() *cobra.Command {
	var req client.CreateRequest

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a visit (admin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newAPIClient().CreateVisit(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), "Visit created.", v)
		},
	}

	cmd.Flags().StringVar(&req.Place, "place", "", "place to inspect")
	cmd.Flags().StringVar(&req.Location, "location", "", "address or area")
	cmd.Flags().StringVar(&req.PostedTo, "posted-to", "", "designation label or abbreviation")
	cmd.Flags().StringVar(&req.Deadline, "deadline", "", "YYYY-MM-DD or RFC 3339")
	cmd.Flags().StringVar(&req.Instructions, "instructions", "", "notes for the officer")
	for _, name := range []string{"place", "location", "posted-to", "deadline"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newSubmitCmd() *cobra.Command {
	var req client.SubmitRequest

	cmd := &cobra.Command{
		Use:   "submit <id>",
		Short: "Submit a completion report",
		Long:  "Submit a report for a visit. Photos are references (URLs or uploaded paths), at most five.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newAPIClient().SubmitVisit(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), "Report submitted.", v)
		},
	}

	cmd.Flags().StringVar(&req.Report, "report", "", "report text")
	cmd.Flags().StringSliceVar(&req.Photos, "photo", nil, "photo reference (repeatable)")
	cmd.Flags().StringVar(&req.EmployeeID, "employee-id", "", "your employee id")
	cmd.Flags().StringVar(&req.OfficerName, "officer", "", "officer name")
	cmd.Flags().StringVar(&req.SubmittedBy, "submitted-by", "", "name shown as completed by")
	cmd.Flags().StringVar(&req.Location, "location", "", "where the report was made from")
	return cmd
}

func newApproveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve a submitted report (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newAPIClient().ApproveVisit(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), "Visit approved.", v)
		},
	}
}

func newRejectCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a submitted report (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newAPIClient().RejectVisit(cmd.Context(), args[0], reason)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), "Visit rejected.", v)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "why the report was rejected")
	return cmd
}

func newRepostCmd() *cobra.Command {
	var deadline string

	cmd := &cobra.Command{
		Use:   "repost <id>",
		Short: "Reopen an overdue visit",
		Long:  "Reopen an overdue visit with a fresh deadline. Without --deadline it is seven days from now.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newAPIClient().RepostVisit(cmd.Context(), args[0], deadline)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), "Visit reposted.", v)
		},
	}
	cmd.Flags().StringVar(&deadline, "deadline", "", "new deadline (admin only)")
	return cmd
}

func newRequestRepostCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "request-repost <id>",
		Short: "Ask an admin to repost an overdue visit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newAPIClient().RequestRepost(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), "Repost requested.", v)
		},
	}
}

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <id> <employee-id>",
		Short: "Check an employee id against a visit's designation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newAPIClient().VerifyEmployee(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			if isJSON() {
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{"isValid": true})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Employee %s verified for visit %s\n", args[1], args[0])
			return nil
		},
	}
}

func newExportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Download a visit as PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := newAPIClient().ExportVisit(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if out == "" {
				out = fmt.Sprintf("visit_%s.pdf", args[0])
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d bytes)\n", out, len(data))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file")
	return cmd
}
