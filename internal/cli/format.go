package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/sharath018/field-visit-backend/internal/visit"
)

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printVisitTable(w io.Writer, views []visit.View) error {
	if len(views) == 0 {
		_, err := fmt.Fprintln(w, "No visits found.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "ID\tPLACE\tPOSTED TO\tDEADLINE\tSTATUS"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	for _, v := range views {
		status := string(v.EffectiveStatus)
		if v.DaysOverdue > 0 {
			status = fmt.Sprintf("%s (%dd)", status, v.DaysOverdue)
		}
		abbr := v.PostedTo.Abbreviation()
		if abbr == "" {
			abbr = string(v.PostedTo)
		}
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			v.ID, v.Place, abbr, v.Deadline.Format("2006-01-02"), status); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}
	return tw.Flush()
}

func printVisit(w io.Writer, v *visit.View) {
	fmt.Fprintf(w, "Visit %s\n", v.ID)
	fmt.Fprintf(w, "  Place:     %s\n", v.Place)
	fmt.Fprintf(w, "  Location:  %s\n", v.Location)
	fmt.Fprintf(w, "  Posted to: %s\n", v.PostedTo)
	fmt.Fprintf(w, "  Deadline:  %s\n", v.Deadline.Format("2006-01-02 15:04"))
	fmt.Fprintf(w, "  Status:    %s\n", v.EffectiveStatus)
	if v.IsOverdue {
		fmt.Fprintf(w, "  Overdue:   %d day(s)\n", v.DaysOverdue)
	}
	if v.Instructions != "" {
		fmt.Fprintf(w, "  Notes:     %s\n", v.Instructions)
	}
	if v.CompletedBy != "" {
		fmt.Fprintf(w, "  Completed: %s (%s)\n", v.CompletedBy, v.OfficerName)
	}
	if v.Report != "" {
		fmt.Fprintf(w, "  Report:    %s\n", v.Report)
	}
	for i, p := range v.Photos {
		fmt.Fprintf(w, "  Photo %d:   %s\n", i+1, p)
	}
	if v.RejectionReason != "" {
		fmt.Fprintf(w, "  Rejected:  %s\n", v.RejectionReason)
	}
}

// printResult prints v as JSON or as a one-line confirmation followed by the
// visit.
func printResult(w io.Writer, msg string, v *visit.View) error {
	if isJSON() {
		return printJSON(w, v)
	}
	fmt.Fprintln(w, msg)
	printVisit(w, v)
	return nil
}
