package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/order-convert/internal/audit"
	"github.com/sells-group/order-convert/internal/pipeline"
)

// PhaseDedupe names the duplicate deletion phase in progress events.
const PhaseDedupe = "dedupe"

var duplicatesApply bool

var duplicatesCmd = &cobra.Command{
	Use:   "duplicates",
	Short: "Report registry records sharing CUIT and address",
	Long:  "Groups registry records by CUIT and address. With --apply, every member of a group but the first is deleted, one backup per deletion.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		reg, err := openRegistry()
		if err != nil {
			return err
		}

		rep := audit.Analyze(reg.All())
		out := cmd.OutOrStdout()
		formatReport(out, rep)
		if !duplicatesApply || len(rep.Clusters) == 0 {
			return nil
		}

		sel := audit.DefaultSelection(rep)
		processed, err := runPhase(cmd.Context(), PhaseDedupe, func(opts pipeline.Options) (int, error) {
			return audit.Apply(reg, rep, sel, func(done, total int) {
				if opts.Progress != nil {
					opts.Progress(pipeline.Progress{Phase: PhaseDedupe, Done: done, Total: total})
				}
			})
		})
		_, _ = fmt.Fprintf(out, "Deleted %d of %d records.\n", processed, len(sel.Rows()))
		return err
	},
}

func init() {
	duplicatesCmd.Flags().BoolVar(&duplicatesApply, "apply", false, "delete every duplicate but the first of each group")
	rootCmd.AddCommand(duplicatesCmd)
}

// formatReport writes the clusters of rep to out.
func formatReport(out io.Writer, rep audit.Report) {
	_, _ = fmt.Fprintln(out, audit.Summary(rep))
	if len(rep.Clusters) == 0 {
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CLUSTER\tROW\tCUIT\tNAME\tSTREET\tLOCALITY")
	_, _ = fmt.Fprintln(w, "-------\t---\t----\t----\t------\t--------")
	for _, c := range rep.Clusters {
		for i, m := range c.Members {
			mark := ""
			if i == 0 {
				mark = " (kept)"
			}
			_, _ = fmt.Fprintf(w, "%d\t%d%s\t%s\t%s\t%s\t%s\n", c.ID, m.Row, mark, m.CUIT, m.Name, m.Street, m.Locality)
		}
	}
	_ = w.Flush()
}
