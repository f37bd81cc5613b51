package main

import (
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/order-convert/internal/company"
	"github.com/sells-group/order-convert/internal/resolution"
)

var companiesCmd = &cobra.Command{
	Use:   "companies",
	Short: "Inspect and edit the employer registry",
}

// -- companies list --

var companiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registry records",
	RunE: func(cmd *cobra.Command, _ []string) error {
		reg, err := openRegistry()
		if err != nil {
			return err
		}
		return printRecords(cmd.OutOrStdout(), reg.All())
	},
}

// -- companies search --

var companiesSearchCmd = &cobra.Command{
	Use:   "search <cuit-or-name>",
	Short: "Search the registry by CUIT or name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := openRegistry()
		if err != nil {
			return err
		}
		return printRecords(cmd.OutOrStdout(), reg.Search(args[0]))
	},
}

// -- companies save --

var (
	saveRecord     company.Record
	saveOnConflict string
)

var companiesSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Add or update a registry record",
	Long:  "Saves an employer through conflict resolution: a CUIT already registered asks whether to unify, keep a new record, or ignore, and the answer is remembered for that address.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if saveRecord.Name == "" {
			return eris.New("--name is required")
		}
		prompter, err := conflictPrompter(cmd, saveOnConflict)
		if err != nil {
			return err
		}

		reg, err := openRegistry()
		if err != nil {
			return err
		}
		svc, store, err := newResolutionService(ctx, reg, prompter)
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		res, err := svc.Save(ctx, saveRecord)
		if err != nil {
			return eris.Wrap(err, "companies save")
		}

		out := cmd.OutOrStdout()
		if res.Outcome != resolution.OutcomeSaved {
			_, _ = fmt.Fprintln(out, "Not saved.")
			return nil
		}
		_, _ = fmt.Fprintf(out, "Saved as row %d.\n", res.Record.Row)
		return nil
	},
}

// -- companies delete --

var deleteRow int

var companiesDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a registry record (a backup is written first)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		reg, err := openRegistry()
		if err != nil {
			return err
		}
		rec, ok := reg.Get(deleteRow)
		if !ok {
			return eris.Errorf("row %d not found", deleteRow)
		}
		if _, err := reg.Delete(rec); err != nil {
			return eris.Wrap(err, "companies delete")
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted row %d (%s).\n", rec.Row, rec.Name)
		return nil
	},
}

func init() {
	f := companiesSaveCmd.Flags()
	f.IntVar(&saveRecord.Row, "row", 0, "row id to update")
	f.StringVar(&saveRecord.CUIT, "cuit", "", "employer CUIT")
	f.StringVar(&saveRecord.CIIU, "ciiu", "", "industry code")
	f.StringVar(&saveRecord.Name, "name", "", "legal name")
	f.StringVar(&saveRecord.Street, "street", "", "street address")
	f.StringVar(&saveRecord.PostalCode, "postal-code", "", "postal code")
	f.StringVar(&saveRecord.Locality, "locality", "", "locality")
	f.StringVar(&saveRecord.Province, "province", "", "province")
	f.StringVar(&saveRecord.Phone, "phone", "", "phone")
	f.StringVar(&saveRecord.Fax, "fax", "", "fax")
	f.StringVar(&saveRecord.Email, "email", "", "email")
	f.StringVar(&saveOnConflict, "on-conflict", "ask", "registry conflicts: ask, keep or ignore")

	companiesDeleteCmd.Flags().IntVar(&deleteRow, "row", 0, "row id to delete")
	_ = companiesDeleteCmd.MarkFlagRequired("row")

	companiesCmd.AddCommand(companiesListCmd, companiesSearchCmd, companiesSaveCmd, companiesDeleteCmd)
	rootCmd.AddCommand(companiesCmd)
}

func printRecords(out io.Writer, recs []company.Record) error {
	if len(recs) == 0 {
		_, _ = fmt.Fprintln(out, "No companies found.")
		return nil
	}
	formatRecords(out, recs)
	return nil
}
