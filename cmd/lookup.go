package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/order-convert/internal/lookup"
)

var lookupContract string

var lookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Find an employer CUIT by contract number",
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := lookup.NewHTTPClient(cfg.Lookup)
		if err != nil {
			return eris.Wrap(err, "lookup client")
		}

		found, err := client.LookupCUIT(cmd.Context(), lookupContract)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if found == "" {
			_, _ = fmt.Fprintf(out, "No CUIT found for contract %s.\n", lookupContract)
			return nil
		}
		_, _ = fmt.Fprintln(out, found)
		return nil
	},
}

func init() {
	lookupCmd.Flags().StringVar(&lookupContract, "contract", "", "contract number (required)")
	_ = lookupCmd.MarkFlagRequired("contract")
	rootCmd.AddCommand(lookupCmd)
}
