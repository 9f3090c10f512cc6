package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/claimcheck/internal/store"
)

// catalogCmd represents the catalog command
var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List catalog policies and whether an indexed document backs them",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		policies, err := st.ListCatalogPolicies(ctx)
		if err != nil {
			return fmt.Errorf("list catalog: %w", err)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tINSURER\tDOCUMENT")
		for _, p := range policies {
			doc := "-"
			up, err := st.FindUploadedDocumentForInsurer(ctx, p.Insurer)
			if err != nil {
				return fmt.Errorf("find document for %s: %w", p.Insurer, err)
			}
			if up != nil {
				doc = up.ID
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Insurer, doc)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
}
