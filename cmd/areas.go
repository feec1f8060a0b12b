package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stratix-platform/initiative-import/internal/model"
)

var areasCmd = &cobra.Command{
	Use:   "areas",
	Short: "Manage the area catalog",
	Long:  "Areas are created by administrators only; imports match rows and sheets against this catalog and never add to it.",
}

var areasListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the areas of a tenant",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		tenant, _ := cmd.Flags().GetString("tenant")
		areas, err := st.ListAreas(ctx, tenantOrDefault(tenant))
		if err != nil {
			return eris.Wrap(err, "areas list")
		}

		if len(areas) == 0 {
			fmt.Fprintln(os.Stderr, "No areas found.")
			return nil
		}

		formatAreasList(cmd.OutOrStdout(), areas)
		return nil
	},
}

var areasAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an area to the catalog",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		name, _ := cmd.Flags().GetString("name")
		name = strings.TrimSpace(name)
		if name == "" {
			return eris.New("areas add: --name is required")
		}
		description, _ := cmd.Flags().GetString("description")
		tenant, _ := cmd.Flags().GetString("tenant")
		tenant = tenantOrDefault(tenant)

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		existing, err := st.ListAreas(ctx, tenant)
		if err != nil {
			return eris.Wrap(err, "areas add")
		}
		for _, a := range existing {
			if strings.EqualFold(a.Name, name) {
				return eris.Errorf("areas add: area %q already exists (%s)", a.Name, a.ID)
			}
		}

		area, err := st.CreateArea(ctx, model.Area{TenantID: tenant, Name: name, Description: description})
		if err != nil {
			return eris.Wrap(err, "areas add")
		}
		zap.L().Info("area created", zap.String("id", area.ID), zap.String("name", area.Name), zap.String("tenant_id", tenant))
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), area.ID)
		return nil
	},
}

// formatAreasList writes a tabular list of areas to out.
func formatAreasList(out io.Writer, areas []model.Area) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t----\t-------")
	for _, a := range areas {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", a.ID, a.Name, a.CreatedAt.Format("2006-01-02 15:04"))
	}
	_ = w.Flush()
}

func init() {
	areasListCmd.Flags().String("tenant", "", "tenant ID (default from config)")

	areasAddCmd.Flags().String("name", "", "area name (required)")
	areasAddCmd.Flags().String("description", "", "area description")
	areasAddCmd.Flags().String("tenant", "", "tenant ID (default from config)")

	areasCmd.AddCommand(areasListCmd)
	areasCmd.AddCommand(areasAddCmd)
	rootCmd.AddCommand(areasCmd)
}
