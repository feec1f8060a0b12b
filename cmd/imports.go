package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/stratix-platform/initiative-import/internal/model"
)

var importsCmd = &cobra.Command{
	Use:   "imports",
	Short: "Inspect import history",
	Long:  "Commands for reading the audit trail of past imports.",
}

// -- imports show --

var importsShowCmd = &cobra.Command{
	Use:   "show <import-id>",
	Short: "Show the audit events of an import",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		events, err := st.ListAuditEvents(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "imports show")
		}
		if len(events) == 0 {
			return eris.Errorf("imports show: import %s not found", args[0])
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(events)
		}
		formatAuditEvents(cmd.OutOrStdout(), events)
		return nil
	},
}

func init() {
	importsShowCmd.Flags().Bool("json", false, "print the raw events as JSON")

	importsCmd.AddCommand(importsShowCmd)
	rootCmd.AddCommand(importsCmd)
}

// formatAuditEvents writes one line per event with its payload flattened.
func formatAuditEvents(out io.Writer, events []model.AuditEvent) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TYPE\tTENANT\tCREATED\tDETAILS")
	_, _ = fmt.Fprintln(w, "----\t------\t-------\t-------")
	for _, ev := range events {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			ev.Type,
			ev.TenantID,
			ev.CreatedAt.Format("2006-01-02 15:04:05"),
			flattenPayload(ev.Payload),
		)
	}
	_ = w.Flush()
}

// flattenPayload renders a payload as sorted key=value pairs, skipping the
// import id that every event repeats.
func flattenPayload(p map[string]any) string {
	keys := make([]string, 0, len(p))
	for k := range p {
		if k == "import_id" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, p[k]))
	}
	return strings.Join(parts, " ")
}
