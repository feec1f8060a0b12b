package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stratix-platform/initiative-import/internal/config"
	"github.com/stratix-platform/initiative-import/internal/importer"
	"github.com/stratix-platform/initiative-import/internal/model"
	"github.com/stratix-platform/initiative-import/internal/report"
)

var (
	importFile           string
	importArea           string
	importMultiArea      bool
	importSkipDuplicates bool
	importDateFallback   string
	importTenant         string
	importErrorsOut      string
	importJSON           bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import initiatives from a CSV or Excel file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runImport(cmd.Context(), cmd.OutOrStdout())
	},
}

func runImport(ctx context.Context, out io.Writer) error {
	switch model.DateFallback(importDateFallback) {
	case "", model.DateFallbackNull, model.DateFallbackEndOfYear:
	default:
		return eris.Errorf("import: --date-fallback must be null or end_of_year, got %q", importDateFallback)
	}

	data, err := os.ReadFile(importFile)
	if err != nil {
		return eris.Wrapf(err, "import: read %s", importFile)
	}

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	dict, err := config.LoadDictionary(cfg.Import.DictionaryPath)
	if err != nil {
		return err
	}

	im := importer.New(st, importer.SettingsFromConfig(cfg), dict)
	res, err := im.ImportFile(ctx, importer.FileRequest{
		TenantID: tenantOrDefault(importTenant),
		FileName: filepath.Base(importFile),
		Data:     data,
		Options: model.ImportOptions{
			AreaID:         importArea,
			MultiArea:      importMultiArea,
			SkipDuplicates: importSkipDuplicates,
			DateFallback:   model.DateFallback(importDateFallback),
		},
	})
	if err != nil {
		return err
	}

	if importErrorsOut != "" {
		if err := writeErrorsFile(importErrorsOut, res); err != nil {
			return err
		}
		zap.L().Info("error report written", zap.String("path", importErrorsOut), zap.Int("errors", res.ErrorCount))
	}

	if importJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	formatImportResult(out, res)
	return nil
}

func writeErrorsFile(path string, res *report.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "import: create %s", path)
	}
	if err := report.WriteErrorWorkbook(f, *res); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrapf(f.Close(), "import: close %s", path)
}

// formatImportResult writes a human-readable import report to out.
func formatImportResult(out io.Writer, res *report.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Import:\t%s\n", res.ImportID)
	_, _ = fmt.Fprintf(w, "Template:\t%s\n", res.Template)
	_, _ = fmt.Fprintf(w, "Processed:\t%d\n", res.ProcessedRows)
	_, _ = fmt.Fprintf(w, "Created:\t%d\n", res.CreatedCount)
	_, _ = fmt.Fprintf(w, "Updated:\t%d\n", res.UpdatedCount)
	_, _ = fmt.Fprintf(w, "Skipped:\t%d\n", res.SkippedCount)
	_, _ = fmt.Fprintf(w, "Errors:\t%d\n", res.ErrorCount)
	_, _ = fmt.Fprintf(w, "Duration:\t%dms\n", res.DurationMs)
	_ = w.Flush()

	for _, warning := range res.Warnings {
		_, _ = fmt.Fprintf(out, "warning: %s\n", warning)
	}

	if len(res.Errors) > 0 {
		_, _ = fmt.Fprintln(out)
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ROW\tSHEET\tERROR\tHINT")
		_, _ = fmt.Fprintln(w, "---\t-----\t-----\t----")
		for _, e := range res.Errors {
			_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", e.Row, e.Sheet, e.Error, e.Hint)
		}
		_ = w.Flush()
	}

	if len(res.KPIImpact) > 0 {
		_, _ = fmt.Fprintln(out)
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "AREA\tPROGRESS\tBUDGET_DELTA\tCOST_DELTA\tINITIATIVES\tCOMPLETED")
		_, _ = fmt.Fprintln(w, "----\t--------\t------------\t----------\t-----------\t---------")
		for _, k := range res.KPIImpact {
			_, _ = fmt.Fprintf(w, "%s\t%.2f -> %.2f\t%s\t%s\t%d\t%d\n",
				k.AreaName,
				k.PreviousProgress,
				k.NewProgress,
				k.BudgetDelta.StringFixed(2),
				k.ActualCostDelta.StringFixed(2),
				k.Initiatives,
				k.Completed,
			)
		}
		_ = w.Flush()
	}
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "path to the CSV or .xlsx file (required)")
	importCmd.Flags().StringVar(&importArea, "area", "", "target area ID for rows without an area column")
	importCmd.Flags().BoolVar(&importMultiArea, "multi-area", false, "treat each sheet as the area its name matches")
	importCmd.Flags().BoolVar(&importSkipDuplicates, "skip-duplicates", false, "skip rows whose initiative already exists instead of updating it")
	importCmd.Flags().StringVar(&importDateFallback, "date-fallback", "", "unparseable dates become null or end_of_year (default from config)")
	importCmd.Flags().StringVar(&importTenant, "tenant", "", "tenant ID (default from config)")
	importCmd.Flags().StringVar(&importErrorsOut, "errors-out", "", "write rejected rows to this .xlsx file")
	importCmd.Flags().BoolVar(&importJSON, "json", false, "print the full import result as JSON")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
