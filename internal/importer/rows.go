package importer

import (
	"context"
	"fmt"
	"strconv"

	"github.com/stratix-platform/initiative-import/internal/importerr"
	"github.com/stratix-platform/initiative-import/internal/mapping"
	"github.com/stratix-platform/initiative-import/internal/model"
	"github.com/stratix-platform/initiative-import/internal/normalize"
	"github.com/stratix-platform/initiative-import/internal/report"
)

// RowsSummary describes the file pre-parsed rows were read from.
type RowsSummary struct {
	FileName  string `json:"fileName"`
	SheetName string `json:"sheetName"`
	TotalRows int    `json:"totalRows"`
}

// RowsRequest is a batch of rows a client already parsed, with the client's
// slot → source key mapping.
type RowsRequest struct {
	TenantID string
	Rows     []map[string]any
	Mapping  map[string]string
	Summary  RowsSummary
	Options  model.ImportOptions
}

// ImportRows validates and imports pre-parsed rows. Rows are numbered by
// their 1-based position in the batch.
func (im *Importer) ImportRows(ctx context.Context, req RowsRequest) (*report.Result, error) {
	opts := req.Options
	opts.Entry = model.EntryPreParsed
	if opts.FileName == "" {
		opts.FileName = req.Summary.FileName
	}

	if len(req.Rows) == 0 {
		return nil, importerr.New(importerr.Validation, "no rows to import")
	}
	if err := im.checkRowCeiling(len(req.Rows)); err != nil {
		return nil, err
	}
	slots, err := mapping.ValidateClientMapping(req.Mapping)
	if err != nil {
		return nil, err
	}

	c, err := im.prefetch(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}
	if err := im.checkTargetArea(c, opts.AreaID); err != nil {
		return nil, err
	}

	p := plan{
		tenantID: req.TenantID,
		options:  opts,
		template: model.TemplateClientMapping,
		ceiling:  im.settings.ProgressCeilingPreParsed,
	}
	if req.Summary.TotalRows > 0 && req.Summary.TotalRows != len(req.Rows) {
		p.warnings = append(p.warnings,
			fmt.Sprintf("summary declares %d rows but %d were received", req.Summary.TotalRows, len(req.Rows)))
	}

	for i, r := range req.Rows {
		fields := make(normalize.Fields, len(slots))
		for slot, key := range slots {
			if v, ok := r[key]; ok {
				fields[slot] = normalize.CellFromValue(v)
			}
		}
		p.jobs = append(p.jobs, job{
			rowNum: i + 1,
			sheet:  req.Summary.SheetName,
			areaID: opts.AreaID,
			fields: fields,
			raw:    rawFromValues(r),
		})
	}
	return im.run(ctx, c, p)
}

func rawFromValues(r map[string]any) map[string]string {
	raw := make(map[string]string, len(r))
	for k, v := range r {
		switch x := v.(type) {
		case nil:
			raw[k] = ""
		case string:
			raw[k] = x
		case float64:
			raw[k] = strconv.FormatFloat(x, 'f', -1, 64)
		default:
			raw[k] = fmt.Sprint(x)
		}
	}
	return raw
}
