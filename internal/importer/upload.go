package importer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/stratix-platform/initiative-import/internal/decode"
	"github.com/stratix-platform/initiative-import/internal/importerr"
	"github.com/stratix-platform/initiative-import/internal/mapping"
	"github.com/stratix-platform/initiative-import/internal/model"
	"github.com/stratix-platform/initiative-import/internal/normalize"
	"github.com/stratix-platform/initiative-import/internal/report"
	"github.com/stratix-platform/initiative-import/internal/sheet"
)

// FileRequest is an uploaded workbook or CSV file.
type FileRequest struct {
	TenantID    string
	FileName    string
	ContentType string
	Data        []byte
	Options     model.ImportOptions
}

// ImportFile decodes, validates and imports an uploaded file. Format,
// structure, mapping and validation failures are returned before anything
// is written.
func (im *Importer) ImportFile(ctx context.Context, req FileRequest) (*report.Result, error) {
	opts := req.Options
	opts.Entry = model.EntryUpload
	if opts.FileName == "" {
		opts.FileName = req.FileName
	}

	grids, err := decode.Decode(req.Data, req.FileName, req.ContentType)
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

	p, err := im.planFile(grids, c, opts)
	if err != nil {
		return nil, err
	}
	p.tenantID = req.TenantID
	if err := im.checkRowCeiling(len(p.jobs)); err != nil {
		return nil, err
	}
	return im.run(ctx, c, p)
}

// sheetPlan is one sheet whose rows will be imported.
type sheetPlan struct {
	grid   model.CellGrid
	areaID string
}

func (im *Importer) planFile(grids []model.CellGrid, c *catalog, opts model.ImportOptions) (plan, error) {
	p := plan{options: opts, ceiling: im.settings.ProgressCeilingUpload}

	var sheets []sheetPlan
	if opts.MultiArea {
		assignments, warnings := im.matcher.MatchAreas(grids, c.areas)
		p.warnings = append(p.warnings, warnings...)
		if len(assignments) == 0 {
			return plan{}, importerr.New(importerr.Structure, "no sheet name matches an area of the catalog")
		}
		for _, a := range assignments {
			sheets = append(sheets, sheetPlan{grid: a.Grid, areaID: a.Area.ID})
		}
	} else {
		g, err := sheet.SelectSingle(grids)
		if err != nil {
			return plan{}, err
		}
		sheets = []sheetPlan{{grid: g, areaID: opts.AreaID}}
	}

	var firstErr error
	for _, sp := range sheets {
		jobs, template, err := im.planSheet(sp)
		if err != nil {
			// In multi-area mode one unreadable sheet does not sink the
			// others; it is reported and skipped.
			if !opts.MultiArea {
				return plan{}, err
			}
			if firstErr == nil {
				firstErr = err
			}
			p.warnings = append(p.warnings, fmt.Sprintf("sheet %q skipped: %s", sp.grid.Name, importerr.Message(err)))
			continue
		}
		if p.template == "" {
			p.template = template
		}
		p.jobs = append(p.jobs, jobs...)
	}
	if p.template == "" {
		return plan{}, firstErr
	}
	return p, nil
}

// planSheet classifies one sheet, maps its columns and turns every
// non-blank data row into a job. Row numbers are 1-based sheet rows.
func (im *Importer) planSheet(sp sheetPlan) ([]job, string, error) {
	cls, err := im.classifier.Classify(sp.grid)
	if err != nil {
		return nil, "", err
	}
	cols, err := mapping.MapColumns(sp.grid.Name, cls.Headers)
	if err != nil {
		return nil, "", err
	}
	zap.L().Debug("importer: sheet planned",
		zap.String("sheet", sp.grid.Name),
		zap.String("template", cls.Template),
		zap.Float64("score", cls.Score),
		zap.Int("header_row", cls.HeaderRow+1),
	)

	var jobs []job
	for i := cls.HeaderRow + 1; i < len(sp.grid.Rows); i++ {
		cells := sp.grid.Rows[i]
		if model.BlankRow(cells) {
			continue
		}
		jobs = append(jobs, job{
			rowNum: i + 1,
			sheet:  sp.grid.Name,
			areaID: sp.areaID,
			fields: normalize.FieldsFromGrid(cells, cols),
			raw:    normalize.RawFromGrid(cells, cls.Headers),
		})
	}
	return jobs, cls.Template, nil
}
