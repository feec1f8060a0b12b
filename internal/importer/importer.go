// Package importer runs an import end to end: it validates the input,
// opens an audited session and reconciles every row against the catalog.
package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stratix-platform/initiative-import/internal/audit"
	"github.com/stratix-platform/initiative-import/internal/config"
	"github.com/stratix-platform/initiative-import/internal/importerr"
	"github.com/stratix-platform/initiative-import/internal/kpi"
	"github.com/stratix-platform/initiative-import/internal/mapping"
	"github.com/stratix-platform/initiative-import/internal/model"
	"github.com/stratix-platform/initiative-import/internal/normalize"
	"github.com/stratix-platform/initiative-import/internal/reconcile"
	"github.com/stratix-platform/initiative-import/internal/report"
	"github.com/stratix-platform/initiative-import/internal/resilience"
	"github.com/stratix-platform/initiative-import/internal/resolve"
	"github.com/stratix-platform/initiative-import/internal/sheet"
	"github.com/stratix-platform/initiative-import/internal/store"
)

// Settings are the pipeline limits and defaults.
type Settings struct {
	MaxRows                  int
	ProgressCeilingUpload    float64
	ProgressCeilingPreParsed float64
	HistoryThreshold         float64
	HeaderScanRows           int
	DateFallback             model.DateFallback
	Retry                    resilience.RetryConfig
}

// SettingsFromConfig maps the import and retry sections of cfg.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		MaxRows:                  cfg.Import.MaxRows,
		ProgressCeilingUpload:    cfg.Import.ProgressCeilingUpload,
		ProgressCeilingPreParsed: cfg.Import.ProgressCeilingPreParsed,
		HistoryThreshold:         cfg.Import.HistoryThreshold,
		HeaderScanRows:           cfg.Import.HeaderScanRows,
		DateFallback:             model.DateFallback(cfg.Import.DateFallback),
		Retry:                    resilience.FromSettings(cfg.Retry.MaxAttempts, cfg.Retry.InitialBackoffMs),
	}
}

// DefaultSettings mirrors the configuration defaults.
func DefaultSettings() Settings {
	return Settings{
		MaxRows:                  10000,
		ProgressCeilingUpload:    100,
		ProgressCeilingPreParsed: 150,
		HistoryThreshold:         5,
		HeaderScanRows:           5,
		DateFallback:             model.DateFallbackNull,
		Retry:                    resilience.DefaultRetryConfig(),
	}
}

// FailedError is returned when an import stops after its session was
// opened. ImportID identifies the audit trail of the failed run.
type FailedError struct {
	ImportID string
	Err      error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("import %s failed: %v", e.ImportID, e.Err)
}

func (e *FailedError) Unwrap() error { return e.Err }

// Importer runs imports against one catalog store.
type Importer struct {
	store      store.Store
	settings   Settings
	classifier *mapping.Classifier
	matcher    *sheet.Matcher
	tables     *normalize.Tables
	now        func() time.Time
	newID      func() string
}

// Option configures an Importer.
type Option func(*Importer)

// WithClock overrides the clock used for timestamps and date fallbacks.
func WithClock(now func() time.Time) Option {
	return func(im *Importer) { im.now = now }
}

// WithIDGenerator overrides how import ids are minted.
func WithIDGenerator(fn func() string) Option {
	return func(im *Importer) { im.newID = fn }
}

// New returns an Importer. dict may be nil.
func New(st store.Store, settings Settings, dict *config.Dictionary, opts ...Option) *Importer {
	if dict == nil {
		dict = &config.Dictionary{}
	}
	im := &Importer{
		store:      st,
		settings:   settings,
		classifier: mapping.NewClassifier(dict.Templates, settings.HeaderScanRows),
		matcher:    sheet.NewMatcher(sheet.NewSynonyms(dict.AreaSynonyms)),
		tables:     normalize.NewTables(dict.Statuses, dict.Priorities),
		now:        time.Now,
		newID:      func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// catalog is the tenant's catalog as read before the row loop.
type catalog struct {
	areas       []model.Area
	objectives  []model.Objective
	initiatives []model.Initiative
}

// prefetch reads the three catalogs concurrently.
func (im *Importer) prefetch(ctx context.Context, tenantID string) (*catalog, error) {
	var c catalog
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		areas, err := im.store.ListAreas(gctx, tenantID)
		c.areas = areas
		return eris.Wrap(err, "importer: list areas")
	})
	g.Go(func() error {
		objs, err := im.store.ListObjectives(gctx, tenantID)
		c.objectives = objs
		return eris.Wrap(err, "importer: list objectives")
	})
	g.Go(func() error {
		inis, err := im.store.ListInitiatives(gctx, store.InitiativeFilter{TenantID: tenantID})
		c.initiatives = inis
		return eris.Wrap(err, "importer: list initiatives")
	})
	if err := g.Wait(); err != nil {
		return nil, importerr.Wrap(err, importerr.Catastrophic, "could not read the catalog")
	}
	return &c, nil
}

// job is one data row waiting to be normalized and reconciled.
type job struct {
	rowNum int
	sheet  string
	areaID string
	fields normalize.Fields
	raw    map[string]string
}

// plan is a validated import ready to run.
type plan struct {
	tenantID string
	options  model.ImportOptions
	template string
	ceiling  float64
	jobs     []job
	warnings []string
}

// ErrRowCeiling marks the Validation error raised when an input has more
// data rows than a single import accepts.
var ErrRowCeiling = errors.New("row ceiling exceeded")

func (im *Importer) checkRowCeiling(n int) error {
	if n > im.settings.MaxRows {
		return &importerr.Error{
			Kind: importerr.Validation,
			Msg:  fmt.Sprintf("file has %d data rows; at most %d can be imported at once", n, im.settings.MaxRows),
			Err:  ErrRowCeiling,
		}
	}
	return nil
}

func (im *Importer) checkTargetArea(c *catalog, areaID string) error {
	if areaID == "" {
		return nil
	}
	for _, a := range c.areas {
		if a.ID == areaID {
			return nil
		}
	}
	return importerr.New(importerr.Validation, "target area %q does not exist", areaID)
}

// run opens the session and reconciles every job. Once the session has
// started, caller cancellation no longer stops the run.
func (im *Importer) run(ctx context.Context, c *catalog, p plan) (res *report.Result, err error) {
	started := im.now()
	session := model.ImportSession{
		ImportID:  im.newID(),
		TenantID:  p.tenantID,
		StartedAt: started.UTC(),
		RowCount:  len(p.jobs),
		Options:   p.options,
	}
	log := zap.L().With(zap.String("import_id", session.ImportID), zap.String("tenant_id", session.TenantID))
	ctx = context.WithoutCancel(ctx)

	rec := audit.NewRecorder(im.store, session, im.settings.Retry)
	fail := func(cause error) error {
		var ie *importerr.Error
		if !errors.As(cause, &ie) {
			cause = importerr.Wrap(cause, importerr.Catastrophic, "import failed")
		}
		rec.Fail(ctx, cause, im.now().Sub(started))
		log.Error("importer: failed", zap.Error(cause))
		return &FailedError{ImportID: session.ImportID, Err: cause}
	}
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fail(eris.Errorf("importer: panic: %v", r))
		}
	}()

	if err := rec.Start(ctx); err != nil {
		return nil, fail(err)
	}
	log.Info("importer: started",
		zap.String("entry", string(p.options.Entry)),
		zap.String("template", p.template),
		zap.Int("rows", len(p.jobs)),
	)

	fallback := p.options.DateFallback
	if fallback == "" {
		fallback = im.settings.DateFallback
	}
	norm := normalize.New(im.tables, p.ceiling, fallback, normalize.WithClock(im.now))
	resolver := resolve.New(p.tenantID, p.options.FileName, c.areas, c.objectives, im.store, im.settings.Retry)
	index := reconcile.NewCatalogIndex(c.initiatives)
	log.Debug("importer: catalog indexed", zap.Int("initiatives", index.Len()), zap.Int("areas", len(c.areas)))
	engine := reconcile.NewEngine(im.store, resolver, index, session, reconcile.Config{
		HistoryThreshold: im.settings.HistoryThreshold,
		Retry:            im.settings.Retry,
	})

	outcomes := make([]model.RowOutcome, 0, len(p.jobs))
	for _, j := range p.jobs {
		row, nerr := norm.Normalize(j.rowNum, j.sheet, j.fields, j.raw)
		if nerr != nil {
			outcomes = append(outcomes, reconcile.ErrorOutcome(j.rowNum, j.sheet, j.raw, nerr))
			continue
		}
		row.AreaID = j.areaID
		outcomes = append(outcomes, engine.Apply(ctx, row))
	}

	warnings := append([]string{}, p.warnings...)
	impacts, kerr := im.impacts(ctx, c, session.TenantID, outcomes)
	if kerr != nil {
		log.Warn("importer: kpi read-back failed", zap.Error(kerr))
		warnings = append(warnings, "KPI impact could not be computed: "+importerr.Message(kerr))
	}

	duration := im.now().Sub(started)
	result := report.Build(report.Input{
		ImportID: session.ImportID,
		Template: p.template,
		Outcomes: outcomes,
		Impacts:  impacts,
		Warnings: warnings,
		Duration: duration,
		Now:      im.now(),
	})

	counts := audit.Counts{
		Processed: result.ProcessedRows,
		Created:   result.CreatedCount,
		Updated:   result.UpdatedCount,
		Skipped:   result.SkippedCount,
		Errors:    result.ErrorCount,
	}
	if aerr := rec.Complete(ctx, counts, duration); aerr != nil {
		log.Warn("importer: completion not audited", zap.Error(aerr))
		result.Warnings = append(result.Warnings, "import completed but its audit event could not be recorded")
	}

	log.Info("importer: complete",
		zap.Int("created", result.CreatedCount),
		zap.Int("updated", result.UpdatedCount),
		zap.Int("skipped", result.SkippedCount),
		zap.Int("errors", result.ErrorCount),
		zap.Int64("duration_ms", result.DurationMs),
	)
	return &result, nil
}

// impacts re-reads the touched areas and rolls up their KPIs.
func (im *Importer) impacts(ctx context.Context, c *catalog, tenantID string, outcomes []model.RowOutcome) ([]model.KPIImpact, error) {
	touched := kpi.TouchedAreas(outcomes)
	if len(touched) == 0 {
		return nil, nil
	}
	after, err := im.store.ListInitiatives(ctx, store.InitiativeFilter{TenantID: tenantID, AreaIDs: touched})
	if err != nil {
		return nil, eris.Wrap(err, "importer: re-read touched areas")
	}

	names := make(map[string]string, len(c.areas))
	for _, a := range c.areas {
		names[a.ID] = a.Name
	}
	return kpi.Impacts(kpi.GroupByArea(c.initiatives), kpi.GroupByArea(after), names, outcomes), nil
}
