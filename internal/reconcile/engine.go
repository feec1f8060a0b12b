// Package reconcile decides, row by row, whether an import creates, updates
// or skips a catalog initiative, and performs the write.
package reconcile

import (
	"context"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/stratix-platform/initiative-import/internal/importerr"
	"github.com/stratix-platform/initiative-import/internal/model"
	"github.com/stratix-platform/initiative-import/internal/normalize"
	"github.com/stratix-platform/initiative-import/internal/resilience"
)

// Skip messages.
const (
	MsgDuplicate     = "duplicate"
	MsgAlreadyExists = "already exists"
)

// Writer is the slice of the catalog the engine writes to.
type Writer interface {
	CreateInitiative(ctx context.Context, ini model.Initiative) (*model.Initiative, error)
	UpdateInitiative(ctx context.Context, ini model.Initiative) error
	CreateProgressHistory(ctx context.Context, h model.ProgressHistory) error
}

// Resolver links a row to its area and objective.
type Resolver interface {
	Area(row model.NormalizedRow) (model.Area, error)
	Objective(ctx context.Context, row model.NormalizedRow, areaID string) (string, error)
}

// Config tunes an Engine.
type Config struct {
	// HistoryThreshold is the smallest absolute progress change, in points,
	// that is written to progress history.
	HistoryThreshold float64
	Retry            resilience.RetryConfig
}

// Engine reconciles the rows of one import session. It is not safe for
// concurrent use; rows must be applied in input order.
type Engine struct {
	writer   Writer
	resolver Resolver
	index    *CatalogIndex
	session  model.ImportSession
	cfg      Config
	log      *zap.Logger
	now      func() time.Time
}

// NewEngine returns an Engine writing through w.
func NewEngine(w Writer, resolver Resolver, index *CatalogIndex, session model.ImportSession, cfg Config) *Engine {
	return &Engine{
		writer:   w,
		resolver: resolver,
		index:    index,
		session:  session,
		cfg:      cfg,
		log:      zap.L().With(zap.String("import_id", session.ImportID)),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Apply reconciles one normalized row and returns its outcome. Row-level
// failures are reported in the outcome, never returned.
func (e *Engine) Apply(ctx context.Context, row model.NormalizedRow) model.RowOutcome {
	area, err := e.resolver.Area(row)
	if err != nil {
		return ErrorOutcome(row.RowNumber, row.Sheet, row.Raw, err)
	}

	key := KeyOf(area.ID, row.Title)
	existing, inBatch, found := e.index.Lookup(key)
	if found && e.session.Options.SkipDuplicates {
		msg := MsgAlreadyExists
		if inBatch {
			msg = MsgDuplicate
		}
		return model.RowOutcome{
			RowNumber:    row.RowNumber,
			Sheet:        row.Sheet,
			Outcome:      model.OutcomeSkipped,
			Message:      msg,
			InitiativeID: existing.ID,
		}
	}

	objectiveID, err := e.resolver.Objective(ctx, row, area.ID)
	if err != nil {
		return ErrorOutcome(row.RowNumber, row.Sheet, row.Raw, err)
	}

	if found {
		return e.update(ctx, key, existing, row, objectiveID)
	}
	return e.create(ctx, area, row, objectiveID)
}

func (e *Engine) create(ctx context.Context, area model.Area, row model.NormalizedRow, objectiveID string) model.RowOutcome {
	ini := model.Initiative{
		TenantID:    e.session.TenantID,
		AreaID:      area.ID,
		ObjectiveID: objectiveID,
		Title:       row.Title,
		Status:      normalize.StatusOrDefault(row),
		Priority:    normalize.PriorityOrDefault(row),
		Weight:      normalize.WeightOrDefault(row),
		ImportID:    e.session.ImportID,
	}
	merge(&ini, row)

	cfg := e.cfg.Retry
	cfg.OnRetry = resilience.LogRetries("create_initiative")
	created, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*model.Initiative, error) {
		return e.writer.CreateInitiative(ctx, ini)
	})
	if err != nil {
		e.log.Warn("reconcile: create failed", zap.Int("row", row.RowNumber), zap.String("sheet", row.Sheet), zap.Error(err))
		return ErrorOutcome(row.RowNumber, row.Sheet, row.Raw,
			&importerr.Error{Kind: importerr.Persistence, Row: row.RowNumber, Sheet: row.Sheet, Msg: "could not save initiative", Err: err})
	}
	e.index.insert(*created)

	return model.RowOutcome{
		RowNumber:    row.RowNumber,
		Sheet:        row.Sheet,
		Outcome:      model.OutcomeCreated,
		InitiativeID: created.ID,
		KPIDelta: &model.RowDelta{
			AreaID:          area.ID,
			ProgressDelta:   created.Progress,
			BudgetDelta:     orZero(created.Budget),
			ActualCostDelta: orZero(created.ActualCost),
		},
	}
}

func (e *Engine) update(ctx context.Context, key CatalogKey, existing model.Initiative, row model.NormalizedRow, objectiveID string) model.RowOutcome {
	next := existing
	if objectiveID != "" {
		next.ObjectiveID = objectiveID
	}
	if row.Status != nil {
		next.Status = *row.Status
	}
	if row.Priority != nil {
		next.Priority = *row.Priority
	}
	if row.Weight != nil {
		next.Weight = *row.Weight
	}
	merge(&next, row)
	next.ImportID = e.session.ImportID

	cfg := e.cfg.Retry
	cfg.OnRetry = resilience.LogRetries("update_initiative")
	if err := resilience.Do(ctx, cfg, func(ctx context.Context) error {
		return e.writer.UpdateInitiative(ctx, next)
	}); err != nil {
		e.log.Warn("reconcile: update failed", zap.Int("row", row.RowNumber), zap.String("initiative_id", existing.ID), zap.Error(err))
		return ErrorOutcome(row.RowNumber, row.Sheet, row.Raw,
			&importerr.Error{Kind: importerr.Persistence, Row: row.RowNumber, Sheet: row.Sheet, Msg: "could not save initiative", Err: err})
	}
	e.index.replace(key, next)

	delta := next.Progress - existing.Progress
	if math.Abs(delta) >= e.cfg.HistoryThreshold && delta != 0 {
		e.recordHistory(ctx, existing, next)
	}

	return model.RowOutcome{
		RowNumber:    row.RowNumber,
		Sheet:        row.Sheet,
		Outcome:      model.OutcomeUpdated,
		InitiativeID: existing.ID,
		KPIDelta: &model.RowDelta{
			AreaID:          existing.AreaID,
			ProgressDelta:   delta,
			BudgetDelta:     orZero(next.Budget).Sub(orZero(existing.Budget)),
			ActualCostDelta: orZero(next.ActualCost).Sub(orZero(existing.ActualCost)),
		},
	}
}

// recordHistory writes a progress-history entry. The initiative is already
// saved at this point, so a failure is logged and the row stays updated.
func (e *Engine) recordHistory(ctx context.Context, before, after model.Initiative) {
	h := model.ProgressHistory{
		TenantID:         e.session.TenantID,
		InitiativeID:     before.ID,
		ImportID:         e.session.ImportID,
		PreviousProgress: before.Progress,
		NewProgress:      after.Progress,
		CreatedAt:        e.now(),
	}
	cfg := e.cfg.Retry
	cfg.OnRetry = resilience.LogRetries("create_progress_history")
	if err := resilience.Do(ctx, cfg, func(ctx context.Context) error {
		return e.writer.CreateProgressHistory(ctx, h)
	}); err != nil {
		e.log.Warn("reconcile: progress history not recorded",
			zap.String("initiative_id", before.ID),
			zap.Float64("previous", before.Progress),
			zap.Float64("new", after.Progress),
			zap.Error(err),
		)
	}
}

// merge copies every non-null field of row onto ini.
func merge(ini *model.Initiative, row model.NormalizedRow) {
	if row.Description != nil {
		ini.Description = *row.Description
	}
	if row.Responsible != nil {
		ini.Responsible = *row.Responsible
	}
	if row.Progress != nil {
		ini.Progress = *row.Progress
	}
	if row.Budget != nil {
		ini.Budget = row.Budget
	}
	if row.ActualCost != nil {
		ini.ActualCost = row.ActualCost
	}
	if row.EstimatedHours != nil {
		ini.EstimatedHours = row.EstimatedHours
	}
	if row.ActualHours != nil {
		ini.ActualHours = row.ActualHours
	}
	if row.StartDate != nil {
		ini.StartDate = row.StartDate
	}
	if row.DueDate != nil {
		ini.DueDate = row.DueDate
	}
	if row.KPICategory != nil {
		ini.KPICategory = *row.KPICategory
	}
	if row.IsStrategic != nil {
		ini.IsStrategic = *row.IsStrategic
	}
}

func orZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

// ErrorOutcome converts a row-level failure into an error outcome.
func ErrorOutcome(rowNum int, sheet string, raw map[string]string, err error) model.RowOutcome {
	return model.RowOutcome{
		RowNumber: rowNum,
		Sheet:     sheet,
		Outcome:   model.OutcomeError,
		Message:   importerr.Message(err),
		Hint:      importerr.HintOf(err),
		Raw:       raw,
	}
}
