// Package audit records the lifecycle of an import session.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/stratix-platform/initiative-import/internal/importerr"
	"github.com/stratix-platform/initiative-import/internal/model"
	"github.com/stratix-platform/initiative-import/internal/resilience"
)

// Emitter persists audit events.
type Emitter interface {
	EmitAudit(ctx context.Context, ev model.AuditEvent) error
}

// Counts summarizes a finished import.
type Counts struct {
	Processed int `json:"processed"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

// Recorder emits the start event and exactly one terminal event for a
// session. Row-level errors are never audited.
type Recorder struct {
	emitter Emitter
	session model.ImportSession
	retry   resilience.RetryConfig
	log     *zap.Logger

	mu       sync.Mutex
	finished bool
}

// NewRecorder returns a Recorder for session.
func NewRecorder(emitter Emitter, session model.ImportSession, retry resilience.RetryConfig) *Recorder {
	return &Recorder{
		emitter: emitter,
		session: session,
		retry:   retry,
		log:     zap.L().With(zap.String("import_id", session.ImportID)),
	}
}

// Start emits import.started with the expected row count and options.
func (r *Recorder) Start(ctx context.Context) error {
	err := r.emit(ctx, model.AuditImportStarted, map[string]any{
		"import_id":       r.session.ImportID,
		"expected_rows":   r.session.RowCount,
		"entry":           string(r.session.Options.Entry),
		"file_name":       r.session.Options.FileName,
		"skip_duplicates": r.session.Options.SkipDuplicates,
		"multi_area":      r.session.Options.MultiArea,
		"area_id":         r.session.Options.AreaID,
		"entity_type":     r.session.Options.EntityType,
	})
	return eris.Wrap(err, "audit: emit import.started")
}

// Complete emits import.completed. It is a no-op after any terminal event.
func (r *Recorder) Complete(ctx context.Context, counts Counts, duration time.Duration) error {
	if !r.claimTerminal() {
		return nil
	}
	err := r.emit(ctx, model.AuditImportCompleted, map[string]any{
		"import_id":   r.session.ImportID,
		"processed":   counts.Processed,
		"created":     counts.Created,
		"updated":     counts.Updated,
		"skipped":     counts.Skipped,
		"errors":      counts.Errors,
		"duration_ms": duration.Milliseconds(),
	})
	return eris.Wrap(err, "audit: emit import.completed")
}

// Fail emits import.failed on a best-effort basis. It is a no-op after any
// terminal event, and an emitter failure is logged, never returned, so
// callers keep reporting the original cause.
func (r *Recorder) Fail(ctx context.Context, cause error, duration time.Duration) {
	if !r.claimTerminal() {
		return
	}
	r.tryEmit(ctx, model.AuditImportFailed, map[string]any{
		"import_id":   r.session.ImportID,
		"kind":        string(importerr.KindOf(cause)),
		"error":       importerr.Message(cause),
		"duration_ms": duration.Milliseconds(),
	})
}

func (r *Recorder) claimTerminal() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return false
	}
	r.finished = true
	return true
}

func (r *Recorder) emit(ctx context.Context, typ model.AuditEventType, payload map[string]any) error {
	ev := model.AuditEvent{
		ImportID:  r.session.ImportID,
		TenantID:  r.session.TenantID,
		Type:      typ,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	cfg := r.retry
	cfg.OnRetry = resilience.LogRetries("emit_audit")
	return resilience.Do(ctx, cfg, func(ctx context.Context) error {
		return r.emitter.EmitAudit(ctx, ev)
	})
}

// tryEmit attempts an emission and swallows its failure.
func (r *Recorder) tryEmit(ctx context.Context, typ model.AuditEventType, payload map[string]any) {
	if err := r.emit(ctx, typ, payload); err != nil {
		r.log.Error("audit: event dropped",
			zap.String("type", string(typ)),
			zap.Error(err),
		)
	}
}
