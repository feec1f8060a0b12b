// Package report assembles the result payload of an import.
package report

import (
	"time"

	"github.com/stratix-platform/initiative-import/internal/model"
)

// ErrorEntry describes one row that was not imported.
type ErrorEntry struct {
	Row     int               `json:"row"`
	Sheet   string            `json:"sheet,omitempty"`
	Error   string            `json:"error"`
	Hint    string            `json:"hint,omitempty"`
	RawData map[string]string `json:"rawData,omitempty"`
}

// Result is the payload returned to the caller of an import.
type Result struct {
	ImportID      string             `json:"importId"`
	ProcessedRows int                `json:"processedRows"`
	CreatedCount  int                `json:"createdCount"`
	UpdatedCount  int                `json:"updatedCount"`
	SkippedCount  int                `json:"skippedCount"`
	ErrorCount    int                `json:"errorCount"`
	Errors        []ErrorEntry       `json:"errors"`
	Outcomes      []model.RowOutcome `json:"outcomes"`
	KPIImpact     []model.KPIImpact  `json:"kpiImpact"`
	Warnings      []string           `json:"warnings"`
	Template      string             `json:"template"`
	DurationMs    int64              `json:"durationMs"`
	Timestamp     time.Time          `json:"timestamp"`
}

// Input carries everything Build needs.
type Input struct {
	ImportID string
	Template string
	Outcomes []model.RowOutcome
	Impacts  []model.KPIImpact
	Warnings []string
	Duration time.Duration
	Now      time.Time
}

// Build tallies the outcomes into a Result. Outcomes keep their input order,
// and every error outcome appears in Errors in the same order.
func Build(in Input) Result {
	r := Result{
		ImportID:      in.ImportID,
		ProcessedRows: len(in.Outcomes),
		Errors:        []ErrorEntry{},
		Outcomes:      in.Outcomes,
		KPIImpact:     in.Impacts,
		Warnings:      in.Warnings,
		Template:      in.Template,
		DurationMs:    in.Duration.Milliseconds(),
		Timestamp:     in.Now.UTC(),
	}
	if r.Outcomes == nil {
		r.Outcomes = []model.RowOutcome{}
	}
	if r.KPIImpact == nil {
		r.KPIImpact = []model.KPIImpact{}
	}
	if r.Warnings == nil {
		r.Warnings = []string{}
	}

	for _, o := range in.Outcomes {
		switch o.Outcome {
		case model.OutcomeCreated:
			r.CreatedCount++
		case model.OutcomeUpdated:
			r.UpdatedCount++
		case model.OutcomeSkipped:
			r.SkippedCount++
		default:
			r.ErrorCount++
			r.Errors = append(r.Errors, ErrorEntry{
				Row:     o.RowNumber,
				Sheet:   o.Sheet,
				Error:   o.Message,
				Hint:    o.Hint,
				RawData: o.Raw,
			})
		}
	}
	return r
}
