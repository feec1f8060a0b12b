package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratix-platform/initiative-import/internal/model"
)

func TestFormatAuditEvents(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	events := []model.AuditEvent{
		{
			ID:        "e1",
			ImportID:  "imp-1",
			TenantID:  "t1",
			Type:      model.AuditImportStarted,
			Payload:   map[string]any{"import_id": "imp-1", "file_name": "plan.csv", "expected_rows": 2},
			CreatedAt: now,
		},
		{
			ID:        "e2",
			ImportID:  "imp-1",
			TenantID:  "t1",
			Type:      model.AuditImportCompleted,
			Payload:   map[string]any{"import_id": "imp-1", "created": 1, "errors": 1},
			CreatedAt: now.Add(time.Second),
		},
	}

	var buf bytes.Buffer
	formatAuditEvents(&buf, events)

	output := buf.String()
	assert.Contains(t, output, "TYPE")
	assert.Contains(t, output, "import.started")
	assert.Contains(t, output, "import.completed")
	assert.Contains(t, output, "expected_rows=2 file_name=plan.csv")
	assert.Contains(t, output, "created=1 errors=1")
	assert.NotContains(t, output, "import_id=")
	assert.Contains(t, output, "2025-06-15 10:30:01")
}

func TestImportsShow(t *testing.T) {
	useTestConfig(t)
	resetImportFlags(t)
	seedArea(t, "Comercial")
	importFile = writeTemp(t, "plan.csv", planCSV)
	importJSON = true

	var imported bytes.Buffer
	require.NoError(t, runImport(context.Background(), &imported))
	var res struct {
		ImportID string `json:"importId"`
	}
	require.NoError(t, json.Unmarshal(imported.Bytes(), &res))

	var out bytes.Buffer
	importsShowCmd.SetOut(&out)
	importsShowCmd.SetContext(context.Background())
	defer importsShowCmd.SetOut(nil)

	require.NoError(t, importsShowCmd.RunE(importsShowCmd, []string{res.ImportID}))
	assert.Contains(t, out.String(), "import.started")
	assert.Contains(t, out.String(), "import.completed")

	err := importsShowCmd.RunE(importsShowCmd, []string{"no-such-import"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
