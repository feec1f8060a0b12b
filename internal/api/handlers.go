package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/stratix-platform/initiative-import/internal/importer"
	"github.com/stratix-platform/initiative-import/internal/importerr"
	"github.com/stratix-platform/initiative-import/internal/model"
	"github.com/stratix-platform/initiative-import/internal/report"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// errorBody is the JSON shape of every failed response.
type errorBody struct {
	Error    string `json:"error"`
	Kind     string `json:"kind,omitempty"`
	Hint     string `json:"hint,omitempty"`
	ImportID string `json:"importId,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

func writeError(w http.ResponseWriter, status int, body errorBody) {
	writeJSON(w, status, body)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(s.cfg.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, errorBody{
				Error: fmt.Sprintf("upload exceeds %d MB", s.cfg.MaxUploadMB),
			})
			return
		}
		writeError(w, http.StatusBadRequest, errorBody{Error: "request must be multipart/form-data"})
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, errorBody{Error: "file is required"})
		return
	}
	defer file.Close() //nolint:errcheck

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, errorBody{Error: "could not read the uploaded file"})
		return
	}

	opts, err := uploadOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, errorBody{Error: err.Error(), Kind: string(importerr.Validation)})
		return
	}

	res, err := s.importer.ImportFile(r.Context(), importer.FileRequest{
		TenantID:    tenantFrom(r.Context()),
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
		Options:     opts,
	})
	if err != nil {
		s.writeImportError(w, err)
		return
	}
	s.writeResult(w, r, res)
}

func uploadOptions(r *http.Request) (model.ImportOptions, error) {
	opts := model.ImportOptions{
		AreaID:     r.FormValue("areaId"),
		EntityType: r.FormValue("entityType"),
	}
	var err error
	if opts.SkipDuplicates, err = formBool(r, "skipDuplicates"); err != nil {
		return opts, err
	}
	if opts.MultiArea, err = formBool(r, "multiArea"); err != nil {
		return opts, err
	}
	if opts.DateFallback, err = parseDateFallback(r.FormValue("dateFallback")); err != nil {
		return opts, err
	}
	return opts, nil
}

func formBool(r *http.Request, key string) (bool, error) {
	v := r.FormValue(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be true or false", key)
	}
	return b, nil
}

func parseDateFallback(v string) (model.DateFallback, error) {
	switch fb := model.DateFallback(v); fb {
	case "", model.DateFallbackNull, model.DateFallbackEndOfYear:
		return fb, nil
	}
	return "", fmt.Errorf("dateFallback must be %q or %q", model.DateFallbackNull, model.DateFallbackEndOfYear)
}

// rowsBody is the JSON body of a pre-parsed rows import.
type rowsBody struct {
	Rows    []map[string]any     `json:"rows"`
	Mapping map[string]string    `json:"mapping"`
	Summary importer.RowsSummary `json:"summary"`
	Options struct {
		AreaID         string `json:"areaId"`
		EntityType     string `json:"entityType"`
		SkipDuplicates bool   `json:"skipDuplicates"`
		DateFallback   string `json:"dateFallback"`
	} `json:"options"`
}

func (s *Server) handleRows(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, int64(s.cfg.MaxUploadMB)<<20)

	var body rowsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, errorBody{
				Error: fmt.Sprintf("request exceeds %d MB", s.cfg.MaxUploadMB),
			})
			return
		}
		writeError(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	fallback, err := parseDateFallback(body.Options.DateFallback)
	if err != nil {
		writeError(w, http.StatusBadRequest, errorBody{Error: err.Error(), Kind: string(importerr.Validation)})
		return
	}

	res, err := s.importer.ImportRows(r.Context(), importer.RowsRequest{
		TenantID: tenantFrom(r.Context()),
		Rows:     body.Rows,
		Mapping:  body.Mapping,
		Summary:  body.Summary,
		Options: model.ImportOptions{
			AreaID:         body.Options.AreaID,
			EntityType:     body.Options.EntityType,
			SkipDuplicates: body.Options.SkipDuplicates,
			DateFallback:   fallback,
		},
	})
	if err != nil {
		s.writeImportError(w, err)
		return
	}
	s.writeResult(w, r, res)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	importID := chi.URLParam(r, "importID")
	events, err := s.events.ListAuditEvents(r.Context(), importID)
	if err != nil {
		zap.L().Error("api: list audit events", zap.String("import_id", importID), zap.Error(err))
		body := errorBody{Error: "could not read the import trail"}
		if s.cfg.Debug {
			body.Detail = err.Error()
		}
		writeError(w, http.StatusInternalServerError, body)
		return
	}
	// Another tenant's import is reported as missing.
	if len(events) == 0 || events[0].TenantID != tenantFrom(r.Context()) {
		writeError(w, http.StatusNotFound, errorBody{Error: "import not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"importId": importID, "events": events})
}

// writeResult renders a finished import as JSON, or as the error workbook
// when the caller asks for ?format=xlsx.
func (s *Server) writeResult(w http.ResponseWriter, r *http.Request, res *report.Result) {
	if r.URL.Query().Get("format") != "xlsx" {
		writeJSON(w, http.StatusOK, res)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="import-%s-errors.xlsx"`, res.ImportID))
	if err := report.WriteErrorWorkbook(w, *res); err != nil {
		zap.L().Error("api: write error workbook", zap.String("import_id", res.ImportID), zap.Error(err))
	}
}

// writeImportError maps the failure taxonomy onto HTTP statuses. Only
// catastrophic failures hide their cause, unless the server runs in debug.
func (s *Server) writeImportError(w http.ResponseWriter, err error) {
	kind := importerr.KindOf(err)
	body := errorBody{Kind: string(kind), Hint: importerr.HintOf(err)}

	switch {
	case errors.Is(err, importer.ErrRowCeiling):
		body.Error = importerr.Message(err)
		writeError(w, http.StatusRequestEntityTooLarge, body)
	case kind == importerr.Format:
		body.Error = importerr.Message(err)
		writeError(w, http.StatusUnsupportedMediaType, body)
	case kind == importerr.Validation, kind == importerr.Structure, kind == importerr.Mapping:
		body.Error = importerr.Message(err)
		writeError(w, http.StatusBadRequest, body)
	default:
		body.Kind = string(importerr.Catastrophic)
		body.Error = "the import could not be completed"
		body.Hint = ""
		var failed *importer.FailedError
		if errors.As(err, &failed) {
			body.ImportID = failed.ImportID
		}
		if s.cfg.Debug {
			body.Detail = err.Error()
		}
		zap.L().Error("api: import failed", zap.String("import_id", body.ImportID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, body)
	}
}
