// Package api serves the claims workflow over JSON HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/fratlas/internal/extract"
	"github.com/ppiankov/fratlas/internal/model"
	"github.com/ppiankov/fratlas/internal/pipeline"
	"github.com/ppiankov/fratlas/internal/recognize"
	"github.com/ppiankov/fratlas/internal/store"
	"github.com/ppiankov/fratlas/internal/worker"
)

const maxJSONBody = 1 << 20

// Pinger reports database health
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Extractor recovers entities from free text
type Extractor interface {
	Extract(ctx context.Context, text string) (model.Entities, error)
}

// Boundaries resolves villages and synthesizes claim polygons
type Boundaries interface {
	Generate(village string, areaHectares float64) model.Polygon
}

// Deps wires a Handler
type Deps struct {
	Intake         *pipeline.Intake
	Extractor      Extractor
	Boundaries     Boundaries
	DB             Pinger
	Limiter        *worker.Limiter
	Logger         *zap.Logger
	MaxUploadBytes int64
}

// Handler holds the HTTP endpoints
type Handler struct {
	intake     *pipeline.Intake
	extractor  Extractor
	boundaries Boundaries
	db         Pinger
	limiter    *worker.Limiter
	logger     *zap.Logger
	maxUpload  int64
}

// New creates a Handler
func New(deps Deps) *Handler {
	h := &Handler{
		intake:     deps.Intake,
		extractor:  deps.Extractor,
		boundaries: deps.Boundaries,
		db:         deps.DB,
		limiter:    deps.Limiter,
		logger:     deps.Logger,
		maxUpload:  deps.MaxUploadBytes,
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	if h.limiter == nil {
		h.limiter = worker.NewLimiter(0, 1)
	}
	if h.maxUpload <= 0 {
		h.maxUpload = 10 << 20
	}
	return h
}

type errorBody struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to status codes. Unexpected errors are logged
// and reported generically.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *pipeline.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: verr.Error(), Fields: verr.Fields})
	case errors.Is(err, store.ErrNotFound), errors.Is(err, recognize.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to send
		h.logger.Debug("request cancelled", zap.String("path", r.URL.Path))
	default:
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

// decodeJSON reads a bounded JSON body into v. An empty body leaves v as is
// when allowEmpty is set.
func decodeJSON(r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// upload accepts a multipart "file" field and recognizes it
func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+maxJSONBody)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "file too large"})
			return
		}
		badRequest(w, "multipart field \"file\" is required")
		return
	}
	defer func() { _ = file.Close() }()

	res, err := h.intake.Recognize(r.Context(), pipeline.UploadInput{
		Body:         file,
		OriginalName: header.Filename,
		MimeType:     header.Header.Get("Content-Type"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) reprocess(w http.ResponseWriter, r *http.Request) {
	var corrections model.Corrections
	if err := decodeJSON(r, &corrections, true); err != nil {
		badRequest(w, "invalid corrections body")
		return
	}

	res, err := h.intake.Reprocess(r.Context(), r.PathValue("id"), corrections)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) getFile(w http.ResponseWriter, r *http.Request) {
	f, err := h.intake.File(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

type entitiesRequest struct {
	Text   string `json:"text"`
	Format string `json:"format"` // text, html or empty to detect
}

func (h *Handler) entities(w http.ResponseWriter, r *http.Request) {
	var req entitiesRequest
	if err := decodeJSON(r, &req, false); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	text := req.Text
	format := strings.ToLower(strings.TrimSpace(req.Format))
	if format == "html" || (format == "" && extract.LooksLikeHTML(text)) {
		visible, err := extract.VisibleText(text)
		if err != nil {
			badRequest(w, "invalid HTML")
			return
		}
		text = visible
	}

	ents, err := h.extractor.Extract(r.Context(), text)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ents)
}
