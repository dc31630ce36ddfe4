package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-partitions/internal/api/middleware"
	"github.com/dvloznov/statement-partitions/internal/fetch"
	"github.com/dvloznov/statement-partitions/internal/jobs"
	"github.com/dvloznov/statement-partitions/internal/migration"
	"github.com/dvloznov/statement-partitions/internal/pipeline"
	"github.com/dvloznov/statement-partitions/internal/statement"
)

// maxRequestBody bounds JSON request bodies.
const maxRequestBody = 1 << 20

// Ingester is the part of pipeline.Ingester the HTTP layer needs.
type Ingester interface {
	IngestFromSource(ctx context.Context, sourceURL string, recentMonths int) (*pipeline.IngestResult, error)
	IngestWorkbook(ctx context.Context, wb *statement.Workbook, recentMonths int) (*pipeline.IngestResult, error)
}

// Migrator runs the backfill job.
type Migrator interface {
	Run(ctx context.Context, p migration.Params) (*migration.Result, error)
}

// IngestHandler handles statement ingestion endpoints.
type IngestHandler struct {
	ingester Ingester
	maxBytes int64
	log      zerolog.Logger
}

// NewIngestHandler creates a new ingest handler. maxBytes bounds direct uploads.
func NewIngestHandler(ingester Ingester, maxBytes int64, log zerolog.Logger) *IngestHandler {
	if maxBytes <= 0 {
		maxBytes = fetch.DefaultMaxBytes
	}
	return &IngestHandler{ingester: ingester, maxBytes: maxBytes, log: log}
}

type ingestRequest struct {
	SourceURL    string `json:"sourceUrl"`
	DownloadURL  string `json:"downloadUrl"`
	RecentMonths int    `json:"recentMonths"`
}

type ingestResponse struct {
	OK bool `json:"ok"`
	pipeline.IngestResult
}

// Ingest handles POST /api/ingest
func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sourceURL := strings.TrimSpace(req.SourceURL)
	if sourceURL == "" {
		sourceURL = strings.TrimSpace(req.DownloadURL)
	}
	if sourceURL == "" {
		middleware.WriteError(w, http.StatusBadRequest, "sourceUrl is required")
		return
	}
	if req.RecentMonths < 0 {
		middleware.WriteError(w, http.StatusBadRequest, "recentMonths must not be negative")
		return
	}

	res, err := h.ingester.IngestFromSource(r.Context(), sourceURL, req.RecentMonths)
	if err != nil {
		h.fail(w, r, err, "Ingestion failed")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, ingestResponse{OK: true, IngestResult: *res})
}

// Upload handles POST /api/ingest/upload with the workbook as the raw body.
func (h *IngestHandler) Upload(w http.ResponseWriter, r *http.Request) {
	recentMonths, err := intQuery(r, "recentMonths")
	if err != nil || recentMonths < 0 {
		middleware.WriteError(w, http.StatusBadRequest, "recentMonths must be a non-negative integer")
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "Workbook too large")
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read workbook")
		return
	}
	if len(data) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Empty workbook")
		return
	}

	wb, err := statement.OpenWorkbook(data)
	if err != nil {
		h.fail(w, r, err, "Failed to open workbook")
		return
	}

	res, err := h.ingester.IngestWorkbook(r.Context(), wb, recentMonths)
	if err != nil {
		h.fail(w, r, err, "Ingestion failed")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, ingestResponse{OK: true, IngestResult: *res})
}

func (h *IngestHandler) fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	status := StatusFor(err)
	h.log.Error().
		Err(err).
		Int("status", status).
		Str("request_id", middleware.GetRequestID(r.Context())).
		Msg(msg)
	middleware.WriteError(w, status, err.Error())
}

// MigrateHandler handles the backfill endpoint.
type MigrateHandler struct {
	migrator Migrator
	log      zerolog.Logger
}

// NewMigrateHandler creates a new migrate handler.
func NewMigrateHandler(migrator Migrator, log zerolog.Logger) *MigrateHandler {
	return &MigrateHandler{migrator: migrator, log: log}
}

type migrateResponse struct {
	OK bool `json:"ok"`
	migration.Result
}

type migrateErrorResponse struct {
	OK        bool   `json:"ok"`
	Error     string `json:"error"`
	Migrated  int    `json:"migrated"`
	LastDocID string `json:"lastDocId"`
}

// Migrate handles GET|POST /api/migrate?from=YYYY-MM&to=YYYY-MM&dryRun=1&rewrite=1&startAfter=DOCID
func (h *MigrateHandler) Migrate(w http.ResponseWriter, r *http.Request) {
	params := migrateParams(r)
	if err := params.Validate(); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.migrator.Run(r.Context(), params)
	if err != nil {
		status := StatusFor(err)
		h.log.Error().
			Err(err).
			Int("status", status).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Msg("Migration failed")

		body := migrateErrorResponse{OK: false, Error: err.Error()}
		if res != nil {
			body.Migrated, body.LastDocID = res.Migrated, res.LastDocID
		}
		middleware.WriteJSON(w, status, body)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, migrateResponse{OK: true, Result: *res})
}

func migrateParams(r *http.Request) migration.Params {
	q := r.URL.Query()
	return migration.Params{
		FromMonth:   strings.TrimSpace(q.Get("from")),
		ToMonth:     strings.TrimSpace(q.Get("to")),
		DryRun:      flagQuery(q.Get("dryRun")),
		RewriteOnce: flagQuery(q.Get("rewrite")),
		StartAfter:  strings.TrimSpace(q.Get("startAfter")),
	}
}

// RunQueue queues migrations and keeps their history.
type RunQueue interface {
	Submit(ctx context.Context, p migration.Params) (*jobs.Run, error)
	Get(ctx context.Context, id string) (*jobs.Run, error)
	List(ctx context.Context, filter jobs.Filter) ([]*jobs.Run, error)
}

// RunsHandler exposes queued migrations.
type RunsHandler struct {
	queue RunQueue
	log   zerolog.Logger
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(queue RunQueue, log zerolog.Logger) *RunsHandler {
	return &RunsHandler{queue: queue, log: log}
}

// Submit handles POST /api/migrate/runs with the same query parameters as /api/migrate.
func (h *RunsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	run, err := h.queue.Submit(r.Context(), migrateParams(r))
	if err != nil {
		h.fail(w, r, err, "Failed to queue migration")
		return
	}
	middleware.WriteJSON(w, http.StatusAccepted, map[string]interface{}{"ok": true, "run": run})
}

// List handles GET /api/migrate/runs?status=failed&limit=20
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit")
	if err != nil || limit < 0 {
		middleware.WriteError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	filter := jobs.Filter{Status: jobs.Status(strings.TrimSpace(r.URL.Query().Get("status"))), Limit: limit}

	runs, err := h.queue.List(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err, "Failed to list migration runs")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "runs": runs})
}

// Get handles GET /api/migrate/runs/{id}
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	run, err := h.queue.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err, "Failed to load migration run")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "run": run})
}

func (h *RunsHandler) fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().
			Err(err).
			Int("status", status).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Msg(msg)
	}
	middleware.WriteError(w, status, err.Error())
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "status": "healthy"})
}

// Ping handles GET /ping
func Ping(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, "pong")
}

// MethodNotAllowed answers requests whose path matched but method did not.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	middleware.WriteError(w, http.StatusMethodNotAllowed, fmt.Sprintf("Method %s not allowed", r.Method))
}

// NotFound answers unknown paths.
func NotFound(w http.ResponseWriter, r *http.Request) {
	middleware.WriteError(w, http.StatusNotFound, "Not found")
}

// StatusFor maps pipeline errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, fetch.ErrUnsupportedScheme),
		errors.Is(err, migration.ErrInvalidParams):
		return http.StatusBadRequest
	case errors.Is(err, statement.ErrHeaderNotFound),
		errors.Is(err, statement.ErrNoWorksheet),
		errors.Is(err, statement.ErrUnsupportedFormat):
		return http.StatusUnprocessableEntity
	case errors.Is(err, fetch.ErrUnavailable),
		errors.Is(err, fetch.ErrTooLarge):
		return http.StatusBadGateway
	case errors.Is(err, jobs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, jobs.ErrQueueFull),
		errors.Is(err, jobs.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
