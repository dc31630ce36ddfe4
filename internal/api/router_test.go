package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-partitions/internal/jobs/inmemory"
	"github.com/dvloznov/statement-partitions/internal/migration"
	"github.com/dvloznov/statement-partitions/internal/pipeline"
	"github.com/dvloznov/statement-partitions/internal/statement"
)

type stubIngester struct{}

func (stubIngester) IngestFromSource(ctx context.Context, sourceURL string, recentMonths int) (*pipeline.IngestResult, error) {
	return &pipeline.IngestResult{Total: 1, ColdSaved: 1}, nil
}

func (stubIngester) IngestWorkbook(ctx context.Context, wb *statement.Workbook, recentMonths int) (*pipeline.IngestResult, error) {
	return &pipeline.IngestResult{}, nil
}

type stubMigrator struct{}

func (stubMigrator) Run(ctx context.Context, p migration.Params) (*migration.Result, error) {
	return &migration.Result{Migrated: 3, Loops: 1}, nil
}

func newTestRouter() http.Handler {
	return NewRouter(Deps{Ingester: stubIngester{}, Migrator: stubMigrator{}, Log: zerolog.Nop()})
}

func TestRouter(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{name: "health", method: http.MethodGet, path: "/health", wantStatus: http.StatusOK, wantBody: `"ok":true`},
		{name: "ping", method: http.MethodGet, path: "/ping", wantStatus: http.StatusOK, wantBody: "pong"},
		{name: "ingest", method: http.MethodPost, path: "/api/ingest", body: `{"sourceUrl":"gs://b/o.xlsx"}`, wantStatus: http.StatusOK, wantBody: `"total":1`},
		{name: "ingest wrong method", method: http.MethodGet, path: "/api/ingest", wantStatus: http.StatusMethodNotAllowed, wantBody: `"ok":false`},
		{name: "migrate get", method: http.MethodGet, path: "/api/migrate?dryRun=1", wantStatus: http.StatusOK, wantBody: `"migrated":3`},
		{name: "migrate post", method: http.MethodPost, path: "/api/migrate", wantStatus: http.StatusOK, wantBody: `"loops":1`},
		{name: "migrate wrong method", method: http.MethodDelete, path: "/api/migrate", wantStatus: http.StatusMethodNotAllowed},
		{name: "unknown path", method: http.MethodGet, path: "/api/nothing", wantStatus: http.StatusNotFound, wantBody: `"ok":false`},
		{name: "preflight", method: http.MethodOptions, path: "/api/ingest", wantStatus: http.StatusNoContent},
	}

	h := newTestRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantBody != "" && !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %s, want it to contain %s", rec.Body.String(), tt.wantBody)
			}
			if rec.Header().Get("X-Request-ID") == "" {
				t.Error("missing X-Request-ID header")
			}
		})
	}
}

func TestRouter_MigrateResponseShape(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/migrate", nil))

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	for _, key := range []string{"ok", "migrated", "lastDocId", "loops", "dryRun", "fromMonth", "toMonth"} {
		if _, ok := body[key]; !ok {
			t.Errorf("response missing %q: %v", key, body)
		}
	}
}

func TestRouter_Runs(t *testing.T) {
	queue := inmemory.NewQueue(4, stubMigrator{}, inmemory.NewStore(), zerolog.Nop())
	h := NewRouter(Deps{Ingester: stubIngester{}, Migrator: queue, Runs: queue, Log: zerolog.Nop()})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/migrate/runs?dryRun=1", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("submit status = %d (%s)", rec.Code, rec.Body.String())
	}
	var submitted struct {
		Run struct {
			ID string `json:"id"`
		} `json:"run"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &submitted); err != nil || submitted.Run.ID == "" {
		t.Fatalf("submit body = %s", rec.Body.String())
	}

	// The synchronous endpoint goes through the same queue and is recorded too.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/migrate", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("migrate status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/migrate/runs", nil))
	var listed struct {
		Runs []map[string]interface{} `json:"runs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("list body = %s", rec.Body.String())
	}
	if len(listed.Runs) != 2 {
		t.Errorf("listed %d runs, want 2", len(listed.Runs))
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/migrate/runs/"+submitted.Run.ID, nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"pending"`) {
		t.Errorf("get = %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/migrate/runs/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("get missing status = %d, want 404", rec.Code)
	}
}
