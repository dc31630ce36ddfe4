// Package api assembles the HTTP surface of the ingestion service.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-partitions/internal/api/handlers"
	"github.com/dvloznov/statement-partitions/internal/api/middleware"
)

// Deps are the services the routes dispatch to.
type Deps struct {
	Ingester       handlers.Ingester
	Migrator       handlers.Migrator
	Runs           handlers.RunQueue // optional; enables /api/migrate/runs
	MaxUploadBytes int64
	Log            zerolog.Logger
}

// NewRouter registers all routes and wraps them in the middleware chain.
func NewRouter(d Deps) http.Handler {
	ingest := handlers.NewIngestHandler(d.Ingester, d.MaxUploadBytes, d.Log)
	migrate := handlers.NewMigrateHandler(d.Migrator, d.Log)

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(handlers.NotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(handlers.MethodNotAllowed)

	r.HandleFunc("/health", handlers.Health).Methods(http.MethodGet)
	r.HandleFunc("/ping", handlers.Ping).Methods(http.MethodGet)

	r.HandleFunc("/api/ingest", ingest.Ingest).Methods(http.MethodPost)
	r.HandleFunc("/api/ingest/upload", ingest.Upload).Methods(http.MethodPost)
	r.HandleFunc("/api/migrate", migrate.Migrate).Methods(http.MethodGet, http.MethodPost)

	if d.Runs != nil {
		runs := handlers.NewRunsHandler(d.Runs, d.Log)
		r.HandleFunc("/api/migrate/runs", runs.Submit).Methods(http.MethodPost)
		r.HandleFunc("/api/migrate/runs", runs.List).Methods(http.MethodGet)
		r.HandleFunc("/api/migrate/runs/{id}", runs.Get).Methods(http.MethodGet)
	}

	// Apply middleware
	return middleware.RequestID(
		middleware.Logger(d.Log)(
			middleware.Recovery(d.Log)(
				middleware.CORS(r),
			),
		),
	)
}
