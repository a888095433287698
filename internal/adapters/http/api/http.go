// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/okian/gradecast/internal/adapters/mirror"
	"github.com/okian/gradecast/internal/domain/model"
	"github.com/okian/gradecast/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// ProcessBatch scores and stores one uploaded file.
	ProcessBatch(ctx context.Context, fileName string, r io.Reader) (model.BatchResult, error)

	// Batch returns the stored records of a batch.
	Batch(ctx context.Context, batchID string) ([]model.PredictionRecord, error)

	// Predict scores one manually entered record.
	Predict(ctx context.Context, rec model.FieldRecord) (model.ScoredOutcome, error)

	// Mirror relays one row to the spreadsheet mirror.
	Mirror(ctx context.Context, row mirror.Row) (mirror.AppendResult, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	batchesHandler     *BatchesHandler
	predictionsHandler *PredictionsHandler
	artifactsHandler   *ArtifactsHandler
	mirrorHandler      *MirrorHandler

	allowedOrigins []string
	maxUploadBytes int64
	logger         logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		allowedOrigins: []string{"*"},
		maxUploadBytes: defaultMaxUploadBytes,
		logger:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.batchesHandler = NewBatchesHandler(deps, s.maxUploadBytes, s.logger)
	s.predictionsHandler = NewPredictionsHandler(deps)
	s.artifactsHandler = NewArtifactsHandler()
	s.mirrorHandler = NewMirrorHandler(deps)
	return s
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Client-Info", "Apikey"},
		MaxAge:         300,
	}))

	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	r.Route("/api", func(r chi.Router) {
		r.Post("/batches", MetricsMiddleware(s.batchesHandler.HandleUpload, "batches"))
		r.Get("/batches/{id}", MetricsMiddleware(s.batchesHandler.HandleGet, "batch"))
		r.Post("/predictions", MetricsMiddleware(s.predictionsHandler.HandlePredict, "predictions"))
		r.Get("/template.csv", MetricsMiddleware(s.artifactsHandler.HandleTemplate, "template"))
		r.Post("/exports", MetricsMiddleware(s.artifactsHandler.HandleExport, "exports"))
		r.Post("/mirror/rows", MetricsMiddleware(s.mirrorHandler.HandleAppend, "mirror"))
	})
}

// Handler returns a chi router with every route registered.
func (s *Server) Handler(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	s.Register(ctx, r)
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func attachment(w http.ResponseWriter, name string) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
}
