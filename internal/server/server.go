// Package server exposes the pipeline over HTTP: manual job triggers, table
// descriptions, the query surface, and metrics.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"

	"github.com/strata-lake/strata/internal/extract"
	"github.com/strata-lake/strata/internal/metrics"
	"github.com/strata-lake/strata/internal/schedule"
	"github.com/strata-lake/strata/strata"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Server hosts the HTTP surface over the pipeline components.
type Server struct {
	extractor *extract.Extractor
	scanner   schedule.ScanRunner
	prefix    string
	catalog   strata.Catalog
	access    strata.AccessController
	engine    strata.QueryEngine
	collector *metrics.Collector
	log       zerolog.Logger

	http *http.Server
}

// New creates a Server listening on addr.
func New(addr string, extractor *extract.Extractor, scanner schedule.ScanRunner, prefix string,
	catalog strata.Catalog, access strata.AccessController, engine strata.QueryEngine,
	collector *metrics.Collector, log zerolog.Logger) *Server {

	s := &Server{
		extractor: extractor,
		scanner:   scanner,
		prefix:    prefix,
		catalog:   catalog,
		access:    access,
		engine:    engine,
		collector: collector,
		log:       log,
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/v1/extract", s.handleExtract).Methods(http.MethodPost)
	r.HandleFunc("/v1/scan", s.handleScan).Methods(http.MethodPost)
	r.HandleFunc("/v1/query", s.handleQuery).Methods(http.MethodPost)
	r.HandleFunc("/v1/executions/{id}", s.handleExecution).Methods(http.MethodGet)
	r.HandleFunc("/v1/tables/{namespace}/{name}", s.handleDescribe).Methods(http.MethodGet)
	r.HandleFunc("/v1/grants/{principal}", s.handleGrants).Methods(http.MethodGet)
	r.Handle("/metrics", collector.Handler()).Methods(http.MethodGet)

	s.http = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}
	return s
}

// Handler returns the routed handler, for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server listening")
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result, err := s.extractor.Run(r.Context())
	metrics.Observe(s.collector.ExtractRuns, s.collector.ExtractDuration, start, err)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, strata.ErrSourceUnavailable) {
			status = http.StatusBadGateway
		}
		writeError(w, status, err)
		return
	}
	s.collector.ExtractRows.Add(float64(result.Rows))
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	def, err := s.scanner.Scan(r.Context(), s.prefix)
	if errors.Is(err, strata.ErrNoSnapshots) {
		writeError(w, http.StatusConflict, err)
		return
	}
	metrics.Observe(s.collector.ScanRuns, s.collector.ScanDuration, start, err)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

type queryRequest struct {
	SQL       string `json:"sql"`
	Namespace string `json:"namespace"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.SQL == "" || req.Namespace == "" {
		writeError(w, http.StatusBadRequest, errors.New("sql and namespace are required"))
		return
	}

	start := time.Now()
	handle, err := s.engine.Execute(r.Context(), req.SQL, req.Namespace)
	metrics.Observe(s.collector.QueryExecutions, s.collector.QueryDuration, start, err)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, strata.ErrQueryFailure) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]any{"error": err.Error(), "execution": handle})
		return
	}
	writeJSON(w, http.StatusOK, handle)
}

func (s *Server) handleExecution(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	status, err := s.engine.Status(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"execution_id": id, "status": status.String()})
}

func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	def, err := s.catalog.DescribeTable(r.Context(), vars["namespace"], vars["name"])
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, strata.ErrTableNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

func (s *Server) handleGrants(w http.ResponseWriter, r *http.Request) {
	principal := strata.Principal(mux.Vars(r)["principal"])
	grants, err := s.access.Enumerate(r.Context(), principal)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, grants)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
