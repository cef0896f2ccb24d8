package main

import (
	"errors"
	"net/http"
	"sync"

	"github.com/daniacca/genekin/internal/kinetics"
	"github.com/daniacca/genekin/internal/logging"
)

// Server exposes a RunManager over HTTP.
type Server struct {
	manager     *kinetics.RunManager
	notifiers   *kinetics.NotificationManager
	snapshotDir string
	logger      *logging.Logger
	metrics     *metrics

	// loadMu serializes model replacement under a fixed run ID.
	loadMu sync.Mutex
}

// NewServer creates a server whose runs and notifiers log through logger.
func NewServer(logger *logging.Logger, notifyWorkers int) *Server {
	notifiers := kinetics.NewNotificationManagerWithWorkers(logger, notifyWorkers)
	manager := kinetics.NewRunManagerWithLogger(logger)
	manager.SetNotificationManager(notifiers)
	return &Server{
		manager:   manager,
		notifiers: notifiers,
		logger:    logger,
		metrics:   newMetrics(),
	}
}

// SetSnapshotDir sets where POST /run/{id}/snapshot writes.
func (s *Server) SetSnapshotDir(dir string) {
	s.snapshotDir = dir
}

// Routes returns the HTTP handler for every endpoint.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.handler())

	mux.HandleFunc("GET /runs", s.handleListRuns)
	mux.HandleFunc("POST /runs", s.handleCreateRun)
	mux.HandleFunc("GET /run/{id}", s.handleRunStatus)
	mux.HandleFunc("DELETE /run/{id}", s.handleDeleteRun)
	mux.HandleFunc("POST /run/{id}/model", s.handleLoadModel)
	mux.HandleFunc("POST /run/{id}/step", s.handleStep)
	mux.HandleFunc("POST /run/{id}/simulate", s.handleSimulate)
	mux.HandleFunc("GET /run/{id}/counts", s.handleCounts)
	mux.HandleFunc("POST /run/{id}/snapshot", s.handleSaveSnapshot)
	mux.HandleFunc("GET /run/{id}/snapshot", s.handleGetSnapshot)

	mux.HandleFunc("GET /notifiers", s.handleListNotifiers)
	mux.HandleFunc("POST /notifiers", s.handleRegisterNotifier)
	mux.HandleFunc("DELETE /notifiers/{id}", s.handleUnregisterNotifier)
	mux.HandleFunc("GET /ws/{id}", s.handleWebSocket)
	return mux
}

// Close drops every run and shuts down notification delivery.
func (s *Server) Close() error {
	return errors.Join(s.manager.Close(), s.notifiers.Close())
}
