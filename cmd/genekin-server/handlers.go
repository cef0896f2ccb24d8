package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/daniacca/genekin/internal/kinetics"
	"github.com/daniacca/genekin/internal/kinetics/notifiers"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// runFromPath looks up the run named by the {id} path segment and writes a
// 404 when it does not exist.
func (s *Server) runFromPath(w http.ResponseWriter, r *http.Request) (*kinetics.Run, bool) {
	id := kinetics.RunID(r.PathValue("id"))
	run, exists := s.manager.GetRun(id)
	if !exists {
		http.Error(w, "run not found", http.StatusNotFound)
		return nil, false
	}
	return run, true
}

// runErrorStatus maps run errors to HTTP status codes. A consistency error
// means the run's state is no longer valid.
func runErrorStatus(err error) int {
	switch {
	case kinetics.IsConsistencyError(err):
		return http.StatusInternalServerError
	case errors.Is(err, kinetics.ErrNotInitialized):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// GET /runs
func (s *Server) handleListRuns(w http.ResponseWriter, _ *http.Request) {
	ids := s.manager.ListRuns()
	runs := make([]kinetics.RunStatus, 0, len(ids))
	for _, id := range ids {
		if run, ok := s.manager.GetRun(id); ok {
			runs = append(runs, run.Status())
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func decodeModelConfig(w http.ResponseWriter, r *http.Request) (kinetics.ModelConfig, bool) {
	defer r.Body.Close()
	var cfg kinetics.ModelConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, "invalid model json: "+err.Error(), http.StatusBadRequest)
		return cfg, false
	}
	return cfg, true
}

// POST /runs
// Body: ModelConfig JSON. The run gets a fresh ID.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	cfg, ok := decodeModelConfig(w, r)
	if !ok {
		return
	}
	s.createRun(w, kinetics.NewRunID(), cfg, http.StatusCreated)
}

// POST /run/{id}/model
// Body: ModelConfig JSON. Replaces any run already stored under id.
func (s *Server) handleLoadModel(w http.ResponseWriter, r *http.Request) {
	cfg, ok := decodeModelConfig(w, r)
	if !ok {
		return
	}
	id := kinetics.RunID(r.PathValue("id"))
	if err := kinetics.ValidateModelConfig(cfg); err != nil {
		http.Error(w, "invalid model: "+err.Error(), http.StatusBadRequest)
		return
	}

	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	if _, exists := s.manager.GetRun(id); exists {
		err := s.dropRun(id)
		switch {
		case errors.Is(err, kinetics.ErrRunNotFound):
			// Deleted concurrently; nothing to replace.
		case err != nil:
			s.logger.Errorf("run replace failed: run_id=%s error=%v", id, err)
			http.Error(w, "cannot replace run: "+err.Error(), http.StatusInternalServerError)
			return
		default:
			s.logger.Infof("run replaced: run_id=%s model=%s", id, cfg.Name)
		}
	}
	s.createRun(w, id, cfg, http.StatusOK)
}

func (s *Server) createRun(w http.ResponseWriter, id kinetics.RunID, cfg kinetics.ModelConfig, status int) {
	run, err := s.manager.CreateRun(id, cfg)
	if err != nil {
		s.logger.Warnf("run rejected: run_id=%s error=%v", id, err)
		http.Error(w, "cannot create run: "+err.Error(), http.StatusBadRequest)
		return
	}
	s.metrics.runs.Inc()
	writeJSON(w, status, run.Status())
}

// dropRun deletes the run and its metrics. A sink close error is returned
// after the run is already gone.
func (s *Server) dropRun(id kinetics.RunID) error {
	err := s.manager.DeleteRun(id)
	if errors.Is(err, kinetics.ErrRunNotFound) {
		return err
	}
	s.metrics.runs.Dec()
	s.metrics.forget(string(id))
	return err
}

// GET /run/{id}
func (s *Server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	run, ok := s.runFromPath(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run.Status())
}

// DELETE /run/{id}
func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	id := kinetics.RunID(r.PathValue("id"))
	if err := s.dropRun(id); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, kinetics.ErrRunNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	s.logger.Infof("run deleted: run_id=%s", id)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("run deleted"))
}

// POST /run/{id}/step?n=100
func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	defer s.metrics.observe("step", time.Now())
	run, ok := s.runFromPath(w, r)
	if !ok {
		return
	}
	n := 1
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			http.Error(w, "n must be a positive integer", http.StatusBadRequest)
			return
		}
		n = v
	}

	before := run.Status()
	fired, err := run.Step(n)
	after := s.record(run, before)
	if err != nil {
		s.logger.Errorf("step failed: run_id=%s error=%v", run.ID(), err)
		http.Error(w, "step failed: "+err.Error(), runErrorStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"fired": fired, "status": after})
}

// maxReports bounds the rows a single simulate request may produce.
const maxReports = 100_000

// POST /run/{id}/simulate?until=100&every=1
func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	defer s.metrics.observe("simulate", time.Now())
	run, ok := s.runFromPath(w, r)
	if !ok {
		return
	}
	until, err := positiveFloat(r, "until", 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	every, err := positiveFloat(r, "every", 1)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	before := run.Status()
	if reports := (until - before.Time) / every; reports > maxReports {
		http.Error(w, fmt.Sprintf("until/every would produce %.0f reports, limit is %d", reports, maxReports), http.StatusBadRequest)
		return
	}
	rows, err := run.Simulate(r.Context(), until, every)
	after := s.record(run, before)
	if err != nil {
		s.logger.Errorf("simulate failed: run_id=%s error=%v", run.ID(), err)
		http.Error(w, "simulate failed: "+err.Error(), runErrorStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows, "status": after})
}

// positiveFloat reads a query parameter that must be > 0. A zero def makes
// the parameter required.
func positiveFloat(r *http.Request, name string, def float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		if def > 0 {
			return def, nil
		}
		return 0, fmt.Errorf("%s is required", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%s must be a positive number", name)
	}
	return v, nil
}

// record updates metrics from the change between before and the run's
// current status, which it returns.
func (s *Server) record(run *kinetics.Run, before kinetics.RunStatus) kinetics.RunStatus {
	after := run.Status()
	label := string(run.ID())
	s.metrics.steps.WithLabelValues(label).Add(float64(after.Steps - before.Steps))
	s.metrics.simTime.WithLabelValues(label).Set(after.Time)
	if after.Stalled && !before.Stalled {
		s.metrics.stalls.Inc()
	}
	return after
}

// GET /run/{id}/counts[?format=tsv]
func (s *Server) handleCounts(w http.ResponseWriter, r *http.Request) {
	run, ok := s.runFromPath(w, r)
	if !ok {
		return
	}
	snap := run.Snapshot()
	if r.URL.Query().Get("format") == "tsv" {
		w.Header().Set("Content-Type", "text/tab-separated-values")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(kinetics.CountsHeader))
		_ = kinetics.EncodeRowsTSV(w, snap.Rows)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// POST /run/{id}/snapshot
// Writes the run's current counts to the snapshot directory.
func (s *Server) handleSaveSnapshot(w http.ResponseWriter, r *http.Request) {
	run, ok := s.runFromPath(w, r)
	if !ok {
		return
	}
	if s.snapshotDir == "" {
		http.Error(w, "snapshot directory not configured", http.StatusInternalServerError)
		return
	}
	path, err := kinetics.SaveSnapshotFile(s.snapshotDir, run.Snapshot())
	if err != nil {
		s.logger.Errorf("Failed to save snapshot: run_id=%s error=%v", run.ID(), err)
		http.Error(w, "failed to save snapshot: "+err.Error(), http.StatusInternalServerError)
		return
	}
	s.logger.Debugf("Snapshot saved: run_id=%s path=%s", run.ID(), path)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "path": path})
}

// GET /run/{id}/snapshot
// Returns the last saved snapshot of the run.
func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	id := kinetics.RunID(r.PathValue("id"))
	if s.snapshotDir == "" {
		http.Error(w, "snapshot directory not configured", http.StatusInternalServerError)
		return
	}
	data, err := os.ReadFile(kinetics.SnapshotPath(s.snapshotDir, id))
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "snapshot not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to read snapshot: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// GET /notifiers
func (s *Server) handleListNotifiers(w http.ResponseWriter, _ *http.Request) {
	ids := s.notifiers.ListNotifiers()
	list := make([]map[string]string, 0, len(ids))
	for _, id := range ids {
		if n, exists := s.notifiers.GetNotifier(id); exists {
			list = append(list, map[string]string{"id": id, "type": n.Type()})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifiers": list})
}

// POST /notifiers
// Body: { "type": "webhook", "id": "my-webhook", "config": { "url": "http://..." } }
type registerNotifierRequest struct {
	Type   string         `json:"type"`
	ID     string         `json:"id"`
	Config map[string]any `json:"config"`
}

func (s *Server) handleRegisterNotifier(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req registerNotifierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		http.Error(w, "notifier ID is required", http.StatusBadRequest)
		return
	}

	var notifier kinetics.Notifier
	switch req.Type {
	case "webhook":
		url, ok := req.Config["url"].(string)
		if !ok || url == "" {
			http.Error(w, "webhook URL is required", http.StatusBadRequest)
			return
		}
		var opts []notifiers.WebhookOption
		if headers, ok := req.Config["headers"].(map[string]any); ok {
			for k, v := range headers {
				if value, ok := v.(string); ok {
					opts = append(opts, notifiers.WithHeader(k, value))
				}
			}
		}
		notifier = notifiers.NewWebhookNotifier(req.ID, url, opts...)
	case "websocket":
		notifier = notifiers.NewWebSocketNotifier(req.ID)
	default:
		http.Error(w, "unknown notifier type: "+req.Type, http.StatusBadRequest)
		return
	}

	if err := s.notifiers.RegisterNotifier(notifier); err != nil {
		_ = notifier.Close()
		http.Error(w, "cannot register notifier: "+err.Error(), http.StatusBadRequest)
		return
	}
	s.logger.Infof("notifier registered: id=%s type=%s", req.ID, req.Type)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("notifier registered"))
}

// DELETE /notifiers/{id}
func (s *Server) handleUnregisterNotifier(w http.ResponseWriter, r *http.Request) {
	if err := s.notifiers.UnregisterNotifier(r.PathValue("id")); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("notifier unregistered"))
}

// GET /ws/{id}
// Upgrades to a websocket and streams the events of websocket notifier id.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	n, exists := s.notifiers.GetNotifier(id)
	if !exists {
		http.Error(w, "notifier not found", http.StatusNotFound)
		return
	}
	wsn, ok := n.(*notifiers.WebSocketNotifier)
	if !ok {
		http.Error(w, "notifier "+id+" is not a websocket notifier", http.StatusBadRequest)
		return
	}

	upgrader := wsn.GetUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnf("websocket upgrade failed: notifier=%s error=%v", id, err)
		return
	}
	wsn.RegisterClient(conn)
	s.logger.Debugf("websocket client connected: notifier=%s", id)

	// Clients only listen; reading detects the disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			wsn.UnregisterClient(conn)
			return
		}
	}
}
