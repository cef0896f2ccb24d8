package kinetics

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// RunID is a unique identifier for a simulation run
type RunID string

// Run owns one model and serializes every access to it. Steps and reads
// never interleave.
type Run struct {
	mu      sync.Mutex
	id      RunID
	name    string
	model   *Model
	reports *MemorySink
	sink    CountSink
	logger  Logger
}

// ID returns the run ID.
func (r *Run) ID() RunID { return r.id }

// Name returns the name of the model configuration the run was built from.
func (r *Run) Name() string { return r.name }

// Step fires up to n reactions.
func (r *Run) Step(n int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.model.Step(n)
}

// Simulate advances the run to until, recording reports every interval,
// and returns the rows this call produced.
func (r *Run) Simulate(ctx context.Context, until, every float64) ([]CountRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	before := len(r.reports.Rows)
	err := r.model.Simulate(ctx, until, every, r.sink)
	return slices.Clone(r.reports.Rows[before:]), err
}

// Snapshot returns the current counts.
func (r *Run) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.model.Snapshot()
}

// Reports returns every row recorded by Simulate so far.
func (r *Run) Reports() []CountRow {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.reports.Rows)
}

func (r *Run) close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sink.Close()
}

// Status summarizes the run.
func (r *Run) Status() RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	status := RunStatus{
		ID:        r.id,
		Name:      r.name,
		Time:      r.model.Time(),
		Steps:     r.model.Steps(),
		Stalled:   r.model.Stalled(),
		Reactions: r.model.Scheduler().Len(),
	}
	if err := r.model.Err(); err != nil {
		status.Error = err.Error()
	}
	return status
}

// RunStatus is the JSON summary of a run.
type RunStatus struct {
	ID        RunID   `json:"id"`
	Name      string  `json:"name"`
	Time      float64 `json:"time"`
	Steps     uint64  `json:"steps"`
	Stalled   bool    `json:"stalled"`
	Reactions int     `json:"reactions"`
	Error     string  `json:"error,omitempty"`
}

// RunManager manages multiple runs, each isolated from the others
type RunManager struct {
	mu       sync.RWMutex
	runs     map[RunID]*Run
	notifier *NotificationManager
	sinks    func(RunID) (CountSink, error)
	logger   Logger
}

// NewRunManager creates a new run manager
func NewRunManager() *RunManager {
	return NewRunManagerWithLogger(NewNoOpLogger())
}

// NewRunManagerWithLogger creates a run manager whose models log to logger.
func NewRunManagerWithLogger(logger Logger) *RunManager {
	if logger == nil {
		logger = NewNoOpLogger()
	}
	return &RunManager{
		runs:   make(map[RunID]*Run),
		logger: logger,
	}
}

// SetNotificationManager sets the manager runs deliver events through.
func (rm *RunManager) SetNotificationManager(mgr *NotificationManager) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.notifier = mgr
}

// SetSinkFactory makes every new run also write its reports to the sink
// returned by fn.
func (rm *RunManager) SetSinkFactory(fn func(RunID) (CountSink, error)) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.sinks = fn
}

// CreateRun validates cfg, builds and initializes its model and stores it
// under id. Returns an error if a run with that ID already exists.
func (rm *RunManager) CreateRun(id RunID, cfg ModelConfig) (*Run, error) {
	if id == "" {
		return nil, fmt.Errorf("run id is required")
	}
	if err := ValidateModelConfig(cfg); err != nil {
		return nil, err
	}
	model, err := BuildModelFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	model.SetLogger(rm.logger)
	model.SetRunID(id)

	rm.mu.Lock()
	defer rm.mu.Unlock()

	if _, exists := rm.runs[id]; exists {
		return nil, fmt.Errorf("run with id %s already exists", id)
	}
	if rm.notifier != nil && len(cfg.Notifiers) > 0 {
		model.SetNotificationManager(rm.notifier, id, cfg.Notifiers...)
	}
	if err := model.Initialize(); err != nil {
		return nil, err
	}

	run := &Run{id: id, name: cfg.Name, model: model, reports: &MemorySink{}, logger: rm.logger}
	run.sink = run.reports
	if rm.sinks != nil {
		extra, err := rm.sinks(id)
		if err != nil {
			return nil, fmt.Errorf("open sink for run %s: %w", id, err)
		}
		run.sink = teeSink{run.reports, extra}
	}
	rm.runs[id] = run
	rm.logger.Infof("run created: run_id=%s model=%s", id, cfg.Name)
	return run, nil
}

// GetRun retrieves a run by ID
func (rm *RunManager) GetRun(id RunID) (*Run, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	run, exists := rm.runs[id]
	return run, exists
}

// DeleteRun removes a run by ID and closes its sink. The run is removed even
// when closing its sink fails.
func (rm *RunManager) DeleteRun(id RunID) error {
	rm.mu.Lock()
	run, exists := rm.runs[id]
	delete(rm.runs, id)
	rm.mu.Unlock()

	if !exists {
		return fmt.Errorf("run with id %s: %w", id, ErrRunNotFound)
	}
	if err := run.close(); err != nil {
		return fmt.Errorf("close run %s: %w", id, err)
	}
	return nil
}

// Close closes the sinks of every run.
func (rm *RunManager) Close() error {
	rm.mu.Lock()
	runs := rm.runs
	rm.runs = make(map[RunID]*Run)
	rm.mu.Unlock()

	var errs []error
	for _, run := range runs {
		if err := run.close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ListRuns returns every run ID in sorted order
func (rm *RunManager) ListRuns() []RunID {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	ids := make([]RunID, 0, len(rm.runs))
	for id := range rm.runs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
