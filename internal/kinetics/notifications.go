package kinetics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"
)

// EventType names the kinds of model events that can be delivered.
type EventType string

const (
	EventTranscriptSpawned EventType = "transcript_spawned"
	EventTermination       EventType = "termination"
	EventCounts            EventType = "counts"
	EventStalled           EventType = "stalled"
)

// NotificationEvent is a value copy of something that happened in a run.
type NotificationEvent struct {
	RunID     RunID     `json:"run_id"`
	Type      EventType `json:"type"`
	Timestamp int64     `json:"timestamp"`
	SimTime   float64   `json:"sim_time"`

	Template    string      `json:"template,omitempty"`
	Polymerase  SpeciesName `json:"polymerase,omitempty"`
	Gene        SpeciesName `json:"gene,omitempty"`
	Translation bool        `json:"translation,omitempty"`
	Rows        []CountRow  `json:"rows,omitempty"`
}

// JSON returns the notification event as JSON bytes
func (ne NotificationEvent) JSON() ([]byte, error) {
	return json.Marshal(ne)
}

// Notifier is the interface that all notification channels must implement
type Notifier interface {
	// ID returns a unique identifier for this notifier
	ID() string

	// Type returns the type of notifier (e.g., "webhook", "websocket")
	Type() string

	// Notify sends a notification event. Returns an error if notification fails.
	// The context can be used for cancellation and timeout.
	Notify(ctx context.Context, event NotificationEvent) error

	// Close closes the notifier and releases any resources
	Close() error
}

// RetryPolicy controls how often a failed delivery is retried.
type RetryPolicy struct {
	// Attempts is the total number of tries per notifier, at least 1.
	Attempts int
	// Backoff is the wait before the first retry; it doubles after each.
	Backoff time.Duration
	// Timeout bounds the delivery of one event to all of its notifiers.
	Timeout time.Duration
}

// DefaultRetryPolicy tries four times starting at 100ms.
var DefaultRetryPolicy = RetryPolicy{Attempts: 4, Backoff: 100 * time.Millisecond, Timeout: 30 * time.Second}

type delivery struct {
	event   NotificationEvent
	targets []string
}

// NotificationManager owns the registered notifiers and delivers events to
// them from a fixed pool of worker goroutines.
type NotificationManager struct {
	mu        sync.RWMutex
	notifiers map[string]Notifier
	queue     chan delivery
	closed    bool
	retry     RetryPolicy
	wg        sync.WaitGroup
	logger    Logger
}

// NewNotificationManager creates a manager with one worker and no logging.
func NewNotificationManager() *NotificationManager {
	return NewNotificationManagerWithLogger(NewNoOpLogger())
}

// NewNotificationManagerWithLogger creates a notification manager that
// reports delivery failures to logger.
func NewNotificationManagerWithLogger(logger Logger) *NotificationManager {
	return NewNotificationManagerWithWorkers(logger, 1)
}

// NewNotificationManagerWithWorkers starts workers delivery goroutines.
// Events for one notifier may arrive out of order when workers > 1.
func NewNotificationManagerWithWorkers(logger Logger, workers int) *NotificationManager {
	if logger == nil {
		logger = NewNoOpLogger()
	}
	nm := &NotificationManager{
		notifiers: make(map[string]Notifier),
		queue:     make(chan delivery, 1024),
		retry:     DefaultRetryPolicy,
		logger:    logger,
	}
	for range max(workers, 1) {
		nm.wg.Add(1)
		go func() {
			defer nm.wg.Done()
			for d := range nm.queue {
				nm.deliver(d)
			}
		}()
	}
	return nm
}

// SetRetryPolicy replaces the retry policy for future deliveries.
func (nm *NotificationManager) SetRetryPolicy(p RetryPolicy) {
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	nm.mu.Lock()
	defer nm.mu.Unlock()
	nm.retry = p
}

// RegisterNotifier adds notifier under its ID.
func (nm *NotificationManager) RegisterNotifier(notifier Notifier) error {
	if notifier == nil {
		return errors.New("notifier cannot be nil")
	}
	id := notifier.ID()
	if id == "" {
		return errors.New("notifier ID cannot be empty")
	}

	nm.mu.Lock()
	defer nm.mu.Unlock()
	if _, exists := nm.notifiers[id]; exists {
		return fmt.Errorf("notifier with ID %s already exists", id)
	}
	nm.notifiers[id] = notifier
	return nil
}

// UnregisterNotifier removes and closes a notifier.
func (nm *NotificationManager) UnregisterNotifier(id string) error {
	nm.mu.Lock()
	notifier, exists := nm.notifiers[id]
	delete(nm.notifiers, id)
	nm.mu.Unlock()

	if !exists {
		return fmt.Errorf("notifier with ID %s not found", id)
	}
	if err := notifier.Close(); err != nil {
		return fmt.Errorf("close notifier %s: %w", id, err)
	}
	return nil
}

// GetNotifier looks a notifier up by ID.
func (nm *NotificationManager) GetNotifier(id string) (Notifier, bool) {
	nm.mu.RLock()
	defer nm.mu.RUnlock()
	notifier, exists := nm.notifiers[id]
	return notifier, exists
}

// ListNotifiers returns the registered IDs in sorted order.
func (nm *NotificationManager) ListNotifiers() []string {
	nm.mu.RLock()
	defer nm.mu.RUnlock()
	ids := make([]string, 0, len(nm.notifiers))
	for id := range nm.notifiers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Enqueue hands an event to the workers. It never blocks the simulation;
// when the queue is full the event is dropped.
func (nm *NotificationManager) Enqueue(event NotificationEvent, notifierIDs []string) {
	if len(notifierIDs) == 0 {
		return
	}

	nm.mu.RLock()
	defer nm.mu.RUnlock()
	if nm.closed {
		return
	}
	select {
	case nm.queue <- delivery{event: event, targets: notifierIDs}:
	default:
		nm.logger.Warnf("notification queue full, dropping notification: run_id=%s type=%s", event.RunID, event.Type)
	}
}

func (nm *NotificationManager) deliver(d delivery) {
	nm.mu.RLock()
	policy := nm.retry
	nm.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), policy.Timeout)
	defer cancel()
	for _, id := range d.targets {
		notifier, ok := nm.GetNotifier(id)
		if !ok {
			nm.logger.Warnf("notification dropped: notifier=%s not registered", id)
			continue
		}
		nm.retryNotify(ctx, policy, notifier, d.event)
	}
}

// retryNotify retries with exponential backoff until the notifier succeeds,
// the attempts run out or ctx expires.
func (nm *NotificationManager) retryNotify(ctx context.Context, policy RetryPolicy, notifier Notifier, event NotificationEvent) {
	wait := policy.Backoff
	for attempt := 1; ; attempt++ {
		err := notifier.Notify(ctx, event)
		if err == nil {
			return
		}
		nm.logger.Warnf("notification failed: notifier=%s attempt=%d error=%v", notifier.ID(), attempt, err)
		if attempt >= policy.Attempts {
			nm.logger.Errorf("notification failed after %d attempts: notifier=%s", attempt, notifier.ID())
			return
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			wait *= 2
		}
	}
}

// Notify delivers event to each notifier synchronously, without retries.
func (nm *NotificationManager) Notify(ctx context.Context, event NotificationEvent, notifierIDs []string) error {
	var errs []error
	for _, id := range notifierIDs {
		notifier, exists := nm.GetNotifier(id)
		if !exists {
			errs = append(errs, fmt.Errorf("notifier %s not found", id))
			continue
		}
		if err := notifier.Notify(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("notifier %s failed: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// Close stops the workers after the queue drains and closes every notifier.
func (nm *NotificationManager) Close() error {
	nm.mu.Lock()
	if nm.closed {
		nm.mu.Unlock()
		return nil
	}
	nm.closed = true
	close(nm.queue)
	nm.mu.Unlock()

	nm.wg.Wait()

	nm.mu.Lock()
	defer nm.mu.Unlock()
	var errs []error
	for _, id := range slices.Sorted(maps.Keys(nm.notifiers)) {
		if err := nm.notifiers[id].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close notifier %s: %w", id, err))
		}
	}
	clear(nm.notifiers)
	return errors.Join(errs...)
}
