package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Event Interface and Base Event
// -----------------------------------------------------------------------------

// Event represents a domain event
type Event interface {
	// EventID returns the unique identifier for this event
	EventID() uuid.UUID
	// EventType returns the type name of this event
	EventType() string
	// OccurredAt returns when this event occurred
	OccurredAt() time.Time
	// RunID returns the run that produced this event
	RunID() uuid.UUID
}

// BaseEvent provides common event fields
type BaseEvent struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Run       uuid.UUID `json:"run_id"`
}

// NewBaseEvent creates a new BaseEvent
func NewBaseEvent(eventType string, runID uuid.UUID) BaseEvent {
	return BaseEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Timestamp: time.Now(),
		Run:       runID,
	}
}

func (e BaseEvent) EventID() uuid.UUID    { return e.ID }
func (e BaseEvent) EventType() string     { return e.Type }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }
func (e BaseEvent) RunID() uuid.UUID      { return e.Run }

// -----------------------------------------------------------------------------
// Event Handler and Dispatcher
// -----------------------------------------------------------------------------

// EventHandler processes domain events
type EventHandler func(event Event)

// EventDispatcher manages event subscriptions and publishing
type EventDispatcher struct {
	mu          sync.RWMutex
	handlers    map[string][]EventHandler
	allHandlers []EventHandler // handlers for all events
}

// NewEventDispatcher creates a new event dispatcher
func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{
		handlers: make(map[string][]EventHandler),
	}
}

// Subscribe registers a handler for a specific event type
func (d *EventDispatcher) Subscribe(eventType string, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

// SubscribeAll registers a handler for all event types
func (d *EventDispatcher) SubscribeAll(handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.allHandlers = append(d.allHandlers, handler)
}

// Publish dispatches an event to all registered handlers. A nil
// dispatcher drops the event.
func (d *EventDispatcher) Publish(event Event) {
	if d == nil {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	if handlers, ok := d.handlers[event.EventType()]; ok {
		for _, h := range handlers {
			h(event)
		}
	}

	for _, h := range d.allHandlers {
		h(event)
	}
}

// -----------------------------------------------------------------------------
// Validation Events
// -----------------------------------------------------------------------------

const (
	EventSubmissionValidated = "submission.validated"
	EventCheatFlagged        = "submission.cheat_flagged"
	EventTestRunCompleted    = "testrun.completed"
)

// SubmissionValidatedEvent is published after every validation
type SubmissionValidatedEvent struct {
	BaseEvent
	ProblemID   string        `json:"problem_id"`
	Language    Language      `json:"language"`
	Success     bool          `json:"success"`
	FailureKind FailureKind   `json:"failure_kind,omitempty"`
	Mode        Mode          `json:"mode"`
	Duration    time.Duration `json:"duration"`
}

// NewSubmissionValidatedEvent creates a new submission validated event
func NewSubmissionValidatedEvent(runID uuid.UUID, problemID string, lang Language, res ValidationResult, d time.Duration) SubmissionValidatedEvent {
	return SubmissionValidatedEvent{
		BaseEvent:   NewBaseEvent(EventSubmissionValidated, runID),
		ProblemID:   problemID,
		Language:    lang,
		Success:     res.Success,
		FailureKind: res.FailureKind,
		Mode:        res.Mode,
		Duration:    d,
	}
}

// CheatFlaggedEvent is published when anti-cheat raised at least one flag
type CheatFlaggedEvent struct {
	BaseEvent
	ProblemID string          `json:"problem_id"`
	Flags     []AntiCheatFlag `json:"flags"`
	Blocking  bool            `json:"blocking"`
}

// NewCheatFlaggedEvent creates a new cheat flagged event
func NewCheatFlaggedEvent(runID uuid.UUID, problemID string, flags []AntiCheatFlag, blocking bool) CheatFlaggedEvent {
	return CheatFlaggedEvent{
		BaseEvent: NewBaseEvent(EventCheatFlagged, runID),
		ProblemID: problemID,
		Flags:     flags,
		Blocking:  blocking,
	}
}

// TestRunCompletedEvent is published when a test suite finishes
type TestRunCompletedEvent struct {
	BaseEvent
	ProblemID string        `json:"problem_id"`
	AllPassed bool          `json:"all_passed"`
	Passed    int           `json:"passed"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// NewTestRunCompletedEvent creates a new test run completed event
func NewTestRunCompletedEvent(runID uuid.UUID, problemID string, res *TestRunResults) TestRunCompletedEvent {
	return TestRunCompletedEvent{
		BaseEvent: NewBaseEvent(EventTestRunCompleted, runID),
		ProblemID: problemID,
		AllPassed: res.AllPassed,
		Passed:    res.Passed(),
		Failed:    res.Failed(),
		Duration:  res.TotalDuration,
	}
}
