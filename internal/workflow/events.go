package workflow

import (
	"fmt"
	"sync"

	"github.com/spigell/eu-call-finder/internal/invariant"
	"github.com/spigell/eu-call-finder/internal/logger"
	"github.com/spigell/eu-call-finder/internal/report"
	"go.uber.org/zap"
)

// EventKind tells progress events from terminal ones.
type EventKind string

const (
	EventProgress  EventKind = "progress"
	EventCompleted EventKind = "completed"
	EventFailed    EventKind = "failed"
)

// Event is one progress notification of a run.
type Event struct {
	RunID   string
	Kind    EventKind
	Stage   Stage
	Attempt int
	Percent int
	Message string
	// Report is set on the completed event.
	Report *report.Report
	// Err is set on the failed event.
	Err error
}

// Terminal reports whether the event ends the run.
func (e Event) Terminal() bool {
	return e.Kind == EventCompleted || e.Kind == EventFailed
}

// Sink receives the events of a run in order.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Emit implements Sink.
func (f SinkFunc) Emit(e Event) { f(e) }

// LoggerSink writes events to a zap logger.
type LoggerSink struct {
	Logger *zap.Logger
}

// Emit implements Sink.
func (s LoggerSink) Emit(e Event) {
	log := logger.WithRun(s.Logger, e.RunID)
	fields := append(logger.StageFields(string(e.Stage), e.Attempt), zap.Int("percent", e.Percent))

	switch e.Kind {
	case EventFailed:
		log.Error(e.Message, append(fields, zap.Error(e.Err))...)
	case EventCompleted:
		if e.Report != nil {
			fields = append(fields, zap.Int("calls", e.Report.Overview.Total))
		}
		log.Info(e.Message, fields...)
	default:
		log.Info(e.Message, fields...)
	}
}

// Recorder keeps every event. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements Sink.
func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// percentFor places a stage of an attempt on a 0-100 scale.
func percentFor(stage Stage, attempt int) int {
	base := 30 * attempt
	switch stage {
	case StagePlanning:
		return base
	case StageRetrieval:
		return base + 10
	case StageScoring:
		return base + 20
	case StageRefine:
		return base + 25
	case StageReporting:
		return 90
	case StageDone:
		return 100
	}
	return base
}

// emitter forwards events to a sink and enforces their order.
type emitter struct {
	runID    string
	sink     Sink
	seen     map[string]struct{}
	percent  int
	terminal bool
}

func newEmitter(runID string, sink Sink) *emitter {
	if sink == nil {
		sink = SinkFunc(func(Event) {})
	}
	return &emitter{runID: runID, sink: sink, seen: make(map[string]struct{})}
}

func (e *emitter) progress(stage Stage, attempt int, message string) error {
	if e.terminal {
		return invariant.Errorf("progress", "run %s already ended", e.runID)
	}
	key := fmt.Sprintf("%s/%d", stage, attempt)
	if _, ok := e.seen[key]; ok {
		return invariant.Errorf("progress", "stage %s of attempt %d reported twice", stage, attempt)
	}
	p := percentFor(stage, attempt)
	if p < e.percent {
		return invariant.Errorf("progress", "stage %s of attempt %d goes back to %d%%", stage, attempt, p)
	}
	e.seen[key] = struct{}{}
	e.percent = p
	e.sink.Emit(Event{RunID: e.runID, Kind: EventProgress, Stage: stage, Attempt: attempt, Percent: p, Message: message})
	return nil
}

func (e *emitter) complete(r *report.Report, attempt int) {
	if e.terminal {
		return
	}
	e.terminal = true
	e.sink.Emit(Event{
		RunID:   e.runID,
		Kind:    EventCompleted,
		Stage:   StageDone,
		Attempt: attempt,
		Percent: 100,
		Message: "run completed",
		Report:  r,
	})
}

func (e *emitter) fail(stage Stage, attempt int, err error) {
	if e.terminal {
		return
	}
	e.terminal = true
	e.sink.Emit(Event{
		RunID:   e.runID,
		Kind:    EventFailed,
		Stage:   stage,
		Attempt: attempt,
		Percent: e.percent,
		Message: "run failed",
		Err:     err,
	})
}
