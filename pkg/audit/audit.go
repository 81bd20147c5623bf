// Package audit records stage transitions and operator-facing events.
// Recording is strictly fire-and-forget: a sink must never block or fail the
// pipeline that feeds it.
package audit

import (
	"context"
	"time"
)

// Actions recorded for each stage transition.
const (
	ActionStarted   = "started"
	ActionCompleted = "completed"
	ActionSkipped   = "skipped"
	ActionFailed    = "failed"
)

// Field is one ordered key/value detail attached to an event. A slice is
// used instead of a map so the recorded order matches the order the stage
// emitted.
type Field struct {
	Key   string
	Value string
}

// Event is a single audit entry.
type Event struct {
	RequestID string
	Stage     string
	Action    string
	Details   []Field
	At        time.Time
}

// Sink consumes audit events. Implementations swallow their own failures.
type Sink interface {
	Record(ctx context.Context, e Event)
}

// MultiSink fans an event out to every configured sink.
type MultiSink []Sink

func (m MultiSink) Record(ctx context.Context, e Event) {
	for _, s := range m {
		s.Record(ctx, e)
	}
}
