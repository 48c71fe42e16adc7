// Package pipeline runs the generate-audit-refine quality loop for a
// single product and reports progress as a stream of typed events.
package pipeline

// EventType discriminates the events emitted during processing.
type EventType string

const (
	// EventProgress reports batch advancement (row counter).
	EventProgress EventType = "progress"
	// EventLog carries a human-readable progress message.
	EventLog EventType = "log"
	// EventDone carries the final content for one product.
	EventDone EventType = "done"
	// EventDoneManual carries the final content of a manual single-item
	// run, so the frontend can route it apart from batch results.
	EventDoneManual EventType = "done_manual"
	// EventFinished closes a batch with its output artifact.
	EventFinished EventType = "finished"
	// EventError reports an unrecoverable failure.
	EventError EventType = "error"
)

// Event is one stream element. The payload shape depends on the type.
type Event struct {
	Type    EventType      `json:"type"`
	Payload map[string]any `json:"payload"`
}

// Sink receives events as they occur.
type Sink func(Event)

// Log builds a log event with a severity tag the frontend understands.
func Log(message, severity string) Event {
	return Event{Type: EventLog, Payload: map[string]any{"message": message, "type": severity}}
}
