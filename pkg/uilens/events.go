package uilens

import "time"

// EventType identifies what a pipeline event describes.
type EventType string

const (
	// EventStart fires once the initial pending checkpoint is persisted.
	EventStart EventType = "start"
	// EventScreenshot fires after the screenshot stage result is persisted.
	EventScreenshot EventType = "screenshot"
	// EventVision fires after the vision stage result is persisted.
	EventVision EventType = "vision"
	// EventExtraction fires after the token extraction result is persisted.
	EventExtraction EventType = "extraction"
	// EventComparison fires after comparison scores are persisted.
	EventComparison EventType = "comparison"
	// EventComplete fires after the checkpoint is marked complete.
	EventComplete EventType = "complete"
	// EventError fires after the checkpoint is marked failed.
	EventError EventType = "error"
)

// Event is delivered to subscribed handlers synchronously, after the
// persistence write for the stage it describes has completed.
type Event struct {
	Type         EventType
	CheckpointID string
	URL          string
	Progress     int
	Err          error
	Time         time.Time
}

// Handler receives pipeline events. Handlers run on the pipeline's
// goroutine; slow handlers delay the run.
type Handler func(Event)

// Subscribe registers a handler for all events emitted by this pipeline.
// Any number of handlers may be registered.
func (p *Pipeline) Subscribe(h Handler) {
	if h == nil {
		return
	}
	p.mu.Lock()
	p.handlers = append(p.handlers, h)
	p.mu.Unlock()
}

// emit delivers an event to every subscribed handler in registration order.
func (p *Pipeline) emit(ev Event) {
	ev.Time = time.Now().UTC()

	p.mu.RLock()
	handlers := make([]Handler, len(p.handlers))
	copy(handlers, p.handlers)
	p.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}
