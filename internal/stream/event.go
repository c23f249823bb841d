// Package stream decodes the tutor backend's chat event stream: a byte
// stream of newline-delimited "data: {json}" records carrying assistant
// text chunks, a completion sentinel, an error, or a quiz signal.
package stream

// Event is one decoded record from the chat stream.
type Event interface {
	event()
}

// ChunkEvent carries a fragment of assistant text.
type ChunkEvent struct {
	Text string
}

func (ChunkEvent) event() {}

// DoneEvent marks the end of the assistant turn. No further events follow.
type DoneEvent struct{}

func (DoneEvent) event() {}

// ErrorEvent carries a terminal failure reported in-band by the backend.
type ErrorEvent struct {
	Message string
}

func (ErrorEvent) event() {}

// QuizSignalEvent announces that a quiz of the named variant should begin.
// The backend emits it before the accompanying chunks so the quiz can start
// loading while the teacher's message is still streaming.
type QuizSignalEvent struct {
	TestType string
}

func (QuizSignalEvent) event() {}
