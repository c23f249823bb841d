package stream

import (
	"context"
	"io"
	"strings"
	"testing"
)

// chunkedReader returns its parts one per Read call, simulating records
// split across network reads.
type chunkedReader struct {
	parts []string
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if len(r.parts) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.parts[0])
	r.parts[0] = r.parts[0][n:]
	if r.parts[0] == "" {
		r.parts = r.parts[1:]
	}
	return n, nil
}

func collect(t *testing.T, r io.Reader) ([]Event, error) {
	t.Helper()
	var events []Event
	var iterErr error
	NewDecoder(r, nil).Events(context.Background())(func(ev Event, err error) bool {
		if err != nil {
			iterErr = err
			return false
		}
		events = append(events, ev)
		return true
	})
	return events, iterErr
}

func TestDecoder_ChunksAndDone(t *testing.T) {
	body := "data: {\"chunk\": \"Hola\"}\n" +
		"data: {\"chunk\": \", amigo\"}\n" +
		"data: {\"done\": true}\n"

	events, err := collect(t, strings.NewReader(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if got := events[0].(ChunkEvent).Text; got != "Hola" {
		t.Errorf("first chunk = %q, want %q", got, "Hola")
	}
	if _, ok := events[2].(DoneEvent); !ok {
		t.Errorf("last event = %T, want DoneEvent", events[2])
	}
}

func TestDecoder_RecordSplitAcrossReads(t *testing.T) {
	r := &chunkedReader{parts: []string{
		"data: {\"chu",
		"nk\": \"par",
		"tial\"}\ndata: {\"done\": true}\n",
	}}

	events, err := collect(t, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if got := events[0].(ChunkEvent).Text; got != "partial" {
		t.Errorf("chunk = %q, want %q", got, "partial")
	}
}

func TestDecoder_FinalLineWithoutNewline(t *testing.T) {
	events, err := collect(t, strings.NewReader("data: {\"chunk\": \"tail\"}"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if got := events[0].(ChunkEvent).Text; got != "tail" {
		t.Errorf("chunk = %q, want %q", got, "tail")
	}
}

func TestDecoder_QuizSignalBeforeChunks(t *testing.T) {
	body := "data: {\"test_type\": \"keyword_match\"}\n" +
		"data: {\"chunk\": \"Let's practice!\"}\n" +
		"data: {\"done\": true}\n"

	events, err := collect(t, strings.NewReader(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sig, ok := events[0].(QuizSignalEvent)
	if !ok {
		t.Fatalf("first event = %T, want QuizSignalEvent", events[0])
	}
	if sig.TestType != "keyword_match" {
		t.Errorf("test type = %q, want keyword_match", sig.TestType)
	}
}

func TestDecoder_SignalAndChunkInOneRecord(t *testing.T) {
	body := "data: {\"test_type\": \"reading\", \"chunk\": \"Read this.\"}\n" +
		"data: {\"done\": true}\n"

	events, err := collect(t, strings.NewReader(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if _, ok := events[0].(QuizSignalEvent); !ok {
		t.Errorf("first event = %T, want QuizSignalEvent", events[0])
	}
	if _, ok := events[1].(ChunkEvent); !ok {
		t.Errorf("second event = %T, want ChunkEvent", events[1])
	}
}

func TestDecoder_ErrorStopsStream(t *testing.T) {
	body := "data: {\"chunk\": \"hi\"}\n" +
		"data: {\"error\": \"model overloaded\"}\n" +
		"data: {\"chunk\": \"never seen\"}\n"

	events, err := collect(t, strings.NewReader(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	ev, ok := events[1].(ErrorEvent)
	if !ok {
		t.Fatalf("last event = %T, want ErrorEvent", events[1])
	}
	if ev.Message != "model overloaded" {
		t.Errorf("message = %q", ev.Message)
	}
}

func TestDecoder_MalformedLineSkipped(t *testing.T) {
	body := "data: {not json}\n" +
		"data: {\"chunk\": \"ok\"}\n" +
		"data: {\"done\": true}\n"

	events, err := collect(t, strings.NewReader(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2 (malformed line skipped)", len(events))
	}
}

func TestDecoder_IgnoresNonRecordLines(t *testing.T) {
	body := "\n: keep-alive\n" +
		"data: {\"chunk\": \"x\"}\n" +
		"\r\n" +
		"data: {\"done\": true}\r\n"

	events, err := collect(t, strings.NewReader(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
}

func TestDecoder_SingleUse(t *testing.T) {
	d := NewDecoder(strings.NewReader("data: {\"done\": true}\n"), nil)
	count := 0
	d.Events(context.Background())(func(Event, error) bool { count++; return true })
	d.Events(context.Background())(func(Event, error) bool { count++; return true })
	if count != 1 {
		t.Errorf("events seen = %d, want 1 (second iteration must be empty)", count)
	}
}

func TestDecoder_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var iterErr error
	NewDecoder(strings.NewReader("data: {\"chunk\": \"x\"}\n"), nil).Events(ctx)(func(_ Event, err error) bool {
		iterErr = err
		return false
	})
	if iterErr == nil {
		t.Fatal("expected context error")
	}
}
