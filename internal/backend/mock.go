package backend

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"

	"github.com/abhisek/lingua/internal/quiz"
)

// MockChat is a deterministic chat streamer for testing. It serves canned
// event-stream bodies in FIFO order and records every message sent.
type MockChat struct {
	mu       sync.Mutex
	bodies   []string
	openErrs []error
	Messages []string
}

// NewMockChat creates a MockChat serving the given stream bodies in order.
func NewMockChat(bodies ...string) *MockChat {
	return &MockChat{bodies: bodies}
}

// AddStream appends a canned stream body.
func (m *MockChat) AddStream(body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bodies = append(m.bodies, body)
}

// Sent returns a copy of the messages sent so far. Safe to call while the
// orchestrator's auto-advance is running.
func (m *MockChat) Sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Messages))
	copy(out, m.Messages)
	return out
}

// FailNext makes the next Chat call return err instead of a stream.
func (m *MockChat) FailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openErrs = append(m.openErrs, err)
}

func (m *MockChat) Chat(_ context.Context, _ string, message string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Messages = append(m.Messages, message)

	if len(m.openErrs) > 0 {
		err := m.openErrs[0]
		m.openErrs = m.openErrs[1:]
		return nil, &ErrTransport{Err: err}
	}
	if len(m.bodies) == 0 {
		return io.NopCloser(strings.NewReader("data: {\"done\": true}\n")), nil
	}
	body := m.bodies[0]
	m.bodies = m.bodies[1:]
	return io.NopCloser(strings.NewReader(body)), nil
}

// MockQuiz is a deterministic quiz backend for testing: canned raw JSON
// responses in FIFO order per call kind, with all requests recorded.
type MockQuiz struct {
	mu sync.Mutex

	generates []mockResponse
	validates []mockResponse

	GenerateCalls []quiz.Variant
	ValidateCalls []ValidateCall
}

// ValidateCall records one validate invocation.
type ValidateCall struct {
	Variant quiz.Variant
	Body    any
	Clip    []byte
}

type mockResponse struct {
	raw json.RawMessage
	err error
}

// NewMockQuiz creates an empty MockQuiz.
func NewMockQuiz() *MockQuiz {
	return &MockQuiz{}
}

// QueueGenerate appends a canned generate response.
func (m *MockQuiz) QueueGenerate(raw string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generates = append(m.generates, mockResponse{raw: json.RawMessage(raw), err: err})
}

// QueueValidate appends a canned validate response.
func (m *MockQuiz) QueueValidate(raw string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validates = append(m.validates, mockResponse{raw: json.RawMessage(raw), err: err})
}

func (m *MockQuiz) Generate(_ context.Context, v quiz.Variant, _ string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GenerateCalls = append(m.GenerateCalls, v)
	if len(m.generates) == 0 {
		return nil, &ErrGenerate{Variant: v.String(), Err: io.ErrUnexpectedEOF}
	}
	resp := m.generates[0]
	m.generates = m.generates[1:]
	if resp.err != nil {
		return nil, &ErrGenerate{Variant: v.String(), Err: resp.err}
	}
	return resp.raw, nil
}

func (m *MockQuiz) Validate(_ context.Context, v quiz.Variant, body any) (json.RawMessage, error) {
	return m.nextValidate(v, ValidateCall{Variant: v, Body: body})
}

func (m *MockQuiz) ValidatePronunciation(_ context.Context, _, _ string, clip []byte) (json.RawMessage, error) {
	return m.nextValidate(quiz.VariantPronunciation, ValidateCall{Variant: quiz.VariantPronunciation, Clip: clip})
}

func (m *MockQuiz) nextValidate(v quiz.Variant, call ValidateCall) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ValidateCalls = append(m.ValidateCalls, call)
	if len(m.validates) == 0 {
		return nil, &ErrValidate{Variant: v.String(), Err: io.ErrUnexpectedEOF}
	}
	resp := m.validates[0]
	m.validates = m.validates[1:]
	if resp.err != nil {
		return nil, &ErrValidate{Variant: v.String(), Err: resp.err}
	}
	return resp.raw, nil
}
