// Package session implements the orchestration core of a tutoring
// conversation: the chat message log, the single live quiz instance, the
// suspend/resume protocol between chat turns and quizzes, and the
// auto-advance that resumes the conversation after a quiz terminates.
package session

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/abhisek/lingua/internal/quiz"
	"github.com/abhisek/lingua/internal/store"
)

// Role is the speaker of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry in the message log. Assistant turns are appended
// incrementally while Streaming is true and frozen on the done sentinel.
type Turn struct {
	Role      Role
	Text      string
	Streaming bool

	// Err is set when the turn records a transport failure instead of
	// assistant text.
	Err string
}

// State is the orchestrator's position in the chat/quiz cycle.
type State int

const (
	StateIdle          State = iota // no open chat request, no live quiz
	StateStreaming                  // chat request open, appending chunks
	StateQuizPending                // quiz signal seen, generate not finished
	StateQuizLive                   // quiz ready, awaiting the learner's answer
	StateQuizSubmitted              // validate call in flight
	StateQuizTerminal               // quiz completed or errored, advance pending
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateQuizPending:
		return "quiz-pending"
	case StateQuizLive:
		return "quiz-live"
	case StateQuizSubmitted:
		return "quiz-submitted"
	case StateQuizTerminal:
		return "quiz-terminal"
	}
	return "unknown"
}

// ChatStreamer opens the streaming chat endpoint.
type ChatStreamer interface {
	Chat(ctx context.Context, sessionID, message string) (io.ReadCloser, error)
}

// QuizBackend invokes the per-variant generate and validate contracts.
type QuizBackend interface {
	Generate(ctx context.Context, v quiz.Variant, sessionID string) (json.RawMessage, error)
	Validate(ctx context.Context, v quiz.Variant, reqBody any) (json.RawMessage, error)
	ValidatePronunciation(ctx context.Context, sessionID, referenceText string, clip []byte) (json.RawMessage, error)
}

// Callbacks are read-only notifications for a presentation layer. All are
// optional and must not call back into the orchestrator.
type Callbacks struct {
	// OnChunk fires for each assistant text fragment appended to the log.
	OnChunk func(text string)

	// OnTurnDone fires when an assistant turn is frozen.
	OnTurnDone func(turn Turn)

	// OnQuizStateChange fires on every quiz instance status change, with a
	// snapshot of the instance.
	OnQuizStateChange func(inst *quiz.Instance)

	// OnAutoAdvance fires when the auto-advance clears the live quiz and is
	// about to resume the conversation.
	OnAutoAdvance func(quizID string)
}

// Orchestrator owns all session state. It is the single writer of the
// message log, the quiz store, and the live-quiz reference; every mutation
// happens under one lock, and readers receive copies.
type Orchestrator struct {
	mu sync.Mutex

	id      string
	chat    ChatStreamer
	quizzes QuizBackend
	history store.ResultRepo
	log     *logrus.Entry
	cb      Callbacks

	turns     []Turn
	instances *quiz.Store
	state     State
	streaming bool
	closed    bool

	timers map[string]*time.Timer

	// now and advanceDelay are swappable for tests.
	now          func() time.Time
	advanceDelay func(quiz.Variant) time.Duration

	// baseCtx parents the requests issued by the auto-advance timer.
	baseCtx context.Context
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the structured logger.
func WithLogger(log *logrus.Entry) Option {
	return func(o *Orchestrator) { o.log = log }
}

// WithCallbacks installs presentation-layer notifications.
func WithCallbacks(cb Callbacks) Option {
	return func(o *Orchestrator) { o.cb = cb }
}

// WithHistory installs a quiz-result history sink. Appends are best-effort:
// a failed append never fails the validate flow.
func WithHistory(repo store.ResultRepo) Option {
	return func(o *Orchestrator) { o.history = repo }
}

// WithSessionID overrides the generated session ID.
func WithSessionID(id string) Option {
	return func(o *Orchestrator) { o.id = id }
}

// WithAdvanceDelay overrides the registry's auto-advance delays.
func WithAdvanceDelay(fn func(quiz.Variant) time.Duration) Option {
	return func(o *Orchestrator) { o.advanceDelay = fn }
}

// WithBaseContext sets the context parenting auto-advance requests.
func WithBaseContext(ctx context.Context) Option {
	return func(o *Orchestrator) { o.baseCtx = ctx }
}

// NewOrchestrator creates an idle session.
func NewOrchestrator(chat ChatStreamer, quizzes QuizBackend, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		id:        uuid.NewString(),
		chat:      chat,
		quizzes:   quizzes,
		instances: quiz.NewStore(),
		timers:    make(map[string]*time.Timer),
		now:       time.Now,
		baseCtx:   context.Background(),
		advanceDelay: func(v quiz.Variant) time.Duration {
			return quiz.SpecFor(v).AdvanceDelay
		},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = logrus.NewEntry(logrus.StandardLogger())
	}
	o.log = o.log.WithField("session", o.id)
	return o
}

// ID returns the session identifier.
func (o *Orchestrator) ID() string { return o.id }

// State returns the current orchestration state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Turns returns a copy of the message log.
func (o *Orchestrator) Turns() []Turn {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Turn, len(o.turns))
	copy(out, o.turns)
	return out
}

// LiveQuiz returns a snapshot of the live quiz instance, or nil.
func (o *Orchestrator) LiveQuiz() *quiz.Instance {
	return o.instances.Live()
}

// Quizzes returns snapshots of every quiz instance in creation order.
func (o *Orchestrator) Quizzes() []*quiz.Instance {
	return o.instances.Ordered()
}

// Close tears the session down: pending auto-advance timers are cancelled
// and further commands are rejected.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	for id, t := range o.timers {
		t.Stop()
		delete(o.timers, id)
	}
}

func (o *Orchestrator) notifyQuiz(id string) {
	if o.cb.OnQuizStateChange == nil {
		return
	}
	if inst := o.instances.Get(id); inst != nil {
		o.cb.OnQuizStateChange(inst)
	}
}
