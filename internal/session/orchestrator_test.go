package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/lingua/internal/backend"
	"github.com/abhisek/lingua/internal/quiz"
	"github.com/abhisek/lingua/internal/store"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(log)
}

func newTestOrchestrator(t *testing.T, chat *backend.MockChat, quizzes *backend.MockQuiz, opts ...Option) *Orchestrator {
	t.Helper()
	opts = append([]Option{
		WithLogger(testLogger()),
		WithSessionID("test-session"),
		WithAdvanceDelay(func(quiz.Variant) time.Duration { return 10 * time.Millisecond }),
	}, opts...)
	o := NewOrchestrator(chat, quizzes, opts...)
	t.Cleanup(o.Close)
	return o
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

const readingGenerate = `{
	"success": true,
	"quiz": {"article_title": "El clima", "article_text": "El clima cambia rápido.", "question": "¿Qué cambia?"}
}`

const unitGenerate = `{
	"success": true,
	"quiz": {"sentence": "Yo ___ café."},
	"masked_word": "bebo"
}`

func TestSendText_StreamsIntoLog(t *testing.T) {
	chat := backend.NewMockChat(
		"data: {\"chunk\": \"Hola, \"}\n" +
			"data: {\"chunk\": \"¿cómo estás?\"}\n" +
			"data: {\"done\": true}\n")
	o := newTestOrchestrator(t, chat, backend.NewMockQuiz())

	require.NoError(t, o.SendText(context.Background(), "hola"))

	turns := o.Turns()
	require.Len(t, turns, 2)
	require.Equal(t, RoleUser, turns[0].Role)
	require.Equal(t, "hola", turns[0].Text)
	require.Equal(t, RoleAssistant, turns[1].Role)
	require.Equal(t, "Hola, ¿cómo estás?", turns[1].Text)
	require.False(t, turns[1].Streaming)
	require.Equal(t, StateIdle, o.State())
}

func TestSendText_TransportErrorMarksTurn(t *testing.T) {
	chat := backend.NewMockChat()
	chat.FailNext(errors.New("connection refused"))
	o := newTestOrchestrator(t, chat, backend.NewMockQuiz())

	err := o.SendText(context.Background(), "hola")
	var terr *backend.ErrTransport
	require.ErrorAs(t, err, &terr)

	turns := o.Turns()
	require.Len(t, turns, 2)
	require.NotEmpty(t, turns[1].Err)
	require.Equal(t, StateIdle, o.State())

	// The session stays usable.
	require.NoError(t, o.SendText(context.Background(), "sigo aquí"))
}

func TestSendText_InBandErrorStopsStream(t *testing.T) {
	chat := backend.NewMockChat(
		"data: {\"chunk\": \"Hola\"}\n" +
			"data: {\"error\": \"model overloaded\"}\n")
	o := newTestOrchestrator(t, chat, backend.NewMockQuiz())

	err := o.SendText(context.Background(), "hola")
	require.Error(t, err)
	turns := o.Turns()
	require.Equal(t, "Hola", turns[1].Text)
	require.Contains(t, turns[1].Err, "model overloaded")
}

func TestQuizSignal_GeneratesAfterStreamEnds(t *testing.T) {
	chat := backend.NewMockChat(
		"data: {\"test_type\": \"unit_completion\"}\n" +
			"data: {\"chunk\": \"¡A practicar!\"}\n" +
			"data: {\"done\": true}\n")
	quizzes := backend.NewMockQuiz()
	quizzes.QueueGenerate(unitGenerate, nil)
	o := newTestOrchestrator(t, chat, quizzes)

	require.NoError(t, o.SendText(context.Background(), "quiero practicar"))

	require.Equal(t, StateQuizLive, o.State())
	live := o.LiveQuiz()
	require.NotNil(t, live)
	require.Equal(t, quiz.VariantUnitCompletion, live.Variant)
	require.Equal(t, quiz.StatusReady, live.Status)
	require.Equal(t, "bebo", live.Data.(quiz.UnitCompletionData).MaskedWord)

	// Generation waited for the stream to finish, then ran exactly once.
	require.Equal(t, []quiz.Variant{quiz.VariantUnitCompletion}, quizzes.GenerateCalls)
}

func TestQuizSignal_UnknownVariantIgnored(t *testing.T) {
	chat := backend.NewMockChat(
		"data: {\"test_type\": \"crossword\"}\n" +
			"data: {\"chunk\": \"hmm\"}\n" +
			"data: {\"done\": true}\n")
	o := newTestOrchestrator(t, chat, backend.NewMockQuiz())

	require.NoError(t, o.SendText(context.Background(), "hola"))
	require.Equal(t, StateIdle, o.State())
	require.Nil(t, o.LiveQuiz())
}

func TestQuizSignal_LatestSupersedesEarlier(t *testing.T) {
	chat := backend.NewMockChat(
		"data: {\"test_type\": \"unit_completion\"}\n" +
			"data: {\"chunk\": \"Mejor otra cosa...\"}\n" +
			"data: {\"test_type\": \"reading\"}\n" +
			"data: {\"done\": true}\n")
	quizzes := backend.NewMockQuiz()
	quizzes.QueueGenerate(readingGenerate, nil)
	o := newTestOrchestrator(t, chat, quizzes)

	require.NoError(t, o.SendText(context.Background(), "hola"))

	all := o.Quizzes()
	require.Len(t, all, 2)
	require.Equal(t, quiz.StatusSuperseded, all[0].Status)
	require.Equal(t, quiz.VariantReading, all[1].Variant)
	require.Equal(t, quiz.StatusReady, all[1].Status)

	// Only the surviving signal was generated.
	require.Equal(t, []quiz.Variant{quiz.VariantReading}, quizzes.GenerateCalls)
}

func TestGenerateFailure_ErrorsInstanceWithoutRetry(t *testing.T) {
	chat := backend.NewMockChat(
		"data: {\"test_type\": \"podcast\"}\n" +
			"data: {\"done\": true}\n")
	quizzes := backend.NewMockQuiz()
	quizzes.QueueGenerate("", errors.New("tts unavailable"))
	o := newTestOrchestrator(t, chat, quizzes,
		WithAdvanceDelay(func(quiz.Variant) time.Duration { return time.Hour }))

	require.NoError(t, o.SendText(context.Background(), "hola"))

	live := o.LiveQuiz()
	require.NotNil(t, live)
	require.Equal(t, quiz.StatusError, live.Status)
	require.Contains(t, live.Err, "tts unavailable")
	require.Equal(t, StateQuizTerminal, o.State())
	require.Len(t, quizzes.GenerateCalls, 1)
}

func TestSubmit_HappyPathRecordsResultOnce(t *testing.T) {
	chat := backend.NewMockChat(
		"data: {\"test_type\": \"unit_completion\"}\n" +
			"data: {\"done\": true}\n")
	quizzes := backend.NewMockQuiz()
	quizzes.QueueGenerate(unitGenerate, nil)
	quizzes.QueueValidate(`{"success": true, "correct": true, "score": 1, "feedback": "¡Perfecto!"}`, nil)
	o := newTestOrchestrator(t, chat, quizzes,
		WithAdvanceDelay(func(quiz.Variant) time.Duration { return time.Hour }))

	require.NoError(t, o.SendText(context.Background(), "hola"))
	res, err := o.Submit(context.Background(), quiz.TextAnswer{Text: "bebo"})
	require.NoError(t, err)
	require.True(t, res.Passed())

	live := o.LiveQuiz()
	require.Equal(t, quiz.StatusCompleted, live.Status)
	require.Equal(t, StateQuizTerminal, o.State())
	require.Len(t, quizzes.ValidateCalls, 1)

	// A second submission must be rejected without another validate call.
	_, err = o.Submit(context.Background(), quiz.TextAnswer{Text: "bebo"})
	var perr *ErrProtocol
	require.ErrorAs(t, err, &perr)
	require.Len(t, quizzes.ValidateCalls, 1)
}

func TestSubmit_RejectedWithoutLiveQuiz(t *testing.T) {
	o := newTestOrchestrator(t, backend.NewMockChat(), backend.NewMockQuiz())
	_, err := o.Submit(context.Background(), quiz.TextAnswer{Text: "hola"})
	var perr *ErrProtocol
	require.ErrorAs(t, err, &perr)
}

func TestSubmit_RevealDelayGuard(t *testing.T) {
	chat := backend.NewMockChat(
		"data: {\"test_type\": \"reading\"}\n" +
			"data: {\"done\": true}\n")
	quizzes := backend.NewMockQuiz()
	quizzes.QueueGenerate(readingGenerate, nil)
	quizzes.QueueValidate(`{"success": true, "score": 8, "normalized_score": 0.8, "feedback": "Bien."}`, nil)
	o := newTestOrchestrator(t, chat, quizzes,
		WithAdvanceDelay(func(quiz.Variant) time.Duration { return time.Hour }))

	require.NoError(t, o.SendText(context.Background(), "hola"))
	require.Equal(t, StateQuizLive, o.State())

	// Inside the reveal window: rejected, nothing sent to the backend.
	_, err := o.Submit(context.Background(), quiz.TextAnswer{Text: "el clima"})
	var perr *ErrProtocol
	require.ErrorAs(t, err, &perr)
	require.Empty(t, quizzes.ValidateCalls)
	require.Equal(t, quiz.StatusReady, o.LiveQuiz().Status)

	// Once the window elapses the same submission is accepted.
	o.now = func() time.Time { return time.Now().Add(quiz.SpecFor(quiz.VariantReading).RevealDelay) }
	res, err := o.Submit(context.Background(), quiz.TextAnswer{Text: "el clima"})
	require.NoError(t, err)
	require.True(t, res.Passed())
}

func TestSubmit_ValidateFailureErrorsInstance(t *testing.T) {
	chat := backend.NewMockChat(
		"data: {\"test_type\": \"unit_completion\"}\n" +
			"data: {\"done\": true}\n")
	quizzes := backend.NewMockQuiz()
	quizzes.QueueGenerate(unitGenerate, nil)
	quizzes.QueueValidate("", errors.New("scoring timeout"))
	o := newTestOrchestrator(t, chat, quizzes,
		WithAdvanceDelay(func(quiz.Variant) time.Duration { return time.Hour }))

	require.NoError(t, o.SendText(context.Background(), "hola"))
	_, err := o.Submit(context.Background(), quiz.TextAnswer{Text: "bebo"})
	require.Error(t, err)

	live := o.LiveQuiz()
	require.Equal(t, quiz.StatusError, live.Status)
	require.Equal(t, StateQuizTerminal, o.State())
}

func TestSubmit_PronunciationUsesMultipart(t *testing.T) {
	chat := backend.NewMockChat(
		"data: {\"test_type\": \"pronunciation\"}\n" +
			"data: {\"done\": true}\n")
	quizzes := backend.NewMockQuiz()
	quizzes.QueueGenerate(`{"success": true, "quiz": {"sentence": "El gato duerme."}}`, nil)
	quizzes.QueueValidate(`{"success": true, "pronunciation_score": 85, "accuracy_score": 80, "score": 0.85}`, nil)
	o := newTestOrchestrator(t, chat, quizzes,
		WithAdvanceDelay(func(quiz.Variant) time.Duration { return time.Hour }))

	require.NoError(t, o.SendText(context.Background(), "hola"))

	// A typed answer is a protocol error for pronunciation.
	_, err := o.Submit(context.Background(), quiz.TextAnswer{Text: "el gato duerme"})
	var perr *ErrProtocol
	require.ErrorAs(t, err, &perr)

	clip := []byte{0x52, 0x49, 0x46, 0x46}
	res, err := o.Submit(context.Background(), quiz.AudioAnswer{WAV: clip})
	require.NoError(t, err)
	require.True(t, res.Passed())
	require.Len(t, quizzes.ValidateCalls, 1)
	require.Equal(t, clip, quizzes.ValidateCalls[0].Clip)
}

func TestContinueToken_OnlyValidIdleOrTerminal(t *testing.T) {
	chat := backend.NewMockChat(
		"data: {\"test_type\": \"unit_completion\"}\n" +
			"data: {\"done\": true}\n")
	quizzes := backend.NewMockQuiz()
	quizzes.QueueGenerate(unitGenerate, nil)
	o := newTestOrchestrator(t, chat, quizzes,
		WithAdvanceDelay(func(quiz.Variant) time.Duration { return time.Hour }))

	// Idle: allowed.
	require.NoError(t, o.SendText(context.Background(), ""))

	// Quiz live: suppressed.
	require.NoError(t, o.SendText(context.Background(), "hola"))
	require.Equal(t, StateQuizLive, o.State())
	before := len(o.Turns())
	err := o.SendText(context.Background(), "")
	var perr *ErrProtocol
	require.ErrorAs(t, err, &perr)

	// The rejection left no trace: no turn logged, nothing sent.
	require.Len(t, o.Turns(), before)
	require.Equal(t, StateQuizLive, o.State())
}

func TestAutoAdvance_ResumesConversationOnce(t *testing.T) {
	chat := backend.NewMockChat(
		"data: {\"test_type\": \"unit_completion\"}\n"+
			"data: {\"done\": true}\n",
		"data: {\"chunk\": \"¡Seguimos!\"}\ndata: {\"done\": true}\n")
	quizzes := backend.NewMockQuiz()
	quizzes.QueueGenerate(unitGenerate, nil)
	quizzes.QueueValidate(`{"success": true, "correct": true, "score": 1}`, nil)

	var advanced []string
	var mu sync.Mutex
	o := newTestOrchestrator(t, chat, quizzes, WithCallbacks(Callbacks{
		OnAutoAdvance: func(id string) {
			mu.Lock()
			advanced = append(advanced, id)
			mu.Unlock()
		},
	}))

	require.NoError(t, o.SendText(context.Background(), "hola"))
	_, err := o.Submit(context.Background(), quiz.TextAnswer{Text: "bebo"})
	require.NoError(t, err)

	waitFor(t, func() bool { return o.State() == StateIdle }, "auto-advance never resumed the conversation")
	waitFor(t, func() bool {
		msgs := chat.Sent()
		return len(msgs) == 2 && msgs[1] == ""
	}, "continue token not sent")

	// Give a second timer a chance to misfire.
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, advanced, 1)
	require.Len(t, chat.Sent(), 2)
	require.Nil(t, o.LiveQuiz())
}

func TestAutoAdvance_ManualSendCancelsTimer(t *testing.T) {
	chat := backend.NewMockChat(
		"data: {\"test_type\": \"unit_completion\"}\n"+
			"data: {\"done\": true}\n",
		"data: {\"done\": true}\n")
	quizzes := backend.NewMockQuiz()
	quizzes.QueueGenerate(unitGenerate, nil)
	quizzes.QueueValidate(`{"success": true, "correct": false, "score": 0}`, nil)
	o := newTestOrchestrator(t, chat, quizzes,
		WithAdvanceDelay(func(quiz.Variant) time.Duration { return 50 * time.Millisecond }))

	require.NoError(t, o.SendText(context.Background(), "hola"))
	_, err := o.Submit(context.Background(), quiz.TextAnswer{Text: "tomo"})
	require.NoError(t, err)
	require.Equal(t, StateQuizTerminal, o.State())

	// The user moves on before the timer fires.
	require.NoError(t, o.SendText(context.Background(), "otra pregunta"))

	time.Sleep(100 * time.Millisecond)
	require.Len(t, chat.Sent(), 2, "cancelled timer still sent a continue")
}

type fakeRepo struct {
	mu      sync.Mutex
	records []store.Record
	err     error
}

func (f *fakeRepo) Append(_ context.Context, rec store.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeRepo) BySession(context.Context, string) ([]store.Record, error) { return nil, nil }
func (f *fakeRepo) Recent(context.Context, int) ([]store.Record, error)      { return nil, nil }
func (f *fakeRepo) Stats(context.Context) ([]store.VariantStats, error)      { return nil, nil }
func (f *fakeRepo) Close() error                                             { return nil }

func TestSubmit_AppendsHistory(t *testing.T) {
	chat := backend.NewMockChat(
		"data: {\"test_type\": \"unit_completion\"}\n" +
			"data: {\"done\": true}\n")
	quizzes := backend.NewMockQuiz()
	quizzes.QueueGenerate(unitGenerate, nil)
	quizzes.QueueValidate(`{"success": true, "correct": true, "score": 1}`, nil)
	repo := &fakeRepo{}
	o := newTestOrchestrator(t, chat, quizzes,
		WithHistory(repo),
		WithAdvanceDelay(func(quiz.Variant) time.Duration { return time.Hour }))

	require.NoError(t, o.SendText(context.Background(), "hola"))
	_, err := o.Submit(context.Background(), quiz.TextAnswer{Text: "bebo"})
	require.NoError(t, err)

	repo.mu.Lock()
	defer repo.mu.Unlock()
	require.Len(t, repo.records, 1)
	rec := repo.records[0]
	require.Equal(t, "test-session", rec.SessionID)
	require.Equal(t, "unit_completion", rec.Variant)
	require.Equal(t, "bebo", rec.Answer)
	require.True(t, rec.Passed)
}

func TestSubmit_HistoryFailureDoesNotFailResult(t *testing.T) {
	chat := backend.NewMockChat(
		"data: {\"test_type\": \"unit_completion\"}\n" +
			"data: {\"done\": true}\n")
	quizzes := backend.NewMockQuiz()
	quizzes.QueueGenerate(unitGenerate, nil)
	quizzes.QueueValidate(`{"success": true, "correct": true, "score": 1}`, nil)
	repo := &fakeRepo{err: fmt.Errorf("disk full")}
	o := newTestOrchestrator(t, chat, quizzes,
		WithHistory(repo),
		WithAdvanceDelay(func(quiz.Variant) time.Duration { return time.Hour }))

	require.NoError(t, o.SendText(context.Background(), "hola"))
	res, err := o.Submit(context.Background(), quiz.TextAnswer{Text: "bebo"})
	require.NoError(t, err)
	require.True(t, res.Passed())
	require.Equal(t, quiz.StatusCompleted, o.LiveQuiz().Status)
}

func TestClose_RejectsFurtherCommands(t *testing.T) {
	o := newTestOrchestrator(t, backend.NewMockChat(), backend.NewMockQuiz())
	o.Close()

	var perr *ErrProtocol
	require.ErrorAs(t, o.SendText(context.Background(), "hola"), &perr)
	_, err := o.Submit(context.Background(), quiz.TextAnswer{Text: "x"})
	require.ErrorAs(t, err, &perr)
}
