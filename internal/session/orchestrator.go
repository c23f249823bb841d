package session

import (
	"context"
	"errors"

	"github.com/abhisek/lingua/internal/backend"
	"github.com/abhisek/lingua/internal/quiz"
	"github.com/abhisek/lingua/internal/stream"
)

// SendText submits a chat turn and consumes the resulting stream to
// completion. An empty text is the continue token: it resumes the
// conversation without logging a user turn, and is only legal when the
// session is idle or a quiz has just terminated. SendText returns once the
// stream has ended and, if a quiz signal arrived, the quiz generation has
// resolved.
func (o *Orchestrator) SendText(ctx context.Context, text string) error {
	o.mu.Lock()
	if o.closed {
		st := o.state
		o.mu.Unlock()
		return &ErrProtocol{Op: "send", State: st, Reason: "session closed"}
	}
	if o.streaming {
		st := o.state
		o.mu.Unlock()
		return &ErrProtocol{Op: "send", State: st, Reason: "a chat stream is already open"}
	}
	if text == "" {
		if o.state != StateIdle && o.state != StateQuizTerminal {
			st := o.state
			o.mu.Unlock()
			return &ErrProtocol{Op: "send", State: st, Reason: "continue token is only valid when idle or after a quiz has finished"}
		}
	} else if o.state == StateQuizPending || o.state == StateQuizSubmitted {
		st := o.state
		o.mu.Unlock()
		return &ErrProtocol{Op: "send", State: st, Reason: "a quiz call is still in flight"}
	}

	// Moving on from a terminal quiz: vacate its live slot and cancel any
	// pending auto-advance so the conversation cannot resume twice.
	if o.state == StateQuizTerminal {
		if live := o.instances.Live(); live != nil {
			o.cancelTimerLocked(live.ID)
			o.instances.ClearLive(live.ID)
		}
	}

	if text != "" {
		o.turns = append(o.turns, Turn{Role: RoleUser, Text: text})
	}
	o.turns = append(o.turns, Turn{Role: RoleAssistant, Streaming: true})
	o.streaming = true
	o.state = StateStreaming
	o.mu.Unlock()

	return o.consume(ctx, text)
}

// consume opens the chat stream and drives it to its end, accumulating
// chunks into the tail assistant turn and registering quiz signals. Quiz
// generation for the last surviving signal is deferred until the stream is
// done, so the teacher's full message lands before the quiz takes over.
func (o *Orchestrator) consume(ctx context.Context, message string) error {
	body, err := o.chat.Chat(ctx, o.id, message)
	if err != nil {
		o.failStream(err)
		return err
	}
	defer body.Close()

	dec := stream.NewDecoder(body, o.log)
	var pendingID string
	var streamErr error
	dec.Events(ctx)(func(ev stream.Event, err error) bool {
		if err != nil {
			streamErr = &backend.ErrTransport{Err: err}
			return false
		}
		switch e := ev.(type) {
		case stream.ChunkEvent:
			o.appendChunk(e.Text)
		case stream.QuizSignalEvent:
			v, perr := quiz.ParseVariant(e.TestType)
			if perr != nil {
				o.log.WithField("test_type", e.TestType).Warn("ignoring unknown quiz signal")
				return true
			}
			if id, ok := o.registerSignal(v); ok {
				pendingID = id
			}
		case stream.ErrorEvent:
			streamErr = &backend.ErrTransport{Err: errors.New(e.Message)}
			return false
		case stream.DoneEvent:
			return false
		}
		return true
	})

	if streamErr != nil {
		// A signal with no generated content is dead on arrival; fail the
		// instance and free the slot rather than leaving it pending forever.
		if pendingID != "" {
			if err := o.instances.SetError(pendingID, "chat stream failed before quiz generation"); err == nil {
				o.instances.ClearLive(pendingID)
				o.notifyQuiz(pendingID)
			}
		}
		o.failStream(streamErr)
		return streamErr
	}

	o.finishStream()

	if pendingID != "" {
		o.generate(ctx, pendingID)
	}
	return nil
}

// registerSignal creates the instance for a mid-stream quiz signal. A later
// signal is authoritative: whatever holds the live slot is superseded first.
func (o *Orchestrator) registerSignal(v quiz.Variant) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if live := o.instances.Live(); live != nil {
		o.cancelTimerLocked(live.ID)
		if live.Status.Live() {
			if err := o.instances.Supersede(live.ID); err != nil {
				o.log.WithError(err).WithField("quiz", live.ID).Warn("could not supersede quiz")
				return "", false
			}
			o.notifyQuiz(live.ID)
		} else {
			o.instances.ClearLive(live.ID)
		}
	}

	inst, err := o.instances.Create(v)
	if err != nil {
		o.log.WithError(err).Warn("could not register quiz signal")
		return "", false
	}
	o.log.WithField("quiz", inst.ID).WithField("variant", v).Debug("quiz signal registered")
	o.notifyQuiz(inst.ID)
	return inst.ID, true
}

// generate drives one instance through loading to ready, or to error. It
// never retries: a failed generate leaves a visible errored quiz and lets
// the auto-advance resume the conversation.
func (o *Orchestrator) generate(ctx context.Context, id string) {
	inst := o.instances.Get(id)
	if inst == nil {
		return
	}
	if err := o.instances.MarkLoading(id); err != nil {
		return
	}
	o.setState(StateQuizPending)
	o.notifyQuiz(id)

	raw, err := o.quizzes.Generate(ctx, inst.Variant, o.id)
	var data quiz.Data
	if err == nil {
		data, err = quiz.ParseGenerateResponse(inst.Variant, raw)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.log.WithError(err).WithField("quiz", id).Error("quiz generation failed")
		if serr := o.instances.SetError(id, err.Error()); serr != nil {
			o.log.WithError(serr).Warn("could not mark quiz errored")
			return
		}
		o.state = o.resolveStateLocked()
		o.scheduleAdvanceLocked(id, inst.Variant)
		o.notifyQuiz(id)
		return
	}
	if serr := o.instances.SetReady(id, data); serr != nil {
		// Superseded while the call was in flight.
		o.state = o.resolveStateLocked()
		return
	}
	o.state = StateQuizLive
	o.notifyQuiz(id)
}

func (o *Orchestrator) appendChunk(text string) {
	o.mu.Lock()
	if n := len(o.turns); n > 0 && o.turns[n-1].Streaming {
		o.turns[n-1].Text += text
	}
	o.mu.Unlock()
	if o.cb.OnChunk != nil {
		o.cb.OnChunk(text)
	}
}

// finishStream freezes the tail assistant turn and resolves the state from
// whatever occupies the live-quiz slot.
func (o *Orchestrator) finishStream() {
	o.mu.Lock()
	var done Turn
	var finished bool
	if n := len(o.turns); n > 0 && o.turns[n-1].Streaming {
		o.turns[n-1].Streaming = false
		done = o.turns[n-1]
		finished = true
	}
	o.streaming = false
	o.state = o.resolveStateLocked()
	o.mu.Unlock()

	if finished && o.cb.OnTurnDone != nil {
		o.cb.OnTurnDone(done)
	}
}

// failStream records a transport failure on the tail turn and closes it.
func (o *Orchestrator) failStream(err error) {
	o.mu.Lock()
	if n := len(o.turns); n > 0 && o.turns[n-1].Streaming {
		o.turns[n-1].Streaming = false
		o.turns[n-1].Err = err.Error()
	}
	o.streaming = false
	o.state = o.resolveStateLocked()
	o.mu.Unlock()

	o.log.WithError(err).Error("chat stream failed")
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// resolveStateLocked derives the session state from the live-quiz slot.
// Callers hold o.mu.
func (o *Orchestrator) resolveStateLocked() State {
	live := o.instances.Live()
	if live == nil {
		return StateIdle
	}
	switch live.Status {
	case quiz.StatusRequested, quiz.StatusLoading:
		return StateQuizPending
	case quiz.StatusReady:
		return StateQuizLive
	case quiz.StatusSubmitted:
		return StateQuizSubmitted
	default:
		return StateQuizTerminal
	}
}
