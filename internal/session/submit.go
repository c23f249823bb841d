package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/abhisek/lingua/internal/quiz"
	"github.com/abhisek/lingua/internal/store"
)

// Submit scores the learner's answer against the live quiz. It is only
// legal while a ready quiz is awaiting an answer, and for content-reveal
// variants only after the reveal window has elapsed. Exactly one result is
// recorded per instance; the validate call is never repeated.
func (o *Orchestrator) Submit(ctx context.Context, ans quiz.Answer) (quiz.Result, error) {
	o.mu.Lock()
	if o.closed {
		st := o.state
		o.mu.Unlock()
		return nil, &ErrProtocol{Op: "submit", State: st, Reason: "session closed"}
	}
	inst := o.instances.Live()
	if o.state != StateQuizLive || inst == nil || inst.Status != quiz.StatusReady {
		st := o.state
		o.mu.Unlock()
		return nil, &ErrProtocol{Op: "submit", State: st, Reason: "no quiz is awaiting an answer"}
	}

	spec := quiz.SpecFor(inst.Variant)
	if spec.RevealDelay > 0 && o.now().Before(inst.ReadyAt.Add(spec.RevealDelay)) {
		o.mu.Unlock()
		return nil, &ErrProtocol{
			Op:     "submit",
			State:  StateQuizLive,
			Reason: fmt.Sprintf("answers open %s after the content appears", spec.RevealDelay),
		}
	}

	var reqBody any
	clip, isAudio := ans.(quiz.AudioAnswer)
	if inst.Variant == quiz.VariantPronunciation {
		if !isAudio {
			o.mu.Unlock()
			return nil, &ErrProtocol{Op: "submit", State: StateQuizLive, Reason: "pronunciation expects a recorded clip"}
		}
	} else {
		var err error
		reqBody, err = quiz.BuildValidateRequest(o.id, inst.Data, ans)
		if err != nil {
			o.mu.Unlock()
			return nil, &ErrProtocol{Op: "submit", State: StateQuizLive, Reason: err.Error()}
		}
	}

	if err := o.instances.MarkSubmitted(inst.ID); err != nil {
		o.mu.Unlock()
		return nil, err
	}
	o.state = StateQuizSubmitted
	o.notifyQuiz(inst.ID)
	o.mu.Unlock()

	var raw json.RawMessage
	var err error
	if isAudio {
		ref, _ := inst.Data.(quiz.PronunciationData)
		raw, err = o.quizzes.ValidatePronunciation(ctx, o.id, ref.Sentence, clip.WAV)
	} else {
		raw, err = o.quizzes.Validate(ctx, inst.Variant, reqBody)
	}
	var res quiz.Result
	if err == nil {
		res, err = quiz.ParseValidateResponse(inst.Variant, raw)
	}

	o.mu.Lock()
	if err != nil {
		o.log.WithError(err).WithField("quiz", inst.ID).Error("quiz validation failed")
		if serr := o.instances.SetError(inst.ID, err.Error()); serr != nil {
			o.log.WithError(serr).Warn("could not mark quiz errored")
		} else {
			o.scheduleAdvanceLocked(inst.ID, inst.Variant)
		}
		o.state = o.resolveStateLocked()
		o.notifyQuiz(inst.ID)
		o.mu.Unlock()
		return nil, err
	}

	if serr := o.instances.SetCompleted(inst.ID, res); serr != nil {
		o.state = o.resolveStateLocked()
		o.mu.Unlock()
		return nil, serr
	}
	o.state = StateQuizTerminal
	o.scheduleAdvanceLocked(inst.ID, inst.Variant)
	o.notifyQuiz(inst.ID)
	o.mu.Unlock()

	o.recordResult(ctx, inst, ans, res)
	return res, nil
}

// SubmitAudio scores a recorded clip against the live pronunciation quiz.
// wav is a complete WAV-framed clip.
func (o *Orchestrator) SubmitAudio(ctx context.Context, wav []byte) (quiz.Result, error) {
	return o.Submit(ctx, quiz.AudioAnswer{WAV: wav})
}

// recordResult appends the outcome to the history log. Best-effort: a
// failed append is logged and the result stands.
func (o *Orchestrator) recordResult(ctx context.Context, inst *quiz.Instance, ans quiz.Answer, res quiz.Result) {
	if o.history == nil {
		return
	}
	rec := store.Record{
		SessionID: o.id,
		QuizID:    inst.ID,
		Variant:   inst.Variant.String(),
		Answer:    answerText(ans),
		Score:     res.Score(),
		Passed:    res.Passed(),
		CreatedAt: o.now(),
	}
	if detail, err := json.Marshal(res); err == nil {
		rec.Detail = string(detail)
	}
	if err := o.history.Append(ctx, rec); err != nil {
		o.log.WithError(err).Warn("quiz history append failed")
	}
}

func answerText(ans quiz.Answer) string {
	switch a := ans.(type) {
	case quiz.TextAnswer:
		return a.Text
	case quiz.MatchAnswer:
		parts := make([]string, 0, len(a.Matches))
		for _, p := range a.Matches {
			parts = append(parts, p.Spanish+"="+p.English)
		}
		return strings.Join(parts, ", ")
	case quiz.AudioAnswer:
		return "(recorded audio)"
	}
	return ""
}
