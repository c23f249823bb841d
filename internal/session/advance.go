package session

import (
	"time"

	"github.com/abhisek/lingua/internal/quiz"
)

// scheduleAdvanceLocked arms the auto-advance timer for a terminal
// instance. At most one timer ever exists per instance; a second terminal
// event for the same ID is a no-op. Callers hold o.mu.
func (o *Orchestrator) scheduleAdvanceLocked(id string, v quiz.Variant) {
	if o.closed {
		return
	}
	if _, ok := o.timers[id]; ok {
		return
	}
	d := o.advanceDelay(v)
	o.timers[id] = time.AfterFunc(d, func() { o.autoAdvance(id) })
	o.log.WithField("quiz", id).WithField("delay", d).Debug("auto-advance scheduled")
}

// cancelTimerLocked disarms a pending auto-advance. Callers hold o.mu. A
// timer whose callback already started re-checks the live slot under the
// lock and backs off.
func (o *Orchestrator) cancelTimerLocked(id string) {
	if t, ok := o.timers[id]; ok {
		t.Stop()
		delete(o.timers, id)
	}
}

// autoAdvance fires when a terminal quiz's delay elapses: it clears the
// live slot and resumes the conversation with a continue token. The guard
// re-checks that the instance still holds the slot, so a quiz the user
// already moved past, or one superseded meanwhile, advances nothing.
func (o *Orchestrator) autoAdvance(id string) {
	o.mu.Lock()
	delete(o.timers, id)
	if o.closed || o.streaming {
		o.mu.Unlock()
		return
	}
	live := o.instances.Live()
	if live == nil || live.ID != id || !live.Status.Terminal() {
		o.mu.Unlock()
		return
	}
	o.instances.ClearLive(id)
	o.state = StateIdle
	o.mu.Unlock()

	if o.cb.OnAutoAdvance != nil {
		o.cb.OnAutoAdvance(id)
	}
	o.log.WithField("quiz", id).Debug("auto-advancing conversation")
	if err := o.SendText(o.baseCtx, ""); err != nil {
		o.log.WithError(err).Warn("auto-advance continue failed")
	}
}
