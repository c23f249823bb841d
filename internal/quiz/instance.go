package quiz

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a quiz instance. Transitions only move
// forward: requested → loading → ready → submitted → completed, with a side
// exit to error from loading or submitted, and superseded as the terminal
// state for an instance abandoned when a newer quiz signal arrives.
type Status int

const (
	StatusRequested Status = iota // signal seen, generate not yet started
	StatusLoading                 // generate call in flight
	StatusReady                   // prompt payload available, awaiting answer
	StatusSubmitted               // validate call in flight
	StatusCompleted               // result recorded
	StatusError                   // generate or validate failed
	StatusSuperseded              // abandoned in favor of a newer instance
)

func (s Status) String() string {
	switch s {
	case StatusRequested:
		return "requested"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusSubmitted:
		return "submitted"
	case StatusCompleted:
		return "completed"
	case StatusError:
		return "error"
	case StatusSuperseded:
		return "superseded"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusSuperseded
}

// Live reports whether an instance in this status holds the session's
// single live-quiz slot.
func (s Status) Live() bool {
	return s == StatusRequested || s == StatusLoading || s == StatusReady || s == StatusSubmitted
}

// legalTransitions is the forward-only transition table.
var legalTransitions = map[Status][]Status{
	StatusRequested: {StatusLoading, StatusError, StatusSuperseded},
	StatusLoading:   {StatusReady, StatusError, StatusSuperseded},
	StatusReady:     {StatusSubmitted, StatusSuperseded},
	StatusSubmitted: {StatusCompleted, StatusError, StatusSuperseded},
}

func transitionAllowed(from, to Status) bool {
	for _, t := range legalTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// ErrIllegalTransition reports a rejected lifecycle transition.
type ErrIllegalTransition struct {
	ID   string
	From Status
	To   Status
}

func (e *ErrIllegalTransition) Error() string {
	return fmt.Sprintf("quiz %s: illegal transition %s → %s", e.ID, e.From, e.To)
}

// Instance is one occurrence of a quiz exercise. The ID is assigned exactly
// once at creation and never reused. Data is set when the instance becomes
// ready; Result at most once, when it completes.
type Instance struct {
	ID      string
	Variant Variant
	Status  Status
	Data    Data
	Result  Result

	// Err holds the failure message when Status is StatusError.
	Err string

	CreatedAt time.Time

	// ReadyAt is when the instance became ready. The reveal-delay guard for
	// content-reveal variants is measured from this point.
	ReadyAt time.Time
}
