package session

import "fmt"

// ErrProtocol reports a command rejected because the session is not in a
// state that accepts it. The session is left untouched: no turn is logged,
// no quiz instance changes status, nothing is sent to the backend.
type ErrProtocol struct {
	Op     string
	State  State
	Reason string
}

func (e *ErrProtocol) Error() string {
	return fmt.Sprintf("%s rejected in state %s: %s", e.Op, e.State, e.Reason)
}
