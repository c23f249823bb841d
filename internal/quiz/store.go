package quiz

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the ordered collection of quiz instances for one session. It
// enforces the transition table and the liveness invariant: at most one
// instance may occupy the live slot (requested/loading/ready/submitted) at
// a time. The session orchestrator is the store's single writer; readers
// get snapshots.
type Store struct {
	mu        sync.Mutex
	instances map[string]*Instance
	order     []string
	liveID    string
}

// NewStore creates an empty instance store.
func NewStore() *Store {
	return &Store{instances: make(map[string]*Instance)}
}

// Create registers a new instance in requested status and makes it the live
// instance. It fails while a prior instance is still live: the caller must
// clear it first (complete, error, or supersede).
func (s *Store) Create(v Variant) (*Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.liveID != "" {
		if prior := s.instances[s.liveID]; prior != nil && prior.Status.Live() {
			return nil, fmt.Errorf("quiz %s is still live (%s)", prior.ID, prior.Status)
		}
	}

	inst := &Instance{
		ID:        uuid.NewString(),
		Variant:   v,
		Status:    StatusRequested,
		CreatedAt: time.Now(),
	}
	s.instances[inst.ID] = inst
	s.order = append(s.order, inst.ID)
	s.liveID = inst.ID
	return snapshot(inst), nil
}

// MarkLoading transitions requested → loading when the generate call starts.
func (s *Store) MarkLoading(id string) error {
	return s.transition(id, StatusLoading, func(*Instance) {})
}

// SetReady populates the prompt payload and transitions to ready. Applying
// the identical payload to an already-ready instance is a no-op, so a
// duplicated generate success cannot corrupt state.
func (s *Store) SetReady(id string, data Data) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.instances[id]
	if !ok {
		return fmt.Errorf("unknown quiz instance %s", id)
	}
	if inst.Status == StatusReady && reflect.DeepEqual(inst.Data, data) {
		return nil
	}
	if !transitionAllowed(inst.Status, StatusReady) {
		return &ErrIllegalTransition{ID: id, From: inst.Status, To: StatusReady}
	}
	inst.Status = StatusReady
	inst.Data = data
	inst.ReadyAt = time.Now()
	return nil
}

// MarkSubmitted transitions ready → submitted when the validate call starts.
func (s *Store) MarkSubmitted(id string) error {
	return s.transition(id, StatusSubmitted, func(*Instance) {})
}

// SetCompleted records the result. A result is set at most once: a second
// completion attempt is rejected as an illegal transition, never forwarded
// to the scoring collaborator.
func (s *Store) SetCompleted(id string, result Result) error {
	return s.transition(id, StatusCompleted, func(inst *Instance) {
		inst.Result = result
	})
}

// SetError moves the instance to the error terminal state.
func (s *Store) SetError(id string, msg string) error {
	return s.transition(id, StatusError, func(inst *Instance) {
		inst.Err = msg
	})
}

// Supersede force-terminates an abandoned instance when a newer quiz signal
// pre-empts it, instead of leaving it silently orphaned.
func (s *Store) Supersede(id string) error {
	return s.transition(id, StatusSuperseded, func(*Instance) {})
}

func (s *Store) transition(id string, to Status, apply func(*Instance)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.instances[id]
	if !ok {
		return fmt.Errorf("unknown quiz instance %s", id)
	}
	if !transitionAllowed(inst.Status, to) {
		return &ErrIllegalTransition{ID: id, From: inst.Status, To: to}
	}
	inst.Status = to
	apply(inst)
	// Superseded instances vacate the live slot immediately; completed and
	// errored ones keep it until the auto-advance clears it.
	if to == StatusSuperseded && s.liveID == id {
		s.liveID = ""
	}
	return nil
}

// ClearLive vacates the live slot. Called by the orchestrator once the
// auto-advance fires for a terminal instance.
func (s *Store) ClearLive(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.liveID == id {
		s.liveID = ""
	}
}

// Get returns a snapshot of the instance, or nil if unknown.
func (s *Store) Get(id string) *Instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[id]
	if !ok {
		return nil
	}
	return snapshot(inst)
}

// Live returns a snapshot of the instance holding the live slot, or nil.
func (s *Store) Live() *Instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.liveID == "" {
		return nil
	}
	return snapshot(s.instances[s.liveID])
}

// Ordered returns snapshots of all instances in creation order.
func (s *Store) Ordered() []*Instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Instance, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, snapshot(s.instances[id]))
	}
	return out
}

func snapshot(inst *Instance) *Instance {
	cp := *inst
	return &cp
}
