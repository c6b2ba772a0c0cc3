package checkout

import "sync"

// refState tracks how far a payment reference has progressed through
// materialization.
type refState int

const (
	refInProgress refState = iota
	refDone
)

// RefRegistry deduplicates materialization by payment reference. The gateway
// confirmation event can fire more than once; a reference is handed to the
// materialization step at most once.
type RefRegistry struct {
	mu   sync.Mutex
	refs map[string]refState
}

// NewRefRegistry creates an empty registry.
func NewRefRegistry() *RefRegistry {
	return &RefRegistry{refs: make(map[string]refState)}
}

// Begin reserves a reference for materialization. It returns
// (first=true, done=false) when the caller won the reservation,
// (false, false) when another materialization is in progress, and
// (false, true) when the reference has already been materialized.
func (r *RefRegistry) Begin(ref string) (first, done bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch state, ok := r.refs[ref]; {
	case !ok:
		r.refs[ref] = refInProgress
		return true, false
	case state == refDone:
		return false, true
	default:
		return false, false
	}
}

// Finish marks a reserved reference as materialized.
func (r *RefRegistry) Finish(ref string) {
	r.mu.Lock()
	r.refs[ref] = refDone
	r.mu.Unlock()
}

// Release drops a failed reservation so an explicit user retry can attempt
// materialization again.
func (r *RefRegistry) Release(ref string) {
	r.mu.Lock()
	delete(r.refs, ref)
	r.mu.Unlock()
}
