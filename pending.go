package mcup

import (
	"fmt"
	"sync"
	"time"
)

// callResult is the single resolution of a pending call: a raw result payload
// or an error, never both.
type callResult struct {
	result []byte
	err    error
}

// pendingCall is one in-flight request awaiting its response. The done channel
// is buffered with capacity 1 and receives exactly one callResult; resolution
// is claimed under the registry lock, so no second send is possible.
type pendingCall struct {
	id      RequestID
	key     string
	created time.Time
	done    chan callResult
}

// pendingCalls tracks in-flight requests by normalized correlation ID. It is
// the one piece of state shared between the caller goroutines and the read
// loop, guarded by a single mutex.
type pendingCalls struct {
	mu     sync.Mutex
	closed bool
	calls  map[string]*pendingCall
}

func newPendingCalls() *pendingCalls {
	return &pendingCalls{calls: make(map[string]*pendingCall)}
}

// register creates a fresh unresolved entry for id. It fails if the registry
// has been closed or if an entry for the same ID is still outstanding.
func (p *pendingCalls) register(id RequestID) (*pendingCall, error) {
	key, err := normalizeID(id.Value)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, NewCanceledError("session closed", nil)
	}
	if _, exists := p.calls[key]; exists {
		return nil, fmt.Errorf("duplicate request ID: %v", id.Value)
	}

	pc := &pendingCall{
		id:      id,
		key:     key,
		created: time.Now(),
		done:    make(chan callResult, 1),
	}
	p.calls[key] = pc
	return pc, nil
}

// resolve completes the entry for id with res and removes it. Returns false
// if no unresolved entry matched, which covers both late duplicates and
// responses to requests this session never sent; the caller logs those and
// drops them.
//
// The entry is claimed by deleting it under the lock, then the buffered send
// happens outside the lock. Claim-then-send guarantees at most one resolution
// per call even when resolve, cancel, and cancelAll race.
func (p *pendingCalls) resolve(id RequestID, res callResult) bool {
	key, err := normalizeID(id.Value)
	if err != nil {
		return false
	}

	p.mu.Lock()
	pc, ok := p.calls[key]
	if ok {
		delete(p.calls, key)
	}
	p.mu.Unlock()

	if !ok {
		return false
	}
	pc.done <- res
	return true
}

// cancel resolves the entry for id with err if it is still unresolved.
// Other pending calls are untouched.
func (p *pendingCalls) cancel(id RequestID, err error) bool {
	return p.resolve(id, callResult{err: err})
}

// drop removes the entry for id without resolving it. Used when the send
// itself failed and the registering goroutine reports the error directly.
func (p *pendingCalls) drop(id RequestID) {
	key, err := normalizeID(id.Value)
	if err != nil {
		return
	}
	p.mu.Lock()
	delete(p.calls, key)
	p.mu.Unlock()
}

// cancelAll resolves every outstanding entry with err and marks the registry
// closed so no further registrations are accepted. Called on session close so
// no caller blocks past Close returning.
func (p *pendingCalls) cancelAll(err error) {
	p.mu.Lock()
	p.closed = true
	claimed := make([]*pendingCall, 0, len(p.calls))
	for key, pc := range p.calls {
		claimed = append(claimed, pc)
		delete(p.calls, key)
	}
	p.mu.Unlock()

	for _, pc := range claimed {
		pc.done <- callResult{err: err}
	}
}

// size reports the number of outstanding calls.
func (p *pendingCalls) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}
