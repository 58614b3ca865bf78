package trust

import (
	"context"
	"sync"

	"github.com/congo-pay/payguard/internal/entrypoint"
	"github.com/congo-pay/payguard/internal/payrequest"
)

// A Resolution publishes at most two states: the synchronous one and, on the
// asynchronous path, a terminal one.
const maxPublications = 2

// Snapshot is a point-in-time view of a Resolution.
type Snapshot struct {
	Entrypoint   entrypoint.Entrypoint
	Kind         payrequest.Kind
	State        State
	CanAuthorize bool
	Cancelled    bool
}

// Resolution is the trust decision for one incoming request. It is owned by
// a single flow, which must call Cancel when it abandons the request.
type Resolution struct {
	entrypoint entrypoint.Entrypoint
	kind       payrequest.Kind

	// cancelTask is nil when no verification task was launched.
	cancelTask context.CancelFunc
	done       chan struct{}

	mu        sync.Mutex
	state     State
	history   []State
	cancelled bool
	subs      []chan State
}

func newResolution(in Input, state State) *Resolution {
	return &Resolution{
		entrypoint: in.Entrypoint,
		kind:       in.Request.Kind,
		state:      state,
		history:    []State{state},
		done:       make(chan struct{}),
	}
}

// Entrypoint returns the activation channel the request arrived through.
func (r *Resolution) Entrypoint() entrypoint.Entrypoint {
	return r.entrypoint
}

// Kind returns the kind of the request being resolved.
func (r *Resolution) Kind() payrequest.Kind {
	return r.kind
}

// State returns the current verification state.
func (r *Resolution) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// CanAuthorize reports whether an authorization step may be entered.
func (r *Resolution) CanAuthorize() bool {
	return CanAuthorize(r.State())
}

// Cancelled reports whether the resolution was abandoned before reaching a terminal state.
func (r *Resolution) Cancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled
}

// Snapshot returns the current state together with the immutable request facts.
func (r *Resolution) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		Entrypoint:   r.entrypoint,
		Kind:         r.kind,
		State:        r.state,
		CanAuthorize: CanAuthorize(r.state),
		Cancelled:    r.cancelled,
	}
}

// Subscribe returns a channel that first replays every state published so
// far and then yields later transitions, so a late subscriber still sees
// InProgress ahead of the terminal state. The channel is closed after a
// terminal state is delivered or when the resolution is cancelled.
func (r *Resolution) Subscribe() <-chan State {
	ch := make(chan State, maxPublications)

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.history {
		ch <- s
	}
	if r.cancelled || r.state.Terminal() {
		close(ch)
		return ch
	}
	r.subs = append(r.subs, ch)
	return ch
}

// Done is closed once no verification task is outstanding.
func (r *Resolution) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the verification task has finished or ctx is done.
func (r *Resolution) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel abandons the resolution. It interrupts an outstanding verification
// task and guarantees that no state is published after it returns. Calling
// Cancel with no task outstanding, or more than once, is a no-op.
func (r *Resolution) Cancel() {
	r.abandon()
	if r.cancelTask != nil {
		r.cancelTask()
	}
}

func (r *Resolution) abandon() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelled || r.state.Terminal() {
		return
	}
	r.cancelled = true
	r.closeSubscribers()
}

// publish records s and notifies subscribers. It reports false when the
// resolution was cancelled or already terminal, in which case nothing changes.
func (r *Resolution) publish(s State) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelled || r.state.Terminal() {
		return false
	}
	r.state = s
	r.history = append(r.history, s)
	for _, ch := range r.subs {
		select {
		case ch <- s:
		default:
		}
	}
	if s.Terminal() {
		r.closeSubscribers()
	}
	return true
}

func (r *Resolution) closeSubscribers() {
	for _, ch := range r.subs {
		close(ch)
	}
	r.subs = nil
}
