// Package session owns the lifecycle of live trust resolutions: one session per
// incoming payment request, from resolution through authorization to release.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/congo-pay/payguard/internal/authorize"
	"github.com/congo-pay/payguard/internal/entrypoint"
	"github.com/congo-pay/payguard/internal/logging"
	"github.com/congo-pay/payguard/internal/metrics"
	"github.com/congo-pay/payguard/internal/notification"
	"github.com/congo-pay/payguard/internal/payrequest"
	"github.com/congo-pay/payguard/internal/trust"
)

const (
	DefaultTTL    = 5 * time.Minute
	notifyTimeout = 2 * time.Second
)

var (
	// ErrNotFound is returned for unknown or released sessions.
	ErrNotFound = errors.New("session not found")
	// ErrClosed is returned once the manager has shut down.
	ErrClosed = errors.New("session manager closed")
	// ErrAlreadyDecided is returned when a session was already authorized.
	ErrAlreadyDecided = errors.New("session already decided")
)

// CreateInput describes an incoming payment request.
type CreateInput struct {
	URI     string
	Handler string
	Caller  string
}

// View is a point-in-time snapshot of a session.
type View struct {
	ID           string
	URI          string
	Caller       string
	Entrypoint   entrypoint.Entrypoint
	Kind         payrequest.Kind
	State        trust.State
	CanAuthorize bool
	Cancelled    bool
	Outcome      *authorize.Outcome
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

type session struct {
	id         string
	caller     string
	request    payrequest.Request
	resolution *trust.Resolution
	createdAt  time.Time
	expiresAt  time.Time
	timer      *time.Timer

	mu      sync.Mutex
	outcome *authorize.Outcome
}

func (s *session) view() View {
	snap := s.resolution.Snapshot()
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		ID:           s.id,
		URI:          s.request.URI,
		Caller:       s.caller,
		Entrypoint:   snap.Entrypoint,
		Kind:         snap.Kind,
		State:        snap.State,
		CanAuthorize: snap.CanAuthorize,
		Cancelled:    snap.Cancelled,
		CreatedAt:    s.createdAt,
		ExpiresAt:    s.expiresAt,
	}
	if s.outcome != nil {
		out := *s.outcome
		v.Outcome = &out
	}
	return v
}

// Manager holds live sessions. It is safe for concurrent use.
type Manager struct {
	resolver   *trust.Resolver
	authorizer *authorize.Service
	notifier   notification.Notifier
	logger     *slog.Logger
	metrics    *metrics.Trust
	ttl        time.Duration

	baseCtx    context.Context
	cancelBase context.CancelFunc
	watchers   sync.WaitGroup

	mu       sync.Mutex
	sessions map[string]*session
	closed   bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL sets how long a session lives before it is cancelled.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithNotifier sets the event sink for state transitions and outcomes.
func WithNotifier(n notification.Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(t *metrics.Trust) Option {
	return func(m *Manager) { m.metrics = t }
}

// NewManager builds a Manager. authorizer may be nil to use the default service.
func NewManager(resolver *trust.Resolver, authorizer *authorize.Service, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		resolver:   resolver,
		authorizer: authorizer,
		logger:     logging.Discard(),
		ttl:        DefaultTTL,
		baseCtx:    ctx,
		cancelBase: cancel,
		sessions:   make(map[string]*session),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.authorizer == nil {
		m.authorizer = authorize.NewService(nil, m.logger)
	}
	return m
}

// Create parses the request, resolves its trust state and opens a session.
// Parse failures wrap payrequest.ErrInvalidRequest.
func (m *Manager) Create(_ context.Context, in CreateInput) (View, error) {
	req, err := payrequest.Parse(in.URI)
	if err != nil {
		return View{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return View{}, ErrClosed
	}

	res := m.resolver.Resolve(m.baseCtx, trust.Input{
		Entrypoint: entrypoint.Classify(in.Handler),
		Caller:     in.Caller,
		Request:    req,
	})
	now := time.Now().UTC()
	s := &session{
		id:         uuid.NewString(),
		caller:     in.Caller,
		request:    req,
		resolution: res,
		createdAt:  now,
		expiresAt:  now.Add(m.ttl),
	}
	id := s.id
	s.timer = time.AfterFunc(m.ttl, func() { m.expire(id) })
	m.sessions[id] = s
	m.metrics.SessionOpened()

	updates := res.Subscribe()
	m.watchers.Add(1)
	go m.watch(s, updates)

	m.logger.Info("session opened",
		slog.String("session_id", id),
		slog.String("entrypoint", res.Entrypoint().String()),
		slog.String("kind", req.Kind.String()),
		slog.String("caller", in.Caller),
	)
	return s.view(), nil
}

func (m *Manager) watch(s *session, updates <-chan trust.State) {
	defer m.watchers.Done()
	for state := range updates {
		m.notify(notification.Message{
			Kind:        notification.KindVerificationState,
			SessionID:   s.id,
			Destination: s.caller,
			Body:        state.String(),
		})
	}
}

func (m *Manager) notify(msg notification.Message) {
	if m.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := m.notifier.Send(ctx, msg); err != nil {
		m.logger.Warn("notification failed",
			slog.String("kind", msg.Kind),
			slog.String("session_id", msg.SessionID),
			slog.Any("error", err),
		)
	}
}

func (m *Manager) lookup(id string) (*session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Get returns the session view. With wait > 0 it first waits up to wait for
// an outstanding verification to finish.
func (m *Manager) Get(ctx context.Context, id string, wait time.Duration) (View, error) {
	s, err := m.lookup(id)
	if err != nil {
		return View{}, err
	}
	if wait > 0 {
		waitCtx, cancel := context.WithTimeout(ctx, wait)
		defer cancel()
		// Timing out is not an error; the caller sees the current state.
		_ = s.resolution.Wait(waitCtx)
	}
	return s.view(), nil
}

// Authorize applies action to the session. Approvals fail with
// authorize.ErrNotPermitted while the gate is closed. Any outstanding
// verification is cancelled once a decision is recorded.
func (m *Manager) Authorize(ctx context.Context, id string, action authorize.Action) (View, error) {
	s, err := m.lookup(id)
	if err != nil {
		return View{}, err
	}

	s.mu.Lock()
	if s.outcome != nil {
		s.mu.Unlock()
		return View{}, ErrAlreadyDecided
	}
	out, err := m.authorizer.Authorize(ctx, s.resolution, s.request, action)
	if err != nil {
		s.mu.Unlock()
		return View{}, err
	}
	s.outcome = &out
	s.mu.Unlock()

	s.resolution.Cancel()
	m.notify(notification.Message{
		Kind:        notification.KindAuthorization,
		SessionID:   s.id,
		Destination: s.caller,
		Body:        out.Code.String(),
	})
	return s.view(), nil
}

// Cancel releases a session, cancelling any outstanding verification.
// Releasing an unknown session is a no-op.
func (m *Manager) Cancel(_ context.Context, id string) error {
	m.release(id, "cancelled")
	return nil
}

func (m *Manager) expire(id string) {
	m.release(id, "expired")
}

func (m *Manager) release(id, reason string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	m.closeSession(s, reason)
}

func (m *Manager) closeSession(s *session, reason string) {
	s.timer.Stop()
	s.resolution.Cancel()
	m.metrics.SessionClosed()

	s.mu.Lock()
	if s.outcome == nil {
		out := authorize.Canceled()
		s.outcome = &out
	}
	code := s.outcome.Code
	s.mu.Unlock()

	m.notify(notification.Message{
		Kind:        notification.KindSessionClosed,
		SessionID:   s.id,
		Destination: s.caller,
		Body:        fmt.Sprintf("%s: %s", reason, code),
	})
	m.logger.Info("session closed",
		slog.String("session_id", s.id),
		slog.String("reason", reason),
		slog.String("result", code.String()),
	)
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close cancels every live session and waits for their watchers to exit.
// The manager rejects new sessions afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	sessions := make([]*session, 0, len(m.sessions))
	for id, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	m.cancelBase()
	for _, s := range sessions {
		m.closeSession(s, "shutdown")
	}
	m.watchers.Wait()
}
