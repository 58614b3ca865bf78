package trust

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/congo-pay/payguard/internal/entrypoint"
	"github.com/congo-pay/payguard/internal/logging"
	"github.com/congo-pay/payguard/internal/metrics"
	"github.com/congo-pay/payguard/internal/payrequest"
)

const defaultMaxConcurrentVerifications = 16

// Input carries the facts a resolution is computed from.
type Input struct {
	Entrypoint entrypoint.Entrypoint
	// Caller identifies the process that activated the request. Empty when
	// the platform could not supply one.
	Caller  string
	Request payrequest.Request
}

// Decide applies the synchronous trust rules. InProgress means the origin
// can only be established by asynchronous verification of the request link.
func Decide(self string, in Input) State {
	switch in.Entrypoint {
	case entrypoint.NFC:
		// Only the system NFC dispatcher can deliver this entrypoint.
		return Verified
	case entrypoint.Internal:
		return Verified
	}
	switch {
	case in.Caller == "":
		return NotVerifiable
	case in.Caller == self:
		return Verified
	case in.Request.Kind != payrequest.TransactionRequest:
		// Transfers have no source metadata to verify against.
		return NotVerifiable
	default:
		return InProgress
	}
}

// Resolver computes Resolutions. It is safe for concurrent use; resolutions
// share nothing except the pool of verification slots.
type Resolver struct {
	self     string
	verifier Verifier
	slots    *semaphore.Weighted
	logger   *slog.Logger
	metrics  *metrics.Trust
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Trust) Option {
	return func(r *Resolver) { r.metrics = m }
}

// WithMaxConcurrentVerifications bounds the number of verification calls in flight.
func WithMaxConcurrentVerifications(n int64) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.slots = semaphore.NewWeighted(n)
		}
	}
}

// NewResolver builds a Resolver for the application identified by self.
func NewResolver(self string, verifier Verifier, opts ...Option) (*Resolver, error) {
	if strings.TrimSpace(self) == "" {
		return nil, errors.New("self identity is required")
	}
	if verifier == nil {
		return nil, errors.New("verifier is required")
	}
	r := &Resolver{
		self:     self,
		verifier: verifier,
		slots:    semaphore.NewWeighted(defaultMaxConcurrentVerifications),
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve computes the trust state for in. The returned Resolution already
// holds the synchronous state; when that state is InProgress a single
// verification task has been started. Cancelling ctx has the same effect as
// calling Cancel on the Resolution.
func (r *Resolver) Resolve(ctx context.Context, in Input) *Resolution {
	state := Decide(r.self, in)
	res := newResolution(in, state)
	r.metrics.IncResolution(in.Entrypoint.String(), state.String())
	r.logger.Debug("resolution started",
		slog.String("entrypoint", in.Entrypoint.String()),
		slog.String("kind", in.Request.Kind.String()),
		slog.String("caller", in.Caller),
		slog.String("state", state.String()),
	)

	if state != InProgress {
		close(res.done)
		return res
	}

	taskCtx, cancel := context.WithCancel(ctx)
	res.cancelTask = cancel
	go r.verify(taskCtx, res, in.Caller, in.Request.Link)
	return res
}

func (r *Resolver) verify(ctx context.Context, res *Resolution, origin, link string) {
	defer close(res.done)
	defer res.cancelTask()

	start := time.Now()
	if !r.slots.TryAcquire(1) {
		r.metrics.IncSlotWait()
		r.logger.Debug("verification waiting for a slot", slog.String("origin", origin))
		if err := r.slots.Acquire(ctx, 1); err != nil {
			r.abandoned(res, origin, link)
			return
		}
	}
	defer r.slots.Release(1)

	outcome := Failed
	target, err := parseLink(link)
	if err != nil {
		r.logger.Warn("verification link malformed",
			slog.String("origin", origin),
			slog.String("link", link),
			slog.Any("error", err),
		)
	} else {
		r.logger.Debug("starting origin verification",
			slog.String("origin", origin),
			slog.String("link", target.String()),
		)
		ok, err := r.verifier.Verify(ctx, origin, target)
		switch {
		case ctx.Err() != nil:
			r.abandoned(res, origin, link)
			return
		case err != nil:
			r.logger.Warn("unable to verify origin",
				slog.String("origin", origin),
				slog.String("link", target.String()),
				slog.Any("error", err),
			)
		case ok:
			outcome = Verified
		}
	}
	r.metrics.ObserveVerificationLatency(time.Since(start))

	if !res.publish(outcome) {
		r.abandoned(res, origin, link)
		return
	}
	label := "failed"
	if outcome == Verified {
		label = "verified"
	}
	r.metrics.IncVerificationOutcome(label)
	r.logger.Info("origin verification finished",
		slog.String("origin", origin),
		slog.String("link", link),
		slog.String("state", outcome.String()),
	)
}

func (r *Resolver) abandoned(res *Resolution, origin, link string) {
	res.abandon()
	r.metrics.IncVerificationOutcome("cancelled")
	r.logger.Debug("origin verification cancelled",
		slog.String("origin", origin),
		slog.String("link", link),
	)
}
