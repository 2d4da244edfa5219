// Package bootstrap applies the warehouse schema script during a deployment.
//
// Handle runs the linear sequence fetch script, resolve credential, submit
// batch, poll to a terminal state. Every failure is returned to the caller as
// a terminal Result; nothing is retried beyond the poll loop.
package bootstrap

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/kiquetal/ultimate-aws-data-engineering-book/internal/sqlscript"
)

// maxDescribeFailures is how many consecutive status poll errors are
// tolerated before the execution is reported as failed.
const maxDescribeFailures = 3

// cancelTimeout bounds the best-effort cancel after a poll timeout.
const cancelTimeout = 5 * time.Second

// clientTokenNamespace scopes the deterministic submission tokens.
var clientTokenNamespace = uuid.MustParse("6f1c2d4e-3b5a-4c8d-9e7f-0a1b2c3d4e5f")

// PollPolicy bounds the status poll loop.
type PollPolicy struct {
	Interval    time.Duration
	MaxInterval time.Duration
	Timeout     time.Duration
	// DeadlineMargin is kept free before the context deadline so the failure
	// can still be reported.
	DeadlineMargin time.Duration
}

// DefaultPollPolicy matches the Lambda defaults in internal/config.
var DefaultPollPolicy = PollPolicy{
	Interval:       2 * time.Second,
	MaxInterval:    15 * time.Second,
	Timeout:        12 * time.Minute,
	DeadlineMargin: 15 * time.Second,
}

// Handler runs schema bootstrap requests against its collaborators. It holds
// no per-invocation state and may be reused across invocations.
type Handler struct {
	assets      AssetStore
	credentials CredentialResolver
	executor    Executor
	poll        PollPolicy
	logger      log.Interface
}

// Option customises a Handler.
type Option func(*Handler)

// WithPollPolicy overrides DefaultPollPolicy.
func WithPollPolicy(p PollPolicy) Option {
	return func(h *Handler) { h.poll = p }
}

// WithLogger sets the logger; the apex default logger is used otherwise.
func WithLogger(l log.Interface) Option {
	return func(h *Handler) { h.logger = l }
}

// NewHandler wires a Handler to its collaborators.
func NewHandler(assets AssetStore, credentials CredentialResolver, executor Executor, opts ...Option) *Handler {
	h := &Handler{
		assets:      assets,
		credentials: credentials,
		executor:    executor,
		poll:        DefaultPollPolicy,
		logger:      log.Log,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.poll = h.poll.normalize()
	return h
}

// normalize replaces unusable values with the defaults. A zero interval would
// make the poll loop spin until the deadline.
func (p PollPolicy) normalize() PollPolicy {
	if p.Interval <= 0 {
		p.Interval = DefaultPollPolicy.Interval
	}
	if p.MaxInterval < p.Interval {
		p.MaxInterval = p.Interval
	}
	if p.Timeout <= 0 {
		p.Timeout = DefaultPollPolicy.Timeout
	}
	if p.DeadlineMargin < 0 {
		p.DeadlineMargin = 0
	}
	return p
}

// Handle applies req and returns its terminal result.
func (h *Handler) Handle(ctx context.Context, req Request) Result {
	start := time.Now()
	deadline := h.deadline(ctx, start)

	logger := h.logger.WithFields(log.Fields{
		"event":      req.Event.String(),
		"request_id": req.RequestID,
		"workgroup":  req.WorkgroupName,
		"database":   req.DatabaseName,
	})

	if err := req.Validate(); err != nil {
		return h.fail(logger, asError(err), "")
	}

	if req.Event == EventDelete {
		logger.Info("delete event, leaving schema in place")
		return success("", 0)
	}

	key := req.ObjectKey()
	script, err := h.assets.Fetch(ctx, req.BucketName, key)
	if err != nil {
		return h.fail(logger, newError(KindAssetNotFound, err, "fetching s3://%s/%s", req.BucketName, key), "")
	}
	statements := sqlscript.Split(string(script))
	if len(statements) == 0 {
		return h.fail(logger, newError(KindAssetNotFound, nil, "s3://%s/%s holds no SQL statements", req.BucketName, key), "")
	}
	logger.WithFields(log.Fields{"key": key, "statements": len(statements)}).Info("fetched schema script")

	cred, err := h.credentials.Resolve(ctx, req.AdminSecretARN)
	if err != nil {
		return h.fail(logger, newError(KindCredentialResolution, err, "resolving admin secret %s", req.AdminSecretARN), "")
	}

	id, err := h.executor.Submit(ctx, Batch{
		WorkgroupName: req.WorkgroupName,
		DatabaseName:  req.DatabaseName,
		Credential:    cred,
		Statements:    statements,
		ClientToken:   clientToken(req, script),
		StatementName: "schema-bootstrap-" + req.Event.String(),
	})
	if err != nil {
		return h.fail(logger, newError(KindSubmission, err, "submitting %d statements to %s/%s",
			len(statements), req.WorkgroupName, req.DatabaseName), "")
	}
	logger = logger.WithField("execution_id", id)
	logger.Info("submitted schema script")

	exec, err := h.await(ctx, logger, id, deadline, deadline.Sub(start))
	if err != nil {
		return h.fail(logger, asError(err), id)
	}
	if exec.State != StateFinished {
		return h.fail(logger, newError(KindExecutionFailed, nil, "execution %s %s: %s", id, exec.State, exec.Error), id)
	}

	logger.Info("schema script applied")
	return success(id, len(statements))
}

// await polls id until it reaches a terminal state or the deadline passes.
// The interval doubles after every non-terminal observation up to
// MaxInterval. budget is the whole time allowed for the run and is only
// used to report a timeout.
func (h *Handler) await(ctx context.Context, logger log.Interface, id string, deadline time.Time, budget time.Duration) (Execution, error) {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "describe-" + id,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxDescribeFailures
		},
	})

	interval := h.poll.Interval
	for {
		out, err := cb.Execute(func() (interface{}, error) {
			return h.executor.Describe(ctx, id)
		})
		switch {
		case err == nil:
			exec := out.(Execution)
			if exec.State.Terminal() {
				return exec, nil
			}
			logger.WithField("state", string(exec.State)).Debug("execution pending")
		case ctx.Err() != nil:
			// handled by the deadline checks below
		case cb.State() == gobreaker.StateOpen || errors.Is(err, gobreaker.ErrOpenState):
			return Execution{}, newError(KindExecutionFailed, err, "describing execution %s", id)
		default:
			logger.WithError(err).Warn("describe failed, retrying")
		}

		remaining := time.Until(deadline)
		if remaining <= 0 || ctx.Err() != nil {
			return Execution{}, h.timeout(ctx, logger, id, budget)
		}

		wait := interval
		if wait > remaining {
			wait = remaining
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Execution{}, h.timeout(ctx, logger, id, budget)
		case <-timer.C:
		}

		interval *= 2
		if interval > h.poll.MaxInterval {
			interval = h.poll.MaxInterval
		}
	}
}

// timeout cancels the execution on a best-effort basis and builds the
// ExecutionTimeout error.
func (h *Handler) timeout(ctx context.Context, logger log.Interface, id string, budget time.Duration) *Error {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelTimeout)
	defer cancel()
	if err := h.executor.Cancel(cctx, id); err != nil {
		logger.WithError(err).Warn("cancelling timed out execution")
	}
	return newError(KindExecutionTimeout, ctx.Err(), "execution %s not finished within %s", id,
		budget.Round(10*time.Millisecond))
}

// deadline is the earlier of the poll timeout and the context deadline less
// the margin, counted from start.
func (h *Handler) deadline(ctx context.Context, start time.Time) time.Time {
	deadline := start.Add(h.poll.Timeout)
	if d, ok := ctx.Deadline(); ok {
		if d = d.Add(-h.poll.DeadlineMargin); d.Before(deadline) {
			deadline = d
		}
	}
	return deadline
}

func (h *Handler) fail(logger log.Interface, err *Error, executionID string) Result {
	logger.WithFields(log.Fields{"kind": string(err.Kind)}).WithError(err).Error("schema bootstrap failed")
	return failure(err, executionID)
}

func asError(err error) *Error {
	var be *Error
	if errors.As(err, &be) {
		return be
	}
	return newError(KindExecutionFailed, err, "unexpected failure")
}

// clientToken derives the submission token from the lifecycle request and
// the script content, so a redelivered event does not run the script twice
// while a changed script does run.
func clientToken(req Request, script []byte) string {
	if req.RequestID == "" {
		return uuid.NewString()
	}
	sum := sha256.Sum256(script)
	return uuid.NewSHA1(clientTokenNamespace, []byte(req.RequestID+"/"+hex.EncodeToString(sum[:]))).String()
}
