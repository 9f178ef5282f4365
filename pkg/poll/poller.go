package poll

import (
	"context"
	"errors"
	"fmt"

	"github.com/Ingenimax/agent-harness-go/pkg/logging"
)

// Poller waits for tasks according to a Policy. A Poller holds no per-task
// state, so one value can serve concurrent waits on independent handles.
type Poller struct {
	policy     Policy
	classifier Classifier
	logger     logging.Logger
}

// Option configures a Poller
type Option func(*Poller)

// WithPolicy sets the wait policy
func WithPolicy(policy Policy) Option {
	return func(p *Poller) {
		p.policy = policy
	}
}

// WithClassifier sets how remote status values are mapped to classes.
// Without one, the Class set by the fetch function is used as is.
func WithClassifier(classifier Classifier) Option {
	return func(p *Poller) {
		p.classifier = classifier
	}
}

// WithLogger sets the logger used for per-fetch debug output
func WithLogger(logger logging.Logger) Option {
	return func(p *Poller) {
		p.logger = logger
	}
}

// New creates a Poller
func New(options ...Option) *Poller {
	p := &Poller{
		policy: DefaultPolicy(),
		logger: logging.NoOp(),
	}
	for _, option := range options {
		option(p)
	}
	return p
}

// Policy returns the poller's effective policy
func (p *Poller) Policy() Policy {
	return p.policy.withDefaults()
}

// Until is a convenience wrapper around New(WithPolicy(policy)).Wait
func Until(ctx context.Context, h Handle, fetch FetchFunc, policy Policy) (Status, error) {
	return New(WithPolicy(policy)).Wait(ctx, h, fetch)
}

// Wait sleeps, fetches and repeats until fetch reports a terminal status.
//
// It returns the terminal status (success or failure class), or the last
// observed status together with ErrCancelled, ErrTimeout or a *FetchError.
func (p *Poller) Wait(ctx context.Context, h Handle, fetch FetchFunc) (Status, error) {
	return p.WaitFrom(ctx, h, Status{}, fetch)
}

// WaitFrom is Wait for callers that already hold a status, typically the one
// returned by the call that created the task. A terminal initial status is
// returned without fetching.
func (p *Poller) WaitFrom(ctx context.Context, h Handle, initial Status, fetch FetchFunc) (Status, error) {
	if fetch == nil {
		return Status{}, ErrNilFetch
	}

	last := initial
	if initial.Value != "" {
		last = p.classify(initial)
		if last.Terminal() {
			return last, nil
		}
	}

	policy := p.policy.withDefaults()
	clock := policy.Clock

	start := clock.Now()
	deadline := start.Add(policy.Timeout)

	attempts := 0
	failures := 0
	for {
		if err := sleep(ctx, clock, policy); err != nil {
			return last, stopped(h, attempts, err)
		}

		attempts++
		status, err := fetch(ctx, h)
		switch {
		case err != nil && ctx.Err() != nil:
			return last, stopped(h, attempts, ctx.Err())
		case err != nil:
			failures++
			if failures > policy.FetchRetries {
				return last, &FetchError{Handle: h, Attempt: attempts, Err: err}
			}
			p.logger.Warn(ctx, "Status fetch failed, retrying", map[string]interface{}{
				"handle":  h.String(),
				"attempt": attempts,
				"error":   err.Error(),
			})
		default:
			failures = 0
			last = p.classify(status)
			p.logger.Debug(ctx, "Polled task status", map[string]interface{}{
				"handle":  h.String(),
				"attempt": attempts,
				"status":  last.Value,
				"class":   last.Class.String(),
			})
			if last.Terminal() {
				return last, nil
			}
		}

		if err := ctx.Err(); err != nil {
			return last, stopped(h, attempts, err)
		}
		if policy.Timeout > 0 && !clock.Now().Before(deadline) {
			return last, fmt.Errorf("%w: %s still %q after %s", ErrTimeout, h, last.Value, policy.Timeout)
		}
		if policy.MaxAttempts > 0 && attempts >= policy.MaxAttempts {
			return last, fmt.Errorf("%w: %s still %q after %d fetches", ErrTimeout, h, last.Value, attempts)
		}
	}
}

func (p *Poller) classify(s Status) Status {
	if p.classifier != nil {
		s.Class = p.classifier.Classify(s.Value)
	}
	return s
}

// sleep blocks for one interval or until ctx is done, whichever comes first
func sleep(ctx context.Context, clock Clock, policy Policy) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-clock.After(policy.Interval):
		return nil
	}
}

// stopped maps a context error onto the poller's error surface. A context
// deadline counts as a timeout, any other cancellation as ErrCancelled.
func stopped(h Handle, attempts int, cause error) error {
	if errors.Is(cause, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s after %d fetches: %w", ErrTimeout, h, attempts, cause)
	}
	return fmt.Errorf("%w: %s after %d fetches: %w", ErrCancelled, h, attempts, cause)
}
