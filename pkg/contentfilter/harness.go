package contentfilter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/Ingenimax/agent-harness-go/pkg/agent"
	"github.com/Ingenimax/agent-harness-go/pkg/interfaces"
	"github.com/Ingenimax/agent-harness-go/pkg/logging"
	"github.com/Ingenimax/agent-harness-go/pkg/poll"
	"github.com/Ingenimax/agent-harness-go/pkg/runstep"
	"github.com/Ingenimax/agent-harness-go/pkg/tracing"
)

// ResultStore records harness results as they are produced
type ResultStore interface {
	AppendResult(ctx context.Context, result Result) error
	SaveReport(ctx context.Context, report *Report) error
}

// cleanupTimeout bounds agent and thread deletion after a run
const cleanupTimeout = 30 * time.Second

// Harness runs suites against the agent service
type Harness struct {
	svc      interfaces.AgentService
	logger   logging.Logger
	policy   poll.Policy
	tracer   trace.Tracer
	store    ResultStore
	progress func(Result)
	newID    func() string
}

// Option configures a Harness
type Option func(*Harness)

// WithLogger sets the harness logger
func WithLogger(logger logging.Logger) Option {
	return func(h *Harness) {
		h.logger = logger
	}
}

// WithPollPolicy sets how each run is awaited
func WithPollPolicy(policy poll.Policy) Option {
	return func(h *Harness) {
		h.policy = policy
	}
}

// WithTracer records a span per case
func WithTracer(tracer trace.Tracer) Option {
	return func(h *Harness) {
		h.tracer = tracer
	}
}

// WithStore appends every result, and the final report, to store
func WithStore(store ResultStore) Option {
	return func(h *Harness) {
		h.store = store
	}
}

// WithProgress is called after every pair
func WithProgress(fn func(Result)) Option {
	return func(h *Harness) {
		h.progress = fn
	}
}

// NewHarness creates a harness over svc
func NewHarness(svc interfaces.AgentService, options ...Option) *Harness {
	h := &Harness{
		svc:    svc,
		logger: logging.NoOp(),
		policy: poll.DefaultPolicy(),
		newID:  uuid.NewString,
	}
	for _, option := range options {
		option(h)
	}
	if h.tracer == nil {
		h.tracer = noop.NewTracerProvider().Tracer(tracing.InstrumentationName)
	}
	return h
}

// Run creates one agent per variant, sends every case to every variant in
// turn on a fresh thread, and deletes the agents afterwards. Pairs run
// sequentially. When ctx ends early the partial report is returned together
// with the context error.
func (h *Harness) Run(ctx context.Context, suite *Suite) (*Report, error) {
	if err := suite.Validate(); err != nil {
		return nil, err
	}

	harnessID := h.newID()
	variants := suite.VariantNames()

	ctx, span := h.tracer.Start(ctx, "contentfilter.Run", trace.WithAttributes(
		attribute.String("harness.id", harnessID),
		attribute.Int("harness.cases", len(suite.Cases)),
		attribute.Int("harness.variants", len(variants)),
	))
	defer span.End()

	h.logger.Info(ctx, "Starting content filter comparison", map[string]interface{}{
		"harness_id": harnessID,
		"suite":      suite.Name,
		"cases":      len(suite.Cases),
		"variants":   variants,
	})

	registry := agent.NewRegistry()
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()
		if err := registry.CloseAll(cleanupCtx); err != nil {
			h.logger.Warn(ctx, "Failed to clean up comparison agents", map[string]interface{}{
				"harness_id": harnessID,
				"error":      err.Error(),
			})
		}
	}()

	for _, v := range suite.Variants {
		session := agent.NewSession(h.svc,
			agent.WithLogger(h.logger),
			agent.WithPollPolicy(h.policy),
			agent.WithTracer(h.tracer),
			agent.WithCleanup(true),
		)
		err := session.Start(ctx, v.Agent)
		registry.Register(v.Name, session)
		if err != nil {
			return nil, fmt.Errorf("variant %s: %w", v.Name, err)
		}
	}

	var results []Result
	var runErr error
	fresh := make(map[string]bool, len(variants))
	for _, name := range variants {
		fresh[name] = true
	}

cases:
	for _, c := range suite.Cases {
		for _, name := range variants {
			if err := ctx.Err(); err != nil {
				runErr = err
				break cases
			}

			session, _ := registry.Get(name)
			result := h.runPair(ctx, harnessID, session, c, name, fresh[name])
			fresh[name] = false
			results = append(results, result)

			if h.store != nil {
				if err := h.store.AppendResult(ctx, result); err != nil {
					h.logger.Warn(ctx, "Failed to store result", map[string]interface{}{
						"result_id": result.ID,
						"error":     err.Error(),
					})
				}
			}
			if h.progress != nil {
				h.progress(result)
			}
		}
	}

	report := NewReport(harnessID, suite.Name, variants, results)
	span.SetAttributes(attribute.Int("harness.divergences", len(report.Divergences)))

	if h.store != nil {
		if err := h.store.SaveReport(context.WithoutCancel(ctx), report); err != nil {
			h.logger.Warn(ctx, "Failed to store report", map[string]interface{}{
				"harness_id": harnessID,
				"error":      err.Error(),
			})
		}
	}

	h.logger.Info(ctx, "Content filter comparison finished", map[string]interface{}{
		"harness_id":  harnessID,
		"results":     len(results),
		"divergences": len(report.Divergences),
	})
	return report, runErr
}

// runPair sends one case to one variant. Every failure becomes a Result.
func (h *Harness) runPair(ctx context.Context, harnessID string, session *agent.Session, c Case, variant string, fresh bool) Result {
	ctx, span := h.tracer.Start(ctx, "contentfilter.Case", trace.WithAttributes(
		attribute.String("case.id", c.ID),
		attribute.String("case.variant", variant),
	))
	defer span.End()

	result := Result{
		ID:        h.newID(),
		HarnessID: harnessID,
		CaseID:    c.ID,
		Category:  c.Category,
		Variant:   variant,
		StartedAt: time.Now().UTC(),
	}

	if !fresh {
		if err := session.NewThread(ctx); err != nil {
			result.Outcome = OutcomeError
			result.Detail = err.Error()
			return result
		}
	}

	reply, err := session.Ask(ctx, c.Prompt)
	if err != nil {
		result.Outcome = OutcomeError
		result.Detail = err.Error()
		result.LatencyMS = time.Since(result.StartedAt).Milliseconds()
		span.SetAttributes(attribute.String("case.outcome", string(result.Outcome)))
		return result
	}

	result.Outcome = Outcome(reply.Outcome)
	result.Detail = reply.Detail()
	result.RunID = reply.RunID
	result.Text = reply.Text
	result.ToolCalls = countToolCalls(reply)
	result.LatencyMS = reply.Latency.Milliseconds()

	span.SetAttributes(attribute.String("case.outcome", string(result.Outcome)))
	h.logger.Debug(ctx, "Case finished", map[string]interface{}{
		"case_id": c.ID,
		"variant": variant,
		"outcome": string(result.Outcome),
	})
	return result
}

func countToolCalls(reply *agent.Reply) int {
	n := 0
	for _, step := range reply.Steps {
		if calls, ok := step.(runstep.ToolCalls); ok {
			n += len(calls.Calls)
		}
	}
	return n
}
