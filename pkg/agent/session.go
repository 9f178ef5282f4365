// Package agent drives conversations with hosted agents: a Session sends a
// message, starts a run, waits for it to settle and reads the answer back.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/Ingenimax/agent-harness-go/pkg/foundry"
	"github.com/Ingenimax/agent-harness-go/pkg/interfaces"
	"github.com/Ingenimax/agent-harness-go/pkg/logging"
	"github.com/Ingenimax/agent-harness-go/pkg/poll"
	"github.com/Ingenimax/agent-harness-go/pkg/runstep"
	"github.com/Ingenimax/agent-harness-go/pkg/tracing"
)

var (
	// ErrNotStarted is returned when a session is used before Start or Attach
	ErrNotStarted = errors.New("agent session has no agent or thread")

	// ErrEmptyPrompt is returned by Ask for blank input
	ErrEmptyPrompt = errors.New("prompt must not be empty")
)

// cancelTimeout bounds the best-effort cancel issued when a wait is abandoned
const cancelTimeout = 10 * time.Second

// Codes of the RunError a Reply carries when a run waits for an action the
// session could not take
const (
	CodeApprovalRequired = "approval_required"
	CodeActionRequired   = "action_required"
)

// Outcome classifies how a run ended
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFiltered  Outcome = "filtered"
	OutcomeFailed    Outcome = "failed"
)

// Reply is the result of one Ask. A failed or filtered run is a Reply, not an error.
type Reply struct {
	ThreadID         string
	RunID            string
	Outcome          Outcome
	Status           interfaces.RunStatus
	Text             string
	LastError        *interfaces.RunError
	IncompleteReason string
	Steps            []runstep.Step
	Usage            interfaces.TokenUsage
	Latency          time.Duration
}

// Detail describes why the run did not complete
func (r *Reply) Detail() string {
	switch {
	case r.LastError != nil && r.LastError.Message != "":
		return r.LastError.Code + ": " + r.LastError.Message
	case r.LastError != nil:
		return r.LastError.Code
	case r.IncompleteReason != "":
		return "incomplete: " + r.IncompleteReason
	case r.Outcome != OutcomeCompleted:
		return string(r.Status)
	}
	return ""
}

// Session is one agent plus its current thread
type Session struct {
	svc    interfaces.AgentService
	logger logging.Logger
	policy poll.Policy
	tracer trace.Tracer

	cleanup                bool
	toolResources          []interfaces.ToolSpec
	additionalInstructions string
	approver               Approver

	agentID   string
	ownsAgent bool
	threadID  string
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the session logger
func WithLogger(logger logging.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithPollPolicy sets how runs are awaited
func WithPollPolicy(policy poll.Policy) Option {
	return func(s *Session) {
		s.policy = policy
	}
}

// WithTracer records a span per ask and per status fetch
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Session) {
		s.tracer = tracer
	}
}

// WithCleanup makes Close delete the thread and any agent the session created
func WithCleanup(enabled bool) Option {
	return func(s *Session) {
		s.cleanup = enabled
	}
}

// WithToolResources supplies per-run MCP headers and approval modes
func WithToolResources(tools ...interfaces.ToolSpec) Option {
	return func(s *Session) {
		s.toolResources = tools
	}
}

// WithAdditionalInstructions appends instructions to every run
func WithAdditionalInstructions(instructions string) Option {
	return func(s *Session) {
		s.additionalInstructions = instructions
	}
}

// WithRunApprover answers the MCP tool approvals a run stops for. Without an
// approver such a run is cancelled and reported as failed.
func WithRunApprover(approver Approver) Option {
	return func(s *Session) {
		s.approver = approver
	}
}

// NewSession creates a session over svc. Call Start or Attach before Ask.
func NewSession(svc interfaces.AgentService, options ...Option) *Session {
	s := &Session{
		svc:     svc,
		logger:  logging.NoOp(),
		policy:  poll.DefaultPolicy(),
		cleanup: true,
	}
	for _, option := range options {
		option(s)
	}
	if s.tracer == nil {
		s.tracer = noop.NewTracerProvider().Tracer(tracing.InstrumentationName)
	}
	return s
}

// AgentID returns the agent the session talks to
func (s *Session) AgentID() string { return s.agentID }

// ThreadID returns the current thread
func (s *Session) ThreadID() string { return s.threadID }

// Start creates an agent from spec and opens a thread on it
func (s *Session) Start(ctx context.Context, spec interfaces.AgentSpec) error {
	agent, err := s.svc.CreateAgent(ctx, spec)
	if err != nil {
		return fmt.Errorf("failed to create agent %q: %w", spec.Name, err)
	}
	s.agentID = agent.ID
	s.ownsAgent = true

	s.logger.Info(ctx, "Created agent", map[string]interface{}{
		"agent_id": agent.ID,
		"name":     spec.Name,
		"model":    spec.Model,
	})

	return s.NewThread(ctx)
}

// Attach binds the session to an existing agent and opens a thread on it.
// The agent is never deleted by Close.
func (s *Session) Attach(ctx context.Context, agentID string) error {
	agent, err := s.svc.GetAgent(ctx, agentID)
	if err != nil {
		return fmt.Errorf("failed to get agent %q: %w", agentID, err)
	}
	s.agentID = agent.ID
	s.ownsAgent = false

	s.logger.Info(ctx, "Attached to agent", map[string]interface{}{
		"agent_id": agent.ID,
		"name":     agent.Name,
	})

	return s.NewThread(ctx)
}

// NewThread replaces the current thread with a fresh one
func (s *Session) NewThread(ctx context.Context) error {
	if s.agentID == "" {
		return ErrNotStarted
	}
	if s.threadID != "" && s.cleanup {
		if err := s.svc.DeleteThread(ctx, s.threadID); err != nil {
			s.logger.Warn(ctx, "Failed to delete previous thread", map[string]interface{}{
				"thread_id": s.threadID,
				"error":     err.Error(),
			})
		}
	}

	thread, err := s.svc.CreateThread(ctx)
	if err != nil {
		s.threadID = ""
		return fmt.Errorf("failed to create thread: %w", err)
	}
	s.threadID = thread.ID

	s.logger.Debug(ctx, "Created thread", map[string]interface{}{"thread_id": thread.ID})
	return nil
}

// Ask posts prompt to the thread, runs the agent and waits for the run to
// settle. Cancellation or timeout while waiting returns an error wrapping
// poll.ErrCancelled or poll.ErrTimeout after a best-effort cancel of the run.
func (s *Session) Ask(ctx context.Context, prompt string) (*Reply, error) {
	if s.agentID == "" || s.threadID == "" {
		return nil, ErrNotStarted
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	ctx, span := s.tracer.Start(ctx, "agent.Ask", trace.WithAttributes(
		attribute.String("agent.id", s.agentID),
		attribute.String("thread.id", s.threadID),
	))
	defer span.End()

	reply, err := s.ask(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("agent.outcome", string(reply.Outcome)))
	return reply, nil
}

func (s *Session) ask(ctx context.Context, prompt string) (*Reply, error) {
	clock := s.policy.Clock
	if clock == nil {
		clock = poll.RealClock
	}
	start := clock.Now()

	if _, err := s.svc.SendMessage(ctx, s.threadID, prompt); err != nil {
		if reply := s.rejected(err, start, clock); reply != nil {
			return reply, nil
		}
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	run, err := s.svc.CreateRun(ctx, s.threadID, interfaces.RunRequest{
		AgentID:                s.agentID,
		AdditionalInstructions: s.additionalInstructions,
		ToolResources:          s.toolResources,
	})
	if err != nil {
		if reply := s.rejected(err, start, clock); reply != nil {
			return reply, nil
		}
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	s.logger.Debug(ctx, "Run created", map[string]interface{}{
		"thread_id": run.ThreadID,
		"run_id":    run.ID,
		"status":    string(run.Status),
	})

	latest := run
	fetch := tracing.TraceFetch(s.tracer, foundry.RunFetcher(s.svc, func(r *interfaces.RunInfo) {
		latest = r
	}))
	poller := poll.New(
		poll.WithPolicy(s.policy),
		poll.WithClassifier(foundry.ActionRunStatuses),
		poll.WithLogger(s.logger),
	)

	var status poll.Status
	initial := foundry.RunStatus(run)
	for round := 0; ; round++ {
		status, err = poller.WaitFrom(ctx, foundry.RunHandle(run), initial, fetch)
		if err != nil {
			if errors.Is(err, poll.ErrCancelled) || errors.Is(err, poll.ErrTimeout) {
				s.cancelRun(ctx, run)
			}
			return nil, fmt.Errorf("waiting for run %s: %w", run.ID, err)
		}
		if latest.Status != interfaces.RunStatusRequiresAction {
			break
		}
		if s.approver == nil || !pendingApprovals(latest) {
			s.logger.Warn(ctx, "Run requires an action the session cannot take", map[string]interface{}{
				"run_id":   run.ID,
				"approver": s.approver != nil,
			})
			s.cancelRun(ctx, run)
			break
		}
		if round >= DefaultApprovalRounds {
			s.cancelRun(ctx, run)
			return nil, fmt.Errorf("run %s: %w", run.ID, ErrApprovalRounds)
		}
		if err := s.approve(ctx, latest); err != nil {
			s.cancelRun(ctx, run)
			return nil, err
		}
		// the answered snapshot is stale; the next status comes from a fetch
		initial = poll.Status{}
	}

	reply := &Reply{
		ThreadID:         s.threadID,
		RunID:            run.ID,
		Status:           latest.Status,
		LastError:        latest.LastError,
		IncompleteReason: latest.IncompleteReason,
		Usage:            latest.Usage,
	}

	steps, err := s.svc.ListRunSteps(ctx, s.threadID, run.ID)
	if err != nil {
		s.logger.Warn(ctx, "Failed to list run steps", map[string]interface{}{
			"run_id": run.ID,
			"error":  err.Error(),
		})
	}
	reply.Steps = steps

	switch {
	case latest.Status == interfaces.RunStatusRequiresAction:
		reply.Outcome = OutcomeFailed
		reply.LastError = unansweredAction(latest.RequiredAction)
	case status.Class == poll.ClassSucceeded:
		messages, err := s.svc.ListMessages(ctx, s.threadID)
		if err != nil {
			return nil, fmt.Errorf("failed to list messages: %w", err)
		}
		reply.Outcome = OutcomeCompleted
		reply.Text = latestAssistantText(messages, run.ID)
	default:
		reply.Outcome = failureOutcome(latest)
	}
	reply.Latency = clock.Now().Sub(start)

	s.logger.Info(ctx, "Run finished", map[string]interface{}{
		"run_id":     run.ID,
		"status":     string(reply.Status),
		"outcome":    string(reply.Outcome),
		"latency_ms": reply.Latency.Milliseconds(),
	})
	return reply, nil
}

// approve asks the approver about the run's pending tool calls and submits
// the answers. Approved calls carry the headers of their server.
func (s *Session) approve(ctx context.Context, run *interfaces.RunInfo) error {
	reqs := run.RequiredAction.ApprovalRequests
	decisions, err := s.approver.Decide(ctx, reqs)
	if err != nil {
		return fmt.Errorf("failed to decide tool approvals for run %s: %w", run.ID, err)
	}

	servers := make(map[string]string, len(reqs))
	for _, req := range reqs {
		servers[req.ID] = req.ServerLabel
	}

	approvals := make([]interfaces.ToolApproval, 0, len(decisions))
	approved := 0
	for _, d := range decisions {
		approval := interfaces.ToolApproval{ToolCallID: d.RequestID, Approve: d.Approve}
		if d.Approve {
			approval.Headers = s.headersFor(servers[d.RequestID])
			approved++
		}
		approvals = append(approvals, approval)
	}

	s.logger.Info(ctx, "Answering tool approvals", map[string]interface{}{
		"run_id":   run.ID,
		"requests": len(reqs),
		"approved": approved,
	})

	if _, err := s.svc.SubmitToolApprovals(ctx, run.ThreadID, run.ID, approvals); err != nil {
		return fmt.Errorf("failed to submit tool approvals for run %s: %w", run.ID, err)
	}
	return nil
}

func (s *Session) headersFor(serverLabel string) map[string]string {
	for _, tool := range s.toolResources {
		if tool.ServerLabel == serverLabel {
			return tool.Headers
		}
	}
	return nil
}

func pendingApprovals(run *interfaces.RunInfo) bool {
	action := run.RequiredAction
	return action != nil &&
		action.Type == interfaces.RequiredActionSubmitToolApproval &&
		len(action.ApprovalRequests) > 0
}

// unansweredAction describes why a run was left in requires_action
func unansweredAction(action *interfaces.RequiredAction) *interfaces.RunError {
	if action == nil || action.Type != interfaces.RequiredActionSubmitToolApproval || len(action.ApprovalRequests) == 0 {
		kind := "unknown"
		if action != nil && action.Type != "" {
			kind = action.Type
		}
		return &interfaces.RunError{
			Code:    CodeActionRequired,
			Message: fmt.Sprintf("run requires action %q which the session cannot take", kind),
		}
	}

	calls := make([]string, 0, len(action.ApprovalRequests))
	for _, req := range action.ApprovalRequests {
		calls = append(calls, req.ServerLabel+"."+req.Name)
	}
	return &interfaces.RunError{
		Code:    CodeApprovalRequired,
		Message: fmt.Sprintf("tool calls %s need approval and no approver is configured", strings.Join(calls, ", ")),
	}
}

// rejected turns a content filter refusal of the request itself into a
// filtered Reply. Any other error yields nil.
func (s *Session) rejected(err error, start time.Time, clock poll.Clock) *Reply {
	var apiErr *foundry.APIError
	if !errors.As(err, &apiErr) || !apiErr.IsContentFilter() {
		return nil
	}
	return &Reply{
		ThreadID:  s.threadID,
		Outcome:   OutcomeFiltered,
		Status:    interfaces.RunStatusFailed,
		LastError: &interfaces.RunError{Code: apiErr.Code, Message: apiErr.Message},
		Latency:   clock.Now().Sub(start),
	}
}

// cancelRun asks the service to stop a run the caller stopped waiting for
func (s *Session) cancelRun(ctx context.Context, run *interfaces.RunInfo) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelTimeout)
	defer cancel()

	if _, err := s.svc.CancelRun(ctx, run.ThreadID, run.ID); err != nil {
		s.logger.Warn(ctx, "Failed to cancel abandoned run", map[string]interface{}{
			"run_id": run.ID,
			"error":  err.Error(),
		})
		return
	}
	s.logger.Info(ctx, "Cancelled abandoned run", map[string]interface{}{"run_id": run.ID})
}

// Close releases the thread, and the agent when the session created it.
// Without cleanup it only forgets them.
func (s *Session) Close(ctx context.Context) error {
	threadID, agentID, owned := s.threadID, s.agentID, s.ownsAgent
	s.threadID, s.agentID, s.ownsAgent = "", "", false

	if !s.cleanup {
		return nil
	}

	var errs []error
	if threadID != "" {
		if err := s.svc.DeleteThread(ctx, threadID); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete thread %s: %w", threadID, err))
		}
	}
	if owned && agentID != "" {
		if err := s.svc.DeleteAgent(ctx, agentID); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete agent %s: %w", agentID, err))
		}
	}
	return errors.Join(errs...)
}

func failureOutcome(run *interfaces.RunInfo) Outcome {
	if run.LastError != nil && run.LastError.Code == foundry.CodeContentFilter {
		return OutcomeFiltered
	}
	if run.IncompleteReason == foundry.CodeContentFilter {
		return OutcomeFiltered
	}
	return OutcomeFailed
}

// latestAssistantText returns the newest assistant message produced by runID
func latestAssistantText(messages []interfaces.MessageInfo, runID string) string {
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if m.Role != interfaces.MessageRoleAssistant {
			continue
		}
		if m.RunID != "" && m.RunID != runID {
			continue
		}
		return m.Text()
	}
	return ""
}
