package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/Ingenimax/agent-harness-go/pkg/foundry"
	"github.com/Ingenimax/agent-harness-go/pkg/interfaces"
	"github.com/Ingenimax/agent-harness-go/pkg/logging"
)

// DefaultApprovalRounds bounds the ask/approve loop of AskWithApprovals
const DefaultApprovalRounds = 5

var (
	// ErrApprovalRounds is returned when the agent keeps asking for approvals
	ErrApprovalRounds = errors.New("agent still requests tool approvals after the round limit")

	// ErrNoApprover is returned when approvals are requested but nobody can answer them
	ErrNoApprover = errors.New("agent requested tool approvals but no approver is configured")
)

// Approver answers MCP approval requests. *mcp.ApprovalPolicy implements it.
type Approver interface {
	Decide(ctx context.Context, reqs []interfaces.ApprovalRequest) ([]interfaces.ApprovalDecision, error)
}

// Exchange is the final response of AskWithApprovals together with what
// happened on the way there
type Exchange struct {
	Response  *interfaces.Response
	Rounds    int
	Decisions []interfaces.ApprovalDecision
	MCPCalls  []interfaces.MCPCallRecord
}

// Outcome classifies the final response
func (e *Exchange) Outcome() Outcome {
	return ResponseOutcome(e.Response)
}

// ResponseOutcome classifies a response by its structured error fields
func ResponseOutcome(resp *interfaces.Response) Outcome {
	switch {
	case resp.ErrorCode == foundry.CodeContentFilter || resp.IncompleteReason == foundry.CodeContentFilter:
		return OutcomeFiltered
	case resp.Status == "failed" || resp.Status == "incomplete" || resp.Status == "cancelled":
		return OutcomeFailed
	default:
		return OutcomeCompleted
	}
}

// Conversation talks to a prompt agent through the responses API
type Conversation struct {
	svc       interfaces.ResponsesService
	agent     interfaces.AgentRef
	approver  Approver
	maxRounds int
	logger    logging.Logger

	id string
}

// ConversationOption configures a Conversation
type ConversationOption func(*Conversation)

// WithApprover sets who answers MCP approval requests
func WithApprover(approver Approver) ConversationOption {
	return func(c *Conversation) {
		c.approver = approver
	}
}

// WithMaxApprovalRounds bounds the ask/approve loop
func WithMaxApprovalRounds(n int) ConversationOption {
	return func(c *Conversation) {
		c.maxRounds = n
	}
}

// WithConversationLogger sets the conversation logger
func WithConversationLogger(logger logging.Logger) ConversationOption {
	return func(c *Conversation) {
		c.logger = logger
	}
}

// NewConversation creates a conversation with agent. Open must be called before asking.
func NewConversation(svc interfaces.ResponsesService, agent interfaces.AgentRef, options ...ConversationOption) *Conversation {
	c := &Conversation{
		svc:       svc,
		agent:     agent,
		maxRounds: DefaultApprovalRounds,
		logger:    logging.NoOp(),
	}
	for _, option := range options {
		option(c)
	}
	if c.maxRounds <= 0 {
		c.maxRounds = DefaultApprovalRounds
	}
	return c
}

// ID returns the server-side conversation id
func (c *Conversation) ID() string { return c.id }

// Open creates the server-side conversation
func (c *Conversation) Open(ctx context.Context) error {
	id, err := c.svc.CreateConversation(ctx)
	if err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	c.id = id
	c.logger.Debug(ctx, "Created conversation", map[string]interface{}{
		"conversation_id": id,
		"agent":           c.agent.Name,
	})
	return nil
}

// Ask sends input once and returns the raw response, approvals unanswered
func (c *Conversation) Ask(ctx context.Context, input string) (*interfaces.Response, error) {
	if c.id == "" {
		return nil, ErrNotStarted
	}
	resp, err := c.svc.Ask(ctx, c.agent, c.id, input)
	if err != nil {
		return nil, fmt.Errorf("failed to ask agent %s: %w", c.agent.Name, err)
	}
	return resp, nil
}

// AskWithApprovals sends input and answers approval requests until the
// agent stops asking for them
func (c *Conversation) AskWithApprovals(ctx context.Context, input string) (*Exchange, error) {
	resp, err := c.Ask(ctx, input)
	if err != nil {
		return nil, err
	}

	exchange := &Exchange{MCPCalls: resp.MCPCalls}
	for len(resp.ApprovalRequests) > 0 {
		if c.approver == nil {
			return nil, ErrNoApprover
		}
		if exchange.Rounds >= c.maxRounds {
			return nil, fmt.Errorf("%w (%d rounds)", ErrApprovalRounds, c.maxRounds)
		}

		decisions, err := c.approver.Decide(ctx, resp.ApprovalRequests)
		if err != nil {
			return nil, fmt.Errorf("failed to decide approvals: %w", err)
		}
		for _, d := range decisions {
			c.logger.Info(ctx, "Answered MCP approval request", map[string]interface{}{
				"request_id": d.RequestID,
				"approve":    d.Approve,
				"reason":     d.Reason,
			})
		}

		resp, err = c.svc.Approve(ctx, c.agent, resp.ID, decisions)
		if err != nil {
			return nil, fmt.Errorf("failed to send approvals: %w", err)
		}
		exchange.Rounds++
		exchange.Decisions = append(exchange.Decisions, decisions...)
		exchange.MCPCalls = append(exchange.MCPCalls, resp.MCPCalls...)
	}

	exchange.Response = resp
	return exchange, nil
}
