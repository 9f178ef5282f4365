package interfaces

import (
	"context"
	"time"

	"github.com/Ingenimax/agent-harness-go/pkg/runstep"
)

// AgentService is the remote agent API the harness drives. Implementations
// forward each call to the hosted service; none of them keep local state.
type AgentService interface {
	// CreateAgent creates a persistent agent
	CreateAgent(ctx context.Context, spec AgentSpec) (*AgentInfo, error)

	// GetAgent fetches an existing agent by ID
	GetAgent(ctx context.Context, agentID string) (*AgentInfo, error)

	// DeleteAgent removes an agent
	DeleteAgent(ctx context.Context, agentID string) error

	// CreateThread opens a new conversation thread
	CreateThread(ctx context.Context) (*ThreadInfo, error)

	// DeleteThread removes a thread and its messages
	DeleteThread(ctx context.Context, threadID string) error

	// SendMessage appends a user message to a thread
	SendMessage(ctx context.Context, threadID, content string) (*MessageInfo, error)

	// CreateRun asks an agent to process a thread
	CreateRun(ctx context.Context, threadID string, req RunRequest) (*RunInfo, error)

	// GetRun fetches the current state of a run
	GetRun(ctx context.Context, threadID, runID string) (*RunInfo, error)

	// CancelRun requests cancellation of a run
	CancelRun(ctx context.Context, threadID, runID string) (*RunInfo, error)

	// SubmitToolApprovals answers the MCP approval requests of a run in requires_action
	SubmitToolApprovals(ctx context.Context, threadID, runID string, approvals []ToolApproval) (*RunInfo, error)

	// ListMessages returns all messages of a thread, oldest first
	ListMessages(ctx context.Context, threadID string) ([]MessageInfo, error)

	// ListRunSteps returns the steps of a run, oldest first
	ListRunSteps(ctx context.Context, threadID, runID string) ([]runstep.Step, error)
}

// AgentSpec describes an agent to create
type AgentSpec struct {
	Name         string            `json:"name" yaml:"name"`
	Model        string            `json:"model" yaml:"model"`
	Instructions string            `json:"instructions,omitempty" yaml:"instructions,omitempty"`
	Tools        []ToolSpec        `json:"tools,omitempty" yaml:"tools,omitempty"`
	Temperature  *float64          `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// ToolType identifies a tool definition kind
type ToolType string

const (
	ToolTypeCodeInterpreter ToolType = "code_interpreter"
	ToolTypeFileSearch      ToolType = "file_search"
	ToolTypeMCP             ToolType = "mcp"
)

// ToolSpec is a tool attached to an agent
type ToolSpec struct {
	Type ToolType `json:"type" yaml:"type"`

	// MCP only
	ServerLabel     string            `json:"server_label,omitempty" yaml:"server_label,omitempty"`
	ServerURL       string            `json:"server_url,omitempty" yaml:"server_url,omitempty"`
	AllowedTools    []string          `json:"allowed_tools,omitempty" yaml:"allowed_tools,omitempty"`
	RequireApproval string            `json:"require_approval,omitempty" yaml:"require_approval,omitempty"`
	Headers         map[string]string `json:"-" yaml:"headers,omitempty"`
}

// AgentInfo is a created agent
type AgentInfo struct {
	ID           string
	Name         string
	Model        string
	Instructions string
	CreatedAt    time.Time
}

// ThreadInfo is a created thread
type ThreadInfo struct {
	ID        string
	CreatedAt time.Time
}

// MessageInfo is a thread message
type MessageInfo struct {
	ID        string
	Role      MessageRole
	RunID     string
	Contents  []runstep.Content
	CreatedAt time.Time
}

// Text returns the message's text parts joined with newlines
func (m MessageInfo) Text() string {
	return runstep.Text(m.Contents)
}

// RunRequest carries per-run options
type RunRequest struct {
	AgentID string

	// AdditionalInstructions is appended to the agent instructions for this run only
	AdditionalInstructions string

	// ToolResources supplies per-run MCP headers and approval modes
	ToolResources []ToolSpec
}

// RunStatus is the remote run status vocabulary
type RunStatus string

const (
	RunStatusQueued         RunStatus = "queued"
	RunStatusInProgress     RunStatus = "in_progress"
	RunStatusRequiresAction RunStatus = "requires_action"
	RunStatusCancelling     RunStatus = "cancelling"
	RunStatusCancelled      RunStatus = "cancelled"
	RunStatusFailed         RunStatus = "failed"
	RunStatusCompleted      RunStatus = "completed"
	RunStatusIncomplete     RunStatus = "incomplete"
	RunStatusExpired        RunStatus = "expired"
)

// RunInfo is a snapshot of a run
type RunInfo struct {
	ID               string
	ThreadID         string
	AgentID          string
	Status           RunStatus
	LastError        *RunError
	IncompleteReason string
	CreatedAt        time.Time
	CompletedAt      time.Time
	Usage            TokenUsage

	// RequiredAction is set while Status is requires_action
	RequiredAction *RequiredAction
}

// RequiredActionSubmitToolApproval is the action type of pending MCP approvals
const RequiredActionSubmitToolApproval = "submit_tool_approval"

// RequiredAction is what a run waits for in requires_action
type RequiredAction struct {
	Type             string
	ApprovalRequests []ApprovalRequest
}

// ToolApproval answers one pending MCP tool call of a run
type ToolApproval struct {
	ToolCallID string
	Approve    bool
	// Headers are sent to the MCP server with an approved call
	Headers map[string]string
}

// RunError is the structured error a failed run reports
type RunError struct {
	Code    string
	Message string
}

// TokenUsage is the token accounting of a run
type TokenUsage struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}
