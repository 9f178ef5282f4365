package interfaces

import "context"

// ResponsesService drives prompt agents through conversations and responses
type ResponsesService interface {
	// CreateConversation opens a server-side conversation
	CreateConversation(ctx context.Context) (string, error)

	// Ask sends user input to an agent within a conversation
	Ask(ctx context.Context, agent AgentRef, conversationID, input string) (*Response, error)

	// Approve answers the MCP approval requests of a previous response
	Approve(ctx context.Context, agent AgentRef, previousResponseID string, decisions []ApprovalDecision) (*Response, error)
}

// AgentRef names a prompt agent, optionally pinned to a version
type AgentRef struct {
	Name    string
	Version string
}

// Response is the outcome of one responses call
type Response struct {
	ID               string
	Status           string
	OutputText       string
	ApprovalRequests []ApprovalRequest
	MCPCalls         []MCPCallRecord
	// ErrorCode and IncompleteReason are set when the response did not complete
	ErrorCode        string
	ErrorMessage     string
	IncompleteReason string
}

// ApprovalRequest is an MCP tool call waiting for the caller's consent
type ApprovalRequest struct {
	ID          string
	ServerLabel string
	Name        string
	Arguments   string
}

// ApprovalDecision answers one ApprovalRequest
type ApprovalDecision struct {
	RequestID string
	Approve   bool
	Reason    string
}

// MCPCallRecord is an MCP tool call the service executed while responding
type MCPCallRecord struct {
	ID          string
	ServerLabel string
	Name        string
	Arguments   string
	Output      string
	Error       string
}
