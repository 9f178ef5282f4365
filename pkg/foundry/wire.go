package foundry

import (
	"encoding/json"
	"time"

	"github.com/Ingenimax/agent-harness-go/pkg/interfaces"
	"github.com/Ingenimax/agent-harness-go/pkg/runstep"
)

// Request and response bodies of the agents REST surface. They are declared
// here rather than taken from the SDK's assistant types because the service
// accepts MCP tool definitions, per-run tool resources and tool approvals the
// SDK does not model.

type assistantRequest struct {
	Model        string            `json:"model"`
	Name         string            `json:"name,omitempty"`
	Instructions string            `json:"instructions,omitempty"`
	Tools        []toolDefinition  `json:"tools,omitempty"`
	Temperature  *float64          `json:"temperature,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

type toolDefinition struct {
	Type         string   `json:"type"`
	ServerLabel  string   `json:"server_label,omitempty"`
	ServerURL    string   `json:"server_url,omitempty"`
	AllowedTools []string `json:"allowed_tools,omitempty"`
}

type assistantObject struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Model        string `json:"model"`
	Instructions string `json:"instructions"`
	CreatedAt    int64  `json:"created_at"`
}

type threadObject struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"created_at"`
}

type deletedObject struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

type messageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messageObject struct {
	ID        string            `json:"id"`
	Role      string            `json:"role"`
	RunID     string            `json:"run_id"`
	Content   []json.RawMessage `json:"content"`
	CreatedAt int64             `json:"created_at"`
}

type runRequest struct {
	AssistantID            string         `json:"assistant_id"`
	AdditionalInstructions string         `json:"additional_instructions,omitempty"`
	ToolResources          *toolResources `json:"tool_resources,omitempty"`
}

type toolResources struct {
	MCP []mcpToolResource `json:"mcp,omitempty"`
}

type mcpToolResource struct {
	ServerLabel     string            `json:"server_label"`
	Headers         map[string]string `json:"headers,omitempty"`
	RequireApproval string            `json:"require_approval,omitempty"`
}

type runObject struct {
	ID          string `json:"id"`
	ThreadID    string `json:"thread_id"`
	AssistantID string `json:"assistant_id"`
	Status      string `json:"status"`
	LastError   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error"`
	IncompleteDetails *struct {
		Reason string `json:"reason"`
	} `json:"incomplete_details"`
	RequiredAction *struct {
		Type               string `json:"type"`
		SubmitToolApproval *struct {
			ToolCalls []requiredToolCall `json:"tool_calls"`
		} `json:"submit_tool_approval"`
	} `json:"required_action"`
	CreatedAt   int64 `json:"created_at"`
	CompletedAt int64 `json:"completed_at"`
	Usage       *struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
		TotalTokens      int64 `json:"total_tokens"`
	} `json:"usage"`
}

type requiredToolCall struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	Arguments   string `json:"arguments"`
	ServerLabel string `json:"server_label"`
}

type toolApprovalRequest struct {
	ToolApprovals []toolApproval `json:"tool_approvals"`
}

type toolApproval struct {
	ToolCallID string            `json:"tool_call_id"`
	Approve    bool              `json:"approve"`
	Headers    map[string]string `json:"headers,omitempty"`
}

type listPage[T any] struct {
	Data    []T    `json:"data"`
	HasMore bool   `json:"has_more"`
	LastID  string `json:"last_id"`
}

func toAssistantRequest(spec interfaces.AgentSpec) assistantRequest {
	req := assistantRequest{
		Model:        spec.Model,
		Name:         spec.Name,
		Instructions: spec.Instructions,
		Temperature:  spec.Temperature,
		Metadata:     spec.Metadata,
	}
	for _, tool := range spec.Tools {
		req.Tools = append(req.Tools, toolDefinition{
			Type:         string(tool.Type),
			ServerLabel:  tool.ServerLabel,
			ServerURL:    tool.ServerURL,
			AllowedTools: tool.AllowedTools,
		})
	}
	return req
}

// toToolResources keeps only the MCP entries that carry headers or an approval mode
func toToolResources(tools []interfaces.ToolSpec) *toolResources {
	var res toolResources
	for _, tool := range tools {
		if tool.Type != interfaces.ToolTypeMCP {
			continue
		}
		if len(tool.Headers) == 0 && tool.RequireApproval == "" {
			continue
		}
		res.MCP = append(res.MCP, mcpToolResource{
			ServerLabel:     tool.ServerLabel,
			Headers:         tool.Headers,
			RequireApproval: tool.RequireApproval,
		})
	}
	if len(res.MCP) == 0 {
		return nil
	}
	return &res
}

func (a assistantObject) toInfo() *interfaces.AgentInfo {
	return &interfaces.AgentInfo{
		ID:           a.ID,
		Name:         a.Name,
		Model:        a.Model,
		Instructions: a.Instructions,
		CreatedAt:    unixTime(a.CreatedAt),
	}
}

func (m messageObject) toInfo() (interfaces.MessageInfo, error) {
	info := interfaces.MessageInfo{
		ID:        m.ID,
		Role:      interfaces.MessageRole(m.Role),
		RunID:     m.RunID,
		CreatedAt: unixTime(m.CreatedAt),
	}
	for _, raw := range m.Content {
		content, ok, err := runstep.ParseContent(raw)
		if err != nil {
			return info, err
		}
		if ok {
			info.Contents = append(info.Contents, content)
		}
	}
	return info, nil
}

func (r runObject) toInfo() *interfaces.RunInfo {
	info := &interfaces.RunInfo{
		ID:          r.ID,
		ThreadID:    r.ThreadID,
		AgentID:     r.AssistantID,
		Status:      interfaces.RunStatus(r.Status),
		CreatedAt:   unixTime(r.CreatedAt),
		CompletedAt: unixTime(r.CompletedAt),
	}
	if r.LastError != nil {
		info.LastError = &interfaces.RunError{Code: r.LastError.Code, Message: r.LastError.Message}
	}
	if r.IncompleteDetails != nil {
		info.IncompleteReason = r.IncompleteDetails.Reason
	}
	if r.RequiredAction != nil {
		action := &interfaces.RequiredAction{Type: r.RequiredAction.Type}
		if r.RequiredAction.SubmitToolApproval != nil {
			for _, call := range r.RequiredAction.SubmitToolApproval.ToolCalls {
				action.ApprovalRequests = append(action.ApprovalRequests, interfaces.ApprovalRequest{
					ID:          call.ID,
					ServerLabel: call.ServerLabel,
					Name:        call.Name,
					Arguments:   call.Arguments,
				})
			}
		}
		info.RequiredAction = action
	}
	if r.Usage != nil {
		info.Usage = interfaces.TokenUsage{
			PromptTokens:     r.Usage.PromptTokens,
			CompletionTokens: r.Usage.CompletionTokens,
			TotalTokens:      r.Usage.TotalTokens,
		}
	}
	return info
}

func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
