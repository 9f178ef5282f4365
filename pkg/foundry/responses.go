package foundry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/responses"

	"github.com/Ingenimax/agent-harness-go/pkg/interfaces"
	"github.com/Ingenimax/agent-harness-go/pkg/logging"
)

// ResponsesClient implements interfaces.ResponsesService
type ResponsesClient struct {
	client openai.Client
	logger logging.Logger
}

var _ interfaces.ResponsesService = (*ResponsesClient)(nil)

type conversationObject struct {
	ID string `json:"id"`
}

// CreateConversation opens a server-side conversation
func (r *ResponsesClient) CreateConversation(ctx context.Context) (string, error) {
	var out conversationObject
	if err := r.client.Post(ctx, "conversations", map[string]interface{}{}, &out); err != nil {
		return "", wrapError("CreateConversation", err)
	}
	r.logger.Debug(ctx, "Created conversation", map[string]interface{}{"conversation_id": out.ID})
	return out.ID, nil
}

// Ask sends user input to an agent within a conversation. An empty
// conversationID sends a standalone request.
func (r *ResponsesClient) Ask(ctx context.Context, agent interfaces.AgentRef, conversationID, input string) (*interfaces.Response, error) {
	params := responses.ResponseNewParams{
		Input: responses.ResponseNewParamsInputUnion{OfString: openai.String(input)},
	}

	opts := []option.RequestOption{option.WithJSONSet("agent", agentReference(agent))}
	if conversationID != "" {
		opts = append(opts, option.WithJSONSet("conversation", conversationID))
	}

	resp, err := r.client.Responses.New(ctx, params, opts...)
	if err != nil {
		return nil, wrapError("Ask", err)
	}
	return r.convert(ctx, resp)
}

// Approve answers the MCP approval requests of a previous response
func (r *ResponsesClient) Approve(ctx context.Context, agent interfaces.AgentRef, previousResponseID string, decisions []interfaces.ApprovalDecision) (*interfaces.Response, error) {
	if len(decisions) == 0 {
		return nil, fmt.Errorf("foundry: no approval decisions for response %s", previousResponseID)
	}

	items := make(responses.ResponseInputParam, 0, len(decisions))
	for _, d := range decisions {
		approval := responses.ResponseInputItemMcpApprovalResponseParam{
			ApprovalRequestID: d.RequestID,
			Approve:           d.Approve,
		}
		if d.Reason != "" {
			approval.Reason = openai.String(d.Reason)
		}
		items = append(items, responses.ResponseInputItemUnionParam{OfMcpApprovalResponse: &approval})
	}

	params := responses.ResponseNewParams{
		Input:              responses.ResponseNewParamsInputUnion{OfInputItemList: items},
		PreviousResponseID: openai.String(previousResponseID),
	}

	resp, err := r.client.Responses.New(ctx, params, option.WithJSONSet("agent", agentReference(agent)))
	if err != nil {
		return nil, wrapError("Approve", err)
	}
	return r.convert(ctx, resp)
}

func agentReference(agent interfaces.AgentRef) map[string]string {
	ref := map[string]string{"name": agent.Name, "type": "agent_reference"}
	if agent.Version != "" {
		ref["version"] = agent.Version
	}
	return ref
}

// responseBody is the subset of a response read directly from its JSON. Output
// items are decoded here so that approval requests and MCP calls do not depend
// on which item variants the SDK models.
type responseBody struct {
	Status string `json:"status"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	IncompleteDetails *struct {
		Reason string `json:"reason"`
	} `json:"incomplete_details"`
	Output []struct {
		Type        string          `json:"type"`
		ID          string          `json:"id"`
		ServerLabel string          `json:"server_label"`
		Name        string          `json:"name"`
		Arguments   string          `json:"arguments"`
		Output      json.RawMessage `json:"output"`
		Error       json.RawMessage `json:"error"`
	} `json:"output"`
}

func (r *ResponsesClient) convert(ctx context.Context, resp *responses.Response) (*interfaces.Response, error) {
	out := &interfaces.Response{
		ID:         resp.ID,
		OutputText: resp.OutputText(),
	}

	var body responseBody
	if raw := resp.RawJSON(); raw != "" {
		if err := json.Unmarshal([]byte(raw), &body); err != nil {
			return nil, fmt.Errorf("failed to decode response %s: %w", resp.ID, err)
		}
	}

	out.Status = body.Status
	if body.Error != nil {
		out.ErrorCode = body.Error.Code
		out.ErrorMessage = body.Error.Message
	}
	if body.IncompleteDetails != nil {
		out.IncompleteReason = body.IncompleteDetails.Reason
	}

	for _, item := range body.Output {
		switch item.Type {
		case "mcp_approval_request":
			out.ApprovalRequests = append(out.ApprovalRequests, interfaces.ApprovalRequest{
				ID:          item.ID,
				ServerLabel: item.ServerLabel,
				Name:        item.Name,
				Arguments:   item.Arguments,
			})
		case "mcp_call":
			out.MCPCalls = append(out.MCPCalls, interfaces.MCPCallRecord{
				ID:          item.ID,
				ServerLabel: item.ServerLabel,
				Name:        item.Name,
				Arguments:   item.Arguments,
				Output:      rawText(item.Output),
				Error:       rawText(item.Error),
			})
		}
	}

	r.logger.Debug(ctx, "Received response", map[string]interface{}{
		"response_id":       out.ID,
		"status":            out.Status,
		"approval_requests": len(out.ApprovalRequests),
		"mcp_calls":         len(out.MCPCalls),
	})
	return out, nil
}

// rawText returns a JSON string's value, or the compact JSON of anything else
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
