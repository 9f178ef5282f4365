package foundry

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ingenimax/agent-harness-go/pkg/interfaces"
)

const approvalResponse = `{
	"id": "resp_1",
	"object": "response",
	"status": "completed",
	"output": [
		{"type": "mcp_list_tools", "id": "mcpl_1", "server_label": "custom-mcp-bearer", "tools": []},
		{"type": "mcp_approval_request", "id": "mcpr_1", "server_label": "custom-mcp-bearer", "name": "multiply", "arguments": "{\"a\":10,\"b\":20}"},
		{"type": "mcp_approval_request", "id": "mcpr_2", "server_label": "untrusted", "name": "delete_all", "arguments": "{}"}
	]
}`

const finalResponse = `{
	"id": "resp_2",
	"object": "response",
	"status": "completed",
	"output": [
		{"type": "mcp_call", "id": "mcp_1", "server_label": "custom-mcp-bearer", "name": "multiply", "arguments": "{\"a\":10,\"b\":20}", "output": "200", "error": null},
		{"type": "message", "id": "msg_1", "role": "assistant", "status": "completed",
		 "content": [{"type": "output_text", "text": "10 multiplied by 20 is 200.", "annotations": []}]}
	]
}`

func TestResponses_AskAndApprove(t *testing.T) {
	f, srv := newFakeService(t)
	f.on(http.MethodPost, "/api/projects/demo/openai/conversations", http.StatusOK, `{"id":"conv_1","object":"conversation"}`)
	f.on(http.MethodPost, "/api/projects/demo/openai/responses", http.StatusOK, approvalResponse)
	f.on(http.MethodPost, "/api/projects/demo/openai/responses", http.StatusOK, finalResponse)

	rc := newTestClient(t, srv).Responses()
	ctx := context.Background()
	agent := interfaces.AgentRef{Name: "FoundryNew-MCP-CustomAgent"}

	convID, err := rc.CreateConversation(ctx)
	require.NoError(t, err)
	assert.Equal(t, "conv_1", convID)

	first, err := rc.Ask(ctx, agent, convID, "multiply 10 and 20")
	require.NoError(t, err)
	assert.Equal(t, "resp_1", first.ID)
	assert.Equal(t, "completed", first.Status)
	require.Len(t, first.ApprovalRequests, 2)
	assert.Equal(t, interfaces.ApprovalRequest{
		ID:          "mcpr_1",
		ServerLabel: "custom-mcp-bearer",
		Name:        "multiply",
		Arguments:   `{"a":10,"b":20}`,
	}, first.ApprovalRequests[0])

	final, err := rc.Approve(ctx, agent, first.ID, []interfaces.ApprovalDecision{
		{RequestID: "mcpr_1", Approve: true},
		{RequestID: "mcpr_2", Approve: false, Reason: "server not trusted"},
	})
	require.NoError(t, err)
	assert.Equal(t, "10 multiplied by 20 is 200.", final.OutputText)
	assert.Empty(t, final.ApprovalRequests)
	require.Len(t, final.MCPCalls, 1)
	assert.Equal(t, "200", final.MCPCalls[0].Output)
	assert.Empty(t, final.MCPCalls[0].Error)

	reqs := f.requests(http.MethodPost, "/api/projects/demo/openai/responses")
	require.Len(t, reqs, 2)

	ask := reqs[0]
	assert.Equal(t, DefaultAPIVersion, ask.Query["api-version"])
	assert.Equal(t, "multiply 10 and 20", ask.Body["input"])
	assert.Equal(t, "conv_1", ask.Body["conversation"])
	assert.Equal(t, map[string]interface{}{"name": "FoundryNew-MCP-CustomAgent", "type": "agent_reference"}, ask.Body["agent"])

	approve := reqs[1]
	assert.Equal(t, "resp_1", approve.Body["previous_response_id"])
	assert.NotContains(t, approve.Body, "conversation")
	items := approve.Body["input"].([]interface{})
	require.Len(t, items, 2)
	accepted := items[0].(map[string]interface{})
	assert.Equal(t, "mcp_approval_response", accepted["type"])
	assert.Equal(t, "mcpr_1", accepted["approval_request_id"])
	assert.Equal(t, true, accepted["approve"])
	rejected := items[1].(map[string]interface{})
	assert.Equal(t, false, rejected["approve"])
	assert.Equal(t, "server not trusted", rejected["reason"])
}

func TestResponses_ApproveRequiresDecisions(t *testing.T) {
	_, srv := newFakeService(t)
	rc := newTestClient(t, srv).Responses()

	_, err := rc.Approve(context.Background(), interfaces.AgentRef{Name: "a"}, "resp_1", nil)
	assert.Error(t, err)
}

func TestResponses_PinnedVersionAndFailure(t *testing.T) {
	f, srv := newFakeService(t)
	f.on(http.MethodPost, "/api/projects/demo/openai/responses", http.StatusOK,
		`{"id":"resp_9","object":"response","status":"failed","error":{"code":"content_filter","message":"blocked"},"output":[]}`)

	rc := newTestClient(t, srv).Responses()
	resp, err := rc.Ask(context.Background(), interfaces.AgentRef{Name: "strict", Version: "3"}, "", "tell me something bad")
	require.NoError(t, err)
	assert.Equal(t, "failed", resp.Status)
	assert.Equal(t, CodeContentFilter, resp.ErrorCode)
	assert.Equal(t, "blocked", resp.ErrorMessage)

	req := f.requests(http.MethodPost, "/api/projects/demo/openai/responses")[0]
	assert.NotContains(t, req.Body, "conversation")
	assert.Equal(t, map[string]interface{}{"name": "strict", "type": "agent_reference", "version": "3"}, req.Body["agent"])
}
