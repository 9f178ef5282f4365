package foundry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/openai/openai-go/v2/option"

	"github.com/Ingenimax/agent-harness-go/pkg/interfaces"
	"github.com/Ingenimax/agent-harness-go/pkg/runstep"
)

const listPageSize = "100"

// CreateAgent creates a persistent agent
func (c *Client) CreateAgent(ctx context.Context, spec interfaces.AgentSpec) (*interfaces.AgentInfo, error) {
	var out assistantObject
	if err := c.client.Post(ctx, "assistants", toAssistantRequest(spec), &out); err != nil {
		return nil, wrapError("CreateAgent", err)
	}

	c.logger.Debug(ctx, "Created agent", map[string]interface{}{
		"agent_id": out.ID,
		"name":     out.Name,
		"model":    out.Model,
		"tools":    len(spec.Tools),
	})
	return out.toInfo(), nil
}

// GetAgent fetches an existing agent by ID
func (c *Client) GetAgent(ctx context.Context, agentID string) (*interfaces.AgentInfo, error) {
	var out assistantObject
	if err := c.client.Get(ctx, "assistants/"+url.PathEscape(agentID), nil, &out); err != nil {
		return nil, wrapError("GetAgent", err)
	}
	return out.toInfo(), nil
}

// DeleteAgent removes an agent
func (c *Client) DeleteAgent(ctx context.Context, agentID string) error {
	var out deletedObject
	if err := c.client.Delete(ctx, "assistants/"+url.PathEscape(agentID), nil, &out); err != nil {
		return wrapError("DeleteAgent", err)
	}
	c.logger.Debug(ctx, "Deleted agent", map[string]interface{}{"agent_id": agentID})
	return nil
}

// CreateThread opens a new conversation thread
func (c *Client) CreateThread(ctx context.Context) (*interfaces.ThreadInfo, error) {
	var out threadObject
	if err := c.client.Post(ctx, "threads", map[string]interface{}{}, &out); err != nil {
		return nil, wrapError("CreateThread", err)
	}
	c.logger.Debug(ctx, "Created thread", map[string]interface{}{"thread_id": out.ID})
	return &interfaces.ThreadInfo{ID: out.ID, CreatedAt: unixTime(out.CreatedAt)}, nil
}

// DeleteThread removes a thread and its messages
func (c *Client) DeleteThread(ctx context.Context, threadID string) error {
	var out deletedObject
	if err := c.client.Delete(ctx, threadPath(threadID), nil, &out); err != nil {
		return wrapError("DeleteThread", err)
	}
	c.logger.Debug(ctx, "Deleted thread", map[string]interface{}{"thread_id": threadID})
	return nil
}

// SendMessage appends a user message to a thread
func (c *Client) SendMessage(ctx context.Context, threadID, content string) (*interfaces.MessageInfo, error) {
	body := messageRequest{Role: string(interfaces.MessageRoleUser), Content: content}

	var out messageObject
	if err := c.client.Post(ctx, threadPath(threadID)+"/messages", body, &out); err != nil {
		return nil, wrapError("SendMessage", err)
	}

	info, err := out.toInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to decode message %s: %w", out.ID, err)
	}
	return &info, nil
}

// CreateRun asks an agent to process a thread
func (c *Client) CreateRun(ctx context.Context, threadID string, req interfaces.RunRequest) (*interfaces.RunInfo, error) {
	body := runRequest{
		AssistantID:            req.AgentID,
		AdditionalInstructions: req.AdditionalInstructions,
		ToolResources:          toToolResources(req.ToolResources),
	}

	var out runObject
	if err := c.client.Post(ctx, threadPath(threadID)+"/runs", body, &out); err != nil {
		return nil, wrapError("CreateRun", err)
	}

	c.logger.Debug(ctx, "Created run", map[string]interface{}{
		"thread_id": threadID,
		"run_id":    out.ID,
		"status":    out.Status,
	})
	return out.toInfo(), nil
}

// GetRun fetches the current state of a run
func (c *Client) GetRun(ctx context.Context, threadID, runID string) (*interfaces.RunInfo, error) {
	var out runObject
	if err := c.client.Get(ctx, runPath(threadID, runID), nil, &out); err != nil {
		return nil, wrapError("GetRun", err)
	}
	return out.toInfo(), nil
}

// CancelRun requests cancellation of a run
func (c *Client) CancelRun(ctx context.Context, threadID, runID string) (*interfaces.RunInfo, error) {
	var out runObject
	if err := c.client.Post(ctx, runPath(threadID, runID)+"/cancel", map[string]interface{}{}, &out); err != nil {
		return nil, wrapError("CancelRun", err)
	}
	return out.toInfo(), nil
}

// SubmitToolApprovals answers the MCP approval requests of a run in requires_action
func (c *Client) SubmitToolApprovals(ctx context.Context, threadID, runID string, approvals []interfaces.ToolApproval) (*interfaces.RunInfo, error) {
	body := toolApprovalRequest{ToolApprovals: make([]toolApproval, 0, len(approvals))}
	for _, a := range approvals {
		body.ToolApprovals = append(body.ToolApprovals, toolApproval{
			ToolCallID: a.ToolCallID,
			Approve:    a.Approve,
			Headers:    a.Headers,
		})
	}

	var out runObject
	if err := c.client.Post(ctx, runPath(threadID, runID)+"/submit_tool_outputs", body, &out); err != nil {
		return nil, wrapError("SubmitToolApprovals", err)
	}

	c.logger.Debug(ctx, "Submitted tool approvals", map[string]interface{}{
		"thread_id": threadID,
		"run_id":    runID,
		"count":     len(approvals),
		"status":    out.Status,
	})
	return out.toInfo(), nil
}

// ListMessages returns all messages of a thread, oldest first
func (c *Client) ListMessages(ctx context.Context, threadID string) ([]interfaces.MessageInfo, error) {
	var messages []interfaces.MessageInfo
	err := listAll(ctx, c, threadPath(threadID)+"/messages", func(m messageObject) error {
		info, err := m.toInfo()
		if err != nil {
			return fmt.Errorf("failed to decode message %s: %w", m.ID, err)
		}
		messages = append(messages, info)
		return nil
	})
	if err != nil {
		return nil, wrapError("ListMessages", err)
	}
	return messages, nil
}

// ListRunSteps returns the steps of a run, oldest first. Step or tool call
// kinds this client does not know are skipped.
func (c *Client) ListRunSteps(ctx context.Context, threadID, runID string) ([]runstep.Step, error) {
	var steps []runstep.Step
	err := listAll(ctx, c, runPath(threadID, runID)+"/steps", func(raw json.RawMessage) error {
		step, ok, err := runstep.ParseStep(raw)
		if err != nil {
			return fmt.Errorf("failed to decode run step: %w", err)
		}
		if ok {
			steps = append(steps, step)
		}
		return nil
	})
	if err != nil {
		return nil, wrapError("ListRunSteps", err)
	}
	return steps, nil
}

// listAll walks a cursor-paginated list endpoint in ascending order
func listAll[T any](ctx context.Context, c *Client, path string, each func(T) error) error {
	after := ""
	for {
		opts := []option.RequestOption{
			option.WithQuery("order", "asc"),
			option.WithQuery("limit", listPageSize),
		}
		if after != "" {
			opts = append(opts, option.WithQuery("after", after))
		}

		var page listPage[T]
		if err := c.client.Get(ctx, path, nil, &page, opts...); err != nil {
			return err
		}
		for _, item := range page.Data {
			if err := each(item); err != nil {
				return err
			}
		}
		if !page.HasMore || page.LastID == "" || page.LastID == after {
			return nil
		}
		after = page.LastID
	}
}

func threadPath(threadID string) string {
	return "threads/" + url.PathEscape(threadID)
}

func runPath(threadID, runID string) string {
	return threadPath(threadID) + "/runs/" + url.PathEscape(runID)
}
