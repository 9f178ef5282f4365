package foundry

import (
	"context"
	"net/url"

	"github.com/Ingenimax/agent-harness-go/pkg/interfaces"
)

// PromptAgent is a named, versioned agent addressed through the responses API
type PromptAgent struct {
	ID            string
	Name          string
	LatestVersion string
}

// Ref returns a reference to the agent's latest version
func (a *PromptAgent) Ref() interfaces.AgentRef {
	return interfaces.AgentRef{Name: a.Name}
}

type promptAgentVersionRequest struct {
	Definition promptDefinition `json:"definition"`
}

type promptDefinition struct {
	Kind         string             `json:"kind"`
	Model        string             `json:"model"`
	Instructions string             `json:"instructions,omitempty"`
	Temperature  *float64           `json:"temperature,omitempty"`
	Tools        []promptToolObject `json:"tools,omitempty"`
}

// promptToolObject carries MCP headers inline; prompt agents have no per-run tool resources
type promptToolObject struct {
	Type            string            `json:"type"`
	ServerLabel     string            `json:"server_label,omitempty"`
	ServerURL       string            `json:"server_url,omitempty"`
	AllowedTools    []string          `json:"allowed_tools,omitempty"`
	RequireApproval string            `json:"require_approval,omitempty"`
	Headers         map[string]string `json:"headers,omitempty"`
}

type promptAgentVersionObject struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

type promptAgentObject struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Versions struct {
		Latest struct {
			Version string `json:"version"`
		} `json:"latest"`
	} `json:"versions"`
}

// CreateAgentVersion creates a new version of a prompt agent, creating the
// agent itself on first use.
func (c *Client) CreateAgentVersion(ctx context.Context, spec interfaces.AgentSpec) (*PromptAgent, error) {
	body := promptAgentVersionRequest{Definition: promptDefinition{
		Kind:         "prompt",
		Model:        spec.Model,
		Instructions: spec.Instructions,
		Temperature:  spec.Temperature,
	}}
	for _, tool := range spec.Tools {
		body.Definition.Tools = append(body.Definition.Tools, promptToolObject{
			Type:            string(tool.Type),
			ServerLabel:     tool.ServerLabel,
			ServerURL:       tool.ServerURL,
			AllowedTools:    tool.AllowedTools,
			RequireApproval: tool.RequireApproval,
			Headers:         tool.Headers,
		})
	}

	var out promptAgentVersionObject
	if err := c.client.Post(ctx, promptAgentPath(spec.Name)+"/versions", body, &out); err != nil {
		return nil, wrapError("CreateAgentVersion", err)
	}

	c.logger.Info(ctx, "Created agent version", map[string]interface{}{
		"agent_id": out.ID,
		"name":     out.Name,
		"version":  out.Version,
	})
	return &PromptAgent{ID: out.ID, Name: out.Name, LatestVersion: out.Version}, nil
}

// GetPromptAgent fetches a prompt agent and its latest version by name
func (c *Client) GetPromptAgent(ctx context.Context, name string) (*PromptAgent, error) {
	var out promptAgentObject
	if err := c.client.Get(ctx, promptAgentPath(name), nil, &out); err != nil {
		return nil, wrapError("GetPromptAgent", err)
	}
	return &PromptAgent{ID: out.ID, Name: out.Name, LatestVersion: out.Versions.Latest.Version}, nil
}

// DeleteAgentVersion removes one version of a prompt agent
func (c *Client) DeleteAgentVersion(ctx context.Context, name, version string) error {
	var out deletedObject
	if err := c.client.Delete(ctx, promptAgentPath(name)+"/versions/"+url.PathEscape(version), nil, &out); err != nil {
		return wrapError("DeleteAgentVersion", err)
	}
	return nil
}

func promptAgentPath(name string) string {
	return "agents/" + url.PathEscape(name)
}
