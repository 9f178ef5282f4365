package mcp

import (
	"context"
	"fmt"

	"github.com/Ingenimax/agent-harness-go/pkg/interfaces"
)

// Prompter asks a human whether a tool call may run
type Prompter func(ctx context.Context, req interfaces.ApprovalRequest) (bool, error)

// ApprovalPolicy decides which MCP approval requests are granted.
//
// Requests from servers configured with require_approval "never" are approved
// automatically. Requests from servers configured with "always" go to the
// Prompter, or are rejected when there is none. Requests from unknown servers
// are rejected unless AutoApproveAll is set.
type ApprovalPolicy struct {
	servers        map[string]ServerConfig
	AutoApproveAll bool
	Prompter       Prompter
}

// NewApprovalPolicy builds a policy over the given servers
func NewApprovalPolicy(servers ...ServerConfig) *ApprovalPolicy {
	p := &ApprovalPolicy{servers: make(map[string]ServerConfig, len(servers))}
	for _, s := range servers {
		p.servers[s.Name] = s
	}
	return p
}

// PolicyFromConfig builds a policy over the enabled servers of cfg
func PolicyFromConfig(cfg *Configuration) *ApprovalPolicy {
	p := NewApprovalPolicy(cfg.EnabledServers()...)
	p.AutoApproveAll = cfg.Global.AutoApprove
	return p
}

// Decide answers each request in order
func (p *ApprovalPolicy) Decide(ctx context.Context, reqs []interfaces.ApprovalRequest) ([]interfaces.ApprovalDecision, error) {
	decisions := make([]interfaces.ApprovalDecision, 0, len(reqs))
	for _, req := range reqs {
		d, err := p.decide(ctx, req)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}
	return decisions, nil
}

func (p *ApprovalPolicy) decide(ctx context.Context, req interfaces.ApprovalRequest) (interfaces.ApprovalDecision, error) {
	approve := interfaces.ApprovalDecision{RequestID: req.ID, Approve: true}
	reject := func(reason string) interfaces.ApprovalDecision {
		return interfaces.ApprovalDecision{RequestID: req.ID, Reason: reason}
	}

	if p.AutoApproveAll {
		return approve, nil
	}

	server, known := p.servers[req.ServerLabel]
	if !known {
		return reject(fmt.Sprintf("server %q is not configured", req.ServerLabel)), nil
	}
	if !toolAllowed(server.AllowedTools, req.Name) {
		return reject(fmt.Sprintf("tool %q is not allowed on server %q", req.Name, req.ServerLabel)), nil
	}

	if server.RequireApproval != ApprovalAlways {
		return approve, nil
	}
	if p.Prompter == nil {
		return reject("approval required and no prompter configured"), nil
	}

	ok, err := p.Prompter(ctx, req)
	if err != nil {
		return interfaces.ApprovalDecision{}, NewMCPError("Approve", req.ServerLabel, server.Type, MCPErrorTypeUnknown, err).
			WithMetadata("tool_name", req.Name)
	}
	if !ok {
		return reject("declined by user"), nil
	}
	return approve, nil
}

func toolAllowed(allowed []string, name string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == name {
			return true
		}
	}
	return false
}
