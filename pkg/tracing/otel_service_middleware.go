package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Ingenimax/agent-harness-go/pkg/interfaces"
	"github.com/Ingenimax/agent-harness-go/pkg/runstep"
)

// ServiceMiddleware records a span for every call to the wrapped AgentService
type ServiceMiddleware struct {
	svc    interfaces.AgentService
	tracer trace.Tracer
}

var _ interfaces.AgentService = (*ServiceMiddleware)(nil)

// NewServiceMiddleware wraps svc
func NewServiceMiddleware(svc interfaces.AgentService, tracer trace.Tracer) *ServiceMiddleware {
	return &ServiceMiddleware{
		svc:    svc,
		tracer: tracer,
	}
}

func (m *ServiceMiddleware) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, "agent."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// end closes span, marking it failed when err is set
func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// CreateAgent implements interfaces.AgentService
func (m *ServiceMiddleware) CreateAgent(ctx context.Context, spec interfaces.AgentSpec) (*interfaces.AgentInfo, error) {
	ctx, span := m.start(ctx, "CreateAgent",
		attribute.String("agent.name", spec.Name),
		attribute.String("agent.model", spec.Model),
		attribute.Int("agent.tools", len(spec.Tools)),
	)
	info, err := m.svc.CreateAgent(ctx, spec)
	if err == nil {
		span.SetAttributes(attribute.String("agent.id", info.ID))
	}
	end(span, err)
	return info, err
}

// GetAgent implements interfaces.AgentService
func (m *ServiceMiddleware) GetAgent(ctx context.Context, agentID string) (*interfaces.AgentInfo, error) {
	ctx, span := m.start(ctx, "GetAgent", attribute.String("agent.id", agentID))
	info, err := m.svc.GetAgent(ctx, agentID)
	end(span, err)
	return info, err
}

// DeleteAgent implements interfaces.AgentService
func (m *ServiceMiddleware) DeleteAgent(ctx context.Context, agentID string) error {
	ctx, span := m.start(ctx, "DeleteAgent", attribute.String("agent.id", agentID))
	err := m.svc.DeleteAgent(ctx, agentID)
	end(span, err)
	return err
}

// CreateThread implements interfaces.AgentService
func (m *ServiceMiddleware) CreateThread(ctx context.Context) (*interfaces.ThreadInfo, error) {
	ctx, span := m.start(ctx, "CreateThread")
	info, err := m.svc.CreateThread(ctx)
	if err == nil {
		span.SetAttributes(attribute.String("thread.id", info.ID))
	}
	end(span, err)
	return info, err
}

// DeleteThread implements interfaces.AgentService
func (m *ServiceMiddleware) DeleteThread(ctx context.Context, threadID string) error {
	ctx, span := m.start(ctx, "DeleteThread", attribute.String("thread.id", threadID))
	err := m.svc.DeleteThread(ctx, threadID)
	end(span, err)
	return err
}

// SendMessage implements interfaces.AgentService. The message text is not recorded.
func (m *ServiceMiddleware) SendMessage(ctx context.Context, threadID, content string) (*interfaces.MessageInfo, error) {
	ctx, span := m.start(ctx, "SendMessage",
		attribute.String("thread.id", threadID),
		attribute.Int("message.length", len(content)),
	)
	info, err := m.svc.SendMessage(ctx, threadID, content)
	end(span, err)
	return info, err
}

// CreateRun implements interfaces.AgentService
func (m *ServiceMiddleware) CreateRun(ctx context.Context, threadID string, req interfaces.RunRequest) (*interfaces.RunInfo, error) {
	ctx, span := m.start(ctx, "CreateRun",
		attribute.String("thread.id", threadID),
		attribute.String("agent.id", req.AgentID),
	)
	run, err := m.svc.CreateRun(ctx, threadID, req)
	if err == nil {
		span.SetAttributes(attribute.String("run.id", run.ID), attribute.String("run.status", string(run.Status)))
	}
	end(span, err)
	return run, err
}

// GetRun implements interfaces.AgentService
func (m *ServiceMiddleware) GetRun(ctx context.Context, threadID, runID string) (*interfaces.RunInfo, error) {
	ctx, span := m.start(ctx, "GetRun", attribute.String("thread.id", threadID), attribute.String("run.id", runID))
	run, err := m.svc.GetRun(ctx, threadID, runID)
	if err == nil {
		span.SetAttributes(attribute.String("run.status", string(run.Status)))
		if run.LastError != nil {
			span.SetAttributes(attribute.String("run.error_code", run.LastError.Code))
		}
	}
	end(span, err)
	return run, err
}

// CancelRun implements interfaces.AgentService
func (m *ServiceMiddleware) CancelRun(ctx context.Context, threadID, runID string) (*interfaces.RunInfo, error) {
	ctx, span := m.start(ctx, "CancelRun", attribute.String("thread.id", threadID), attribute.String("run.id", runID))
	run, err := m.svc.CancelRun(ctx, threadID, runID)
	end(span, err)
	return run, err
}

// SubmitToolApprovals implements interfaces.AgentService
func (m *ServiceMiddleware) SubmitToolApprovals(ctx context.Context, threadID, runID string, approvals []interfaces.ToolApproval) (*interfaces.RunInfo, error) {
	ctx, span := m.start(ctx, "SubmitToolApprovals",
		attribute.String("thread.id", threadID),
		attribute.String("run.id", runID),
		attribute.Int("approvals.count", len(approvals)),
	)
	run, err := m.svc.SubmitToolApprovals(ctx, threadID, runID, approvals)
	end(span, err)
	return run, err
}

// ListMessages implements interfaces.AgentService
func (m *ServiceMiddleware) ListMessages(ctx context.Context, threadID string) ([]interfaces.MessageInfo, error) {
	ctx, span := m.start(ctx, "ListMessages", attribute.String("thread.id", threadID))
	messages, err := m.svc.ListMessages(ctx, threadID)
	if err == nil {
		span.SetAttributes(attribute.Int("messages.count", len(messages)))
	}
	end(span, err)
	return messages, err
}

// ListRunSteps implements interfaces.AgentService
func (m *ServiceMiddleware) ListRunSteps(ctx context.Context, threadID, runID string) ([]runstep.Step, error) {
	ctx, span := m.start(ctx, "ListRunSteps", attribute.String("thread.id", threadID), attribute.String("run.id", runID))
	steps, err := m.svc.ListRunSteps(ctx, threadID, runID)
	if err == nil {
		span.SetAttributes(
			attribute.Int("steps.count", len(steps)),
			attribute.Int("steps.mcp_calls", len(runstep.MCPCalls(steps))),
		)
	}
	end(span, err)
	return steps, err
}
