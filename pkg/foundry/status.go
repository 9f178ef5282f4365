package foundry

import (
	"context"

	"github.com/Ingenimax/agent-harness-go/pkg/interfaces"
	"github.com/Ingenimax/agent-harness-go/pkg/poll"
)

// RunStatuses classifies run status values
var RunStatuses = poll.StatusMap{
	string(interfaces.RunStatusQueued):         poll.ClassPending,
	string(interfaces.RunStatusInProgress):     poll.ClassPending,
	string(interfaces.RunStatusRequiresAction): poll.ClassPending,
	string(interfaces.RunStatusCancelling):     poll.ClassPending,
	string(interfaces.RunStatusCompleted):      poll.ClassSucceeded,
	string(interfaces.RunStatusFailed):         poll.ClassFailed,
	string(interfaces.RunStatusCancelled):      poll.ClassFailed,
	string(interfaces.RunStatusExpired):        poll.ClassFailed,
	string(interfaces.RunStatusIncomplete):     poll.ClassFailed,
}

// ActionRunStatuses classifies like RunStatuses but ends a wait on
// requires_action, for callers that answer pending tool approvals themselves
var ActionRunStatuses = func() poll.StatusMap {
	m := make(poll.StatusMap, len(RunStatuses))
	for status, class := range RunStatuses {
		m[status] = class
	}
	m[string(interfaces.RunStatusRequiresAction)] = poll.ClassFailed
	return m
}()

// RunStatus converts a run snapshot into a poll status
func RunStatus(run *interfaces.RunInfo) poll.Status {
	status := poll.Status{
		Value: string(run.Status),
		Class: RunStatuses.Classify(string(run.Status)),
	}
	switch {
	case run.LastError != nil && run.LastError.Message != "":
		status.Detail = run.LastError.Code + ": " + run.LastError.Message
	case run.LastError != nil:
		status.Detail = run.LastError.Code
	case run.IncompleteReason != "":
		status.Detail = "incomplete: " + run.IncompleteReason
	}
	return status
}

// RunHandle identifies a run for the poller
func RunHandle(run *interfaces.RunInfo) poll.Handle {
	return poll.NewHandle(run.ThreadID, run.ID)
}

// RunFetcher returns a FetchFunc reading runs through svc. Every snapshot is
// passed to observe, when set, so callers can keep the latest full run.
func RunFetcher(svc interfaces.AgentService, observe func(*interfaces.RunInfo)) poll.FetchFunc {
	return func(ctx context.Context, h poll.Handle) (poll.Status, error) {
		run, err := svc.GetRun(ctx, h.Container, h.ID)
		if err != nil {
			return poll.Status{}, err
		}
		if observe != nil {
			observe(run)
		}
		return RunStatus(run), nil
	}
}
