package foundry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/openai/openai-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ingenimax/agent-harness-go/pkg/interfaces"
	"github.com/Ingenimax/agent-harness-go/pkg/poll"
)

func TestRunStatuses(t *testing.T) {
	tests := []struct {
		status interfaces.RunStatus
		want   poll.Class
	}{
		{interfaces.RunStatusQueued, poll.ClassPending},
		{interfaces.RunStatusInProgress, poll.ClassPending},
		{interfaces.RunStatusRequiresAction, poll.ClassPending},
		{interfaces.RunStatusCancelling, poll.ClassPending},
		{interfaces.RunStatusCompleted, poll.ClassSucceeded},
		{interfaces.RunStatusFailed, poll.ClassFailed},
		{interfaces.RunStatusCancelled, poll.ClassFailed},
		{interfaces.RunStatusExpired, poll.ClassFailed},
		{interfaces.RunStatusIncomplete, poll.ClassFailed},
		{"some_future_status", poll.ClassPending},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, RunStatuses.Classify(string(tt.status)))
		})
	}
}

func TestActionRunStatuses(t *testing.T) {
	assert.Equal(t, poll.ClassFailed, ActionRunStatuses.Classify(string(interfaces.RunStatusRequiresAction)))
	assert.Equal(t, poll.ClassPending, RunStatuses.Classify(string(interfaces.RunStatusRequiresAction)), "the shared map stays unchanged")
	for status, class := range RunStatuses {
		if status == string(interfaces.RunStatusRequiresAction) {
			continue
		}
		assert.Equal(t, class, ActionRunStatuses.Classify(status), status)
	}
}

func TestRunStatus_Detail(t *testing.T) {
	tests := []struct {
		name string
		run  interfaces.RunInfo
		want string
	}{
		{name: "none", run: interfaces.RunInfo{Status: interfaces.RunStatusCompleted}},
		{
			name: "error with message",
			run:  interfaces.RunInfo{Status: interfaces.RunStatusFailed, LastError: &interfaces.RunError{Code: "content_filter", Message: "blocked"}},
			want: "content_filter: blocked",
		},
		{
			name: "code only",
			run:  interfaces.RunInfo{Status: interfaces.RunStatusFailed, LastError: &interfaces.RunError{Code: "rate_limit_exceeded"}},
			want: "rate_limit_exceeded",
		},
		{
			name: "incomplete",
			run:  interfaces.RunInfo{Status: interfaces.RunStatusIncomplete, IncompleteReason: "max_completion_tokens"},
			want: "incomplete: max_completion_tokens",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RunStatus(&tt.run).Detail)
		})
	}
}

// scriptedRuns answers GetRun with a fixed sequence of statuses
type scriptedRuns struct {
	interfaces.AgentService
	statuses []interfaces.RunStatus
	calls    int
}

func (s *scriptedRuns) GetRun(_ context.Context, threadID, runID string) (*interfaces.RunInfo, error) {
	status := s.statuses[s.calls]
	s.calls++
	return &interfaces.RunInfo{ID: runID, ThreadID: threadID, Status: status}, nil
}

func TestRunFetcher_DrivesPoller(t *testing.T) {
	svc := &scriptedRuns{statuses: []interfaces.RunStatus{
		interfaces.RunStatusInProgress,
		interfaces.RunStatusInProgress,
		interfaces.RunStatusCompleted,
	}}

	var observed []interfaces.RunStatus
	fetch := RunFetcher(svc, func(run *interfaces.RunInfo) { observed = append(observed, run.Status) })

	clock := newAutoClock(time.Unix(0, 0))
	run := &interfaces.RunInfo{ID: "run_1", ThreadID: "thread_1", Status: interfaces.RunStatusQueued}
	status, err := poll.New(poll.WithPolicy(poll.Policy{Clock: clock})).WaitFrom(context.Background(), RunHandle(run), RunStatus(run), fetch)
	require.NoError(t, err)

	assert.Equal(t, poll.ClassSucceeded, status.Class)
	assert.Equal(t, 3, svc.calls)
	assert.Equal(t, []interfaces.RunStatus{"in_progress", "in_progress", "completed"}, observed)
}

func TestRunFetcher_PropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	fetch := RunFetcher(failingRuns{err: boom}, nil)
	_, err := fetch(context.Background(), poll.NewHandle("thread_1", "run_1"))
	assert.ErrorIs(t, err, boom)
}

type failingRuns struct {
	interfaces.AgentService
	err error
}

func (f failingRuns) GetRun(context.Context, string, string) (*interfaces.RunInfo, error) {
	return nil, f.err
}

func TestWrapError(t *testing.T) {
	assert.NoError(t, wrapError("Op", nil))
	assert.Equal(t, context.Canceled, wrapError("Op", context.Canceled))

	sdkErr := &openai.Error{StatusCode: http.StatusBadRequest, Code: CodeContentFilter, Message: "The prompt was filtered"}
	err := wrapError("SendMessage", fmt.Errorf("request: %w", sdkErr))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.True(t, apiErr.IsContentFilter())
	assert.True(t, IsContentFilter(err))
	assert.Equal(t, "foundry: SendMessage failed (status 400, code content_filter): The prompt was filtered", apiErr.Error())

	throttled := wrapError("GetRun", &openai.Error{StatusCode: http.StatusTooManyRequests, Message: "slow down"})
	require.True(t, errors.As(throttled, &apiErr))
	assert.True(t, apiErr.IsRetryable())
	assert.False(t, IsContentFilter(throttled))

	denied := wrapError("GetRun", &openai.Error{StatusCode: http.StatusForbidden, Message: "denied"})
	assert.ErrorIs(t, denied, ErrUnauthorized)
	assert.NotErrorIs(t, denied, ErrNotFound)

	plain := wrapError("GetRun", errors.New("dial tcp: refused"))
	assert.Equal(t, "foundry: GetRun failed: dial tcp: refused", plain.Error())
}

func TestCredentials(t *testing.T) {
	creds := Credentials{TenantID: "tenant-1", ClientID: "c", ClientSecret: "s"}
	assert.Equal(t, "https://login.microsoftonline.com/tenant-1/oauth2/v2.0/token", creds.TokenURL())

	hc, err := CredentialsHTTPClient(context.Background(), creds)
	require.NoError(t, err)
	assert.NotNil(t, hc)

	_, err = CredentialsHTTPClient(context.Background(), Credentials{TenantID: "t"})
	assert.Error(t, err)
}

// autoClock fires every timer as soon as it is set, moving fake time forward
// by the requested duration
type autoClock struct {
	*clockwork.FakeClock
}

func newAutoClock(start time.Time) autoClock {
	return autoClock{clockwork.NewFakeClockAt(start)}
}

func (c autoClock) After(d time.Duration) <-chan time.Time {
	ch := c.FakeClock.After(d)
	c.Advance(d)
	return ch
}
