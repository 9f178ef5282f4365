// Package poll waits for remote long-running tasks to reach a terminal status.
//
// A task is identified by an opaque Handle and observed through an injected
// FetchFunc. The poller sleeps a fixed interval before every fetch, stops as
// soon as a terminal status is seen and never fetches again afterwards.
package poll

import (
	"context"
	"fmt"
	"time"
)

// DefaultInterval is the fixed delay between two status fetches
const DefaultInterval = 500 * time.Millisecond

// Class groups concrete remote statuses into the three states the poller cares about
type Class int

const (
	// ClassPending means the task is queued or running; poll again
	ClassPending Class = iota
	// ClassSucceeded is the terminal success class
	ClassSucceeded
	// ClassFailed is the terminal failure class (failed, cancelled, expired, incomplete)
	ClassFailed
)

// String implements fmt.Stringer
func (c Class) String() string {
	switch c {
	case ClassPending:
		return "pending"
	case ClassSucceeded:
		return "succeeded"
	case ClassFailed:
		return "failed"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// Terminal reports whether no further transition can happen from this class
func (c Class) Terminal() bool {
	return c == ClassSucceeded || c == ClassFailed
}

// Handle identifies a remote task, e.g. a run inside a thread
type Handle struct {
	Container string
	ID        string
}

// NewHandle builds a handle from a container id and an item id
func NewHandle(container, id string) Handle {
	return Handle{Container: container, ID: id}
}

// String renders the handle as container/id
func (h Handle) String() string {
	if h.Container == "" {
		return h.ID
	}
	return h.Container + "/" + h.ID
}

// Status is one observation of a remote task
type Status struct {
	// Value is the remote system's own status string, e.g. "in_progress"
	Value string
	// Class is filled in by the fetch function or by the poller's Classifier
	Class Class
	// Detail carries failure information for terminal failures
	Detail string
}

// Terminal reports whether the status ends polling
func (s Status) Terminal() bool {
	return s.Class.Terminal()
}

// FetchFunc retrieves the current status of a task. It must be read-only.
type FetchFunc func(ctx context.Context, h Handle) (Status, error)

// Classifier maps a remote status value onto a Class
type Classifier interface {
	Classify(value string) Class
}

// StatusMap is a Classifier backed by a lookup table. Values missing from the
// table are treated as pending.
type StatusMap map[string]Class

// Classify implements Classifier
func (m StatusMap) Classify(value string) Class {
	if c, ok := m[value]; ok {
		return c
	}
	return ClassPending
}

// Policy configures how a poller waits
type Policy struct {
	// Interval between fetches. Zero means DefaultInterval.
	Interval time.Duration
	// Timeout bounds the whole wait. Zero disables the deadline.
	Timeout time.Duration
	// MaxAttempts bounds the number of fetches. Zero means unlimited.
	MaxAttempts int
	// FetchRetries is how many consecutive fetch errors are tolerated before
	// the error is surfaced. Zero propagates the first error.
	FetchRetries int
	// Clock drives sleeping and deadlines. Nil means the real clock.
	Clock Clock
}

// DefaultPolicy returns a policy with the default interval and no deadline
func DefaultPolicy() Policy {
	return Policy{Interval: DefaultInterval}
}

func (p Policy) withDefaults() Policy {
	if p.Interval <= 0 {
		p.Interval = DefaultInterval
	}
	if p.Clock == nil {
		p.Clock = RealClock
	}
	if p.FetchRetries < 0 {
		p.FetchRetries = 0
	}
	return p
}
