package provider

import (
	"context"

	"foundry/internal/catalog"
)

// JobHandle references one in-flight generation on the provider side. It is
// owned by the runner for the duration of a single item and never outlives the
// run except as the checkpoint's provider ref.
type JobHandle struct {
	ID string
}

// State enumerates the provider-reported lifecycle of a job.
type State int

const (
	StatePending State = iota
	StateInProgress
	StateSucceeded
	StateFailed
)

// Terminal reports whether no further polling should occur.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// JobStatus is one poll observation.
type JobStatus struct {
	State State
	// Progress is a provider-reported percentage, meaningful only while
	// InProgress.
	Progress int
	// QueuePosition is nonzero while the job waits in the provider's queue.
	QueuePosition int
	// Reason describes a Failed state.
	Reason string
}

// Artifact is the downloaded output of a succeeded job.
type Artifact struct {
	Data []byte
	// Extension is the suggested filename extension, without the dot.
	Extension string
}

// Generator is the capability every generation backend implements. Adapters
// may talk REST, drive a browser session, or shell out; the runner only sees
// this boundary.
type Generator interface {
	// Name identifies the backend in logs and history records.
	Name() string
	// Submit starts generation for one catalog item.
	Submit(ctx context.Context, item catalog.Item) (JobHandle, error)
	// Poll reports the job's current status. Transient failures should be
	// returned as errors; the runner retries within the item's wait budget.
	Poll(ctx context.Context, handle JobHandle) (JobStatus, error)
	// Fetch downloads the finished artifact for a succeeded job.
	Fetch(ctx context.Context, handle JobHandle) (Artifact, error)
}
