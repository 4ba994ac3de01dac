package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunID uniquely identifies a pipeline run.
type RunID uuid.UUID

func (id RunID) String() string {
	return uuid.UUID(id).String()
}

func (id RunID) MarshalText() ([]byte, error) {
	return []byte(uuid.UUID(id).String()), nil
}

func (id *RunID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err //nolint: wrapcheck
	}
	*id = RunID(u)

	return nil
}

// RunState is the lifecycle state of a pipeline run. Runs move strictly
// forward through Validating, Searching, Ranking and Notifying to Complete;
// Cancelled is reachable from any non-terminal state and Failed only from
// Validating.
type RunState string

const (
	// RunStateValidating is the initial state: the request is being checked.
	RunStateValidating RunState = "VALIDATING"
	// RunStateSearching means compatible donors are being located.
	RunStateSearching RunState = "SEARCHING"
	// RunStateRanking means candidates are being scored and ordered.
	RunStateRanking RunState = "RANKING"
	// RunStateNotifying means top-ranked candidates are being contacted.
	RunStateNotifying RunState = "NOTIFYING"
	// RunStateComplete is the successful terminal state. An empty candidate
	// list is still Complete; "no donors found" is a valid outcome.
	RunStateComplete RunState = "COMPLETE"
	// RunStateCancelled is the terminal state of a caller-cancelled run.
	RunStateCancelled RunState = "CANCELLED"
	// RunStateFailed is the terminal state of a run whose request failed
	// validation.
	RunStateFailed RunState = "FAILED"
)

// Terminal reports whether the state is final.
func (s RunState) Terminal() bool {
	switch s {
	case RunStateComplete, RunStateCancelled, RunStateFailed:
		return true
	}

	return false
}

// NotifyStatus is the outcome of a single notification dispatch.
type NotifyStatus string

const (
	// NotifySent means the notifier confirmed delivery.
	NotifySent NotifyStatus = "SENT"
	// NotifyFailed means the notifier returned an error. It never fails the
	// run; partial notification success is a normal outcome.
	NotifyFailed NotifyStatus = "FAILED"
	// NotifyTimeout means the dispatch exceeded its per-notification timeout
	// and was abandoned.
	NotifyTimeout NotifyStatus = "TIMEOUT"
	// NotifySkipped means the run stopped waiting (cancellation) before the
	// candidate was dispatched.
	NotifySkipped NotifyStatus = "SKIPPED"
)

// MatchCandidate is one ranked donor for a request. Candidates are derived
// values, recomputed on every run, and only ever persisted as part of their
// owning run.
type MatchCandidate struct {
	// DonorID identifies the matched donor.
	DonorID DonorID `json:"donorId"`
	// DistanceKm is the great-circle distance from the request location.
	DistanceKm float64 `json:"distanceKm"`
	// Score is the composite match score in [0,100].
	Score float64 `json:"score"`
	// Rank is the 1-based position after ranking.
	Rank int `json:"rank"`

	// Notification is the dispatch outcome for this candidate; empty until
	// the Notifying stage reaches it, and only set for top-N candidates.
	Notification NotifyStatus `json:"notification,omitempty"`
	// NotificationError holds the failure detail when Notification is FAILED.
	NotificationError string `json:"notificationError,omitempty"`
}

// PipelineRun records one pass of a blood request through the matching
// pipeline. A run processes exactly one request exactly once; re-submitting a
// request creates a new run rather than restarting an old one.
type PipelineRun struct {
	// ID is the unique identifier of the run.
	ID RunID `json:"id"`
	// RequestID is the blood request this run processes.
	RequestID RequestID `json:"requestId"`

	// State is the current lifecycle state.
	State RunState `json:"state"`
	// Candidates is the ranked candidate list, owned exclusively by this run.
	Candidates []MatchCandidate `json:"candidates"`
	// SearchRadiusKm is the radius at which the candidate set was found; for
	// critical requests this is the final widened radius.
	SearchRadiusKm float64 `json:"searchRadiusKm,omitempty"`
	// FailureReason explains a Failed state.
	FailureReason string `json:"failureReason,omitempty"`

	// StartedAt is when the run began processing.
	StartedAt time.Time `json:"startedAt"`
	// FinishedAt is when the run reached a terminal state; zero while running.
	FinishedAt time.Time `json:"finishedAt,omitempty"`
	// CancelRequested is set when a caller asked for cancellation; the run
	// observes it cooperatively at stage boundaries.
	CancelRequested bool `json:"cancelRequested,omitempty"`
}
