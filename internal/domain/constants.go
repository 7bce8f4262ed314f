package domain

// Status is the lifecycle state of a job
type Status string

// Job status constants
const (
	JobStatusOngoing   Status = "ongoing"
	JobStatusCompleted Status = "completed"
	JobStatusFailed    Status = "failed"
)

// IsTerminal reports whether no further transition is possible from s
func (s Status) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// StoreNotFoundMessage is reported for visits whose store is unknown to the directory
const StoreNotFoundMessage = "Store not found in Store Master"
