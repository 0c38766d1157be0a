package model

import "time"

// SyncState is the lifecycle of a background fetch.
type SyncState string

const (
	SyncIdle      SyncState = "idle"
	SyncFetching  SyncState = "fetching"
	SyncCompleted SyncState = "completed"
	SyncStopped   SyncState = "stopped"
	SyncError     SyncState = "error"
)

// SyncMode selects which slice of the mailbox a fetch covers.
type SyncMode string

const (
	SyncModeFull  SyncMode = "full"
	SyncModeNewer SyncMode = "newer"
	SyncModeOlder SyncMode = "older"
)

type SyncRequest struct {
	Mode      SyncMode   `json:"mode"`
	Query     string     `json:"query"`
	MaxEmails int        `json:"max_emails"`
	Read      ReadFilter `json:"read_filter"`
	Fresh     bool       `json:"fresh"`
}

type SyncStatus struct {
	RunID      string    `json:"run_id,omitempty"`
	State      SyncState `json:"state"`
	Mode       SyncMode  `json:"mode,omitempty"`
	Fetched    int       `json:"fetched"`
	Target     int       `json:"target"`
	Saved      int       `json:"saved"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Running reports whether a fetch is in flight.
func (s SyncStatus) Running() bool {
	return s.State == SyncFetching
}
