package models

// EventType is the kind of a recalculation progress event
type EventType string

const (
	EventStart    EventType = "start"
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// ProgressPayload carries whichever fields apply to the event type
type ProgressPayload struct {
	JobID            string `json:"job_id,omitempty"`
	TournamentID     *uint  `json:"tournament_id,omitempty"`
	Total            int    `json:"total"`
	Processed        int    `json:"processed"`
	MatchID          uint   `json:"match_id,omitempty"`
	PlayersUpdated   int    `json:"players_updated,omitempty"`
	MatchesProcessed int    `json:"matches_processed,omitempty"`
	Message          string `json:"message,omitempty"`
}

// ProgressEvent is one structured notification of a recalculation run
type ProgressEvent struct {
	Type    EventType       `json:"type"`
	Payload ProgressPayload `json:"payload"`
}
