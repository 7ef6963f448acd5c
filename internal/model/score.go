package model

import "github.com/google/uuid"

// ScoreRecord is one participant's final exam result as queued for persistence.
type ScoreRecord struct {
	SessionID     uuid.UUID `json:"session_id"`
	ParticipantID uuid.UUID `json:"participant_id"`
	Score         int       `json:"score"`
	Total         int       `json:"total"`
	Position      int       `json:"position"`
}
