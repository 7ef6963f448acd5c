package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionSnapshot is the view every device rebuilds from on each poll.
// It never carries correct answers.
type SessionSnapshot struct {
	SessionID        uuid.UUID               `json:"session_id"`
	Name             string                  `json:"name"`
	Type             SessionType             `json:"type"`
	Status           SessionStatus           `json:"status"`
	RequiredFields   []string                `json:"required_participant_fields"`
	QuestionIndex    *int                    `json:"question_index,omitempty"`
	QuestionCount    int                     `json:"question_count"`
	CurrentQuestion  *QuestionForParticipant `json:"current_question,omitempty"`
	ParticipantCount int                     `json:"participant_count"`
	ResponseCount    int                     `json:"response_count"`
	ServerTime       time.Time               `json:"server_time"`
}

// Running reports whether the host is pacing questions.
func (s *SessionSnapshot) Running() bool {
	return s.Status == SessionStatusInProgress
}

// Closed reports whether no further questions will be shown.
func (s *SessionSnapshot) Closed() bool {
	return s.Status == SessionStatusCompleted || s.Status == SessionStatusInactive
}
