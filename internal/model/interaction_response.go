package model

import (
	"time"

	"github.com/google/uuid"
)

// NoAnswer is the sentinel recorded when a countdown expires with nothing selected.
const NoAnswer = ""

// InteractionResponse is a participant's single, write-once answer to a question.
type InteractionResponse struct {
	ID            uuid.UUID `json:"id"`
	SessionID     uuid.UUID `json:"session_id"`
	QuestionID    uuid.UUID `json:"question_id"`
	ParticipantID uuid.UUID `json:"participant_id"`
	Answer        string    `json:"answer"`
	TimedOut      bool      `json:"timed_out"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// SubmitInput carries everything the submission protocol needs.
type SubmitInput struct {
	SessionID     uuid.UUID
	QuestionID    uuid.UUID
	ParticipantID uuid.UUID
	Answer        string
	TimedOut      bool
}

// SubmitRequest is the payload a participant device sends with an answer.
type SubmitRequest struct {
	QuestionID uuid.UUID `json:"question_id" binding:"required"`
	Answer     string    `json:"answer" binding:"max=4000"`
	TimedOut   bool      `json:"timed_out"`
}
