package model

import (
	"time"

	"github.com/google/uuid"
)

type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeText           QuestionType = "text"
)

// Option is one selectable answer of a multiple-choice question.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// InteractionQuestion is a single question owned by a session.
type InteractionQuestion struct {
	ID              uuid.UUID    `json:"id"`
	SessionID       uuid.UUID    `json:"session_id"`
	Text            string       `json:"text"`
	Type            QuestionType `json:"type"`
	Options         []Option     `json:"options,omitempty"`
	CorrectOptionID string       `json:"correct_option_id,omitempty"`
	DurationSeconds *int         `json:"duration_seconds,omitempty"`
	OrderNum        int          `json:"order_num"`
}

// HasOption reports whether id names one of the question's options.
func (q *InteractionQuestion) HasOption(id string) bool {
	for _, o := range q.Options {
		if o.ID == id {
			return true
		}
	}
	return false
}

// Duration returns the configured countdown, or 0 when the question is untimed.
func (q *InteractionQuestion) Duration() time.Duration {
	if q.DurationSeconds == nil || *q.DurationSeconds <= 0 {
		return 0
	}
	return time.Duration(*q.DurationSeconds) * time.Second
}

// QuestionForParticipant is a question without the correct answer, sent to participants.
type QuestionForParticipant struct {
	ID              uuid.UUID    `json:"id"`
	Text            string       `json:"text"`
	Type            QuestionType `json:"type"`
	Options         []Option     `json:"options,omitempty"`
	DurationSeconds *int         `json:"duration_seconds,omitempty"`
	OrderNum        int          `json:"order_num"`
}

// ForParticipant strips the answer key.
func (q *InteractionQuestion) ForParticipant() QuestionForParticipant {
	return QuestionForParticipant{
		ID:              q.ID,
		Text:            q.Text,
		Type:            q.Type,
		Options:         q.Options,
		DurationSeconds: q.DurationSeconds,
		OrderNum:        q.OrderNum,
	}
}

// AddQuestionRequest is the payload for adding a question to a session.
type AddQuestionRequest struct {
	Text            string        `json:"text" binding:"required,min=1,max=2000"`
	Type            string        `json:"type" binding:"required,oneof=multiple_choice text"`
	Options         []OptionInput `json:"options" binding:"omitempty,dive"`
	CorrectOptionID string        `json:"correct_option_id" binding:"omitempty,max=64"`
	DurationSeconds *int          `json:"duration_seconds" binding:"omitempty,min=1,max=3600"`
}

// OptionInput is one option of an AddQuestionRequest.
type OptionInput struct {
	ID   string `json:"id" binding:"required,max=64"`
	Text string `json:"text" binding:"required,max=500"`
}
