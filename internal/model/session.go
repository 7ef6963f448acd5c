package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionType enumerates the kinds of interaction a session runs.
type SessionType string

const (
	SessionTypePoll   SessionType = "poll"
	SessionTypeExam   SessionType = "exam"
	SessionTypeSurvey SessionType = "survey"
)

// SessionStatus enumerates the states of an interaction session.
type SessionStatus string

const (
	SessionStatusDraft      SessionStatus = "draft"
	SessionStatusActive     SessionStatus = "active"
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusInactive   SessionStatus = "inactive"
)

// CanTransitionTo reports whether the state machine allows s → next.
// Re-activating an inactive session is additionally gated on the session
// never having been started; see InteractionSession.CanActivate.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	switch s {
	case SessionStatusDraft:
		return next == SessionStatusActive
	case SessionStatusActive:
		return next == SessionStatusInProgress || next == SessionStatusInactive
	case SessionStatusInProgress:
		return next == SessionStatusCompleted || next == SessionStatusInactive
	case SessionStatusInactive:
		return next == SessionStatusActive
	default:
		return false
	}
}

// NameField is the participant field every session requires.
const NameField = "name"

// InteractionSession is a host-paced poll, exam or survey.
type InteractionSession struct {
	ID                   uuid.UUID             `json:"id"`
	Name                 string                `json:"name"`
	Type                 SessionType           `json:"type"`
	Status               SessionStatus         `json:"status"`
	RequiredFields       []string              `json:"required_participant_fields"`
	CurrentQuestionIndex *int                  `json:"current_question_index,omitempty"`
	Questions            []InteractionQuestion `json:"questions,omitempty"`
	StartedAt            *time.Time            `json:"started_at,omitempty"`
	CompletedAt          *time.Time            `json:"completed_at,omitempty"`
	CreatedAt            time.Time             `json:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at"`
}

// Started reports whether the host has ever started the session.
func (s *InteractionSession) Started() bool {
	return s.StartedAt != nil
}

// CanActivate reports whether Activate may move the session to active.
func (s *InteractionSession) CanActivate() bool {
	if s.Status == SessionStatusActive {
		return true
	}
	if s.Status == SessionStatusInactive && s.Started() {
		return false
	}
	return s.Status.CanTransitionTo(SessionStatusActive)
}

// CurrentQuestion returns the question under the host pointer, if any.
func (s *InteractionSession) CurrentQuestion() *InteractionQuestion {
	if s.CurrentQuestionIndex == nil {
		return nil
	}
	idx := *s.CurrentQuestionIndex
	if idx < 0 || idx >= len(s.Questions) {
		return nil
	}
	return &s.Questions[idx]
}

// IsRequired reports whether field must be filled at join.
func (s *InteractionSession) IsRequired(field string) bool {
	if field == NameField {
		return true
	}
	for _, f := range s.RequiredFields {
		if f == field {
			return true
		}
	}
	return false
}

// CreateSessionRequest is the payload for creating a new session.
type CreateSessionRequest struct {
	Name           string   `json:"name" binding:"required,min=1,max=255"`
	Type           string   `json:"type" binding:"required,oneof=poll exam survey"`
	RequiredFields []string `json:"required_participant_fields" binding:"omitempty,dive,required,max=64,field_key"`
}
