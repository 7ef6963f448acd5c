package model

import (
	"time"

	"github.com/google/uuid"
)

// Participant is an audience device registered against one session.
type Participant struct {
	ID        uuid.UUID         `json:"id"`
	SessionID uuid.UUID         `json:"session_id"`
	Name      string            `json:"name"`
	Fields    map[string]string `json:"fields,omitempty"`
	JoinedAt  time.Time         `json:"joined_at"`
}

// JoinRequest is the payload a device sends to join a session.
// SessionID is optional; without it the currently active session is used.
type JoinRequest struct {
	SessionID *uuid.UUID        `json:"session_id" binding:"omitempty"`
	Fields    map[string]string `json:"fields" binding:"omitempty,dive,keys,max=64,endkeys,max=500"`
}
