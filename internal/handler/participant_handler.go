package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/exstem-live/internal/middleware"
	"github.com/stemsi/exstem-live/internal/model"
	"github.com/stemsi/exstem-live/internal/response"
	"github.com/stemsi/exstem-live/internal/service"
	"github.com/stemsi/exstem-live/internal/validator"
)

// Join states reported to devices.
const (
	JoinStateReady         = "ready"
	JoinStateJoined        = "joined"
	JoinStateNothingToJoin = "nothing_to_join"
)

// ParticipantHandler handles the audience device endpoints.
type ParticipantHandler struct {
	join    *service.JoinService
	answers *service.AnswerService
	sync    *service.SyncService
	results *service.ResultsService
	tokens  *service.TokenService
}

// NewParticipantHandler creates a new ParticipantHandler.
func NewParticipantHandler(
	join *service.JoinService,
	answers *service.AnswerService,
	sync *service.SyncService,
	results *service.ResultsService,
	tokens *service.TokenService,
) *ParticipantHandler {
	return &ParticipantHandler{
		join:    join,
		answers: answers,
		sync:    sync,
		results: results,
		tokens:  tokens,
	}
}

// joinTarget is what a device learns about a session before joining.
type joinTarget struct {
	SessionID      uuid.UUID           `json:"session_id"`
	Name           string              `json:"name"`
	Type           model.SessionType   `json:"type"`
	Status         model.SessionStatus `json:"status"`
	RequiredFields []string            `json:"required_participant_fields"`
}

func newJoinTarget(s *model.InteractionSession) joinTarget {
	return joinTarget{
		SessionID:      s.ID,
		Name:           s.Name,
		Type:           s.Type,
		Status:         s.Status,
		RequiredFields: append([]string{model.NameField}, s.RequiredFields...),
	}
}

// ResolveJoin godoc
// GET /api/v1/join?session_id=
// Tells a device which session it would join and which fields to ask for.
func (h *ParticipantHandler) ResolveJoin(c *gin.Context) {
	var explicit *uuid.UUID
	if raw := c.Query("session_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}
		explicit = &id
	}

	sess, err := h.join.Resolve(c.Request.Context(), explicit)
	if errors.Is(err, service.ErrNothingToJoin) {
		response.Success(c, http.StatusOK, gin.H{"state": JoinStateNothingToJoin})
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"state": JoinStateReady, "session": newJoinTarget(sess)})
}

// Join godoc
// POST /api/v1/join
// Registers a participant and returns the token its device submits with.
func (h *ParticipantHandler) Join(c *gin.Context) {
	var req model.JoinRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	p, sess, err := h.join.Join(c.Request.Context(), req)
	if errors.Is(err, service.ErrNothingToJoin) {
		response.Success(c, http.StatusOK, gin.H{"state": JoinStateNothingToJoin})
		return
	}
	if err != nil {
		fail(c, err)
		return
	}

	token, err := h.tokens.IssueParticipant(sess.ID, p.ID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{
		"state":       JoinStateJoined,
		"participant": p,
		"token":       token,
		"session":     newJoinTarget(sess),
	})
}

// State godoc
// GET /api/v1/sessions/:session_id/state
// The poll every participant device rebuilds its view from.
func (h *ParticipantHandler) State(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	snap, err := h.sync.Snapshot(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"snapshot": snap})
}

// Submit godoc
// POST /api/v1/sessions/:session_id/responses
// Records the caller's answer. The participant comes from the token.
func (h *ParticipantHandler) Submit(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	participantID, ok := participantFromToken(c)
	if !ok {
		return
	}

	var req model.SubmitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	resp, err := h.answers.Submit(c.Request.Context(), model.SubmitInput{
		SessionID:     id,
		QuestionID:    req.QuestionID,
		ParticipantID: participantID,
		Answer:        req.Answer,
		TimedOut:      req.TimedOut,
	})
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"response": resp})
}

// Standing godoc
// GET /api/v1/sessions/:session_id/standing
// The caller's score and position in an exam.
func (h *ParticipantHandler) Standing(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	participantID, ok := participantFromToken(c)
	if !ok {
		return
	}

	st, err := h.results.Standing(c.Request.Context(), id, participantID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"standing": st})
}

func participantFromToken(c *gin.Context) (uuid.UUID, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return uuid.Nil, false
	}
	id, err := claims.ParticipantID()
	if err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
		return uuid.Nil, false
	}
	return id, true
}
