package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/exstem-live/internal/model"
	"github.com/stemsi/exstem-live/internal/response"
	"github.com/stemsi/exstem-live/internal/service"
	"github.com/stemsi/exstem-live/internal/store"
	"github.com/stemsi/exstem-live/internal/validator"
)

// SessionHandler handles the operator and host endpoints: authoring,
// lifecycle and pacing.
type SessionHandler struct {
	sessions *service.SessionService
	pacing   *service.PacingService
	join     *service.JoinService
	tokens   *service.TokenService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(
	sessions *service.SessionService,
	pacing *service.PacingService,
	join *service.JoinService,
	tokens *service.TokenService,
) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		pacing:   pacing,
		join:     join,
		tokens:   tokens,
	}
}

type listSessionsQuery struct {
	Status string `form:"status" binding:"omitempty,oneof=draft active in_progress completed inactive"`
}

// CreateSession godoc
// POST /api/v1/sessions
// Creates a draft session and returns the host token that controls it.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req model.CreateSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sess, err := h.sessions.Create(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}

	hostToken, err := h.tokens.IssueHost(sess.ID)
	if err != nil {
		fail(c, err)
		return
	}
	link, err := h.join.JoinLink(&sess.ID)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"session":    sess,
		"host_token": hostToken,
		"join_link":  link,
	})
}

// ListSessions godoc
// GET /api/v1/sessions?status=
func (h *SessionHandler) ListSessions(c *gin.Context) {
	var q listSessionsQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	var f store.SessionFilter
	if q.Status != "" {
		status := model.SessionStatus(q.Status)
		f.Status = &status
	}

	sessions, err := h.sessions.List(c.Request.Context(), f)
	if err != nil {
		fail(c, err)
		return
	}
	if sessions == nil {
		sessions = []model.InteractionSession{}
	}
	response.Success(c, http.StatusOK, gin.H{"sessions": sessions})
}

// GetSession godoc
// GET /api/v1/sessions/:session_id
// Returns the session with its questions and answer key.
func (h *SessionHandler) GetSession(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	sess, err := h.sessions.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": sess})
}

// AddQuestion godoc
// POST /api/v1/sessions/:session_id/questions
func (h *SessionHandler) AddQuestion(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	var req model.AddQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	q, err := h.sessions.AddQuestion(c.Request.Context(), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"question": q})
}

// Activate godoc
// POST /api/v1/sessions/:session_id/activate
// Opens the session for joining and closes any other active session.
func (h *SessionHandler) Activate(c *gin.Context) {
	h.transition(c, h.sessions.Activate)
}

// Start godoc
// POST /api/v1/sessions/:session_id/start
func (h *SessionHandler) Start(c *gin.Context) {
	h.transition(c, h.sessions.Start)
}

// Complete godoc
// POST /api/v1/sessions/:session_id/complete
func (h *SessionHandler) Complete(c *gin.Context) {
	h.transition(c, h.sessions.Complete)
}

// Deactivate godoc
// POST /api/v1/sessions/:session_id/deactivate
func (h *SessionHandler) Deactivate(c *gin.Context) {
	h.transition(c, h.sessions.Deactivate)
}

// Next godoc
// POST /api/v1/sessions/:session_id/next
// Shows the following question, completing the session after the last one.
func (h *SessionHandler) Next(c *gin.Context) {
	h.transition(c, h.pacing.Next)
}

// Previous godoc
// POST /api/v1/sessions/:session_id/previous
func (h *SessionHandler) Previous(c *gin.Context) {
	h.transition(c, h.pacing.Previous)
}

func (h *SessionHandler) transition(c *gin.Context, op func(context.Context, uuid.UUID) (*model.InteractionSession, error)) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	sess, err := op(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": sess})
}

// JoinLink godoc
// GET /api/v1/sessions/:session_id/join-link
// Returns the link bound to this session and the open link that lands on
// whichever session is active.
func (h *SessionHandler) JoinLink(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	bound, err := h.join.JoinLink(&id)
	if err != nil {
		fail(c, err)
		return
	}
	open, err := h.join.JoinLink(nil)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"link": bound, "open_link": open})
}

// sessionID parses :session_id, writing the error response when it is malformed.
func sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
