package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/exstem-live/internal/response"
	"github.com/stemsi/exstem-live/internal/service"
)

// ResultsHandler serves the host console views.
type ResultsHandler struct {
	sync    *service.SyncService
	results *service.ResultsService
}

// NewResultsHandler creates a new ResultsHandler.
func NewResultsHandler(sync *service.SyncService, results *service.ResultsService) *ResultsHandler {
	return &ResultsHandler{sync: sync, results: results}
}

// HostState godoc
// GET /api/v1/sessions/:session_id/host-state
// The host console poll: snapshot, answer key, roster, who answered, live
// tally and the server countdown.
func (h *ResultsHandler) HostState(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	hs, err := h.sync.HostSnapshot(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, hs)
}

// Results godoc
// GET /api/v1/sessions/:session_id/results
// Tallies for every question, and standings for exams.
func (h *ResultsHandler) Results(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	res, err := h.results.Results(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"results": res})
}

// QuestionTally godoc
// GET /api/v1/sessions/:session_id/questions/:question_id/tally
func (h *ResultsHandler) QuestionTally(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	questionID, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	tally, err := h.results.QuestionTally(c.Request.Context(), id, questionID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"tally": tally})
}
