package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/stemsi/exstem-live/internal/response"
	"github.com/stemsi/exstem-live/internal/service"
)

// fail maps a service error onto the response envelope. Errors without a
// domain meaning are logged and reported as internal.
func fail(c *gin.Context, err error) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, ve.Fields)
	case errors.Is(err, service.ErrNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrInvalidTransition):
		response.Fail(c, http.StatusConflict, response.ErrInvalidTransition)
	case errors.Is(err, service.ErrNoQuestions):
		response.Fail(c, http.StatusConflict, response.ErrNoQuestions)
	case errors.Is(err, service.ErrQuestionsLocked):
		response.Fail(c, http.StatusConflict, response.ErrQuestionsLocked)
	case errors.Is(err, service.ErrSessionNotRunning):
		response.Fail(c, http.StatusBadRequest, response.ErrSessionNotRunning)
	case errors.Is(err, service.ErrDuplicateSubmission):
		response.Fail(c, http.StatusConflict, response.ErrAlreadyAnswered)
	case errors.Is(err, service.ErrNoCurrentQuestion):
		response.Fail(c, http.StatusConflict, response.ErrNoCurrentQuestion)
	case errors.Is(err, service.ErrNotScored):
		response.Fail(c, http.StatusBadRequest, response.ErrNotScored)
	default:
		log.Error().Err(err).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Msg("Request failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
