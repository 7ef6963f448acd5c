package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/stemsi/exstem-live/internal/store"
)

// Domain Errors
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidTransition   = errors.New("transition not allowed from current status")
	ErrNoQuestions         = errors.New("session has no questions, cannot start")
	ErrQuestionsLocked     = errors.New("questions cannot change after the session started")
	ErrNothingToJoin       = errors.New("no session is open for joining")
	ErrSessionNotRunning   = errors.New("session is not in progress")
	ErrDuplicateSubmission = errors.New("answer already submitted for this question")
	ErrNotScored           = errors.New("only exam sessions are scored")
	ErrNoCurrentQuestion   = errors.New("no question is currently shown")
)

// ValidationError reports every offending field at once.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "validation failed: " + strings.Join(keys, ", ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = msg
}

// err returns e as an error, or nil when nothing was added.
func (e *ValidationError) err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// notFound maps store.ErrNotFound onto ErrNotFound and wraps anything else.
func notFound(what string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("get %s: %w", what, err)
}
