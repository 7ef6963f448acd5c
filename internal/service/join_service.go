package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-live/internal/model"
	"github.com/stemsi/exstem-live/internal/store"
)

// JoinLinkParam is the query parameter a join link carries the session id in.
const JoinLinkParam = "session"

// JoinService resolves which session a device joins and registers participants.
type JoinService struct {
	sessions    *SessionService
	store       store.ParticipantStore
	cache       SnapshotCache
	joinBaseURL string
	log         zerolog.Logger
}

// NewJoinService creates a new JoinService.
func NewJoinService(sessions *SessionService, joinBaseURL string, log zerolog.Logger) *JoinService {
	return &JoinService{
		sessions:    sessions,
		store:       sessions.store,
		cache:       sessions.cache,
		joinBaseURL: joinBaseURL,
		log:         log.With().Str("component", "join_service").Logger(),
	}
}

// Resolve picks the session a device joins. An explicit id wins whatever its
// status. Without one, the active session is used, and ErrNothingToJoin
// reports that no session is open.
func (j *JoinService) Resolve(ctx context.Context, explicitID *uuid.UUID) (*model.InteractionSession, error) {
	if explicitID != nil && *explicitID != uuid.Nil {
		return j.sessions.Get(ctx, *explicitID)
	}
	return j.sessions.ActiveSession(ctx)
}

// Join validates the submitted fields against the resolved session and
// registers a new participant. Nothing is written when a field is missing.
// The same name joining twice yields two participants.
func (j *JoinService) Join(ctx context.Context, req model.JoinRequest) (*model.Participant, *model.InteractionSession, error) {
	sess, err := j.Resolve(ctx, req.SessionID)
	if err != nil {
		return nil, nil, err
	}

	fields, err := requiredFields(sess, req.Fields)
	if err != nil {
		return nil, nil, err
	}

	p := &model.Participant{
		SessionID: sess.ID,
		Name:      fields[model.NameField],
		Fields:    fields,
	}
	delete(p.Fields, model.NameField)

	if err := j.store.CreateParticipant(ctx, p); err != nil {
		return nil, nil, fmt.Errorf("create participant: %w", err)
	}
	j.cache.Invalidate(ctx, sess.ID)

	j.log.Info().
		Str("session_id", sess.ID.String()).
		Str("participant_id", p.ID.String()).
		Msg("Participant joined")
	return p, sess, nil
}

// requiredFields trims the submitted values and reports every required field
// left blank. Values for fields the session does not ask for are dropped.
func requiredFields(sess *model.InteractionSession, submitted map[string]string) (map[string]string, error) {
	want := append([]string{model.NameField}, sess.RequiredFields...)

	v := &ValidationError{}
	out := make(map[string]string, len(want))
	for _, f := range want {
		val := strings.TrimSpace(submitted[f])
		if val == "" {
			v.add(f, f+" is required")
			continue
		}
		out[f] = val
	}
	if err := v.err(); err != nil {
		return nil, err
	}
	return out, nil
}

// JoinLink returns the URL a join code encodes. Without a session id the
// link lands on whichever session is active when it is opened.
func (j *JoinService) JoinLink(sessionID *uuid.UUID) (string, error) {
	u, err := url.Parse(j.joinBaseURL)
	if err != nil {
		return "", fmt.Errorf("parse join base URL: %w", err)
	}
	if sessionID != nil && *sessionID != uuid.Nil {
		q := u.Query()
		q.Set(JoinLinkParam, sessionID.String())
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
