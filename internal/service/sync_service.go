package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-live/internal/model"
	"github.com/stemsi/exstem-live/internal/scoring"
	"github.com/stemsi/exstem-live/internal/store"
)

// CountdownReader reports the time left on a session's running countdown.
type CountdownReader interface {
	Remaining(sessionID uuid.UUID) (time.Duration, bool)
}

// HostSnapshot is the host console view: the participant snapshot plus the
// answer key, the roster, who answered and the live tally.
type HostSnapshot struct {
	Snapshot         *model.SessionSnapshot     `json:"snapshot"`
	Question         *model.InteractionQuestion `json:"question,omitempty"`
	Participants     []model.Participant        `json:"participants"`
	Answered         []uuid.UUID                `json:"answered"`
	Tally            *scoring.QuestionTally     `json:"tally,omitempty"`
	RemainingSeconds *int                       `json:"remaining_seconds,omitempty"`
}

// SyncService builds the views devices rebuild themselves from on every poll.
type SyncService struct {
	sessions   *SessionService
	store      store.Store
	cache      SnapshotCache
	countdowns CountdownReader
}

// NewSyncService creates a new SyncService.
func NewSyncService(sessions *SessionService) *SyncService {
	return &SyncService{
		sessions: sessions,
		store:    sessions.store,
		cache:    sessions.cache,
	}
}

// SetCountdowns attaches the source of server-side countdowns. Call before serving.
func (s *SyncService) SetCountdowns(c CountdownReader) {
	s.countdowns = c
}

// Snapshot returns the participant view of a session. It may be served from
// the snapshot cache, whose entries outlive no write and no poll interval.
func (s *SyncService) Snapshot(ctx context.Context, sessionID uuid.UUID) (*model.SessionSnapshot, error) {
	if snap, ok := s.cache.Get(ctx, sessionID); ok {
		snap.ServerTime = time.Now().UTC()
		return snap, nil
	}

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	snap, _, _, err := s.build(ctx, sess)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, snap)
	return snap, nil
}

// HostSnapshot returns the host console view. It is never cached.
func (s *SyncService) HostSnapshot(ctx context.Context, sessionID uuid.UUID) (*HostSnapshot, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	snap, participants, responses, err := s.build(ctx, sess)
	if err != nil {
		return nil, err
	}

	hs := &HostSnapshot{
		Snapshot:     snap,
		Participants: participants,
		Answered:     make([]uuid.UUID, 0, len(responses)),
	}
	if q := sess.CurrentQuestion(); q != nil {
		hs.Question = q
		t := scoring.Tally(q, participants, responses)
		hs.Tally = &t
		for _, r := range responses {
			hs.Answered = append(hs.Answered, r.ParticipantID)
		}
	}
	if s.countdowns != nil {
		if left, ok := s.countdowns.Remaining(sessionID); ok {
			secs := int((left + time.Second - 1) / time.Second)
			hs.RemainingSeconds = &secs
		}
	}
	return hs, nil
}

// build reads everything a snapshot needs. The returned responses are those
// to the current question.
func (s *SyncService) build(ctx context.Context, sess *model.InteractionSession) (*model.SessionSnapshot, []model.Participant, []model.InteractionResponse, error) {
	participants, err := s.store.ListParticipants(ctx, sess.ID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("list participants: %w", err)
	}
	if participants == nil {
		participants = []model.Participant{}
	}

	snap := &model.SessionSnapshot{
		SessionID:        sess.ID,
		Name:             sess.Name,
		Type:             sess.Type,
		Status:           sess.Status,
		RequiredFields:   sess.RequiredFields,
		QuestionCount:    len(sess.Questions),
		ParticipantCount: len(participants),
		ServerTime:       time.Now().UTC(),
	}

	var responses []model.InteractionResponse
	if q := sess.CurrentQuestion(); q != nil && sess.Status == model.SessionStatusInProgress {
		responses, err = s.store.ListResponses(ctx, store.ResponseFilter{SessionID: sess.ID, QuestionID: &q.ID})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("list responses: %w", err)
		}
		idx := *sess.CurrentQuestionIndex
		pq := q.ForParticipant()
		snap.QuestionIndex = &idx
		snap.CurrentQuestion = &pq
		snap.ResponseCount = len(responses)
	}
	return snap, participants, responses, nil
}
