package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-live/internal/model"
)

// Memory is an in-process Store. Records are copied on the way in and out
// so callers never share state with the store.
type Memory struct {
	mu sync.RWMutex

	sessions     map[uuid.UUID]*model.InteractionSession
	sessionOrder []uuid.UUID

	questions map[uuid.UUID][]model.InteractionQuestion // session_id → questions

	participants     map[uuid.UUID]*model.Participant
	participantOrder map[uuid.UUID][]uuid.UUID // session_id → participant ids

	responses     []model.InteractionResponse
	responseIndex map[responseKey]struct{}
}

type responseKey struct {
	participantID uuid.UUID
	questionID    uuid.UUID
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		sessions:         make(map[uuid.UUID]*model.InteractionSession),
		questions:        make(map[uuid.UUID][]model.InteractionQuestion),
		participants:     make(map[uuid.UUID]*model.Participant),
		participantOrder: make(map[uuid.UUID][]uuid.UUID),
		responseIndex:    make(map[responseKey]struct{}),
	}
}

// ─── Sessions ───────────────────────────────────────────────────────

func (m *Memory) CreateSession(_ context.Context, s *model.InteractionSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if _, exists := m.sessions[s.ID]; exists {
		return ErrDuplicate
	}
	now := time.Now().UTC()
	s.CreatedAt, s.UpdatedAt = now, now

	m.sessions[s.ID] = cloneSession(s)
	m.sessionOrder = append(m.sessionOrder, s.ID)
	return nil
}

func (m *Memory) GetSession(_ context.Context, id uuid.UUID) (*model.InteractionSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSession(s), nil
}

func (m *Memory) ListSessions(_ context.Context, f SessionFilter) ([]model.InteractionSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.InteractionSession
	for _, id := range m.sessionOrder {
		s := m.sessions[id]
		if f.Match(s) {
			out = append(out, *cloneSession(s))
		}
	}
	return out, nil
}

func (m *Memory) UpdateSession(_ context.Context, id uuid.UUID, p SessionPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	applyPatch(s, p)
	return nil
}

func (m *Memory) ActivateExclusive(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	target, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}

	active, inactive := model.SessionStatusActive, model.SessionStatusInactive
	for otherID, s := range m.sessions {
		if otherID != id && s.Status == model.SessionStatusActive {
			applyPatch(s, SessionPatch{Status: &inactive})
		}
	}
	applyPatch(target, SessionPatch{Status: &active})
	return nil
}

func applyPatch(s *model.InteractionSession, p SessionPatch) {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Status != nil {
		s.Status = *p.Status
	}
	if p.SetQuestionIndex {
		s.CurrentQuestionIndex = cloneInt(p.QuestionIndex)
	}
	if p.StartedAt != nil {
		t := *p.StartedAt
		s.StartedAt = &t
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		s.CompletedAt = &t
	}
	s.UpdatedAt = time.Now().UTC()
}

// ─── Questions ──────────────────────────────────────────────────────

func (m *Memory) CreateQuestion(_ context.Context, q *model.InteractionQuestion) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[q.SessionID]; !ok {
		return ErrNotFound
	}
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	qs := append(m.questions[q.SessionID], cloneQuestion(*q))
	sort.SliceStable(qs, func(i, j int) bool { return qs[i].OrderNum < qs[j].OrderNum })
	m.questions[q.SessionID] = qs
	return nil
}

func (m *Memory) ListQuestions(_ context.Context, sessionID uuid.UUID) ([]model.InteractionQuestion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	qs := m.questions[sessionID]
	out := make([]model.InteractionQuestion, len(qs))
	for i, q := range qs {
		out[i] = cloneQuestion(q)
	}
	return out, nil
}

// ─── Participants ───────────────────────────────────────────────────

func (m *Memory) CreateParticipant(_ context.Context, p *model.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[p.SessionID]; !ok {
		return ErrNotFound
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.JoinedAt.IsZero() {
		p.JoinedAt = time.Now().UTC()
	}
	m.participants[p.ID] = cloneParticipant(p)
	m.participantOrder[p.SessionID] = append(m.participantOrder[p.SessionID], p.ID)
	return nil
}

func (m *Memory) GetParticipant(_ context.Context, id uuid.UUID) (*model.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.participants[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneParticipant(p), nil
}

func (m *Memory) ListParticipants(_ context.Context, sessionID uuid.UUID) ([]model.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.participantOrder[sessionID]
	out := make([]model.Participant, 0, len(ids))
	for _, id := range ids {
		out = append(out, *cloneParticipant(m.participants[id]))
	}
	return out, nil
}

// ─── Responses ──────────────────────────────────────────────────────

func (m *Memory) InsertResponse(_ context.Context, r *model.InteractionResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := responseKey{participantID: r.ParticipantID, questionID: r.QuestionID}
	if _, exists := m.responseIndex[key]; exists {
		return ErrDuplicate
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.SubmittedAt.IsZero() {
		r.SubmittedAt = time.Now().UTC()
	}
	m.responseIndex[key] = struct{}{}
	m.responses = append(m.responses, *r)
	return nil
}

func (m *Memory) ListResponses(_ context.Context, f ResponseFilter) ([]model.InteractionResponse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.InteractionResponse
	for i := range m.responses {
		if f.Match(&m.responses[i]) {
			out = append(out, m.responses[i])
		}
	}
	return out, nil
}

// ─── Copy helpers ───────────────────────────────────────────────────

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneSession(s *model.InteractionSession) *model.InteractionSession {
	c := *s
	c.RequiredFields = append([]string(nil), s.RequiredFields...)
	c.CurrentQuestionIndex = cloneInt(s.CurrentQuestionIndex)
	c.StartedAt = cloneTime(s.StartedAt)
	c.CompletedAt = cloneTime(s.CompletedAt)
	c.Questions = nil
	return &c
}

func cloneQuestion(q model.InteractionQuestion) model.InteractionQuestion {
	q.Options = append([]model.Option(nil), q.Options...)
	q.DurationSeconds = cloneInt(q.DurationSeconds)
	return q
}

func cloneParticipant(p *model.Participant) *model.Participant {
	c := *p
	if p.Fields != nil {
		c.Fields = make(map[string]string, len(p.Fields))
		for k, v := range p.Fields {
			c.Fields[k] = v
		}
	}
	return &c
}
