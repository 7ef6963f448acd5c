package live

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-live/internal/model"
	"github.com/stemsi/exstem-live/internal/scoring"
	"github.com/stemsi/exstem-live/internal/service"
)

// Submitter records one answer.
type Submitter interface {
	Submit(ctx context.Context, in model.SubmitInput) (*model.InteractionResponse, error)
}

// StandingSource returns a participant's final score.
type StandingSource interface {
	Standing(ctx context.Context, sessionID, participantID uuid.UUID) (*scoring.Standing, error)
}

// Participant is the view loop of one joined participant device.
type Participant struct {
	sessionID     uuid.UUID
	participantID uuid.UUID
	source        SnapshotSource
	answers       Submitter
	standings     StandingSource
	cfg           LoopConfig
	countdown     *Countdown
	log           zerolog.Logger

	mu       sync.Mutex
	view     ViewState
	selected string
	answered map[uuid.UUID]bool
	observer func(ViewState)
}

// NewParticipant builds the loop for a participant who already joined.
func NewParticipant(
	sessionID, participantID uuid.UUID,
	source SnapshotSource,
	answers Submitter,
	standings StandingSource,
	cfg LoopConfig,
	log zerolog.Logger,
) *Participant {
	cfg = cfg.withDefaults()
	return &Participant{
		sessionID:     sessionID,
		participantID: participantID,
		source:        source,
		answers:       answers,
		standings:     standings,
		cfg:           cfg,
		countdown:     NewCountdown(cfg.Clock),
		log: log.With().
			Str("component", "participant_loop").
			Str("session_id", sessionID.String()).
			Str("participant_id", participantID.String()).
			Logger(),
		view:     Waiting{},
		answered: make(map[uuid.UUID]bool),
	}
}

// Observe registers fn to be called with every view change. Call before Run.
// fn runs with the loop's lock held and must not call back into p.
func (p *Participant) Observe(fn func(ViewState)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observer = fn
}

// View returns the current view state.
func (p *Participant) View() ViewState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view
}

// Run polls until the session finishes or ctx is cancelled. Leaving the
// loop submits nothing.
func (p *Participant) Run(ctx context.Context) error {
	ticker := p.cfg.Clock.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()
	defer p.countdown.Disarm()

	if p.refresh(ctx) {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			if p.refresh(ctx) {
				return nil
			}
		case <-p.countdown.C():
			p.expire(ctx)
		}
	}
}

// Select records a choice for the showing question without submitting it.
// The choice is submitted on expiry unless Submit runs first.
func (p *Participant) Select(answer string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	q, ok := p.view.(Questioning)
	if !ok {
		return service.ErrNoCurrentQuestion
	}
	if q.Answered {
		return service.ErrDuplicateSubmission
	}
	p.selected = answer
	return nil
}

// Submit sends the selected answer for the showing question.
func (p *Participant) Submit(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.submitLocked(ctx, p.selected, false)
}

// Answer selects and submits in one step.
func (p *Participant) Answer(ctx context.Context, answer string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.selected = answer
	return p.submitLocked(ctx, answer, false)
}

func (p *Participant) submitLocked(ctx context.Context, answer string, timedOut bool) error {
	q, ok := p.view.(Questioning)
	if !ok {
		return service.ErrNoCurrentQuestion
	}
	if q.Answered {
		return service.ErrDuplicateSubmission
	}

	_, err := p.answers.Submit(ctx, model.SubmitInput{
		SessionID:     p.sessionID,
		QuestionID:    q.QuestionID,
		ParticipantID: p.participantID,
		Answer:        answer,
		TimedOut:      timedOut,
	})
	if err != nil && !errors.Is(err, service.ErrDuplicateSubmission) {
		return err
	}

	// A duplicate means an earlier submit from this participant landed.
	p.answered[q.QuestionID] = true
	p.countdown.Disarm()
	q.Answered = true
	p.setViewLocked(q)
	return err
}

// expire auto-submits the selection, or the no-answer sentinel, when the
// countdown of the showing question runs out.
func (p *Participant) expire(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key, _ := p.countdown.Armed()
	p.countdown.Disarm()

	q, ok := p.view.(Questioning)
	if !ok || q.Answered || q.Key() != key {
		return
	}
	if err := p.submitLocked(ctx, p.selected, true); err != nil && !errors.Is(err, service.ErrDuplicateSubmission) {
		if ctx.Err() != nil {
			return
		}
		// The view key is unchanged, so refresh would never rearm it.
		p.countdown.Arm(key, p.cfg.PollInterval)
		p.log.Warn().Err(err).Int("index", q.Index).Dur("retry_in", p.cfg.PollInterval).Msg("Auto-submit on expiry failed")
		return
	}
	p.log.Debug().Int("index", q.Index).Bool("no_answer", p.selected == model.NoAnswer).Msg("Auto-submitted on expiry")
}

// refresh recomputes the view from a fresh snapshot and reports whether the
// session is over.
func (p *Participant) refresh(ctx context.Context) bool {
	snap, err := p.source.Snapshot(ctx, p.sessionID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			p.mu.Lock()
			p.setViewLocked(Finished{Status: model.SessionStatusInactive})
			p.mu.Unlock()
			return true
		}
		if ctx.Err() == nil {
			p.log.Warn().Err(err).Msg("Snapshot poll failed")
		}
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.cfg.Clock.Now()
	prev := p.view
	next := Transition(prev, snap, now)

	switch v := next.(type) {
	case Questioning:
		if pq, ok := prev.(Questioning); !ok || pq.Key() != v.Key() {
			p.selected = model.NoAnswer
			v.Answered = p.answered[v.QuestionID]
			if v.Timed() && !v.Answered {
				p.countdown.Arm(v.Key(), v.Deadline.Sub(now))
			} else {
				p.countdown.Disarm()
			}
			next = v
		}
	case Finished:
		p.countdown.Disarm()
		if v.Score == nil && snap.Type == model.SessionTypeExam && snap.Status == model.SessionStatusCompleted {
			scored, done := p.withScore(ctx, v)
			p.setViewLocked(scored)
			// Keep polling until the final standing can be read.
			return done
		}
	default:
		p.countdown.Disarm()
	}

	p.setViewLocked(next)
	_, finished := next.(Finished)
	return finished
}

// withScore attaches the final standing to f. It reports false when the
// standing could not be read and a later poll should try again.
func (p *Participant) withScore(ctx context.Context, f Finished) (Finished, bool) {
	st, err := p.standings.Standing(ctx, p.sessionID, p.participantID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			p.log.Warn().Err(err).Msg("No final standing for participant")
			return f, true
		}
		if ctx.Err() == nil {
			p.log.Warn().Err(err).Msg("Final standing unavailable, retrying")
		}
		return f, false
	}
	score := st.Score
	f.Score = &score
	f.Total = st.Total
	return f, true
}

func (p *Participant) setViewLocked(v ViewState) {
	changed := !sameView(p.view, v)
	p.view = v
	if changed && p.observer != nil {
		p.observer(v)
	}
}

func sameView(a, b ViewState) bool {
	switch x := a.(type) {
	case Questioning:
		y, ok := b.(Questioning)
		return ok && x.Key() == y.Key() && x.Answered == y.Answered
	case Waiting:
		y, ok := b.(Waiting)
		return ok && x.Status == y.Status
	case Finished:
		y, ok := b.(Finished)
		return ok && x.Status == y.Status && (x.Score == nil) == (y.Score == nil)
	case Joining:
		_, ok := b.(Joining)
		return ok
	}
	return false
}

// Deadline returns when the showing question's countdown fires.
func (p *Participant) Deadline() (time.Time, bool) {
	return p.countdown.Deadline()
}
