package live

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-live/internal/model"
	"github.com/stemsi/exstem-live/internal/service"
)

// SnapshotSource is the read model polled by every loop.
type SnapshotSource interface {
	Snapshot(ctx context.Context, sessionID uuid.UUID) (*model.SessionSnapshot, error)
}

// Pacer advances a session only if it is still on the question the caller saw.
type Pacer interface {
	AdvanceFrom(ctx context.Context, sessionID uuid.UUID, from int) (*model.InteractionSession, bool, error)
}

// LoopConfig is shared by host and participant loops.
type LoopConfig struct {
	Clock        clockwork.Clock
	PollInterval time.Duration
	Policy       AutoAdvancePolicy
}

func (c LoopConfig) withDefaults() LoopConfig {
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 1500 * time.Millisecond
	}
	if c.Policy == "" {
		c.Policy = AutoAdvanceExam
	}
	return c
}

// Host is the host console loop for one session. It polls the snapshot, arms
// a countdown the first time it sees a timed question, and advances on expiry
// when the policy allows.
type Host struct {
	sessionID uuid.UUID
	source    SnapshotSource
	pacer     Pacer
	cfg       LoopConfig
	countdown *Countdown
	log       zerolog.Logger

	seen   QuestionKey
	hasKey bool
	last   *model.SessionSnapshot
}

// NewHost builds a host loop for sessionID.
func NewHost(sessionID uuid.UUID, source SnapshotSource, pacer Pacer, cfg LoopConfig, log zerolog.Logger) *Host {
	cfg = cfg.withDefaults()
	return &Host{
		sessionID: sessionID,
		source:    source,
		pacer:     pacer,
		cfg:       cfg,
		countdown: NewCountdown(cfg.Clock),
		log:       log.With().Str("component", "host_loop").Str("session_id", sessionID.String()).Logger(),
	}
}

// Remaining exposes the running countdown to readers on other goroutines.
func (h *Host) Remaining() (time.Duration, bool) {
	return h.countdown.Remaining()
}

// Run polls until the session closes or ctx is cancelled. Cancelling writes nothing.
func (h *Host) Run(ctx context.Context) error {
	ticker := h.cfg.Clock.NewTicker(h.cfg.PollInterval)
	defer ticker.Stop()
	defer h.countdown.Disarm()

	if h.sync(ctx) {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			if h.sync(ctx) {
				return nil
			}
		case <-h.countdown.C():
			if h.expire(ctx) {
				return nil
			}
		}
	}
}

// sync recomputes the loop state from a fresh snapshot and reports whether
// the session is over.
func (h *Host) sync(ctx context.Context) bool {
	snap, err := h.source.Snapshot(ctx, h.sessionID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			h.log.Warn().Msg("Session disappeared, stopping host loop")
			return true
		}
		if ctx.Err() == nil {
			h.log.Warn().Err(err).Msg("Snapshot poll failed")
		}
		return false
	}
	h.last = snap

	if snap.Closed() {
		h.log.Info().Str("status", string(snap.Status)).Msg("Session closed, stopping host loop")
		return true
	}
	if !snap.Running() || snap.CurrentQuestion == nil || snap.QuestionIndex == nil {
		h.hasKey = false
		h.countdown.Disarm()
		return false
	}

	key := QuestionKey{QuestionID: snap.CurrentQuestion.ID, Index: *snap.QuestionIndex}
	if h.hasKey && key == h.seen {
		return false
	}
	h.seen, h.hasKey = key, true

	if d := durationOf(snap.CurrentQuestion); d > 0 {
		h.countdown.Arm(key, d)
		h.log.Debug().Int("index", key.Index).Dur("duration", d).Msg("Countdown armed")
	} else {
		h.countdown.Disarm()
	}
	return false
}

// expire handles a countdown firing and reports whether the session is over.
func (h *Host) expire(ctx context.Context) bool {
	key, _ := h.countdown.Armed()
	h.countdown.Disarm()

	if h.last == nil || !h.cfg.Policy.Applies(h.last.Type) {
		h.log.Info().Int("index", key.Index).Msg("Countdown expired, waiting for host")
		return false
	}

	sess, advanced, err := h.pacer.AdvanceFrom(ctx, h.sessionID, key.Index)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		// sync will not rearm a key it has seen, so retry from here.
		h.countdown.Arm(key, h.cfg.PollInterval)
		h.log.Error().Err(err).Int("index", key.Index).Dur("retry_in", h.cfg.PollInterval).Msg("Auto-advance failed")
		return false
	}
	if advanced {
		h.log.Info().Int("from", key.Index).Str("status", string(sess.Status)).Msg("Auto-advanced")
	}
	if sess.Status == model.SessionStatusCompleted || sess.Status == model.SessionStatusInactive {
		return true
	}
	return h.sync(ctx)
}
