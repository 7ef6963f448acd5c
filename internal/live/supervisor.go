package live

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-live/internal/model"
	"github.com/stemsi/exstem-live/internal/service"
	"github.com/stemsi/exstem-live/internal/store"
)

// SessionLister finds sessions to resume on boot.
type SessionLister interface {
	List(ctx context.Context, f store.SessionFilter) ([]model.InteractionSession, error)
}

type hostRun struct {
	host   *Host
	cancel context.CancelFunc
	done   chan struct{}
}

// Supervisor runs a server-side host console for every in-progress session,
// so countdowns advance exams even when no host device is polling.
type Supervisor struct {
	source SnapshotSource
	pacer  Pacer
	cfg    LoopConfig
	log    zerolog.Logger

	root   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	hosts map[uuid.UUID]*hostRun
}

var (
	_ service.LifecycleHook   = (*Supervisor)(nil)
	_ service.CountdownReader = (*Supervisor)(nil)
)

// NewSupervisor creates a supervisor with no running consoles.
func NewSupervisor(source SnapshotSource, pacer Pacer, cfg LoopConfig, log zerolog.Logger) *Supervisor {
	root, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		source: source,
		pacer:  pacer,
		cfg:    cfg.withDefaults(),
		log:    log.With().Str("component", "supervisor").Logger(),
		root:   root,
		cancel: cancel,
		hosts:  make(map[uuid.UUID]*hostRun),
	}
}

// SessionStarted starts the console of a session that entered in_progress.
func (s *Supervisor) SessionStarted(sess *model.InteractionSession) {
	s.Start(sess.ID)
}

// SessionStopped stops the console of a session that left in_progress.
func (s *Supervisor) SessionStopped(sessionID uuid.UUID) {
	s.Stop(sessionID)
}

// Start launches a console for sessionID unless one is running.
func (s *Supervisor) Start(sessionID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.root.Err() != nil {
		return
	}
	if _, ok := s.hosts[sessionID]; ok {
		return
	}

	ctx, cancel := context.WithCancel(s.root)
	run := &hostRun{
		host:   NewHost(sessionID, s.source, s.pacer, s.cfg, s.log),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.hosts[sessionID] = run
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		defer close(run.done)
		defer cancel()

		if err := run.host.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Error().Err(err).Str("session_id", sessionID.String()).Msg("Host console exited")
		}

		s.mu.Lock()
		if s.hosts[sessionID] == run {
			delete(s.hosts, sessionID)
		}
		s.mu.Unlock()
	}()

	s.log.Info().Str("session_id", sessionID.String()).Msg("Host console started")
}

// Stop cancels the console of sessionID without waiting for it to exit.
func (s *Supervisor) Stop(sessionID uuid.UUID) {
	s.mu.Lock()
	run, ok := s.hosts[sessionID]
	if ok {
		delete(s.hosts, sessionID)
	}
	s.mu.Unlock()

	if ok {
		run.cancel()
		s.log.Info().Str("session_id", sessionID.String()).Msg("Host console stopped")
	}
}

// Running reports whether a console is running for sessionID.
func (s *Supervisor) Running(sessionID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.hosts[sessionID]
	return ok
}

// Remaining reports the countdown of the question showing in sessionID.
func (s *Supervisor) Remaining(sessionID uuid.UUID) (time.Duration, bool) {
	s.mu.Lock()
	run, ok := s.hosts[sessionID]
	s.mu.Unlock()

	if !ok {
		return 0, false
	}
	return run.host.Remaining()
}

// Resume starts consoles for every session already in progress.
func (s *Supervisor) Resume(ctx context.Context, sessions SessionLister) error {
	status := model.SessionStatusInProgress
	running, err := sessions.List(ctx, store.SessionFilter{Status: &status})
	if err != nil {
		return fmt.Errorf("list running sessions: %w", err)
	}
	for i := range running {
		s.Start(running[i].ID)
	}
	s.log.Info().Int("sessions", len(running)).Msg("Host consoles resumed")
	return nil
}

// Shutdown cancels every console and waits for them to exit or ctx to end.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info().Msg("Host consoles stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
