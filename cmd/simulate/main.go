// Command simulate rehearses a live session in process: one server-side host
// console and a crowd of participant loops against the memory store. The
// result sheet is printed to stdout when the session finishes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-live/internal/live"
	"github.com/stemsi/exstem-live/internal/logger"
	"github.com/stemsi/exstem-live/internal/model"
	"github.com/stemsi/exstem-live/internal/service"
	"github.com/stemsi/exstem-live/internal/store"
)

type options struct {
	sessionType  string
	participants int
	questions    int
	duration     int
	poll         time.Duration
	answerRate   float64
	seed         int64
	logLevel     string
}

func main() {
	var opt options
	flag.StringVar(&opt.sessionType, "type", "exam", "Session type: poll, exam, survey")
	flag.IntVar(&opt.participants, "participants", 8, "Number of participants")
	flag.IntVar(&opt.questions, "questions", 3, "Number of multiple-choice questions")
	flag.IntVar(&opt.duration, "duration", 2, "Seconds per question")
	flag.DurationVar(&opt.poll, "poll", 250*time.Millisecond, "Poll interval of every device")
	flag.Float64Var(&opt.answerRate, "answer-rate", 0.8, "Chance a participant answers before the countdown ends")
	flag.Int64Var(&opt.seed, "seed", time.Now().UnixNano(), "Random seed")
	flag.StringVar(&opt.logLevel, "log-level", "warn", "Log level")
	flag.Parse()

	lvl, err := zerolog.ParseLevel(opt.logLevel)
	if err != nil {
		lvl = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log := logger.New(os.Stderr, "pretty")

	if err := run(opt, log); err != nil {
		log.Fatal().Err(err).Msg("Simulation failed")
	}
}

func run(opt options, log zerolog.Logger) error {
	if opt.participants < 1 || opt.questions < 1 || opt.duration < 1 {
		return errors.New("participants, questions and duration must be positive")
	}

	budget := time.Duration(opt.questions*opt.duration)*time.Second + 30*time.Second
	ctx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()

	st := store.NewMemory()
	sessions := service.NewSessionService(st, service.NewSessionLocks(), service.NopSnapshotCache{}, service.NopScorePublisher{}, log)
	pacing := service.NewPacingService(sessions, log)
	join := service.NewJoinService(sessions, "http://localhost:3000/join", log)
	answers := service.NewAnswerService(st, service.NopSnapshotCache{}, log)
	results := service.NewResultsService(sessions)
	syncer := service.NewSyncService(sessions)

	// Every type auto-advances so polls and surveys finish without a presenter.
	cfg := live.LoopConfig{
		Clock:        clockwork.NewRealClock(),
		PollInterval: opt.poll,
		Policy:       live.AutoAdvanceAlways,
	}
	supervisor := live.NewSupervisor(syncer, pacing, cfg, log)
	sessions.AddHook(supervisor)
	syncer.SetCountdowns(supervisor)
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = supervisor.Shutdown(shutdownCtx)
	}()

	rng := rand.New(rand.NewSource(opt.seed))

	sess, err := sessions.Create(ctx, model.CreateSessionRequest{
		Name: "Rehearsal",
		Type: opt.sessionType,
	})
	if err != nil {
		return err
	}
	for i := 0; i < opt.questions; i++ {
		secs := opt.duration
		if _, err := sessions.AddQuestion(ctx, sess.ID, model.AddQuestionRequest{
			Text: fmt.Sprintf("Question %d", i+1),
			Type: string(model.QuestionTypeMultipleChoice),
			Options: []model.OptionInput{
				{ID: "a", Text: "Alpha"},
				{ID: "b", Text: "Bravo"},
				{ID: "c", Text: "Charlie"},
				{ID: "d", Text: "Delta"},
			},
			CorrectOptionID: string(rune('a' + rng.Intn(4))),
			DurationSeconds: &secs,
		}); err != nil {
			return err
		}
	}
	if _, err := sessions.Activate(ctx, sess.ID); err != nil {
		return err
	}

	var wg sync.WaitGroup
	for i := 0; i < opt.participants; i++ {
		p, _, err := join.Join(ctx, model.JoinRequest{
			SessionID: &sess.ID,
			Fields:    map[string]string{model.NameField: fmt.Sprintf("Participant %d", i+1)},
		})
		if err != nil {
			return err
		}

		loop := live.NewParticipant(sess.ID, p.ID, syncer, answers, results, cfg, log)
		crowd := &player{
			loop:       loop,
			views:      make(chan live.ViewState, 8),
			answerRate: opt.answerRate,
			rng:        rand.New(rand.NewSource(rng.Int63())),
			log:        log.With().Str("participant", p.Name).Logger(),
		}
		loop.Observe(crowd.observe)

		wg.Add(2)
		go func() {
			defer wg.Done()
			defer close(crowd.views)
			if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				crowd.log.Warn().Err(err).Msg("Participant loop ended early")
			}
		}()
		go func() {
			defer wg.Done()
			crowd.play(ctx)
		}()
	}

	if _, err := sessions.Start(ctx, sess.ID); err != nil {
		return err
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("session did not finish in %s: %w", budget, err)
	}

	sheet, err := results.Results(context.Background(), sess.ID)
	if err != nil {
		return err
	}
	report(sheet)
	return nil
}

// player answers for one simulated participant.
type player struct {
	loop       *live.Participant
	views      chan live.ViewState
	answerRate float64
	rng        *rand.Rand
	log        zerolog.Logger
}

// observe runs under the loop's lock, so it only hands the view off.
func (p *player) observe(v live.ViewState) {
	select {
	case p.views <- v:
	default:
	}
}

func (p *player) play(ctx context.Context) {
	for v := range p.views {
		q, ok := v.(live.Questioning)
		if !ok || q.Answered || len(q.Question.Options) == 0 {
			continue
		}
		if p.rng.Float64() >= p.answerRate {
			// Let the countdown submit "no answer".
			continue
		}

		var think time.Duration
		if window := time.Until(q.Deadline) / 2; window > 0 {
			think = time.Duration(p.rng.Int63n(int64(window)))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(think):
		}

		pick := q.Question.Options[p.rng.Intn(len(q.Question.Options))].ID
		if err := p.loop.Answer(ctx, pick); err != nil {
			p.log.Debug().Err(err).Str("question_id", q.QuestionID.String()).Msg("Answer not recorded")
		}
	}
}

func report(sheet *service.SessionResults) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "Session %s (%s, %s)\n\n", sheet.SessionID, sheet.Type, sheet.Status)
	for i, t := range sheet.Tallies {
		fmt.Fprintf(w, "Question %d\t%d responses\n", i+1, t.Total)
		for _, b := range t.Buckets {
			mark := ""
			if b.Correct {
				mark = "*"
			}
			fmt.Fprintf(w, "  %s%s\t%d\t%.1f%%\n", b.Label, mark, b.Count, b.Percentage)
		}
	}

	if len(sheet.Standings) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "#\tName\tScore")
	for _, s := range sheet.Standings {
		fmt.Fprintf(w, "%d\t%s\t%d/%d\n", s.Position, s.Name, s.Score, s.Total)
	}
}
