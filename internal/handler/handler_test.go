package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-live/internal/config"
	"github.com/stemsi/exstem-live/internal/handler"
	"github.com/stemsi/exstem-live/internal/middleware"
	"github.com/stemsi/exstem-live/internal/router"
	"github.com/stemsi/exstem-live/internal/service"
	"github.com/stemsi/exstem-live/internal/store"
	"github.com/stemsi/exstem-live/internal/validator"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	validator.Setup()
	os.Exit(m.Run())
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code   string            `json:"code"`
		Fields map[string]string `json:"fields"`
	} `json:"error"`
}

func (e envelope) code() string {
	if e.Error == nil {
		return ""
	}
	return e.Error.Code
}

type api struct {
	t      *testing.T
	engine *gin.Engine
}

func newAPI(t *testing.T) *api {
	t.Helper()
	log := zerolog.Nop()
	st := store.NewMemory()
	cfg := &config.Config{GinMode: gin.TestMode}

	sessions := service.NewSessionService(st, service.NewSessionLocks(), service.NopSnapshotCache{}, service.NopScorePublisher{}, log)
	pacing := service.NewPacingService(sessions, log)
	join := service.NewJoinService(sessions, "https://live.example.test/join", log)
	answers := service.NewAnswerService(st, service.NopSnapshotCache{}, log)
	results := service.NewResultsService(sessions)
	sync := service.NewSyncService(sessions)
	tokens := service.NewTokenService("handler-test-secret", time.Hour)

	handlers := &router.Handlers{
		Session:     handler.NewSessionHandler(sessions, pacing, join, tokens),
		Participant: handler.NewParticipantHandler(join, answers, sync, results, tokens),
		Results:     handler.NewResultsHandler(sync, results),
		System:      handler.NewSystemHandler(nil, "memory", log),
	}
	limiter := middleware.NewRateLimiter(100, time.Minute, clockwork.NewFakeClock(), nil, log)
	return &api{t: t, engine: router.SetupRouter(tokens, limiter, handlers, cfg)}
}

// do sends a request and decodes the envelope. data, when non-nil, receives
// the envelope's data.
func (a *api) do(method, path, token string, body any, data any) (int, envelope) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			a.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		a.t.Fatalf("%s %s: decode %q: %v", method, path, w.Body.String(), err)
	}
	if data != nil && env.Error == nil {
		if err := json.Unmarshal(env.Data, data); err != nil {
			a.t.Fatalf("%s %s: decode data: %v", method, path, err)
		}
	}
	return w.Code, env
}

type created struct {
	Session struct {
		ID string `json:"id"`
	} `json:"session"`
	HostToken string `json:"host_token"`
	JoinLink  string `json:"join_link"`
}

func (a *api) createSession(typ string, fields ...string) created {
	a.t.Helper()
	var out created
	code, env := a.do(http.MethodPost, "/api/v1/sessions", "", map[string]any{
		"name": "Friday quiz", "type": typ, "required_participant_fields": fields,
	}, &out)
	if code != http.StatusCreated {
		a.t.Fatalf("create session: %d %s", code, env.code())
	}
	return out
}

func (a *api) addQuestion(s created, secs int) string {
	a.t.Helper()
	body := map[string]any{
		"text": "2 + 2?", "type": "multiple_choice", "correct_option_id": "four",
		"options": []map[string]string{{"id": "four", "text": "4"}, {"id": "five", "text": "5"}},
	}
	if secs > 0 {
		body["duration_seconds"] = secs
	}
	var out struct {
		Question struct {
			ID string `json:"id"`
		} `json:"question"`
	}
	code, env := a.do(http.MethodPost, "/api/v1/sessions/"+s.Session.ID+"/questions", s.HostToken, body, &out)
	if code != http.StatusCreated {
		a.t.Fatalf("add question: %d %s", code, env.code())
	}
	return out.Question.ID
}

func (a *api) host(s created, action string) (int, envelope) {
	a.t.Helper()
	return a.do(http.MethodPost, "/api/v1/sessions/"+s.Session.ID+"/"+action, s.HostToken, nil, nil)
}

type joined struct {
	State       string `json:"state"`
	Token       string `json:"token"`
	Participant struct {
		ID string `json:"id"`
	} `json:"participant"`
}

func (a *api) join(fields map[string]string) (int, envelope, joined) {
	a.t.Helper()
	var out joined
	code, env := a.do(http.MethodPost, "/api/v1/join", "", map[string]any{"fields": fields}, &out)
	return code, env, out
}

func TestExamOverHTTP(t *testing.T) {
	a := newAPI(t)
	s := a.createSession("exam")
	if s.HostToken == "" || !strings.Contains(s.JoinLink, s.Session.ID) {
		t.Fatalf("create response = %+v", s)
	}
	q1 := a.addQuestion(s, 30)
	a.addQuestion(s, 30)

	if code, env := a.host(s, "activate"); code != http.StatusOK {
		t.Fatalf("activate: %d %s", code, env.code())
	}

	var resolved struct {
		State   string `json:"state"`
		Session struct {
			SessionID      string   `json:"session_id"`
			RequiredFields []string `json:"required_participant_fields"`
		} `json:"session"`
	}
	a.do(http.MethodGet, "/api/v1/join", "", nil, &resolved)
	if resolved.State != handler.JoinStateReady || resolved.Session.SessionID != s.Session.ID {
		t.Fatalf("resolve = %+v", resolved)
	}

	code, env, p := a.join(map[string]string{"name": "Ana"})
	if code != http.StatusCreated || p.State != handler.JoinStateJoined || p.Token == "" {
		t.Fatalf("join: %d %s %+v", code, env.code(), p)
	}

	if code, env := a.host(s, "start"); code != http.StatusOK {
		t.Fatalf("start: %d %s", code, env.code())
	}

	_, env = a.do(http.MethodGet, "/api/v1/sessions/"+s.Session.ID+"/state", "", nil, nil)
	if strings.Contains(string(env.Data), "correct_option_id") {
		t.Errorf("participant snapshot leaks the answer key: %s", env.Data)
	}
	var state struct {
		Snapshot struct {
			Status          string `json:"status"`
			CurrentQuestion struct {
				ID string `json:"id"`
			} `json:"current_question"`
		} `json:"snapshot"`
	}
	json.Unmarshal(env.Data, &state) //nolint:errcheck
	if state.Snapshot.Status != "in_progress" || state.Snapshot.CurrentQuestion.ID != q1 {
		t.Fatalf("state = %+v", state)
	}

	submit := map[string]any{"question_id": q1, "answer": "four"}
	path := "/api/v1/sessions/" + s.Session.ID + "/responses"
	if code, env := a.do(http.MethodPost, path, p.Token, submit, nil); code != http.StatusCreated {
		t.Fatalf("submit: %d %s", code, env.code())
	}
	if code, env := a.do(http.MethodPost, path, p.Token, submit, nil); code != http.StatusConflict || env.code() != "ALREADY_ANSWERED" {
		t.Errorf("duplicate submit: %d %s", code, env.code())
	}

	var hs struct {
		Answered         []string `json:"answered"`
		RemainingSeconds *int     `json:"remaining_seconds"`
	}
	a.do(http.MethodGet, "/api/v1/sessions/"+s.Session.ID+"/host-state", s.HostToken, nil, &hs)
	if len(hs.Answered) != 1 || hs.Answered[0] != p.Participant.ID {
		t.Errorf("host-state answered = %v", hs.Answered)
	}

	a.host(s, "next")
	if code, env := a.host(s, "next"); code != http.StatusOK {
		t.Fatalf("final next: %d %s", code, env.code())
	}

	var standing struct {
		Standing struct {
			Score    int `json:"score"`
			Total    int `json:"total"`
			Position int `json:"position"`
		} `json:"standing"`
	}
	code, env = a.do(http.MethodGet, "/api/v1/sessions/"+s.Session.ID+"/standing", p.Token, nil, &standing)
	if code != http.StatusOK || standing.Standing.Score != 1 || standing.Standing.Total != 2 || standing.Standing.Position != 1 {
		t.Errorf("standing: %d %s %+v", code, env.code(), standing)
	}

	if code, env := a.host(s, "complete"); code != http.StatusOK {
		t.Errorf("complete on completed session: %d %s", code, env.code())
	}
}

func TestNothingToJoin(t *testing.T) {
	a := newAPI(t)
	a.createSession("poll")

	var resolved struct {
		State string `json:"state"`
	}
	code, _ := a.do(http.MethodGet, "/api/v1/join", "", nil, &resolved)
	if code != http.StatusOK || resolved.State != handler.JoinStateNothingToJoin {
		t.Errorf("resolve: %d %+v", code, resolved)
	}

	code, _, p := a.join(map[string]string{"name": "Ana"})
	if code != http.StatusOK || p.State != handler.JoinStateNothingToJoin {
		t.Errorf("join: %d %+v", code, p)
	}
}

func TestJoinMissingRequiredField(t *testing.T) {
	a := newAPI(t)
	s := a.createSession("survey", "class")
	a.addQuestion(s, 0)
	a.host(s, "activate")

	code, env, _ := a.join(map[string]string{"name": "Ana"})
	if code != http.StatusBadRequest || env.code() != "VALIDATION_ERROR" {
		t.Fatalf("join: %d %s", code, env.code())
	}
	if _, ok := env.Error.Fields["class"]; !ok {
		t.Errorf("fields = %v, want class reported", env.Error.Fields)
	}
}

func TestHostRoutesNeedHostToken(t *testing.T) {
	a := newAPI(t)
	s := a.createSession("poll")
	a.addQuestion(s, 0)
	a.host(s, "activate")
	_, _, p := a.join(map[string]string{"name": "Ana"})

	path := "/api/v1/sessions/" + s.Session.ID + "/start"
	if code, _ := a.do(http.MethodPost, path, "", nil, nil); code != http.StatusUnauthorized {
		t.Errorf("no token: %d", code)
	}
	if code, env := a.do(http.MethodPost, path, p.Token, nil, nil); code != http.StatusForbidden || env.code() != "HOST_ACCESS_ONLY" {
		t.Errorf("participant token: %d %s", code, env.code())
	}

	other := a.createSession("poll")
	if code, env := a.do(http.MethodPost, path, other.HostToken, nil, nil); code != http.StatusForbidden || env.code() != "FORBIDDEN" {
		t.Errorf("other host token: %d %s", code, env.code())
	}
}

func TestLifecycleErrors(t *testing.T) {
	a := newAPI(t)
	s := a.createSession("exam")

	if code, env := a.host(s, "start"); code != http.StatusConflict || env.code() != "INVALID_TRANSITION" {
		t.Errorf("start draft: %d %s", code, env.code())
	}
	a.host(s, "activate")
	if code, env := a.host(s, "start"); code != http.StatusConflict || env.code() != "NO_QUESTIONS" {
		t.Errorf("start without questions: %d %s", code, env.code())
	}
	if code, env := a.host(s, "next"); code != http.StatusBadRequest || env.code() != "SESSION_NOT_RUNNING" {
		t.Errorf("next before start: %d %s", code, env.code())
	}
}

func TestCreateSessionValidation(t *testing.T) {
	a := newAPI(t)

	code, env := a.do(http.MethodPost, "/api/v1/sessions", "", map[string]any{"name": "x", "type": "quiz"}, nil)
	if code != http.StatusBadRequest || env.code() != "VALIDATION_ERROR" || env.Error.Fields["type"] == "" {
		t.Errorf("bad type: %d %s %v", code, env.code(), env.Error)
	}

	code, env = a.do(http.MethodPost, "/api/v1/sessions", "", map[string]any{
		"name": "x", "type": "poll", "required_participant_fields": []string{"Class Name"},
	}, nil)
	if code != http.StatusBadRequest || env.code() != "VALIDATION_ERROR" {
		t.Errorf("bad field key: %d %s", code, env.code())
	}

	if code, env := a.do(http.MethodGet, "/api/v1/sessions?status=done", "", nil, nil); code != http.StatusBadRequest {
		t.Errorf("bad status filter: %d %s", code, env.code())
	}
}

func TestHealth(t *testing.T) {
	a := newAPI(t)
	var report struct {
		Status string `json:"status"`
		Redis  string `json:"redis"`
	}
	code, _ := a.do(http.MethodGet, "/health", "", nil, &report)
	if code != http.StatusOK || report.Status != "ok" || report.Redis != "disabled" {
		t.Errorf("health: %d %+v", code, report)
	}
}
