package service

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"quiz-battle/models"

	"go.uber.org/zap/zaptest"
)

// manualTime реализует Clock и Scheduler; таймеры срабатывают только в Advance
type manualTime struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	owner   *manualTime
	due     time.Time
	seq     int
	f       func()
	stopped bool
	fired   bool
}

func newManualTime() *manualTime {
	return &manualTime{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (m *manualTime) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *manualTime) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTimer{owner: m, due: m.now.Add(d), seq: m.seq, f: f}
	m.timers = append(m.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance сдвигает время, по порядку вызывая наступившие таймеры
func (m *manualTime) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		var next *manualTimer
		for _, t := range m.timers {
			if t.stopped || t.fired || t.due.After(target) {
				continue
			}
			if next == nil || t.due.Before(next.due) || (t.due.Equal(next.due) && t.seq < next.seq) {
				next = t
			}
		}
		if next == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		next.fired = true
		m.now = next.due
		m.mu.Unlock()

		next.f()
	}
}

// pending количество активных таймеров
func (m *manualTime) pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type sentEvent struct {
	To      Audience
	Event   string
	Payload any
}

// recordingTransport запоминает все отправленные события и членство в комнатах
type recordingTransport struct {
	mu     sync.Mutex
	events []sentEvent
	rooms  map[string]map[string]bool
}

func newRecordingTransport() *recordingTransport {
	return &recordingTransport{rooms: make(map[string]map[string]bool)}
}

func (r *recordingTransport) Join(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rooms[roomID] == nil {
		r.rooms[roomID] = make(map[string]bool)
	}
	r.rooms[roomID][connID] = true
}

func (r *recordingTransport) Leave(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms[roomID], connID)
}

func (r *recordingTransport) Send(to Audience, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, sentEvent{To: to, Event: event, Payload: payload})
}

func (r *recordingTransport) members(roomID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0)
	for id := range r.rooms[roomID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// named возвращает события с указанным именем
func (r *recordingTransport) named(event string) []sentEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sentEvent
	for _, e := range r.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

func (r *recordingTransport) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type fakeQuestions struct {
	quiz  *models.Quiz
	err   error
	calls []models.QuizQuery
}

func (f *fakeQuestions) SelectQuiz(_ context.Context, query models.QuizQuery) (*models.Quiz, error) {
	f.calls = append(f.calls, query)
	return f.quiz, f.err
}

type fakeGrades struct {
	level int
	err   error
}

func (f fakeGrades) GradeLevel(context.Context, string) (int, error) {
	return f.level, f.err
}

type fakeSink struct {
	mu      sync.Mutex
	results []*models.MatchResult
}

func (f *fakeSink) SaveResult(_ context.Context, result *models.MatchResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, result)
	return nil
}

func (f *fakeSink) saved() []*models.MatchResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.MatchResult(nil), f.results...)
}

type harness struct {
	svc       *BattleService
	clock     *manualTime
	transport *recordingTransport
	sink      *fakeSink
	config    *BattleConfig
}

func newHarness(t *testing.T, mutate ...func(*BattleConfig, *Dependencies)) *harness {
	t.Helper()

	cfg := DefaultBattleConfig()
	clock := newManualTime()
	transport := newRecordingTransport()
	sink := &fakeSink{}
	deps := Dependencies{
		Transport: transport,
		Sink:      sink,
		Clock:     clock,
		Scheduler: clock,
		Rand:      rand.New(rand.NewSource(42)),
	}
	for _, m := range mutate {
		m(cfg, &deps)
	}

	svc := NewBattleService(deps, zaptest.NewLogger(t), cfg)
	t.Cleanup(svc.Close)
	return &harness{svc: svc, clock: clock, transport: transport, sink: sink, config: cfg}
}

var (
	alice = Authenticated{ID: "alice", Name: "Alice"}
	bob   = Authenticated{ID: "bob", Name: "Bob"}
	carol = Authenticated{ID: "carol", Name: "Carol"}
)

// startMatch создает матч alice против bob и открывает первый раунд
func (h *harness) startMatch(t *testing.T) string {
	t.Helper()

	roomID, err := h.svc.HostGame(context.Background(), alice, "conn-alice", models.DisplayInfo{Name: "Alice", Subject: "math"})
	if err != nil {
		t.Fatalf("HostGame: %v", err)
	}
	if _, err := h.svc.JoinGame(bob, "conn-bob", roomID, models.DisplayInfo{Name: "Bob"}); err != nil {
		t.Fatalf("JoinGame: %v", err)
	}
	return roomID
}

func (h *harness) match(t *testing.T, roomID string) models.MatchSnapshot {
	t.Helper()
	snap, err := h.svc.Snapshot(roomID)
	if err != nil {
		t.Fatalf("Snapshot(%s): %v", roomID, err)
	}
	return snap
}

func (h *harness) answer(t *testing.T, user Identity, roomID string, correct bool) {
	t.Helper()
	if err := h.svc.SubmitAnswer(user, roomID, correct); err != nil {
		t.Fatalf("SubmitAnswer(%s): %v", user.UserID(), err)
	}
}

func healthOf(snap models.MatchSnapshot, userID string) int {
	for _, p := range snap.Players {
		if p.UserID == userID {
			return p.Health
		}
	}
	return -1
}

func playerOf(snap models.MatchSnapshot, userID string) models.Player {
	for _, p := range snap.Players {
		if p.UserID == userID {
			return p
		}
	}
	return models.Player{}
}
