package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"quiz-battle/models"
	"quiz-battle/service"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"
)

const wsTestSecret = "ws-secret"

type testServer struct {
	srv    *httptest.Server
	hub    *Hub
	battle *service.BattleService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zaptest.NewLogger(t)

	hub := NewHub(logger)
	battle := service.NewBattleService(service.Dependencies{Transport: hub}, logger, service.DefaultBattleConfig())
	identities := service.NewIdentityResolver(wsTestSecret, logger)

	api := NewAPIHandler(battle, hub, nil, logger)
	ws := NewWSHandler(battle, hub, identities, []string{"*"}, logger)
	srv := httptest.NewServer(NewRouter(api, ws))

	t.Cleanup(func() {
		hub.Close()
		srv.Close()
		battle.Close()
	})
	return &testServer{srv: srv, hub: hub, battle: battle}
}

func (ts *testServer) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/ws"
	if userID != "" {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: userID}).
			SignedString([]byte(wsTestSecret))
		if err != nil {
			t.Fatalf("SignedString: %v", err)
		}
		url += "?token=" + token
	}

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func emit(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	if err := conn.WriteJSON(models.OutboundEnvelope{Event: event, Data: data}); err != nil {
		t.Fatalf("WriteJSON(%s): %v", event, err)
	}
}

// readUntil читает события, пока не встретит нужное
func readUntil(t *testing.T, conn *websocket.Conn, event string, out any) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var env models.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			t.Fatalf("waiting for %s: %v", event, err)
		}
		if env.Event != event {
			continue
		}
		if out != nil {
			if err := json.Unmarshal(env.Data, out); err != nil {
				t.Fatalf("decode %s: %v", event, err)
			}
		}
		return
	}
}

func TestWebSocketIdentity(t *testing.T) {
	ts := newTestServer(t)

	var id models.IdentityPayload
	readUntil(t, ts.dial(t, "alice"), models.EventIdentity, &id)
	if id.UserID != "alice" || id.IsGuest {
		t.Fatalf("identity = %+v", id)
	}

	var guest models.IdentityPayload
	readUntil(t, ts.dial(t, ""), models.EventIdentity, &guest)
	if !guest.IsGuest || !strings.HasPrefix(guest.UserID, "guest-") {
		t.Fatalf("guest identity = %+v", guest)
	}
}

func TestWebSocketMatchFlow(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.dial(t, "alice")
	bob := ts.dial(t, "bob")
	readUntil(t, alice, models.EventIdentity, nil)
	readUntil(t, bob, models.EventIdentity, nil)

	emit(t, alice, models.EventCreateGame, models.DisplayInfo{Name: "Alice", Subject: "math"})
	var created models.GameCreatedPayload
	readUntil(t, alice, models.EventGameCreated, &created)
	if created.RoomID == "" {
		t.Fatal("empty room id")
	}

	emit(t, bob, models.EventGetGames, nil)
	var list models.GamesListPayload
	readUntil(t, bob, models.EventGamesList, &list)
	if len(list.Games) != 1 || list.Games[0].RoomID != created.RoomID || list.Games[0].HostName != "Alice" {
		t.Fatalf("games list = %+v", list)
	}

	emit(t, bob, models.EventJoinGame, models.JoinGameRequest{RoomID: created.RoomID, DisplayInfo: models.DisplayInfo{Name: "Bob"}})
	var aliceFound, bobFound models.MatchFoundPayload
	readUntil(t, alice, models.EventMatchFound, &aliceFound)
	readUntil(t, bob, models.EventMatchFound, &bobFound)
	if aliceFound.Opponent.UserID != "bob" || bobFound.Opponent.UserID != "alice" {
		t.Fatalf("match_found alice=%+v bob=%+v", aliceFound, bobFound)
	}
	readUntil(t, alice, models.EventRoundReady, nil)
	readUntil(t, bob, models.EventRoundReady, nil)

	emit(t, alice, models.EventSubmitAnswer, models.SubmitAnswerRequest{RoomID: created.RoomID, Correct: true})
	var answered models.OpponentAnsweredPayload
	readUntil(t, bob, models.EventOpponentAnswered, &answered)
	if answered.UserID != "alice" {
		t.Fatalf("opponent_answered = %+v", answered)
	}
	readUntil(t, bob, models.EventSuddenDeathStart, nil)

	emit(t, bob, models.EventSubmitAnswer, models.SubmitAnswerRequest{RoomID: created.RoomID, Correct: true})
	var result models.RoundResult
	readUntil(t, alice, models.EventRoundResult, &result)
	if result.WinnerID != "alice" || result.Critical || result.Damage["bob"] < 5 || result.Damage["bob"] > 8 {
		t.Fatalf("round_result = %+v", result)
	}

	emit(t, bob, models.EventLeaveMatch, models.RoomRequest{RoomID: created.RoomID})
	var over models.GameOverPayload
	readUntil(t, alice, models.EventGameOver, &over)
	if over.WinnerID != "alice" || over.Reason != models.ReasonAbandoned {
		t.Fatalf("game_over = %+v", over)
	}
}

func TestWebSocketErrors(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, "carol")
	readUntil(t, conn, models.EventIdentity, nil)

	var gameErr models.ErrorPayload

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	readUntil(t, conn, models.EventGameError, &gameErr)
	if gameErr.Code != service.CodeInvalidRequest {
		t.Fatalf("malformed envelope code = %s", gameErr.Code)
	}

	emit(t, conn, "fly_away", nil)
	readUntil(t, conn, models.EventGameError, &gameErr)
	if gameErr.Code != service.CodeInvalidRequest {
		t.Fatalf("unknown event code = %s", gameErr.Code)
	}

	emit(t, conn, models.EventJoinGame, models.JoinGameRequest{})
	readUntil(t, conn, models.EventGameError, &gameErr)
	if gameErr.Code != service.CodeInvalidRequest {
		t.Fatalf("missing room_id code = %s", gameErr.Code)
	}

	emit(t, conn, models.EventJoinGame, models.JoinGameRequest{RoomID: "missing"})
	readUntil(t, conn, models.EventGameError, &gameErr)
	if gameErr.Code != service.CodeNotFound {
		t.Fatalf("unknown room code = %s", gameErr.Code)
	}
}

func TestWebSocketJoinFullRoom(t *testing.T) {
	ts := newTestServer(t)
	alice, bob, carol := ts.dial(t, "alice"), ts.dial(t, "bob"), ts.dial(t, "carol")

	emit(t, alice, models.EventCreateGame, models.DisplayInfo{Name: "Alice"})
	var created models.GameCreatedPayload
	readUntil(t, alice, models.EventGameCreated, &created)

	emit(t, bob, models.EventJoinGame, models.JoinGameRequest{RoomID: created.RoomID})
	readUntil(t, bob, models.EventMatchFound, nil)

	emit(t, carol, models.EventJoinGame, models.JoinGameRequest{RoomID: created.RoomID})
	var gameErr models.ErrorPayload
	readUntil(t, carol, models.EventGameError, &gameErr)
	if gameErr.Code != service.CodeFull {
		t.Fatalf("code = %s, want FULL", gameErr.Code)
	}
}

func TestWebSocketReconnect(t *testing.T) {
	ts := newTestServer(t)
	alice, bob := ts.dial(t, "alice"), ts.dial(t, "bob")

	emit(t, alice, models.EventCreateGame, models.DisplayInfo{Name: "Alice"})
	var created models.GameCreatedPayload
	readUntil(t, alice, models.EventGameCreated, &created)
	emit(t, bob, models.EventJoinGame, models.JoinGameRequest{RoomID: created.RoomID})
	readUntil(t, bob, models.EventRoundReady, nil)

	bob.Close()
	var status models.PlayerStatusPayload
	readUntil(t, alice, models.EventPlayerStatusChange, &status)
	if status.UserID != "bob" || status.Status != models.PresenceDisconnected {
		t.Fatalf("status = %+v", status)
	}

	again := ts.dial(t, "bob")
	var snap models.MatchSnapshot
	readUntil(t, again, models.EventSyncState, &snap)
	if snap.RoomID != created.RoomID || snap.Status != models.StatusPlaying || snap.Round != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
	readUntil(t, alice, models.EventPlayerStatusChange, &status)
	if status.Status != models.PresenceConnected {
		t.Fatalf("status = %+v", status)
	}
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://quiz.example"})

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	if !check(req) {
		t.Fatal("request without Origin rejected")
	}
	req.Header.Set("Origin", "https://quiz.example")
	if !check(req) {
		t.Fatal("allowed origin rejected")
	}
	req.Header.Set("Origin", "https://evil.example")
	if check(req) {
		t.Fatal("unknown origin accepted")
	}

	req.Header.Set("Origin", "https://anything.example")
	if !originChecker([]string{"*"})(req) {
		t.Fatal("wildcard rejected origin")
	}
}
