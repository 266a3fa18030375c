package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"quiz-battle/models"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap/zaptest"
)

func newTestStorage(t *testing.T, ttl time.Duration) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewRedisStorage(mr.Addr(), "", 0, ttl, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewRedisStorage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func testResult(roomID, winner string) *models.MatchResult {
	return &models.MatchResult{
		RoomID:   roomID,
		WinnerID: winner,
		Reason:   models.ReasonKnockout,
		Rounds:   6,
		Subject:  "math",
		Players: []models.Player{
			{UserID: "alice", Name: "Alice", Health: 40, MaxHealth: 100, Score: 75},
			{UserID: "bob", Name: "Bob", Health: 0, MaxHealth: 100, Score: 30},
		},
		StartedAt:  time.Unix(1000, 0).UTC(),
		FinishedAt: time.Unix(1100, 0).UTC(),
	}
}

func TestSaveAndGetResult(t *testing.T) {
	s, mr := newTestStorage(t, time.Hour)
	ctx := context.Background()

	if err := s.SaveResult(ctx, testResult("room-1", "alice")); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	got, err := s.GetResult(ctx, "room-1")
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if got.WinnerID != "alice" || got.Rounds != 6 || len(got.Players) != 2 || got.Players[1].Health != 0 {
		t.Fatalf("result = %+v", got)
	}
	if !got.FinishedAt.Equal(time.Unix(1100, 0)) {
		t.Fatalf("finished_at = %v", got.FinishedAt)
	}

	if ttl := mr.TTL("result:room-1"); ttl != time.Hour {
		t.Fatalf("result ttl = %v", ttl)
	}
	if ttl := mr.TTL("player:bob:results"); ttl != time.Hour {
		t.Fatalf("history ttl = %v", ttl)
	}
}

func TestGetResultNotFound(t *testing.T) {
	s, mr := newTestStorage(t, time.Minute)
	ctx := context.Background()

	if _, err := s.GetResult(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	if err := s.SaveResult(ctx, testResult("room-1", "alice")); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, err := s.GetResult(ctx, "room-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired result err = %v", err)
	}
}

func TestGetPlayerResults(t *testing.T) {
	s, mr := newTestStorage(t, 0)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		if err := s.SaveResult(ctx, testResult(fmt.Sprintf("room-%d", i), "alice")); err != nil {
			t.Fatalf("SaveResult: %v", err)
		}
	}
	if mr.TTL("player:alice:results") != 0 {
		t.Fatal("history has ttl with ttl disabled")
	}

	results, err := s.GetPlayerResults(ctx, "alice", 2)
	if err != nil {
		t.Fatalf("GetPlayerResults: %v", err)
	}
	if len(results) != 2 || results[0].RoomID != "room-3" || results[1].RoomID != "room-2" {
		t.Fatalf("results = %+v", results)
	}

	// Итог удален, а ссылка в истории осталась
	mr.Del("result:room-3")
	results, err = s.GetPlayerResults(ctx, "bob", 10)
	if err != nil {
		t.Fatalf("GetPlayerResults: %v", err)
	}
	if len(results) != 2 || results[0].RoomID != "room-2" {
		t.Fatalf("results after delete = %+v", results)
	}

	empty, err := s.GetPlayerResults(ctx, "nobody", 10)
	if err != nil || len(empty) != 0 {
		t.Fatalf("empty history = %v, %v", empty, err)
	}
}

func TestPlayerHistoryIsCapped(t *testing.T) {
	s, mr := newTestStorage(t, 0)
	ctx := context.Background()

	for i := 0; i < maxPlayerResults+5; i++ {
		if err := s.SaveResult(ctx, testResult(fmt.Sprintf("room-%d", i), "bob")); err != nil {
			t.Fatalf("SaveResult: %v", err)
		}
	}
	list, err := mr.List("player:bob:results")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != maxPlayerResults {
		t.Fatalf("history length = %d, want %d", len(list), maxPlayerResults)
	}
	if list[0] != fmt.Sprintf("room-%d", maxPlayerResults+4) {
		t.Fatalf("newest entry = %s", list[0])
	}
}

func TestNewRedisStorageUnreachable(t *testing.T) {
	if _, err := NewRedisStorage("127.0.0.1:1", "", 0, time.Minute, zaptest.NewLogger(t)); err == nil {
		t.Fatal("expected connection error")
	}
}
