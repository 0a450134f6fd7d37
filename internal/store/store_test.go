package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type backend struct {
	name string
	open func(t *testing.T) Store
}

func backends() []backend {
	return []backend{
		{"memory", func(t *testing.T) Store { return NewMemoryStore(time.Hour) }},
		{"redis", func(t *testing.T) Store {
			mr, err := miniredis.Run()
			if err != nil {
				t.Fatalf("miniredis: %v", err)
			}
			t.Cleanup(mr.Close)
			s := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Hour)
			t.Cleanup(func() { _ = s.Close() })
			return s
		}},
	}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, s Store)) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) { fn(t, b.open(t)) })
	}
}

func sampleMatch(id int64) *MatchRecord {
	now := time.Unix(1700000000, 0).UTC()
	return &MatchRecord{
		ID: id, RuleID: 1, BoardSize: 15, Variant: "freestyle", Opening: "none",
		Black: 10, White: 20, Status: StatusOngoing,
		Moves:     []StoredMove{{X: 7, Y: 7, Color: "black"}},
		CreatedAt: now, UpdatedAt: now,
	}
}

func TestMatchLifecycle(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		var id int64
		err := s.Atomic(ctx, nil, func(tx Tx) error {
			var err error
			if id, err = tx.NextMatchID(ctx); err != nil {
				return err
			}
			return tx.SaveMatch(ctx, sampleMatch(id))
		})
		if err != nil {
			t.Fatalf("Atomic: %v", err)
		}
		rec, err := s.LoadMatch(ctx, id)
		if err != nil || rec == nil {
			t.Fatalf("LoadMatch: %v %v", rec, err)
		}
		if len(rec.Moves) != 1 || rec.Black != 10 {
			t.Fatalf("unexpected record: %+v", rec)
		}
		for _, u := range []int64{10, 20} {
			if a, _ := s.ActiveMatchByUser(ctx, u); a == nil || a.ID != id {
				t.Fatalf("user %d should have active match %d, got %+v", u, id, a)
			}
		}

		rec.Status = StatusFinished
		rec.Outcome = "black_won"
		if err := s.Atomic(ctx, []string{MatchKey(id)}, func(tx Tx) error { return tx.SaveMatch(ctx, rec) }); err != nil {
			t.Fatalf("finish: %v", err)
		}
		if a, _ := s.ActiveMatchByUser(ctx, 10); a != nil {
			t.Fatalf("finished match must not be active: %+v", a)
		}
		got, _ := s.LoadMatch(ctx, id)
		if got == nil || got.Status != StatusFinished {
			t.Fatalf("finished match should still load: %+v", got)
		}
		if missing, err := s.LoadMatch(ctx, id+100); missing != nil || err != nil {
			t.Fatalf("expected nil,nil for missing match, got %v %v", missing, err)
		}
	})
}

func TestLobbyIndexes(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		entries := []LobbyEntry{
			{LobbyID: 2, RuleID: 1, UserID: 7, CreatedAt: time.Now()},
			{LobbyID: 1, RuleID: 3, UserID: 8, CreatedAt: time.Now()},
		}
		err := s.Atomic(ctx, nil, func(tx Tx) error {
			for _, e := range entries {
				if err := tx.SaveLobby(ctx, e); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			t.Fatalf("save: %v", err)
		}
		if e, _ := s.LoadLobbyByRule(ctx, 1); e == nil || e.UserID != 7 {
			t.Fatalf("by rule: %+v", e)
		}
		if e, _ := s.LoadLobbyByUser(ctx, 8); e == nil || e.LobbyID != 1 {
			t.Fatalf("by user: %+v", e)
		}
		list, err := s.ListLobbies(ctx)
		if err != nil || len(list) != 2 || list[0].LobbyID != 1 {
			t.Fatalf("list: %+v %v", list, err)
		}

		if err := s.Atomic(ctx, []string{LobbyKey(2)}, func(tx Tx) error { return tx.DeleteLobby(ctx, entries[0]) }); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if e, _ := s.LoadLobby(ctx, 2); e != nil {
			t.Fatalf("deleted entry still present")
		}
		if e, _ := s.LoadLobbyByRule(ctx, 1); e != nil {
			t.Fatalf("rule index not cleared")
		}
		if e, _ := s.LoadLobbyByUser(ctx, 7); e != nil {
			t.Fatalf("user index not cleared")
		}
		list, _ = s.ListLobbies(ctx)
		if len(list) != 1 {
			t.Fatalf("expected one lobby left, got %d", len(list))
		}
	})
}

func TestAtomicBuffersWrites(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		e := LobbyEntry{LobbyID: 5, RuleID: 1, UserID: 9, CreatedAt: time.Now()}
		boom := errors.New("boom")
		err := s.Atomic(ctx, []string{RuleLobbyKey(1)}, func(tx Tx) error {
			if err := tx.SaveLobby(ctx, e); err != nil {
				return err
			}
			if got, _ := tx.LoadLobbyByRule(ctx, 1); got != nil {
				t.Errorf("buffered write visible inside block")
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected block error passed through, got %v", err)
		}
		if got, _ := s.LoadLobby(ctx, 5); got != nil {
			t.Fatalf("aborted block must not write")
		}
	})
}

func TestAtomicDetectsForeignWrite(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		mine := LobbyEntry{LobbyID: 1, RuleID: 1, UserID: 9, CreatedAt: time.Now()}
		theirs := LobbyEntry{LobbyID: 2, RuleID: 2, UserID: 9, CreatedAt: time.Now()}
		err := s.Atomic(ctx, []string{UserLobbyKey(9)}, func(tx Tx) error {
			// a second writer touches user 9 while holding different keys
			if err := s.Atomic(ctx, []string{RuleLobbyKey(2)}, func(inner Tx) error {
				return inner.SaveLobby(ctx, theirs)
			}); err != nil {
				t.Errorf("inner Atomic: %v", err)
			}
			return tx.SaveLobby(ctx, mine)
		})
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
		if e, _ := s.LoadLobby(ctx, 1); e != nil {
			t.Fatalf("losing block must not write")
		}
		if e, _ := s.LoadLobbyByUser(ctx, 9); e == nil || e.LobbyID != 2 {
			t.Fatalf("winning write lost: %+v", e)
		}
	})
}

func TestSequencesIncrease(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		var ids []int64
		for i := 0; i < 3; i++ {
			_ = s.Atomic(ctx, nil, func(tx Tx) error {
				id, err := tx.NextLobbyID(ctx)
				ids = append(ids, id)
				return err
			})
		}
		if ids[0] >= ids[1] || ids[1] >= ids[2] {
			t.Fatalf("lobby ids not increasing: %v", ids)
		}
	})
}

func TestMemoryLobbyExpiry(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	now := time.Unix(1700000000, 0)
	s.now = func() time.Time { return now }
	ctx := context.Background()
	e := LobbyEntry{LobbyID: 1, RuleID: 1, UserID: 3, CreatedAt: now}
	if err := s.Atomic(ctx, nil, func(tx Tx) error { return tx.SaveLobby(ctx, e) }); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got, _ := s.LoadLobbyByRule(ctx, 1); got == nil {
		t.Fatalf("fresh entry missing")
	}
	now = now.Add(2 * time.Minute)
	if got, _ := s.LoadLobbyByRule(ctx, 1); got != nil {
		t.Fatalf("expired entry still visible")
	}
	if list, _ := s.ListLobbies(ctx); len(list) != 0 {
		t.Fatalf("expired entry listed")
	}
}

func TestRedisLobbyExpiryPrunesIndex(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStore(rdb, time.Minute)
	ctx := context.Background()
	e := LobbyEntry{LobbyID: 1, RuleID: 1, UserID: 3, CreatedAt: time.Now()}
	if err := s.Atomic(ctx, nil, func(tx Tx) error { return tx.SaveLobby(ctx, e) }); err != nil {
		t.Fatalf("save: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if got, _ := s.LoadLobbyByUser(ctx, 3); got != nil {
		t.Fatalf("expired entry still visible")
	}
	list, err := s.ListLobbies(ctx)
	if err != nil || len(list) != 0 {
		t.Fatalf("list after expiry: %+v %v", list, err)
	}
	if n, _ := rdb.SCard(ctx, keyLobbyIndex).Result(); n != 0 {
		t.Fatalf("index not pruned, %d members left", n)
	}
}

func TestRedisListDuringSavesKeepsIndex(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStore(rdb, time.Hour)
	ctx := context.Background()

	const n = 200
	done := make(chan struct{})
	listed := make(chan error, 1)
	go func() {
		for {
			select {
			case <-done:
				listed <- nil
				return
			default:
			}
			if _, err := s.ListLobbies(ctx); err != nil {
				listed <- err
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func(i int64) {
			defer wg.Done()
			e := LobbyEntry{LobbyID: i, RuleID: i, UserID: 1000 + i, CreatedAt: time.Now()}
			if err := s.Atomic(ctx, nil, func(tx Tx) error { return tx.SaveLobby(ctx, e) }); err != nil {
				t.Errorf("save %d: %v", i, err)
			}
		}(int64(i))
	}
	wg.Wait()
	close(done)
	if err := <-listed; err != nil {
		t.Fatalf("list: %v", err)
	}

	if c, _ := rdb.SCard(ctx, keyLobbyIndex).Result(); c != n {
		t.Fatalf("index lost live lobbies: %d of %d left", c, n)
	}
	list, err := s.ListLobbies(ctx)
	if err != nil || len(list) != n {
		t.Fatalf("listed %d of %d lobbies: %v", len(list), n, err)
	}
}

func TestMemorySaveLobbyDropsExpired(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	now := time.Unix(1700000000, 0)
	s.now = func() time.Time { return now }
	ctx := context.Background()
	save := func(e LobbyEntry) {
		t.Helper()
		if err := s.Atomic(ctx, nil, func(tx Tx) error { return tx.SaveLobby(ctx, e) }); err != nil {
			t.Fatalf("save %d: %v", e.LobbyID, err)
		}
	}
	save(LobbyEntry{LobbyID: 1, RuleID: 1, UserID: 3, CreatedAt: now})
	now = now.Add(2 * time.Minute)
	save(LobbyEntry{LobbyID: 2, RuleID: 2, UserID: 4, CreatedAt: now})

	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.lobbies[1]; ok {
		t.Fatalf("expired entry kept")
	}
	if _, ok := s.ruleLobby[1]; ok {
		t.Fatalf("expired rule index kept")
	}
	if _, ok := s.userLobby[3]; ok {
		t.Fatalf("expired user index kept")
	}
	if len(s.lobbies) != 1 || s.ruleLobby[2] != 2 || s.userLobby[4] != 2 {
		t.Fatalf("fresh entry not indexed: %+v", s.lobbies)
	}
}

func TestParseRedisURL(t *testing.T) {
	opts, err := parseRedisURL("redis://:secret@localhost:6380/2")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if opts.Addr != "localhost:6380" || opts.Password != "secret" || opts.DB != 2 {
		t.Fatalf("unexpected options: %+v", opts)
	}
	if _, err := parseRedisURL("http://localhost"); err == nil {
		t.Fatalf("expected scheme error")
	}
}
