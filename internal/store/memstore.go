package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/gomoku-kakao-bot/internal/obslog"
)

// MemoryStore keeps live state in process. It is used when REDIS_URL is not
// configured and in tests.
type MemoryStore struct {
	lobbyTTL time.Duration
	now      func() time.Time

	locksMu sync.Mutex
	locks   map[string]*keyLock

	mu        sync.RWMutex
	versions  map[string]uint64
	matches   map[int64]*MatchRecord
	userMatch map[int64]int64
	lobbies   map[int64]LobbyEntry
	ruleLobby map[int64]int64
	userLobby map[int64]int64
	seqMatch  int64
	seqLobby  int64
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewMemoryStore returns an empty store. Lobby entries older than lobbyTTL
// are treated as gone; zero keeps them until removed.
func NewMemoryStore(lobbyTTL time.Duration) *MemoryStore {
	return &MemoryStore{
		lobbyTTL:  lobbyTTL,
		now:       time.Now,
		locks:     make(map[string]*keyLock),
		versions:  make(map[string]uint64),
		matches:   make(map[int64]*MatchRecord),
		userMatch: make(map[int64]int64),
		lobbies:   make(map[int64]LobbyEntry),
		ruleLobby: make(map[int64]int64),
		userLobby: make(map[int64]int64),
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) Atomic(ctx context.Context, keys []string, fn func(Tx) error) error {
	keys = normalizeKeys(keys)
	release := s.acquire(keys)
	defer release()

	s.mu.RLock()
	seen := make(map[string]uint64, len(keys))
	for _, k := range keys {
		seen[k] = s.versions[k]
	}
	s.mu.RUnlock()

	tx := &memTx{s: s}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range seen {
		if s.versions[k] != v {
			obslog.L().Warn("store_conflict", zap.String("backend", "memory"), zap.String("key", k))
			return ErrConflict
		}
	}
	for _, op := range tx.ops {
		op()
	}
	return nil
}

func normalizeKeys(keys []string) []string {
	out := append([]string(nil), keys...)
	sort.Strings(out)
	n := 0
	for i, k := range out {
		if i > 0 && k == out[n-1] {
			continue
		}
		out[n] = k
		n++
	}
	return out[:n]
}

// acquire locks keys in sorted order so overlapping blocks cannot deadlock.
func (s *MemoryStore) acquire(keys []string) func() {
	held := make([]*keyLock, 0, len(keys))
	for _, k := range keys {
		s.locksMu.Lock()
		kl := s.locks[k]
		if kl == nil {
			kl = &keyLock{}
			s.locks[k] = kl
		}
		kl.refs++
		s.locksMu.Unlock()
		kl.mu.Lock()
		held = append(held, kl)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
			s.locksMu.Lock()
			held[i].refs--
			if held[i].refs == 0 {
				delete(s.locks, keys[i])
			}
			s.locksMu.Unlock()
		}
	}
}

// bump must be called with s.mu held.
func (s *MemoryStore) bump(keys ...string) {
	for _, k := range keys {
		s.versions[k]++
	}
}

func copyMatch(rec *MatchRecord) *MatchRecord {
	c := *rec
	c.Moves = append([]StoredMove(nil), rec.Moves...)
	return &c
}

func (s *MemoryStore) LoadMatch(_ context.Context, id int64) (*MatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.matches[id]
	if !ok {
		return nil, nil
	}
	return copyMatch(rec), nil
}

func (s *MemoryStore) ActiveMatchByUser(_ context.Context, userID int64) (*MatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.userMatch[userID]
	if !ok {
		return nil, nil
	}
	rec, ok := s.matches[id]
	if !ok || rec.Status != StatusOngoing {
		return nil, nil
	}
	return copyMatch(rec), nil
}

func (s *MemoryStore) expired(e LobbyEntry) bool {
	return s.lobbyTTL > 0 && s.now().Sub(e.CreatedAt) >= s.lobbyTTL
}

// pruneExpiredLocked drops expired lobby entries and the indexes pointing at
// them. Reads already treat them as gone, so no version changes.
func (s *MemoryStore) pruneExpiredLocked() {
	for id, e := range s.lobbies {
		if !s.expired(e) {
			continue
		}
		delete(s.lobbies, id)
		if s.ruleLobby[e.RuleID] == id {
			delete(s.ruleLobby, e.RuleID)
		}
		if s.userLobby[e.UserID] == id {
			delete(s.userLobby, e.UserID)
		}
	}
}

func (s *MemoryStore) lobbyLocked(id int64) *LobbyEntry {
	e, ok := s.lobbies[id]
	if !ok || s.expired(e) {
		return nil
	}
	return &e
}

func (s *MemoryStore) LoadLobby(_ context.Context, lobbyID int64) (*LobbyEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lobbyLocked(lobbyID), nil
}

func (s *MemoryStore) LoadLobbyByRule(_ context.Context, ruleID int64) (*LobbyEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.ruleLobby[ruleID]
	if !ok {
		return nil, nil
	}
	return s.lobbyLocked(id), nil
}

func (s *MemoryStore) LoadLobbyByUser(_ context.Context, userID int64) (*LobbyEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.userLobby[userID]
	if !ok {
		return nil, nil
	}
	return s.lobbyLocked(id), nil
}

func (s *MemoryStore) ListLobbies(_ context.Context) ([]LobbyEntry, error) {
	s.mu.RLock()
	out := make([]LobbyEntry, 0, len(s.lobbies))
	for _, e := range s.lobbies {
		if !s.expired(e) {
			out = append(out, e)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].LobbyID < out[j].LobbyID })
	return out, nil
}

type memTx struct {
	s   *MemoryStore
	ops []func()
}

func (t *memTx) LoadMatch(ctx context.Context, id int64) (*MatchRecord, error) {
	return t.s.LoadMatch(ctx, id)
}

func (t *memTx) ActiveMatchByUser(ctx context.Context, userID int64) (*MatchRecord, error) {
	return t.s.ActiveMatchByUser(ctx, userID)
}

func (t *memTx) LoadLobby(ctx context.Context, lobbyID int64) (*LobbyEntry, error) {
	return t.s.LoadLobby(ctx, lobbyID)
}

func (t *memTx) LoadLobbyByRule(ctx context.Context, ruleID int64) (*LobbyEntry, error) {
	return t.s.LoadLobbyByRule(ctx, ruleID)
}

func (t *memTx) LoadLobbyByUser(ctx context.Context, userID int64) (*LobbyEntry, error) {
	return t.s.LoadLobbyByUser(ctx, userID)
}

func (t *memTx) ListLobbies(ctx context.Context) ([]LobbyEntry, error) {
	return t.s.ListLobbies(ctx)
}

// Sequences advance immediately, like INCR; an aborted block leaves a gap.
func (t *memTx) NextMatchID(context.Context) (int64, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.seqMatch++
	return t.s.seqMatch, nil
}

func (t *memTx) NextLobbyID(context.Context) (int64, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.seqLobby++
	return t.s.seqLobby, nil
}

func (t *memTx) SaveMatch(_ context.Context, rec *MatchRecord) error {
	c := copyMatch(rec)
	t.ops = append(t.ops, func() {
		s := t.s
		s.matches[c.ID] = c
		for _, u := range []int64{c.Black, c.White} {
			if c.Status == StatusOngoing {
				s.userMatch[u] = c.ID
			} else if s.userMatch[u] == c.ID {
				delete(s.userMatch, u)
			}
		}
		s.bump(matchWriteKeys(c)...)
	})
	return nil
}

func (t *memTx) SaveLobby(_ context.Context, e LobbyEntry) error {
	t.ops = append(t.ops, func() {
		s := t.s
		s.pruneExpiredLocked()
		s.lobbies[e.LobbyID] = e
		s.ruleLobby[e.RuleID] = e.LobbyID
		s.userLobby[e.UserID] = e.LobbyID
		s.bump(lobbyWriteKeys(e)...)
	})
	return nil
}

func (t *memTx) DeleteLobby(_ context.Context, e LobbyEntry) error {
	t.ops = append(t.ops, func() {
		s := t.s
		delete(s.lobbies, e.LobbyID)
		if s.ruleLobby[e.RuleID] == e.LobbyID {
			delete(s.ruleLobby, e.RuleID)
		}
		if s.userLobby[e.UserID] == e.LobbyID {
			delete(s.userLobby, e.UserID)
		}
		s.bump(lobbyWriteKeys(e)...)
	})
	return nil
}
