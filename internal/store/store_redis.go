package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/gomoku-kakao-bot/internal/obslog"
)

const ttlMatch = 24 * time.Hour

// RedisStore keeps matches and lobby entries as JSON documents. Atomic
// blocks WATCH their keys and commit through MULTI/EXEC.
type RedisStore struct {
	rdb      *redis.Client
	lobbyTTL time.Duration
}

func NewRedisStore(rdb *redis.Client, lobbyTTL time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, lobbyTTL: lobbyTTL}
}

// OpenRedis connects to REDIS_URL and pings it.
func OpenRedis(ctx context.Context, redisURL string, lobbyTTL time.Duration) (*RedisStore, error) {
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisStore(rdb, lobbyTTL), nil
}

func (s *RedisStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

// getter is the read surface shared by *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
}

type redisReader struct{ c getter }

func getJSON(ctx context.Context, c getter, key string, v any) (bool, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func getID(ctx context.Context, c getter, key string) (int64, bool, error) {
	raw, err := c.Get(ctx, key).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return id, true, nil
}

func (r redisReader) LoadMatch(ctx context.Context, id int64) (*MatchRecord, error) {
	var rec MatchRecord
	ok, err := getJSON(ctx, r.c, MatchKey(id), &rec)
	if err != nil || !ok {
		return nil, err
	}
	return &rec, nil
}

func (r redisReader) ActiveMatchByUser(ctx context.Context, userID int64) (*MatchRecord, error) {
	id, ok, err := getID(ctx, r.c, UserMatchKey(userID))
	if err != nil || !ok {
		return nil, err
	}
	rec, err := r.LoadMatch(ctx, id)
	if err != nil || rec == nil {
		return nil, err
	}
	if rec.Status != StatusOngoing {
		return nil, nil
	}
	return rec, nil
}

func (r redisReader) LoadLobby(ctx context.Context, lobbyID int64) (*LobbyEntry, error) {
	var e LobbyEntry
	ok, err := getJSON(ctx, r.c, LobbyKey(lobbyID), &e)
	if err != nil || !ok {
		return nil, err
	}
	return &e, nil
}

func (r redisReader) lobbyVia(ctx context.Context, indexKey string) (*LobbyEntry, error) {
	id, ok, err := getID(ctx, r.c, indexKey)
	if err != nil || !ok {
		return nil, err
	}
	return r.LoadLobby(ctx, id)
}

func (r redisReader) LoadLobbyByRule(ctx context.Context, ruleID int64) (*LobbyEntry, error) {
	return r.lobbyVia(ctx, RuleLobbyKey(ruleID))
}

func (r redisReader) LoadLobbyByUser(ctx context.Context, userID int64) (*LobbyEntry, error) {
	return r.lobbyVia(ctx, UserLobbyKey(userID))
}

func (r redisReader) ListLobbies(ctx context.Context) ([]LobbyEntry, error) {
	out, _, err := r.listLobbies(ctx)
	return out, err
}

// listLobbies also reports index members whose entry is gone. Lobby ids come
// from INCR and are never saved twice, so a member seen without its entry
// stays dead.
func (r redisReader) listLobbies(ctx context.Context) ([]LobbyEntry, []string, error) {
	ids, err := r.c.SMembers(ctx, keyLobbyIndex).Result()
	if err != nil {
		return nil, nil, err
	}
	out := make([]LobbyEntry, 0, len(ids))
	var stale []string
	for _, raw := range ids {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			stale = append(stale, raw)
			continue
		}
		e, err := r.LoadLobby(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		if e == nil {
			stale = append(stale, raw)
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LobbyID < out[j].LobbyID })
	return out, stale, nil
}

func (s *RedisStore) LoadMatch(ctx context.Context, id int64) (*MatchRecord, error) {
	return redisReader{s.rdb}.LoadMatch(ctx, id)
}

func (s *RedisStore) ActiveMatchByUser(ctx context.Context, userID int64) (*MatchRecord, error) {
	return redisReader{s.rdb}.ActiveMatchByUser(ctx, userID)
}

func (s *RedisStore) LoadLobby(ctx context.Context, lobbyID int64) (*LobbyEntry, error) {
	return redisReader{s.rdb}.LoadLobby(ctx, lobbyID)
}

func (s *RedisStore) LoadLobbyByRule(ctx context.Context, ruleID int64) (*LobbyEntry, error) {
	return redisReader{s.rdb}.LoadLobbyByRule(ctx, ruleID)
}

func (s *RedisStore) LoadLobbyByUser(ctx context.Context, userID int64) (*LobbyEntry, error) {
	return redisReader{s.rdb}.LoadLobbyByUser(ctx, userID)
}

// ListLobbies also prunes index members whose entry has expired.
func (s *RedisStore) ListLobbies(ctx context.Context) ([]LobbyEntry, error) {
	out, stale, err := redisReader{s.rdb}.listLobbies(ctx)
	if err != nil {
		return nil, err
	}
	if len(stale) > 0 {
		members := make([]any, len(stale))
		for i, id := range stale {
			members[i] = id
		}
		if err := s.rdb.SRem(ctx, keyLobbyIndex, members...).Err(); err != nil {
			obslog.L().Warn("lobby_index_prune_failed", zap.Error(err))
		}
	}
	return out, nil
}

func (s *RedisStore) Atomic(ctx context.Context, keys []string, fn func(Tx) error) error {
	keys = normalizeKeys(keys)
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		t := &redisTx{redisReader: redisReader{tx}, s: s}
		if err := fn(t); err != nil {
			return err
		}
		if len(t.ops) == 0 {
			return nil
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, op := range t.ops {
				op(ctx, pipe)
			}
			return nil
		})
		return err
	}, keys...)
	if errors.Is(err, redis.TxFailedErr) {
		obslog.L().Warn("store_conflict", zap.String("backend", "redis"), zap.Strings("keys", keys))
		return ErrConflict
	}
	return err
}

type redisTx struct {
	redisReader
	s   *RedisStore
	ops []func(context.Context, redis.Pipeliner)
}

func (t *redisTx) NextMatchID(ctx context.Context) (int64, error) {
	return t.s.rdb.Incr(ctx, keySeqMatch).Result()
}

func (t *redisTx) NextLobbyID(ctx context.Context) (int64, error) {
	return t.s.rdb.Incr(ctx, keySeqLobby).Result()
}

func (t *redisTx) SaveMatch(_ context.Context, rec *MatchRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	id := strconv.FormatInt(rec.ID, 10)
	ongoing := rec.Status == StatusOngoing
	black, white := rec.Black, rec.White
	key := MatchKey(rec.ID)
	t.ops = append(t.ops, func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.Set(ctx, key, raw, ttlMatch)
		for _, u := range []int64{black, white} {
			if ongoing {
				pipe.Set(ctx, UserMatchKey(u), id, ttlMatch)
			} else {
				pipe.Del(ctx, UserMatchKey(u))
			}
		}
	})
	return nil
}

func (t *redisTx) SaveLobby(_ context.Context, e LobbyEntry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	id := strconv.FormatInt(e.LobbyID, 10)
	ttl := t.s.lobbyTTL
	t.ops = append(t.ops, func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.Set(ctx, LobbyKey(e.LobbyID), raw, ttl)
		pipe.Set(ctx, RuleLobbyKey(e.RuleID), id, ttl)
		pipe.Set(ctx, UserLobbyKey(e.UserID), id, ttl)
		pipe.SAdd(ctx, keyLobbyIndex, id)
	})
	return nil
}

func (t *redisTx) DeleteLobby(_ context.Context, e LobbyEntry) error {
	id := strconv.FormatInt(e.LobbyID, 10)
	t.ops = append(t.ops, func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.Del(ctx, LobbyKey(e.LobbyID), RuleLobbyKey(e.RuleID), UserLobbyKey(e.UserID))
		pipe.SRem(ctx, keyLobbyIndex, id)
	})
	return nil
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
