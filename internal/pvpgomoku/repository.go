package pvpgomoku

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/park285/gomoku-kakao-bot/internal/gomoku"
	"github.com/park285/gomoku-kakao-bot/internal/rating"
	"github.com/park285/gomoku-kakao-bot/internal/store"
)

type dialect int

const (
	dialectPostgres dialect = iota
	dialectSQLite
)

// SQLRepository stores results and ratings in Postgres (lib/pq) or SQLite
// (modernc.org/sqlite). Queries are written with ? placeholders and rebound
// for Postgres.
type SQLRepository struct {
	db      *sql.DB
	dialect dialect
}

// OpenSQL picks the driver from the URL scheme: postgres:// or
// postgresql:// use lib/pq, sqlite:<path> and file:<path> use SQLite.
func OpenSQL(ctx context.Context, databaseURL string) (*SQLRepository, error) {
	raw := strings.TrimSpace(databaseURL)
	var (
		db  *sql.DB
		d   dialect
		err error
	)
	switch {
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		d = dialectPostgres
		if db, err = sql.Open("postgres", raw); err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(16)
		db.SetMaxIdleConns(8)
		db.SetConnMaxLifetime(30 * time.Minute)
	case strings.HasPrefix(raw, "sqlite:"), strings.HasPrefix(raw, "file:"):
		d = dialectSQLite
		if db, err = sql.Open("sqlite", strings.TrimPrefix(raw, "sqlite:")); err != nil {
			return nil, err
		}
		// one connection: writes serialize and :memory: stays a single database
		db.SetMaxOpenConns(1)
	default:
		return nil, fmt.Errorf("unsupported DATABASE_URL scheme: %q", raw)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	r := &SQLRepository{db: db, dialect: d}
	if err := r.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

func (r *SQLRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS gomoku_results (
		match_id    BIGINT PRIMARY KEY,
		result_uuid TEXT NOT NULL,
		rule_id     BIGINT NOT NULL,
		black_id    BIGINT NOT NULL,
		white_id    BIGINT NOT NULL,
		outcome     TEXT NOT NULL,
		reason      TEXT NOT NULL,
		moves       TEXT NOT NULL,
		move_count  INTEGER NOT NULL,
		started_at  BIGINT NOT NULL,
		ended_at    BIGINT NOT NULL,
		duration_ms BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS gomoku_results_black ON gomoku_results (black_id, ended_at)`,
	`CREATE INDEX IF NOT EXISTS gomoku_results_white ON gomoku_results (white_id, ended_at)`,
	`CREATE TABLE IF NOT EXISTS gomoku_ratings (
		user_id      BIGINT NOT NULL,
		rule_id      BIGINT NOT NULL,
		games_played INTEGER NOT NULL,
		wins         INTEGER NOT NULL,
		losses       INTEGER NOT NULL,
		draws        INTEGER NOT NULL,
		elo          INTEGER NOT NULL,
		updated_at   BIGINT NOT NULL,
		PRIMARY KEY (user_id, rule_id)
	)`,
}

func (r *SQLRepository) migrate(ctx context.Context) error {
	if r.dialect == dialectSQLite {
		if _, err := r.db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			return fmt.Errorf("set WAL: %w", err)
		}
	}
	for _, q := range schema {
		if _, err := r.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $N for Postgres.
func (r *SQLRepository) rebind(q string) string {
	if r.dialect != dialectPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, ch := range q {
		if ch == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *SQLRepository) loadRating(ctx context.Context, q queryer, userID, ruleID int64, lock bool) (rating.Record, error) {
	query := `SELECT games_played, wins, losses, draws, elo, updated_at
		FROM gomoku_ratings WHERE user_id = ? AND rule_id = ?`
	if lock && r.dialect == dialectPostgres {
		query += " FOR UPDATE"
	}
	rec := rating.Record{UserID: userID, RuleID: ruleID}
	var updated int64
	err := q.QueryRowContext(ctx, r.rebind(query), userID, ruleID).
		Scan(&rec.GamesPlayed, &rec.Wins, &rec.Losses, &rec.Draws, &rec.Elo, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return rating.NewRecord(userID, ruleID), nil
	}
	if err != nil {
		return rating.Record{}, fmt.Errorf("load rating %d/%d: %w", userID, ruleID, err)
	}
	rec.UpdatedAt = time.UnixMilli(updated)
	return rec, nil
}

// seedRating makes sure the rating row exists so the FOR UPDATE read that
// follows locks it even for a first game.
func (r *SQLRepository) seedRating(ctx context.Context, tx *sql.Tx, userID, ruleID int64, at time.Time) error {
	const q = `INSERT INTO gomoku_ratings (
			user_id, rule_id, games_played, wins, losses, draws, elo, updated_at
		) VALUES (?, ?, 0, 0, 0, 0, ?, ?)
		ON CONFLICT (user_id, rule_id) DO NOTHING`
	if _, err := tx.ExecContext(ctx, r.rebind(q), userID, ruleID, rating.DefaultRating, at.UnixMilli()); err != nil {
		return fmt.Errorf("seed rating %d/%d: %w", userID, ruleID, err)
	}
	return nil
}

func (r *SQLRepository) Rating(ctx context.Context, userID, ruleID int64) (rating.Record, error) {
	return r.loadRating(ctx, r.db, userID, ruleID, false)
}

// ApplyResult inserts the archive row and, only if it was new, updates both
// ratings in the same transaction.
func (r *SQLRepository) ApplyResult(ctx context.Context, res GameResult) (*Settlement, error) {
	if res.Black == res.White {
		return nil, fmt.Errorf("result %d: %w", res.MatchID, gomoku.ErrSamePlayer)
	}
	moves, err := json.Marshal(toStoredMoves(res.Moves))
	if err != nil {
		return nil, fmt.Errorf("marshal moves: %w", err)
	}
	duration := res.EndedAt.Sub(res.StartedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	const insert = `INSERT INTO gomoku_results (
			match_id, result_uuid, rule_id, black_id, white_id,
			outcome, reason, moves, move_count,
			started_at, ended_at, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (match_id) DO NOTHING`
	out, err := tx.ExecContext(ctx, r.rebind(insert),
		res.MatchID, res.ResultUUID, res.RuleID, res.Black, res.White,
		res.Outcome.String(), string(res.Reason), string(moves), len(res.Moves),
		res.StartedAt.UnixMilli(), res.EndedAt.UnixMilli(), duration,
	)
	if err != nil {
		return nil, fmt.Errorf("insert result: %w", err)
	}
	inserted, err := out.RowsAffected()
	if err != nil {
		return nil, err
	}

	if inserted > 0 {
		for _, u := range []int64{res.Black, res.White} {
			if err := r.seedRating(ctx, tx, u, res.RuleID, res.EndedAt); err != nil {
				return nil, err
			}
		}
	}

	black, err := r.loadRating(ctx, tx, res.Black, res.RuleID, true)
	if err != nil {
		return nil, err
	}
	white, err := r.loadRating(ctx, tx, res.White, res.RuleID, true)
	if err != nil {
		return nil, err
	}
	if inserted == 0 {
		return &Settlement{Black: black, White: white}, tx.Commit()
	}

	s := settle(res, black, white)
	const upsert = `INSERT INTO gomoku_ratings (
			user_id, rule_id, games_played, wins, losses, draws, elo, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, rule_id) DO UPDATE SET
			games_played = excluded.games_played,
			wins = excluded.wins,
			losses = excluded.losses,
			draws = excluded.draws,
			elo = excluded.elo,
			updated_at = excluded.updated_at`
	for _, rec := range []rating.Record{s.Black, s.White} {
		if _, err := tx.ExecContext(ctx, r.rebind(upsert),
			rec.UserID, rec.RuleID, rec.GamesPlayed, rec.Wins, rec.Losses, rec.Draws, rec.Elo, rec.UpdatedAt.UnixMilli(),
		); err != nil {
			return nil, fmt.Errorf("save rating %d: %w", rec.UserID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *SQLRepository) RecentResults(ctx context.Context, userID int64, limit int) ([]GameResult, error) {
	if limit <= 0 {
		limit = 10
	}
	const q = `SELECT match_id, result_uuid, rule_id, black_id, white_id,
			outcome, reason, moves, started_at, ended_at
		FROM gomoku_results
		WHERE black_id = ? OR white_id = ?
		ORDER BY ended_at DESC, match_id DESC
		LIMIT ?`
	rows, err := r.db.QueryContext(ctx, r.rebind(q), userID, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GameResult
	for rows.Next() {
		var (
			res             GameResult
			outcome, reason string
			moves           string
			started, ended  int64
		)
		if err := rows.Scan(&res.MatchID, &res.ResultUUID, &res.RuleID, &res.Black, &res.White,
			&outcome, &reason, &moves, &started, &ended); err != nil {
			return nil, err
		}
		if res.Outcome, err = gomoku.ParseOutcome(outcome); err != nil {
			return nil, fmt.Errorf("result %d: %w", res.MatchID, err)
		}
		res.Reason = gomoku.Reason(reason)
		var sm []store.StoredMove
		if err := json.Unmarshal([]byte(moves), &sm); err != nil {
			return nil, fmt.Errorf("result %d moves: %w", res.MatchID, err)
		}
		if res.Moves, err = fromStoredMoves(sm); err != nil {
			return nil, err
		}
		res.StartedAt = time.UnixMilli(started)
		res.EndedAt = time.UnixMilli(ended)
		out = append(out, res)
	}
	return out, rows.Err()
}
