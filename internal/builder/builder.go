package builder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/gomoku-kakao-bot/internal/config"
	"github.com/park285/gomoku-kakao-bot/internal/obslog"
	"github.com/park285/gomoku-kakao-bot/internal/pvpgomoku"
	"github.com/park285/gomoku-kakao-bot/internal/pvplobby"
	"github.com/park285/gomoku-kakao-bot/internal/render"
	"github.com/park285/gomoku-kakao-bot/internal/rulecat"
	svcgomoku "github.com/park285/gomoku-kakao-bot/internal/service/gomoku"
	"github.com/park285/gomoku-kakao-bot/internal/store"
)

type Deps struct {
	Service *svcgomoku.Service
	Rules   *rulecat.Catalog
	Store   store.Store
	Results pvpgomoku.ResultRepository
}

// Close releases the store and the result repository.
func (d *Deps) Close() error {
	var errs []error
	if d.Results != nil {
		errs = append(errs, d.Results.Close())
	}
	if d.Store != nil {
		errs = append(errs, d.Store.Close())
	}
	return errors.Join(errs...)
}

// New wires the gomoku stack. An empty REDIS_URL selects the in-process
// store and an empty DATABASE_URL the in-process result repository; both
// lose state on restart.
func New(ctx context.Context, cfg *config.AppConfig) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	log := obslog.L()

	rules, err := rulecat.New(cfg.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	deps := &Deps{Rules: rules}
	if strings.TrimSpace(cfg.RedisURL) != "" {
		rs, err := store.OpenRedis(ctx, cfg.RedisURL, cfg.LobbyTTL)
		if err != nil {
			return nil, fmt.Errorf("init redis store: %w", err)
		}
		deps.Store = rs
		log.Info("store_ready", zap.String("backend", "redis"))
	} else {
		deps.Store = store.NewMemoryStore(cfg.LobbyTTL)
		log.Warn("store_ready", zap.String("backend", "memory"))
	}

	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		repo, err := pvpgomoku.OpenSQL(ctx, cfg.DatabaseURL)
		if err != nil {
			_ = deps.Close()
			return nil, fmt.Errorf("init result repository: %w", err)
		}
		deps.Results = repo
		log.Info("results_ready", zap.String("backend", "sql"))
	} else {
		deps.Results = pvpgomoku.NewMemoryRepository()
		log.Warn("results_ready", zap.String("backend", "memory"))
	}

	matches := pvpgomoku.NewManager(deps.Store, deps.Results)
	lobby := pvplobby.NewCoordinator(deps.Store, rules, matches)
	deps.Service, err = svcgomoku.NewService(rules, lobby, matches, render.NewSVGBoardRenderer(), svcgomoku.Config{
		DefaultRule:  cfg.DefaultRule,
		HistoryLimit: cfg.HistoryLimit,
		AllowedRooms: append([]string(nil), cfg.AllowedRooms...),
	})
	if err != nil {
		_ = deps.Close()
		return nil, err
	}
	return deps, nil
}
