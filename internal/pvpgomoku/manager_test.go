package pvpgomoku

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/park285/gomoku-kakao-bot/internal/gomoku"
	"github.com/park285/gomoku-kakao-bot/internal/rating"
	"github.com/park285/gomoku-kakao-bot/internal/store"
)

var std15 = gomoku.RuleSet{ID: 1, Name: "std", BoardSize: 15, Variant: gomoku.VariantFreestyle, Opening: gomoku.OpeningNone}

func newTestManager(t *testing.T, st store.Store, repo ResultRepository) *Manager {
	t.Helper()
	m := NewManager(st, repo)
	m.coin = func() (bool, error) { return true, nil }
	return m
}

func startMatch(t *testing.T, m *Manager, a, b int64) *gomoku.OngoingMatch {
	t.Helper()
	var om *gomoku.OngoingMatch
	err := m.st.Atomic(context.Background(), nil, func(tx store.Tx) error {
		var err error
		om, err = m.Create(context.Background(), tx, std15, a, b)
		return err
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return om
}

// fiveMoves lets black (user 10) win on the ninth stone.
var fiveMoves = []struct {
	user int64
	pos  gomoku.Position
}{
	{10, gomoku.Position{X: 7, Y: 7}}, {20, gomoku.Position{X: 7, Y: 8}},
	{10, gomoku.Position{X: 8, Y: 7}}, {20, gomoku.Position{X: 8, Y: 8}},
	{10, gomoku.Position{X: 9, Y: 7}}, {20, gomoku.Position{X: 9, Y: 8}},
	{10, gomoku.Position{X: 10, Y: 7}}, {20, gomoku.Position{X: 10, Y: 8}},
	{10, gomoku.Position{X: 11, Y: 7}},
}

func TestCreateUsesCoin(t *testing.T) {
	m := newTestManager(t, store.NewMemoryStore(0), NewMemoryRepository())
	om := startMatch(t, m, 10, 20)
	if b, w := om.Players(); b != 10 || w != 20 {
		t.Fatalf("coin=true should make first player black, got %d/%d", b, w)
	}
	m.coin = func() (bool, error) { return false, nil }
	om = startMatch(t, m, 30, 40)
	if b, w := om.Players(); b != 40 || w != 30 {
		t.Fatalf("coin=false should make second player black, got %d/%d", b, w)
	}
	if om.MatchID() == 1 {
		t.Fatalf("match ids must be distinct")
	}
	active, err := m.ActiveMatch(context.Background(), 30)
	if err != nil || active.MatchID() != om.MatchID() {
		t.Fatalf("ActiveMatch: %v %v", active, err)
	}
}

func TestCreateRejectsSamePlayer(t *testing.T) {
	m := newTestManager(t, store.NewMemoryStore(0), nil)
	err := m.st.Atomic(context.Background(), nil, func(tx store.Tx) error {
		_, err := m.Create(context.Background(), tx, std15, 5, 5)
		return err
	})
	if !errors.Is(err, gomoku.ErrSamePlayer) {
		t.Fatalf("expected ErrSamePlayer, got %v", err)
	}
}

func TestCryptoCoinProducesBothSides(t *testing.T) {
	seen := map[bool]bool{}
	for i := 0; i < 200 && len(seen) < 2; i++ {
		v, err := cryptoCoin()
		if err != nil {
			t.Fatalf("cryptoCoin: %v", err)
		}
		seen[v] = true
	}
	if len(seen) != 2 {
		t.Fatalf("coin never flipped")
	}
}

func playFive(t *testing.T, m *Manager, matchID int64) (gomoku.Match, *Settlement) {
	t.Helper()
	var (
		last gomoku.Match
		s    *Settlement
		err  error
	)
	for i, mv := range fiveMoves {
		last, s, err = m.MakeMove(context.Background(), matchID, mv.user, mv.pos)
		if err != nil {
			t.Fatalf("move %d: %v", i, err)
		}
		if i < len(fiveMoves)-1 && s != nil {
			t.Fatalf("settlement before the match finished")
		}
	}
	return last, s
}

func testFullGame(t *testing.T, st store.Store, repo ResultRepository) {
	ctx := context.Background()
	m := newTestManager(t, st, repo)
	om := startMatch(t, m, 10, 20)

	last, s := playFive(t, m, om.MatchID())
	fin, ok := last.(*gomoku.FinishedMatch)
	if !ok || fin.Outcome != gomoku.BlackWon || fin.Reason != gomoku.ReasonFive {
		t.Fatalf("expected black to win by five, got %#v", last)
	}
	if s == nil || !s.Applied || s.Black.Elo != 1520 || s.White.Elo != 1480 {
		t.Fatalf("unexpected settlement: %+v", s)
	}

	if _, err := m.ActiveMatch(ctx, 10); !errors.Is(err, ErrMatchNotFound) {
		t.Fatalf("finished match must not be active, got %v", err)
	}
	if _, _, err := m.MakeMove(ctx, om.MatchID(), 20, gomoku.Position{X: 0, Y: 0}); !errors.Is(err, gomoku.ErrMatchAlreadyFinished) {
		t.Fatalf("expected ErrMatchAlreadyFinished, got %v", err)
	}
	got, err := m.GetMatch(ctx, om.MatchID())
	if err != nil {
		t.Fatalf("GetMatch: %v", err)
	}
	if _, ok := got.(*gomoku.FinishedMatch); !ok || got.Board().Len() != len(fiveMoves) {
		t.Fatalf("stored match not finished: %#v", got)
	}

	r, err := m.Rating(ctx, 20, std15.ID)
	if err != nil || r.Elo != 1480 || r.Losses != 1 || r.GamesPlayed != 1 {
		t.Fatalf("Rating: %+v %v", r, err)
	}
	hist, err := m.RecentResults(ctx, 10, 5)
	if err != nil || len(hist) != 1 {
		t.Fatalf("RecentResults: %+v %v", hist, err)
	}
	if w, _ := hist[0].WinnerID(); w != 10 || len(hist[0].Moves) != len(fiveMoves) {
		t.Fatalf("unexpected archived result: %+v", hist[0])
	}
}

func TestFullGameMemory(t *testing.T) {
	testFullGame(t, store.NewMemoryStore(0), NewMemoryRepository())
}

func TestFullGameRedisSQLite(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	st := store.NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Hour)
	testFullGame(t, st, newSQLiteRepo(t))
}

func TestMoveErrors(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, store.NewMemoryStore(0), NewMemoryRepository())
	om := startMatch(t, m, 10, 20)

	if _, _, err := m.MakeMove(ctx, 999, 10, gomoku.Position{X: 7, Y: 7}); !errors.Is(err, ErrMatchNotFound) {
		t.Fatalf("expected ErrMatchNotFound, got %v", err)
	}
	if _, _, err := m.MakeMove(ctx, om.MatchID(), 20, gomoku.Position{X: 7, Y: 7}); !errors.Is(err, gomoku.ErrInvalidTurn) {
		t.Fatalf("expected ErrInvalidTurn, got %v", err)
	}
	if _, _, err := m.MakeMove(ctx, om.MatchID(), 77, gomoku.Position{X: 7, Y: 7}); !errors.Is(err, gomoku.ErrPlayerNotInMatch) {
		t.Fatalf("expected ErrPlayerNotInMatch, got %v", err)
	}
	if _, _, err := m.MakeMove(ctx, om.MatchID(), 10, gomoku.Position{X: 15, Y: 7}); !errors.Is(err, gomoku.ErrImpossiblePosition) {
		t.Fatalf("expected ErrImpossiblePosition, got %v", err)
	}
	if _, _, err := m.MakeMove(ctx, om.MatchID(), 10, gomoku.Position{X: 7, Y: 7}); err != nil {
		t.Fatalf("legal move: %v", err)
	}
	if _, _, err := m.MakeMove(ctx, om.MatchID(), 20, gomoku.Position{X: 7, Y: 7}); !errors.Is(err, gomoku.ErrAlreadyOccupied) {
		t.Fatalf("expected ErrAlreadyOccupied, got %v", err)
	}
	got, _ := m.GetMatch(ctx, om.MatchID())
	if got.Board().Len() != 1 {
		t.Fatalf("rejected moves must not be stored, board has %d stones", got.Board().Len())
	}
}

func TestForfeit(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	m := newTestManager(t, store.NewMemoryStore(0), repo)
	om := startMatch(t, m, 10, 20)

	if _, _, err := m.Forfeit(ctx, om.MatchID(), 99); !errors.Is(err, gomoku.ErrPlayerNotInMatch) {
		t.Fatalf("expected ErrPlayerNotInMatch, got %v", err)
	}
	fin, s, err := m.Forfeit(ctx, om.MatchID(), 10)
	if err != nil {
		t.Fatalf("Forfeit: %v", err)
	}
	if fin.Outcome != gomoku.WhiteWon || fin.Reason != gomoku.ReasonForfeit {
		t.Fatalf("unexpected finish: %+v", fin)
	}
	if s == nil || s.White.Wins != 1 || s.Black.Losses != 1 {
		t.Fatalf("unexpected settlement: %+v", s)
	}
	if _, _, err := m.Forfeit(ctx, om.MatchID(), 20); !errors.Is(err, gomoku.ErrMatchAlreadyFinished) {
		t.Fatalf("expected ErrMatchAlreadyFinished, got %v", err)
	}
}

func TestConcurrentMovesOneWins(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, store.NewMemoryStore(0), nil)
	om := startMatch(t, m, 10, 20)

	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func(i int) {
			_, _, err := m.MakeMove(ctx, om.MatchID(), 10, gomoku.Position{X: i, Y: 0})
			errs <- err
		}(i)
	}
	ok := 0
	for i := 0; i < 8; i++ {
		err := <-errs
		switch {
		case err == nil:
			ok++
		case errors.Is(err, gomoku.ErrInvalidTurn), errors.Is(err, ErrConcurrentUpdate):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("expected exactly one move accepted, got %d", ok)
	}
	got, _ := m.GetMatch(ctx, om.MatchID())
	if got.Board().Len() != 1 {
		t.Fatalf("expected one stone, got %d", got.Board().Len())
	}
}

func TestRatingDefaultsWithoutRepository(t *testing.T) {
	m := newTestManager(t, store.NewMemoryStore(0), nil)
	r, err := m.Rating(context.Background(), 1, 1)
	if err != nil || r.Elo != rating.DefaultRating {
		t.Fatalf("expected default rating, got %+v %v", r, err)
	}
}
