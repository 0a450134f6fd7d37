package rating

import (
	"math"
	"time"
)

const (
	KFactor       = 40
	DefaultRating = 1500
	MinRating     = 0
	MaxRating     = 4000
)

// Scores for the first player of a pairing.
const (
	ScoreWin  = 1.0
	ScoreDraw = 0.5
	ScoreLoss = 0.0
)

// Record is one user's rating under one rule set.
type Record struct {
	UserID      int64
	RuleID      int64
	GamesPlayed int
	Wins        int
	Losses      int
	Draws       int
	Elo         int
	UpdatedAt   time.Time
}

// NewRecord returns the record of a user who has not played rule ruleID yet.
func NewRecord(userID, ruleID int64) Record {
	return Record{UserID: userID, RuleID: ruleID, Elo: DefaultRating}
}

// ExpectedScore is the probability that a player rated a beats one rated b.
func ExpectedScore(a, b float64) float64 {
	return 1 / (1 + math.Pow(10, (b-a)/400))
}

// UpdateElo returns a's new rating after scoring scoreA against b.
func UpdateElo(a, b, scoreA float64) float64 {
	return clamp(a + KFactor*(scoreA-ExpectedScore(a, b)))
}

// Apply settles one finished game between a and b where a scored scoreA.
// Both records are updated from the ratings they held before the game.
func Apply(a, b Record, scoreA float64, at time.Time) (Record, Record) {
	scoreB := 1 - scoreA
	ea, eb := float64(a.Elo), float64(b.Elo)
	a.Elo = int(math.Round(UpdateElo(ea, eb, scoreA)))
	b.Elo = int(math.Round(UpdateElo(eb, ea, scoreB)))
	tally(&a, scoreA, at)
	tally(&b, scoreB, at)
	return a, b
}

func tally(r *Record, score float64, at time.Time) {
	r.GamesPlayed++
	switch score {
	case ScoreWin:
		r.Wins++
	case ScoreLoss:
		r.Losses++
	default:
		r.Draws++
	}
	r.UpdatedAt = at
}

func clamp(v float64) float64 {
	if v < MinRating {
		return MinRating
	}
	if v > MaxRating {
		return MaxRating
	}
	return v
}
