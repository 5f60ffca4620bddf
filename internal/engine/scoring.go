package engine

import "github.com/google/uuid"

// Team identifies a partnership. NoTeam is used for "no winner".
type Team int

const (
	NoTeam Team = iota
	Team1
	Team2
)

func (t Team) Valid() bool {
	return t == Team1 || t == Team2
}

// Opponent returns the other partnership.
func (t Team) Opponent() Team {
	switch t {
	case Team1:
		return Team2
	case Team2:
		return Team1
	}
	return NoTeam
}

// TeamScores holds one number per partnership. It is used for points and
// for trick counts alike.
type TeamScores struct {
	Team1 int `json:"team1"`
	Team2 int `json:"team2"`
}

func (s TeamScores) Get(t Team) int {
	switch t {
	case Team1:
		return s.Team1
	case Team2:
		return s.Team2
	}
	return 0
}

func (s *TeamScores) Add(t Team, n int) {
	switch t {
	case Team1:
		s.Team1 += n
	case Team2:
		s.Team2 += n
	}
}

func (s TeamScores) Plus(o TeamScores) TeamScores {
	return TeamScores{Team1: s.Team1 + o.Team1, Team2: s.Team2 + o.Team2}
}

func (s TeamScores) Total() int {
	return s.Team1 + s.Team2
}

// Leader returns the team with the strictly higher value, or NoTeam.
func (s TeamScores) Leader() Team {
	switch {
	case s.Team1 > s.Team2:
		return Team1
	case s.Team2 > s.Team1:
		return Team2
	}
	return NoTeam
}

// TrickBonus is the flat point awarded for winning a trick.
const TrickBonus = 1

// CardPoints values A=4, 10=3, K=2, Q=1, everything else 0.
func CardPoints(c Card) int {
	switch c.Rank {
	case Ace:
		return 4
	case Ten:
		return 3
	case King:
		return 2
	case Queen:
		return 1
	}
	return 0
}

// ScoreTrick returns the points a won trick is worth to the winning team.
func ScoreTrick(cardsWon []Card) int {
	points := TrickBonus
	for _, c := range cardsWon {
		points += CardPoints(c)
	}
	return points
}

// IsGameComplete reports the winning team once any team has reached
// threshold. Equal scores at or above the threshold are not decided here
// and the game goes on for another round.
func IsGameComplete(scores TeamScores, threshold int) (Team, bool) {
	if scores.Team1 < threshold && scores.Team2 < threshold {
		return NoTeam, false
	}
	leader := scores.Leader()
	return leader, leader != NoTeam
}

// RoundSummary is what a RoundAdjuster sees when a round closes.
type RoundSummary struct {
	Round        int
	DeclarerID   uuid.UUID
	DeclarerTeam Team
	TrumpSuit    Suit
	Points       TeamScores
	TrickCounts  TeamScores
}

// RoundAdjuster lets house rules (declarer bonus or penalty) amend a round's
// result. The returned delta is added to the game totals on top of the
// trick points.
type RoundAdjuster interface {
	AdjustRound(RoundSummary) TeamScores
}

type RoundAdjusterFunc func(RoundSummary) TeamScores

func (f RoundAdjusterFunc) AdjustRound(s RoundSummary) TeamScores {
	return f(s)
}

// RoundWinner picks the team with more round points, falling back to more
// tricks. NoTeam if both are level.
func RoundWinner(points, tricks TeamScores) Team {
	if t := points.Leader(); t != NoTeam {
		return t
	}
	return tricks.Leader()
}
