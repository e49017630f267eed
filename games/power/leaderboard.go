package power

import (
	"cmp"
	"slices"
)

const DefaultLeaderboardLimit = 10

// Entry is the display-safe projection of a player on the leaderboard.
type Entry struct {
	DisplayName string `json:"displayName"`
	Score       int64  `json:"score"`
}

// TotalPower sums every player's score, stage-eligible or not. The sum
// saturates at math.MaxInt64.
func TotalPower(players []Player) int64 {
	var total int64
	for _, p := range players {
		total = saturatingAdd(total, p.Score)
	}

	return total
}

// Leaderboard ranks stage-eligible players by score, highest first. Equal
// scores keep join order. A limit of zero or less uses DefaultLeaderboardLimit.
func Leaderboard(players []Player, limit int) []Entry {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}

	eligible := make([]Player, 0, len(players))
	for _, p := range players {
		if p.StageEligible {
			eligible = append(eligible, p)
		}
	}

	slices.SortFunc(eligible, func(a, b Player) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Seq, b.Seq)
	})

	if len(eligible) > limit {
		eligible = eligible[:limit]
	}

	entries := make([]Entry, 0, len(eligible))
	for _, p := range eligible {
		entries = append(entries, Entry{
			DisplayName: p.DisplayName,
			Score:       p.Score,
		})
	}

	return entries
}
