package ranking

import (
	"bytes"
	"slices"
)

// Rank orders standings by score descending, then signup time, then id, and
// assigns contiguous positions starting at 1. The input is not modified.
func Rank(standings []Standing) []Position {
	ordered := slices.Clone(standings)
	slices.SortFunc(ordered, compareStandings)

	positions := make([]Position, len(ordered))
	for i, s := range ordered {
		positions[i] = Position{
			SubscriberID: s.SubscriberID,
			Score:        s.Score,
			Position:     i + 1,
		}
	}
	return positions
}

func compareStandings(a, b Standing) int {
	switch {
	case a.Score != b.Score:
		if a.Score > b.Score {
			return -1
		}
		return 1
	case !a.CreatedAt.Equal(b.CreatedAt):
		return a.CreatedAt.Compare(b.CreatedAt)
	default:
		return bytes.Compare(a.SubscriberID[:], b.SubscriberID[:])
	}
}
