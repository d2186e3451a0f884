package lifecycle

import (
	"errors"
	"math/rand"
	"sort"

	"github.com/spec-kit/raffle-service/internal/domain"
)

// ErrNoParticipants is returned when a draw is attempted on an empty raffle.
var ErrNoParticipants = errors.New("no participants to draw from")

// PickWinner draws one participant with probability proportional to their
// ticket spend. The draw walks a cumulative weight table with binary search,
// so memory stays O(participants) regardless of ticket volume.
func PickWinner(participants []domain.Participant, rng *rand.Rand) (string, error) {
	cumulative := make([]int64, 0, len(participants))
	ids := make([]string, 0, len(participants))

	var total int64
	for i := range participants {
		if participants[i].TicketsSpent <= 0 {
			continue
		}
		total += participants[i].TicketsSpent
		cumulative = append(cumulative, total)
		ids = append(ids, participants[i].UserID)
	}
	if total == 0 {
		return "", ErrNoParticipants
	}

	target := rng.Int63n(total)
	idx := sort.Search(len(cumulative), func(i int) bool {
		return cumulative[i] > target
	})
	return ids[idx], nil
}
