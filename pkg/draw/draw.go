// Package draw selects raffle winners from a pool of tickets with a seeded,
// reproducible draw without replacement.
package draw

import (
	"bytes"
	"math/rand"
	"slices"

	"github.com/google/uuid"
)

// Candidate is one eligible ticket.
type Candidate struct {
	TicketID uuid.UUID
	UserID   uuid.UUID
}

// Pick binds the candidate drawn for a prize slot. Slot is the zero based
// index into the prize list handed to Select.
type Pick struct {
	Slot      int
	Candidate Candidate
}

type Options struct {
	// OnePrizePerUser removes every ticket of a winning user from the pool.
	OnePrizePerUser bool
}

type Result struct {
	Picks []Pick
	// Unassigned holds the slots left without a ticket because the pool ran dry.
	Unassigned []int
}

// Select runs the draw for slots prizes in order. The pool is copied and
// sorted by ticket id first so that the same seed and the same pool always
// produce the same winners regardless of the order the caller loaded them in.
func Select(seed int64, slots int, pool []Candidate, opts Options) Result {
	remaining := slices.Clone(pool)
	slices.SortFunc(remaining, func(a, b Candidate) int {
		return bytes.Compare(a.TicketID[:], b.TicketID[:])
	})
	remaining = slices.CompactFunc(remaining, func(a, b Candidate) bool {
		return a.TicketID == b.TicketID
	})

	rng := rand.New(rand.NewSource(seed))
	result := Result{Picks: make([]Pick, 0, min(slots, len(remaining)))}

	for slot := 0; slot < slots; slot++ {
		if len(remaining) == 0 {
			result.Unassigned = append(result.Unassigned, slot)
			continue
		}

		i := rng.Intn(len(remaining))
		winner := remaining[i]
		result.Picks = append(result.Picks, Pick{Slot: slot, Candidate: winner})

		if opts.OnePrizePerUser {
			remaining = slices.DeleteFunc(remaining, func(c Candidate) bool {
				return c.UserID == winner.UserID
			})
			continue
		}

		last := len(remaining) - 1
		remaining[i] = remaining[last]
		remaining = remaining[:last]
	}

	return result
}
