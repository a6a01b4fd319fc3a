package solver

import "github.com/kbond2024/bananakid/poker"

// Showdown ranks every non-folded seat's best 5-card hand from its hole
// cards plus the final board, delegating the 7-card strength comparison to
// the external evaluator (spec.md §6). Winners are every seat whose rank
// equals the maximum; a single remaining seat (no showdown needed) is
// handled by PokerState.Winner before Showdown is ever called.
func Showdown(hands []Hand, folded []bool, board Board) []int {
	invariant("Showdown", len(board) == 5, "showdown requires a complete board")

	best := poker.HandRank(0)
	var winners []int
	for seat, h := range hands {
		if folded[seat] {
			continue
		}
		hand := board.toPokerHand()
		hand.AddCard(h.Hi.toPoker())
		hand.AddCard(h.Lo.toPoker())
		rank := poker.Evaluate7Cards(hand)
		switch {
		case rank > best:
			best = rank
			winners = []int{seat}
		case rank == best:
			winners = append(winners, seat)
		}
	}
	return winners
}

// ShowdownPayoff splits pot evenly among winners (sorted ascending by seat),
// awarding the integer-division remainder to the earliest-seated winner,
// per spec.md §9's resolution of the dropped-remainder open question.
func ShowdownPayoff(pot int, winners []int, seat int) int {
	if len(winners) == 0 {
		return 0
	}
	share := pot / len(winners)
	remainder := pot % len(winners)

	earliest := winners[0]
	for _, w := range winners {
		if w < earliest {
			earliest = w
		}
	}

	for _, w := range winners {
		if w == seat {
			payoff := share
			if seat == earliest {
				payoff += remainder
			}
			return payoff
		}
	}
	return 0
}

// Utility returns seat's payoff relative to its starting stack at a
// terminal state: the amount it invested (negative) if it folded; its
// share of the pot minus investment if it won outright or at showdown;
// spec.md §4.6.
func Utility(state *PokerState, seat int, hands []Hand, board Board, initialChips int) int {
	players := state.Players()
	invested := initialChips - players[seat].Chips

	if players[seat].Folded {
		return -invested
	}
	if w := state.Winner(); w != -1 {
		if w == seat {
			return state.Pot() - invested
		}
		return -invested
	}

	invariant("Utility", state.Round() >= 4, "utility called on a non-terminal state")
	folded := make([]bool, len(players))
	for i, p := range players {
		folded[i] = p.Folded
	}
	winners := Showdown(hands, folded, board)
	return ShowdownPayoff(state.Pot(), winners, seat) - invested
}
