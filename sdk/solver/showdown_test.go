package solver

import "testing"

func mustCard(t *testing.T, s string) Card {
	t.Helper()
	c, err := ParseCard(s)
	if err != nil {
		t.Fatalf("ParseCard(%q): %v", s, err)
	}
	return c
}

func TestShowdownBoardStraightFlushSplits(t *testing.T) {
	board := Board{
		mustCard(t, "2c"), mustCard(t, "3c"), mustCard(t, "4c"),
		mustCard(t, "5c"), mustCard(t, "6c"),
	}
	// The board alone is a 2-6 straight flush of clubs. Seat 0's pair of
	// aces and seat 1's offsuit deuce-trey hold no club, so neither beats
	// the board and both seats split.
	hands := []Hand{
		NewHand(mustCard(t, "As"), mustCard(t, "Ad")),
		NewHand(mustCard(t, "2d"), mustCard(t, "3d")),
	}
	folded := []bool{false, false}

	winners := Showdown(hands, folded, board)
	if len(winners) != 2 {
		t.Fatalf("expected both seats to play the board's straight flush and split, got winners=%v", winners)
	}
}

func TestShowdownSkipsFolded(t *testing.T) {
	board := Board{
		mustCard(t, "2c"), mustCard(t, "7d"), mustCard(t, "9h"),
		mustCard(t, "Jc"), mustCard(t, "Ks"),
	}
	hands := []Hand{
		NewHand(mustCard(t, "As"), mustCard(t, "Ad")),
		NewHand(mustCard(t, "2d"), mustCard(t, "2h")),
	}
	folded := []bool{true, false}

	winners := Showdown(hands, folded, board)
	if len(winners) != 1 || winners[0] != 1 {
		t.Fatalf("expected folded seat 0 excluded, winners=%v", winners)
	}
}

func TestShowdownPayoffSplitsRemainderToEarliestSeat(t *testing.T) {
	pot := 100
	winners := []int{2, 0}
	if got := ShowdownPayoff(pot, winners, 0); got != 50 {
		t.Fatalf("seat 0 payoff = %d, want 50", got)
	}
	if got := ShowdownPayoff(pot, winners, 2); got != 50 {
		t.Fatalf("seat 2 payoff = %d, want 50", got)
	}

	// An odd pot's remainder goes to the earliest (lowest-numbered) winner.
	if got := ShowdownPayoff(101, winners, 0); got != 51 {
		t.Fatalf("seat 0 payoff on odd pot = %d, want 51", got)
	}
	if got := ShowdownPayoff(101, winners, 2); got != 50 {
		t.Fatalf("seat 2 payoff on odd pot = %d, want 50", got)
	}
}

func TestShowdownPayoffNonWinnerGetsZero(t *testing.T) {
	if got := ShowdownPayoff(100, []int{0}, 1); got != 0 {
		t.Fatalf("non-winner payoff = %d, want 0", got)
	}
}

func TestUtilityFoldedSeatLosesInvestment(t *testing.T) {
	cfg := PokerConfig{NPlayers: 2, Chips: 20000, SmallBlind: 50, BigBlind: 100}
	s := NewPokerState(cfg)
	s = s.Apply(CheckCall) // seat 1 (big blind) acts first heads-up and checks
	s = s.Apply(Fold)      // seat 0 folds its small blind

	u := Utility(s, 0, nil, nil, cfg.Chips)
	if u != -50 {
		t.Fatalf("folded seat utility = %d, want -50", u)
	}
}

func TestUtilityUncontestedWinnerGetsPot(t *testing.T) {
	cfg := PokerConfig{NPlayers: 2, Chips: 20000, SmallBlind: 50, BigBlind: 100}
	s := NewPokerState(cfg)
	s = s.Apply(CheckCall) // seat 1 (big blind) acts first heads-up and checks
	s = s.Apply(Fold)      // seat 0 folds, seat 1 wins uncontested

	u := Utility(s, 1, nil, nil, cfg.Chips)
	if u != 50 {
		t.Fatalf("winner utility = %d, want 50 (net of its own blind)", u)
	}
}
