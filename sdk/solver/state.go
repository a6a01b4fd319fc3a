package solver

// Player holds one seat's stack, round-local bet size, and fold flag.
// Invariants: Chips >= 0, Betsize <= initial chips, and Folded never
// returns to false once set.
type Player struct {
	Chips   int
	Betsize int
	Folded  bool
}

func (p *Player) invest(amount int) {
	invariant("Player.invest", !p.Folded, "attempted to invest but player already folded")
	invariant("Player.invest", p.Chips >= amount, "attempted to invest more chips than available")
	p.Chips -= amount
	p.Betsize += amount
}

func (p *Player) nextRound() {
	p.Betsize = 0
}

func (p *Player) allIn() bool {
	return p.Chips == 0
}

// PokerConfig describes the table stakes: seat count, starting stack per
// seat, and a flat ante (0 disables antes).
type PokerConfig struct {
	NPlayers   int
	Chips      int
	SmallBlind int
	BigBlind   int
	Ante       int
}

// bigBlindSeat is always seat 1: per this module's read of spec.md §4.1,
// seats 0 and 1 post small/big blind in every table size, and seat 1 is
// always the one that may additionally check the unraised preflop option.
const bigBlindSeat = 1

// PokerState is an immutable-by-copy snapshot of one point in a hand:
// pot, bets, active seat, round, and the action history that produced it.
// Apply never mutates the receiver; it returns a new value.
type PokerState struct {
	players  []Player
	history  ActionHistory
	pot      int
	maxBet   int
	active   int
	round    int // 0=preflop .. 3=river, 4=terminal/showdown
	betLevel int
	winner   int // seat id, or -1

	// preflopBigBlind retains the table's big blind size so isRoundComplete
	// can still recognize the unraised-big-blind-option case after maxBet
	// has been reset to 0 on later streets.
	preflopBigBlind int
}

// NewPokerState builds the initial state for a hand: posts blinds, charges
// the ante to every seat's real stack (the original C++ source charges
// antes to a by-value copy of each Player and so never actually reduces
// stacks; this module charges the real seat, matching the pot-consistency
// invariant in spec.md §3), and sets the first-to-act seat.
//
// Heads-up: seat 0 posts small blind, seat 1 posts big blind and acts
// first. Three or more seats: seats 0/1 post small/big blind, seat 2 acts
// first. Both per spec.md §4.1.
func NewPokerState(cfg PokerConfig) *PokerState {
	invariant("NewPokerState", cfg.NPlayers >= 2, "need at least two players")
	invariant("NewPokerState", cfg.BigBlind > cfg.SmallBlind, "big blind must exceed small blind")

	players := make([]Player, cfg.NPlayers)
	for i := range players {
		players[i] = Player{Chips: cfg.Chips}
	}

	players[0].invest(cfg.SmallBlind)
	players[1].invest(cfg.BigBlind)

	if cfg.Ante > 0 {
		for i := range players {
			players[i].invest(cfg.Ante)
		}
	}

	active := bigBlindSeat + 1
	if cfg.NPlayers == 2 {
		active = bigBlindSeat
	} else {
		active %= cfg.NPlayers
	}

	pot := cfg.SmallBlind + cfg.BigBlind + cfg.Ante*cfg.NPlayers

	return &PokerState{
		players:         players,
		pot:             pot,
		maxBet:          cfg.BigBlind,
		active:          active,
		round:           0,
		betLevel:        1,
		winner:          -1,
		preflopBigBlind: cfg.BigBlind,
	}
}

func (s *PokerState) clone() *PokerState {
	next := *s
	next.players = append([]Player(nil), s.players...)
	return &next
}

// Players returns the seat slice. Callers must not mutate it; PokerState
// is a value type from the caller's point of view.
func (s *PokerState) Players() []Player { return s.players }

func (s *PokerState) History() ActionHistory { return s.history }
func (s *PokerState) Pot() int               { return s.pot }
func (s *PokerState) MaxBet() int            { return s.maxBet }
func (s *PokerState) Active() int            { return s.active }
func (s *PokerState) Round() int             { return s.round }
func (s *PokerState) BetLevel() int          { return s.betLevel }
func (s *PokerState) Winner() int            { return s.winner }

// IsTerminal reports whether the hand is over: either a single player
// remains, or the river betting round has closed.
func (s *PokerState) IsTerminal() bool {
	return s.winner != -1 || s.round >= 4
}

// findWinner returns the sole non-folded seat, or -1 if more than one
// remains live.
func findWinner(players []Player) int {
	winner := -1
	for i, p := range players {
		if !p.Folded {
			if winner != -1 {
				return -1
			}
			winner = i
		}
	}
	return winner
}

// TotalBetSize computes the target total bet for action a, per spec.md
// §4.1: target = (pot + to_call)*f + to_call + betsize, where
// to_call = max_bet - betsize. For AllIn, the target is simply all
// remaining chips plus what's already committed.
func (s *PokerState) TotalBetSize(a Action) int {
	p := &s.players[s.active]
	switch a.Kind {
	case ActionAllIn:
		return p.Chips + p.Betsize
	case ActionBet:
		toCall := s.maxBet - p.Betsize
		realPot := s.pot + toCall
		return int(float32(realPot)*a.Fraction) + toCall + p.Betsize
	default:
		panic(&InvariantError{Op: "TotalBetSize", Msg: "not a sizeable action"})
	}
}

// ValidActions filters profile's menu for the current state: CHECK_CALL is
// always available, FOLD only when facing a bet, and a fractional bet is
// dropped unless it strictly raises max_bet and fits the stack — except
// that an unaffordable bet collapses to a single ALL_IN entry when ALL_IN
// is itself present in the profile cell (spec.md §4.1's explicit
// enhancement over the raw reference implementation, which just drops it).
func ValidActions(s *PokerState, profile *ActionProfile) []Action {
	menu := profile.GetActions(s.round, s.betLevel, s.active)
	p := &s.players[s.active]

	hasAllIn := false
	for _, a := range menu {
		if a.Kind == ActionAllIn {
			hasAllIn = true
			break
		}
	}

	valid := make([]Action, 0, len(menu))
	allInAdded := false
	for _, a := range menu {
		switch a.Kind {
		case ActionCheckCall:
			valid = append(valid, a)
		case ActionFold:
			if p.Betsize < s.maxBet {
				valid = append(valid, a)
			}
		case ActionAllIn:
			if !allInAdded {
				valid = append(valid, a)
				allInAdded = true
			}
		case ActionBet:
			total := s.TotalBetSize(a)
			required := total - p.Betsize
			switch {
			case required <= p.Chips && total > s.maxBet:
				valid = append(valid, a)
			case hasAllIn && !allInAdded:
				valid = append(valid, AllIn)
				allInAdded = true
			}
		}
	}
	return valid
}

// Apply transitions to the next state by dispatching on a, then records a
// in the returned state's history. The receiver is never mutated.
func (s *PokerState) Apply(a Action) *PokerState {
	next := s.nextState(a)
	next.history = s.history.Push(a)
	return next
}

// ApplyHistory replays a full action history from this state, used by the
// trainer to reconstruct a state from a path without retaining a tree.
func (s *PokerState) ApplyHistory(h ActionHistory) *PokerState {
	state := s
	for i := 0; i < h.Len(); i++ {
		state = state.Apply(h.Get(i))
	}
	return state
}

func (s *PokerState) nextState(a Action) *PokerState {
	p := &s.players[s.active]
	switch a.Kind {
	case ActionAllIn:
		return s.bet(p.Chips)
	case ActionFold:
		return s.fold()
	case ActionCheckCall:
		if p.Betsize == s.maxBet {
			return s.check()
		}
		return s.call()
	case ActionBet:
		return s.bet(s.TotalBetSize(a) - p.Betsize)
	default:
		panic(&InvariantError{Op: "nextState", Msg: "undefined action"})
	}
}

// bet invests amount for the active seat. A bet that brings the seat's
// total betsize above max_bet is a raise (bumps bet_level and max_bet); an
// all-in that merely calls or under-calls does neither. Fractional Bet
// actions always raise by construction (ValidActions only admits raising
// bets), so this distinction only matters for ActionAllIn.
func (s *PokerState) bet(amount int) *PokerState {
	active := &s.players[s.active]
	invariant("bet", !active.Folded, "attempted to bet but player already folded")
	invariant("bet", active.Chips >= amount, "not enough chips to bet")
	invariant("bet", s.winner == -1 && findWinner(s.players) == -1, "attempted to bet but there are no opponents left")

	next := s.clone()
	p := &next.players[next.active]
	p.invest(amount)
	next.pot += amount
	if p.Betsize > next.maxBet {
		next.maxBet = p.Betsize
		next.betLevel++
	}
	next.advance()
	return next
}

func (s *PokerState) call() *PokerState {
	active := &s.players[s.active]
	toCall := s.maxBet - active.Betsize
	invariant("call", !active.Folded, "attempted to call but player already folded")
	invariant("call", s.maxBet > 0, "attempted call but no bet exists")
	invariant("call", toCall > 0, "attempted call but player has already matched the maximum bet")
	invariant("call", s.winner == -1 && findWinner(s.players) == -1, "attempted to call but there are no opponents left")

	amount := toCall
	if amount > active.Chips {
		amount = active.Chips // short call: the caller can't cover it, goes all-in for less
	}

	next := s.clone()
	p := &next.players[next.active]
	p.invest(amount)
	next.pot += amount
	next.advance()
	return next
}

func (s *PokerState) check() *PokerState {
	active := &s.players[s.active]
	invariant("check", !active.Folded, "attempted to check but player already folded")
	invariant("check", active.Betsize == s.maxBet, "attempted check but an unmatched bet exists")
	invariant("check", s.maxBet == 0 || (s.round == 0 && s.active == bigBlindSeat), "attempted to check but a bet exists")
	invariant("check", s.winner == -1 && findWinner(s.players) == -1, "attempted to check but there are no opponents left")

	next := s.clone()
	next.advance()
	return next
}

func (s *PokerState) fold() *PokerState {
	active := &s.players[s.active]
	invariant("fold", !active.Folded, "attempted to fold but player already folded")
	invariant("fold", s.maxBet > 0, "attempted fold but no bet exists")
	invariant("fold", active.Betsize < s.maxBet, "attempted to fold but player could check")
	invariant("fold", s.winner == -1 && findWinner(s.players) == -1, "attempted to fold but there are no opponents left")

	next := s.clone()
	next.players[next.active].Folded = true
	next.winner = findWinner(next.players)
	if next.winner == -1 {
		next.advance()
	}
	return next
}

func incrementSeat(i, maxVal int) int {
	i++
	if i > maxVal {
		return 0
	}
	return i
}

// isRoundComplete reports whether, after the active seat's last action,
// betting on the current street has closed. Mirrors pluribus's
// is_round_complete: all live seats must match max_bet, except that an
// unraised preflop big blind still gets its option (spec.md §4.1, §9).
func (s *PokerState) isRoundComplete() bool {
	p := &s.players[s.active]
	if p.Betsize != s.maxBet {
		return false
	}
	if s.maxBet == 0 && s.active != 0 {
		return false
	}
	if s.round == 0 && s.active == bigBlindSeat && s.maxBet == s.bigBlindAmount() {
		return false
	}
	return true
}

// bigBlindAmount returns the table's big blind size: the betsize the big
// blind seat carries if nobody has raised yet. NewPokerState stores it in
// preflopBigBlind, since maxBet no longer holds it once a raise is made.
func (s *PokerState) bigBlindAmount() int {
	return s.preflopBigBlind
}

func (s *PokerState) advance() {
	initialActive := s.active
	for {
		s.active = incrementSeat(s.active, len(s.players)-1)
		if s.isRoundComplete() {
			s.nextRound()
			return
		}
		if !s.players[s.active].Folded && !s.players[s.active].allIn() {
			return
		}
		if s.active == initialActive {
			// Every remaining seat is folded or all-in: nothing left to
			// decide this street; move on to the next round.
			s.nextRound()
			return
		}
	}
}

func (s *PokerState) nextRound() {
	s.round++
	for i := range s.players {
		s.players[i].nextRound()
	}
	s.active = 0
	s.maxBet = 0
	s.betLevel = 0
	if s.round < 4 && (s.players[0].Folded || s.players[0].allIn()) {
		s.advanceSkippingComplete()
	}
}

// advanceSkippingComplete is used only right after nextRound resets
// active to seat 0: it walks forward to the next live seat without
// re-triggering isRoundComplete's "all matched" check against stale
// round-start state (every seat starts a fresh round at betsize 0, so
// isRoundComplete would immediately fire on seat 0 if it's folded/all-in
// and max_bet is still 0).
func (s *PokerState) advanceSkippingComplete() {
	initialActive := s.active
	for {
		s.active = incrementSeat(s.active, len(s.players)-1)
		if !s.players[s.active].Folded && !s.players[s.active].allIn() {
			return
		}
		if s.active == initialActive {
			return
		}
	}
}
