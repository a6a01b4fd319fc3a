package solver

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"
)

// IterationStats captures instrumentation for a single self-play iteration,
// aggregated across every seat traversed that iteration.
type IterationStats struct {
	NodesVisited  int64
	TerminalNodes int64
	PrunedNodes   int64
}

func (s *IterationStats) add(other IterationStats) {
	s.NodesVisited += other.NodesVisited
	s.TerminalNodes += other.TerminalNodes
	s.PrunedNodes += other.PrunedNodes
}

// Progress is emitted periodically during Run, per the trainer's LogInterval
// timing setting.
type Progress struct {
	Iteration  int64
	RegretRows int
	PhiRows    int
	Stats      IterationStats
	SinceLast  time.Duration
	IterPerSec float64
	Metrics    PreflopMetricsReport
}

// BlueprintTrainer runs MCCFR/MCCFR-P self-play over a fixed table
// configuration and action abstraction, accumulating regrets in a
// RegretStorage and the preflop average-strategy accumulator in a
// PhiStorage, per spec.md §4.6.
type BlueprintTrainer struct {
	cfg      BlueprintConfig
	clusters *ClusterMap
	regrets  *RegretStorage
	phi      *PhiStorage

	iteration atomic.Int64

	// coordRNG drives the checkpoint-replayable per-iteration seed
	// derivation; NewFastRandV2 makes its call sequence deterministic and
	// countable so a restored trainer can fast-forward back to the same
	// point.
	coordRNG   *rand.Rand
	coordCalls int64

	clock       quartz.Clock
	lastLogAt   time.Time
	lastLogIter int64

	stats IterationStats
}

// NewBlueprintTrainer builds a trainer ready to run self-play, given a
// validated configuration.
func NewBlueprintTrainer(cfg BlueprintConfig) (*BlueprintTrainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &BlueprintTrainer{
		cfg:      cfg,
		clusters: NewClusterMap(cfg.PostflopClusters),
		regrets:  NewRegretStorage(),
		phi:      NewPhiStorage(NPreflopClusters),
		coordRNG: NewFastRandV2(cfg.Seed),
		clock:    quartz.NewReal(),
	}, nil
}

// SetClock overrides the trainer's clock, used by tests that want a
// quartz.Mock to control when LogInterval-driven progress callbacks fire
// without sleeping real time.
func (t *BlueprintTrainer) SetClock(clock quartz.Clock) { t.clock = clock }

func (t *BlueprintTrainer) Iteration() int64       { return t.iteration.Load() }
func (t *BlueprintTrainer) Regrets() *RegretStorage { return t.regrets }
func (t *BlueprintTrainer) Phi() *PhiStorage        { return t.phi }
func (t *BlueprintTrainer) Config() BlueprintConfig { return t.cfg }
func (t *BlueprintTrainer) Stats() IterationStats   { return t.stats }

// Run drives `iterations` outer MCCFR loop steps (spec.md §4.6's
// mccfr_p(T)), discounting regrets/phi on DiscountInterval boundaries,
// pruning under MCCFR-P once the iteration count passes PruneThreshold,
// running the preflop-only update_strategy pass every StrategyInterval
// iterations, and invoking progress on LogInterval boundaries. Traversal across the
// table's seats for a single iteration runs concurrently via an
// errgroup.Group, matching the teacher's per-seat goroutine fan-out but
// replacing its manual WaitGroup+mutex error propagation.
func (t *BlueprintTrainer) Run(ctx context.Context, iterations int64, progress func(Progress)) error {
	timing := t.cfg.Timing
	logger := log.Default().WithPrefix("mccfr")

	if t.lastLogAt.IsZero() {
		t.lastLogAt = t.clock.Now()
		t.lastLogIter = t.iteration.Load()
	}

	for i := int64(0); i < iterations; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		iter := t.iteration.Load() + 1
		prune := iter >= timing.PruneThreshold
		allowUpdateStrategy := iter%timing.StrategyInterval == 0

		stats, err := t.runIteration(ctx, iter, prune, allowUpdateStrategy)
		if err != nil {
			return err
		}
		t.stats = stats
		t.iteration.Store(iter)

		if iter%timing.DiscountInterval == 0 && iter < timing.LCFRThreshold {
			d := lcfrDiscount(iter, timing.DiscountInterval)
			t.regrets.Discount(d)
			t.phi.Discount(d)
			logger.Debug("discounted", "iteration", iter, "factor", d)
		}

		if timing.SnapshotInterval > 0 && iter%timing.SnapshotInterval == 0 {
			logger.Info("checkpoint due", "iteration", iter, "regret_rows", t.regrets.Size())
		}

		if progress != nil && timing.LogInterval > 0 && iter%timing.LogInterval == 0 {
			now := t.clock.Now()
			elapsed := now.Sub(t.lastLogAt)
			iterPerSec := 0.0
			if elapsed > 0 {
				iterPerSec = float64(iter-t.lastLogIter) / elapsed.Seconds()
			}
			progress(Progress{
				Iteration:  iter,
				RegretRows: t.regrets.Size(),
				PhiRows:    t.phi.Size(),
				Stats:      stats,
				SinceLast:  elapsed,
				IterPerSec: iterPerSec,
				Metrics:    t.PreflopMetrics(),
			})
			t.lastLogAt = now
			t.lastLogIter = iter
		}
	}
	return nil
}

// lcfrDiscount computes the LCFR discount factor k/(k+1) where k is the
// number of completed discount periods, per spec.md §4.6.
func lcfrDiscount(iteration, interval int64) float64 {
	k := float64(iteration) / float64(interval)
	return k / (k + 1)
}

// runIteration deals a hand for each seat and traverses it once with that
// seat as traverser, running the per-seat traversals concurrently. Each seat gets its own deck/board/hands
// derived from a coordinator-issued seed, so concurrent traversals never
// share mutable deal state.
func (t *BlueprintTrainer) runIteration(ctx context.Context, iter int64, prune, allowUpdateStrategy bool) (IterationStats, error) {
	n := t.cfg.Poker.NPlayers
	seeds := make([]int64, n)
	for i := range seeds {
		seeds[i] = t.coordRNG.Int63()
		t.coordCalls++
	}

	statsSlice := make([]IterationStats, n)
	g, gctx := errgroup.WithContext(ctx)
	for seat := 0; seat < n; seat++ {
		seat := seat
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			sampler := NewFastRand(seeds[seat])
			board, hands, err := t.dealHand(sampler)
			if err != nil {
				return err
			}

			root := NewPokerState(t.cfg.Poker)
			stats := &statsSlice[seat]

			if allowUpdateStrategy {
				if err := t.updateStrategy(root, seat, board, hands, sampler); err != nil {
					return err
				}
			}
			if _, err := t.traverse(root, seat, board, hands, sampler, prune, stats, t.cfg.Poker.Chips); err != nil {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return IterationStats{}, err
	}

	total := IterationStats{}
	for _, s := range statsSlice {
		total.add(s)
	}
	return total, nil
}

// dealHand shuffles a fresh deck (excluding any configured dead initial
// board cards), completes the board, and deals each seat a hand either
// uniformly from the deck or, if the seat has a non-full configured range,
// by weighted sampling from that range. Cards already dealt -- whether by
// Draw or by PokerRange.Sample -- are marked dead on the shared deck before
// the next seat is dealt, so no two seats (or the board) can ever collide.
func (t *BlueprintTrainer) dealHand(rng *rand.Rand) (Board, []Hand, error) {
	n := t.cfg.Poker.NPlayers
	deck := NewDeck(rng, t.cfg.InitBoard...)

	board := append(Board(nil), t.cfg.InitBoard...)
	for len(board) < 5 {
		c := deck.Draw()
		deck.MarkDead(c)
		board = append(board, c)
	}

	hands := make([]Hand, n)
	dealt := append([]Card(nil), board...)
	for seat := 0; seat < n; seat++ {
		var rnge *PokerRange
		if seat < len(t.cfg.InitRanges) {
			rnge = &t.cfg.InitRanges[seat]
		}
		if rnge != nil && rnge.NCombos() < NCanonicalCombos {
			h, ok := rnge.Sample(rng, dealt...)
			if !ok {
				return nil, nil, &InvariantError{Op: "dealHand", Msg: fmt.Sprintf("seat %d range has no live combos", seat)}
			}
			deck.MarkDead(h.Hi, h.Lo)
			dealt = append(dealt, h.Hi, h.Lo)
			hands[seat] = h
			continue
		}
		hi, lo := deck.Draw(), deck.Draw()
		deck.MarkDead(hi, lo)
		dealt = append(dealt, hi, lo)
		hands[seat] = NewHand(hi, lo)
	}
	return board, hands, nil
}

// currentStrategy computes the regret-matching strategy over nActions
// counters starting at base: proportional to positive regret, uniform if
// the positive sum is non-positive (spec.md §4.6).
func currentStrategy(store *RegretStorage, base, nActions int) []float64 {
	strategy := make([]float64, nActions)
	var sum float64
	for a := 0; a < nActions; a++ {
		r := float64(store.Get(base + a))
		if r > 0 {
			strategy[a] = r
			sum += r
		}
	}
	if sum <= 0 {
		uniform := 1.0 / float64(nActions)
		for a := range strategy {
			strategy[a] = uniform
		}
		return strategy
	}
	for a := range strategy {
		strategy[a] /= sum
	}
	return strategy
}

func sampleAction(strategy []float64, rng *rand.Rand) int {
	target := rng.Float64()
	acc := 0.0
	for i, p := range strategy {
		acc += p
		if target <= acc {
			return i
		}
	}
	return len(strategy) - 1
}

func boardForRound(full Board, round int) Board {
	switch round {
	case 0:
		return nil
	case 1:
		return full[:3]
	case 2:
		return full[:4]
	default:
		return full[:5]
	}
}

// traverse implements external-sampling MCCFR (and, when prune is true,
// MCCFR-P) for a single traverser seat, per spec.md §4.6: terminal states
// return Utility directly; at the traverser's own decision nodes every
// legal action is explored (skipping non-fold actions with stored regret at
// or below PruneCutoff once pruning is active) and regrets are updated from
// the counterfactual values; at other seats' decision nodes a single
// action is sampled by the current strategy.
func (t *BlueprintTrainer) traverse(state *PokerState, target int, board Board, hands []Hand, rng *rand.Rand, prune bool, stats *IterationStats, initialChips int) (float64, error) {
	stats.NodesVisited++
	if state.IsTerminal() {
		stats.TerminalNodes++
		return float64(Utility(state, target, hands, board, initialChips)), nil
	}

	actions := ValidActions(state, t.cfg.Profile)
	nActions := len(actions)
	cluster := t.clusters.Cluster(state.Round(), hands[state.Active()], boardForRound(board, state.Round()))
	nClusters := t.clusters.NClusters(state.Round())
	base := t.regrets.Index(state.History(), nClusters, nActions) + int(cluster)*nActions

	strategy := currentStrategy(t.regrets, base, nActions)

	if state.Active() != target {
		a := sampleAction(strategy, rng)
		return t.traverse(state.Apply(actions[a]), target, board, hands, rng, prune, stats, initialChips)
	}

	values := make([]float64, nActions)
	explored := make([]bool, nActions)
	nodeValue := 0.0
	for a, action := range actions {
		if prune && t.regrets.Get(base+a) <= t.cfg.PruneCutoff && action.Kind != ActionFold {
			stats.PrunedNodes++
			continue
		}
		v, err := t.traverse(state.Apply(action), target, board, hands, rng, prune, stats, initialChips)
		if err != nil {
			return 0, err
		}
		values[a] = v
		explored[a] = true
		nodeValue += strategy[a] * v
	}

	for a := range actions {
		if !explored[a] {
			continue
		}
		regret := values[a] - nodeValue
		if _, err := t.regrets.Add(base+a, regret, t.cfg.RegretFloor); err != nil {
			return 0, err
		}
	}
	return nodeValue, nil
}

// updateStrategy accumulates the preflop average strategy phi, per
// spec.md §4.6: it only runs while round stays 0, samples one action at
// the target's own nodes (incrementing phi there), and recurses into
// every legal action at other seats' nodes so their contribution is
// averaged rather than sampled.
func (t *BlueprintTrainer) updateStrategy(state *PokerState, target int, board Board, hands []Hand, rng *rand.Rand) error {
	if state.IsTerminal() || state.Round() != 0 {
		return nil
	}

	actions := ValidActions(state, t.cfg.Profile)
	nActions := len(actions)
	cluster := PreflopCluster(hands[state.Active()])
	base := t.regrets.Index(state.History(), NPreflopClusters, nActions) + int(cluster)*nActions
	strategy := currentStrategy(t.regrets, base, nActions)

	if state.Active() == target {
		a := sampleAction(strategy, rng)
		phiBase := t.phi.Index(state.History(), nActions) + int(cluster)*nActions
		t.phi.Add(phiBase+a, 1)
		return t.updateStrategy(state.Apply(actions[a]), target, board, hands, rng)
	}

	for _, action := range actions {
		if err := t.updateStrategy(state.Apply(action), target, board, hands, rng); err != nil {
			return err
		}
	}
	return nil
}
