package solver

import (
	"context"
	"testing"
	"time"

	"github.com/coder/quartz"
)

func smallTrainerConfig(players int) BlueprintConfig {
	cfg := DefaultBlueprintConfig(players)
	cfg.PostflopClusters = 8
	cfg.Timing = BlueprintTimingConfig{
		StrategyInterval: 1,
		PruneThreshold:   1000,
		DiscountInterval: 2,
		LCFRThreshold:    100,
		PreflopThreshold: 0,
		SnapshotInterval: 0,
		LogInterval:      2,
	}
	return cfg
}

func TestNewBlueprintTrainerRejectsInvalidConfig(t *testing.T) {
	cfg := smallTrainerConfig(2)
	cfg.Profile = nil
	if _, err := NewBlueprintTrainer(cfg); err == nil {
		t.Fatalf("expected ConfigError for a nil action profile")
	}
}

func TestBlueprintTrainerRunAdvancesIteration(t *testing.T) {
	trainer, err := NewBlueprintTrainer(smallTrainerConfig(2))
	if err != nil {
		t.Fatalf("NewBlueprintTrainer: %v", err)
	}
	if err := trainer.Run(context.Background(), 5, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if trainer.Iteration() != 5 {
		t.Fatalf("Iteration() = %d, want 5", trainer.Iteration())
	}
	if trainer.Regrets().Size() == 0 {
		t.Fatalf("expected regret rows to be admitted during training")
	}
	if trainer.Phi().Size() == 0 {
		t.Fatalf("expected phi rows to be admitted with StrategyInterval=1")
	}
}

func TestBlueprintTrainerRunDeterministicGivenSeed(t *testing.T) {
	cfg := smallTrainerConfig(2)
	cfg.Seed = 123

	t1, err := NewBlueprintTrainer(cfg)
	if err != nil {
		t.Fatalf("NewBlueprintTrainer: %v", err)
	}
	if err := t1.Run(context.Background(), 10, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	t2, err := NewBlueprintTrainer(cfg)
	if err != nil {
		t.Fatalf("NewBlueprintTrainer: %v", err)
	}
	if err := t2.Run(context.Background(), 10, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if t1.Regrets().Size() != t2.Regrets().Size() {
		t.Fatalf("same seed produced different regret row counts: %d vs %d", t1.Regrets().Size(), t2.Regrets().Size())
	}
	for key, base1 := range t1.Regrets().Entries() {
		base2, ok := t2.Regrets().Entries()[key]
		if !ok {
			t.Fatalf("history %q missing from second run", key)
		}
		if t1.Regrets().Get(base1) != t2.Regrets().Get(base2) {
			t.Fatalf("history %q diverged between identically-seeded runs", key)
		}
	}
}

func TestBlueprintTrainerRunRespectsContextCancellation(t *testing.T) {
	trainer, err := NewBlueprintTrainer(smallTrainerConfig(2))
	if err != nil {
		t.Fatalf("NewBlueprintTrainer: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := trainer.Run(ctx, 10, nil); err == nil {
		t.Fatalf("expected context cancellation error")
	}
}

func TestBlueprintTrainerProgressCallbackFiresOnLogInterval(t *testing.T) {
	trainer, err := NewBlueprintTrainer(smallTrainerConfig(2))
	if err != nil {
		t.Fatalf("NewBlueprintTrainer: %v", err)
	}
	mockClock := quartz.NewMock(t)
	trainer.SetClock(mockClock)

	var calls int
	progress := func(p Progress) {
		calls++
		if p.Iteration%2 != 0 {
			t.Fatalf("progress fired on a non-interval iteration: %d", p.Iteration)
		}
	}

	mockClock.Advance(time.Second)
	if err := trainer.Run(context.Background(), 6, progress); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 3 {
		t.Fatalf("progress callback fired %d times, want 3 (LogInterval=2 over 6 iterations)", calls)
	}
}

func TestLCFRDiscountApproachesOne(t *testing.T) {
	d1 := lcfrDiscount(1000, 1000)
	d2 := lcfrDiscount(10000, 1000)
	if d1 <= 0 || d1 >= 1 {
		t.Fatalf("lcfrDiscount(1000, 1000) = %v, want in (0, 1)", d1)
	}
	if d2 <= d1 {
		t.Fatalf("discount factor should grow toward 1 as iterations progress: d1=%v d2=%v", d1, d2)
	}
}

func TestCurrentStrategyUniformWhenNoPositiveRegret(t *testing.T) {
	s := NewRegretStorage()
	base := s.Index(NewActionHistory(), 1, 4)
	strategy := currentStrategy(s, base, 4)
	for _, p := range strategy {
		if p != 0.25 {
			t.Fatalf("expected uniform 0.25 strategy with no regret, got %v", strategy)
		}
	}
}

func TestCurrentStrategyProportionalToPositiveRegret(t *testing.T) {
	s := NewRegretStorage()
	base := s.Index(NewActionHistory(), 1, 2)
	s.Add(base, 30, DefaultRegretFloor)
	s.Add(base+1, 10, DefaultRegretFloor)

	strategy := currentStrategy(s, base, 2)
	if strategy[0] != 0.75 || strategy[1] != 0.25 {
		t.Fatalf("strategy = %v, want [0.75 0.25]", strategy)
	}
}

func TestBoardForRound(t *testing.T) {
	full := Board{
		NewCard(0, 0), NewCard(1, 0), NewCard(2, 0), NewCard(3, 0), NewCard(4, 0),
	}
	if got := boardForRound(full, 0); got != nil {
		t.Fatalf("preflop board = %v, want nil", got)
	}
	if got := boardForRound(full, 1); len(got) != 3 {
		t.Fatalf("flop board length = %d, want 3", len(got))
	}
	if got := boardForRound(full, 2); len(got) != 4 {
		t.Fatalf("turn board length = %d, want 4", len(got))
	}
	if got := boardForRound(full, 3); len(got) != 5 {
		t.Fatalf("river board length = %d, want 5", len(got))
	}
}
