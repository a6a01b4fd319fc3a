package solver

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// BlueprintTimingConfig schedules the trainer's periodic maintenance
// passes (spec.md §4.6): discounting, strategy-sampling, snapshotting, and
// metric logging all happen on iteration-count boundaries, not wall clock.
type BlueprintTimingConfig struct {
	StrategyInterval int64 `hcl:"strategy_interval,optional"`
	PruneThreshold   int64 `hcl:"prune_threshold,optional"`
	DiscountInterval int64 `hcl:"discount_interval,optional"`
	LCFRThreshold    int64 `hcl:"lcfr_threshold,optional"`
	PreflopThreshold int64 `hcl:"preflop_threshold,optional"`
	SnapshotInterval int64 `hcl:"snapshot_interval,optional"`
	LogInterval      int64 `hcl:"log_interval,optional"`
}

// DefaultBlueprintTiming returns the reference Pluribus-style schedule,
// scaled down for this module's smoke tests.
func DefaultBlueprintTiming() BlueprintTimingConfig {
	return BlueprintTimingConfig{
		StrategyInterval: 100,
		PruneThreshold:   1000,
		DiscountInterval: 1000,
		LCFRThreshold:    4000,
		PreflopThreshold: 2000,
		SnapshotInterval: 1000,
		LogInterval:      500,
	}
}

// BlueprintConfig aggregates everything a BlueprintTrainer needs to start a
// self-play run: table stakes, the action abstraction, initial per-seat
// ranges/board, the hand-cluster count, and the timing schedule above.
type BlueprintConfig struct {
	Poker             PokerConfig
	Profile           *ActionProfile
	InitRanges        []PokerRange // one per seat; nil entries default to full range
	InitBoard         Board        // fixed/dead initial board cards, usually empty
	PostflopClusters  int
	Timing            BlueprintTimingConfig
	PruneCutoff       int32 // spec.md §4.6: regret <= this is skipped under MCCFR-P
	RegretFloor       int32
	Seed              int64
}

// Validate checks the configuration is internally consistent before a
// trainer is constructed from it; a failure here is a ConfigError per
// spec.md §7 (fatal at startup, never mid-traversal).
func (c *BlueprintConfig) Validate() error {
	if c.Poker.NPlayers < 2 {
		return &ConfigError{Msg: "need at least two players"}
	}
	if c.Poker.BigBlind <= c.Poker.SmallBlind {
		return &ConfigError{Msg: "big blind must exceed small blind"}
	}
	if c.Profile == nil {
		return &ConfigError{Msg: "action profile is required"}
	}
	if len(c.InitRanges) != 0 && len(c.InitRanges) != c.Poker.NPlayers {
		return &ConfigError{Msg: fmt.Sprintf("init ranges count %d does not match player count %d", len(c.InitRanges), c.Poker.NPlayers)}
	}
	if c.PostflopClusters <= 0 {
		return &ConfigError{Msg: "postflop cluster count must be > 0"}
	}
	return nil
}

// DefaultBlueprintConfig returns a ready-to-train configuration for an
// n-player table with the default blueprint action profile, uniform
// ranges, and default timing.
func DefaultBlueprintConfig(nPlayers int) BlueprintConfig {
	return BlueprintConfig{
		Poker: PokerConfig{
			NPlayers:   nPlayers,
			Chips:      20000,
			SmallBlind: 50,
			BigBlind:   100,
		},
		Profile:          NewBlueprintActionProfile(nPlayers),
		PostflopClusters: DefaultPostflopClusters,
		Timing:           DefaultBlueprintTiming(),
		PruneCutoff:      -300_000_000,
		RegretFloor:      DefaultRegretFloor,
		Seed:             1,
	}
}

// fileConfig is the HCL decode target: the same ambient-config pattern the
// teacher repo uses in internal/server/config.go, with nested blocks for
// table stakes, timing, and optional action-profile overrides. It decodes
// into a BlueprintConfig built from DefaultBlueprintConfig, so any field
// the file omits keeps its programmatic default.
type fileConfig struct {
	Players          *int                `hcl:"players,optional"`
	Chips            *int                `hcl:"starting_chips,optional"`
	SmallBlind       *int                `hcl:"small_blind,optional"`
	BigBlind         *int                `hcl:"big_blind,optional"`
	Ante             *int                `hcl:"ante,optional"`
	PostflopClusters *int                `hcl:"postflop_clusters,optional"`
	Seed             *int64              `hcl:"seed,optional"`
	Timing           *timingBlock        `hcl:"timing,block"`
	ActionProfile    []actionProfileRow  `hcl:"action_profile,block"`
}

type timingBlock struct {
	StrategyInterval *int64 `hcl:"strategy_interval,optional"`
	PruneThreshold   *int64 `hcl:"prune_threshold,optional"`
	DiscountInterval *int64 `hcl:"discount_interval,optional"`
	LCFRThreshold    *int64 `hcl:"lcfr_threshold,optional"`
	PreflopThreshold *int64 `hcl:"preflop_threshold,optional"`
	SnapshotInterval *int64 `hcl:"snapshot_interval,optional"`
	LogInterval      *int64 `hcl:"log_interval,optional"`
}

// actionProfileRow overrides a single (round, bet_level, seat) cell of the
// default profile, extending the teacher's table/bot HCL blocks with an
// action_profile block (SPEC_FULL.md's DOMAIN STACK section).
type actionProfileRow struct {
	Round    int      `hcl:"round,label"`
	BetLevel int      `hcl:"bet_level,label"`
	Seat     int      `hcl:"seat,label"`
	Actions  []string `hcl:"actions"`
}

// LoadBlueprintConfigHCL reads an HCL configuration file, applying it on
// top of DefaultBlueprintConfig(players).
func LoadBlueprintConfigHCL(path string) (BlueprintConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return BlueprintConfig{}, &ConfigError{Msg: fmt.Sprintf("read config %s: %v", path, err)}
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(raw, path)
	if diags.HasErrors() {
		return BlueprintConfig{}, &ConfigError{Msg: diags.Error()}
	}

	var fc fileConfig
	if diags := gohcl.DecodeBody(file.Body, nil, &fc); diags.HasErrors() {
		return BlueprintConfig{}, &ConfigError{Msg: diags.Error()}
	}

	players := 2
	if fc.Players != nil {
		players = *fc.Players
	}
	cfg := DefaultBlueprintConfig(players)

	if fc.Chips != nil {
		cfg.Poker.Chips = *fc.Chips
	}
	if fc.SmallBlind != nil {
		cfg.Poker.SmallBlind = *fc.SmallBlind
	}
	if fc.BigBlind != nil {
		cfg.Poker.BigBlind = *fc.BigBlind
	}
	if fc.Ante != nil {
		cfg.Poker.Ante = *fc.Ante
	}
	if fc.PostflopClusters != nil {
		cfg.PostflopClusters = *fc.PostflopClusters
	}
	if fc.Seed != nil {
		cfg.Seed = *fc.Seed
	}
	if fc.Timing != nil {
		applyTimingOverrides(&cfg.Timing, fc.Timing)
	}
	for _, row := range fc.ActionProfile {
		actions, err := parseActionTokens(row.Actions)
		if err != nil {
			return BlueprintConfig{}, &ConfigError{Msg: err.Error()}
		}
		cfg.Profile.SetActions(row.Round, row.BetLevel, row.Seat, actions)
	}

	if err := cfg.Validate(); err != nil {
		return BlueprintConfig{}, err
	}
	return cfg, nil
}

func applyTimingOverrides(t *BlueprintTimingConfig, o *timingBlock) {
	if o.StrategyInterval != nil {
		t.StrategyInterval = *o.StrategyInterval
	}
	if o.PruneThreshold != nil {
		t.PruneThreshold = *o.PruneThreshold
	}
	if o.DiscountInterval != nil {
		t.DiscountInterval = *o.DiscountInterval
	}
	if o.LCFRThreshold != nil {
		t.LCFRThreshold = *o.LCFRThreshold
	}
	if o.PreflopThreshold != nil {
		t.PreflopThreshold = *o.PreflopThreshold
	}
	if o.SnapshotInterval != nil {
		t.SnapshotInterval = *o.SnapshotInterval
	}
	if o.LogInterval != nil {
		t.LogInterval = *o.LogInterval
	}
}

// parseActionTokens parses the compact tokens used in action.go's String():
// "f", "cc", "allin", and "b60%"-style fractional bets.
func parseActionTokens(tokens []string) ([]Action, error) {
	actions := make([]Action, 0, len(tokens))
	for _, tok := range tokens {
		switch {
		case tok == "f":
			actions = append(actions, Fold)
		case tok == "cc":
			actions = append(actions, CheckCall)
		case tok == "allin":
			actions = append(actions, AllIn)
		case len(tok) > 1 && tok[0] == 'b':
			var pct float64
			if _, err := fmt.Sscanf(tok, "b%f%%", &pct); err != nil {
				return nil, fmt.Errorf("solver: invalid action token %q: %w", tok, err)
			}
			actions = append(actions, Bet(float32(pct/100)))
		default:
			return nil, fmt.Errorf("solver: invalid action token %q", tok)
		}
	}
	return actions, nil
}
