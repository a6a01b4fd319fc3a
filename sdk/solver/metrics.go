package solver

import (
	"sort"
	"strings"
)

// PositionMetrics summarises one seat's preflop action mix as accumulated in
// phi, normalised to sum to 1 across the distinct Action values reachable
// from that seat's preflop decision nodes.
type PositionMetrics struct {
	Position int               `json:"position"`
	Actions  []BlueprintAction `json:"actions"`
}

// PreflopMetricsReport is the per-log_interval JSON record spec.md §4.6
// describes: average positive regret across every admitted regret row, plus
// one PositionMetrics entry per position 0..n-2 (spec.md's own range -- the
// last seat, the dealer/button in this module's seating, is excluded from
// the report).
type PreflopMetricsReport struct {
	Iteration         int64             `json:"iteration"`
	AvgPositiveRegret float64           `json:"avg_positive_regret"`
	Positions         []PositionMetrics `json:"positions"`
}

// AvgPositiveRegret averages every positive counter across every admitted
// regret row, matching the original's log_metrics instrumentation: it is a
// coarse health signal (it should trend toward zero as training converges),
// not a quantity consumed by the traversal itself.
func (t *BlueprintTrainer) AvgPositiveRegret() float64 {
	data := t.regrets.Snapshot()
	var sum float64
	var n int
	for _, v := range data {
		if v > 0 {
			sum += float64(v)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// PreflopActionFrequencies aggregates phi across every admitted preflop
// history row belonging to position `seat` (the seat whose decision the row
// records, recovered by replaying the row's history from a fresh deal),
// weighted by phi mass and normalised to sum to 1. Returns ok=false if the
// position never accumulated any phi mass (e.g. it never reached an
// update_strategy decision node within the training run so far).
func (t *BlueprintTrainer) PreflopActionFrequencies(seat int) ([]BlueprintAction, bool) {
	nClusters := t.phi.NClusters()
	totals := make(map[Action]float64)

	for key, base := range t.phi.Entries() {
		history, err := parseActionHistoryKey(key)
		if err != nil {
			continue // not a history this trainer's profile could have produced
		}
		state := NewPokerState(t.cfg.Poker).ApplyHistory(history)
		if state.IsTerminal() || state.Round() != 0 || state.Active() != seat {
			continue
		}
		actions := ValidActions(state, t.cfg.Profile)
		nActions := len(actions)
		for c := 0; c < nClusters; c++ {
			row := base + c*nActions
			for a, action := range actions {
				totals[action] += float64(t.phi.Get(row + a))
			}
		}
	}

	var sum float64
	for _, w := range totals {
		sum += w
	}
	if sum <= 0 {
		return nil, false
	}

	out := make([]BlueprintAction, 0, len(totals))
	for action, w := range totals {
		out = append(out, BlueprintAction{Action: action, Prob: w / sum})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Action.String() < out[j].Action.String() })
	return out, true
}

// PreflopMetrics builds the full per-log_interval report: average positive
// regret plus per-position action frequencies for positions 0..NPlayers-2,
// per spec.md §4.6/§8's scenario 4. Positions that never accumulated phi
// mass are omitted from the report rather than reported as an empty/NaN row.
func (t *BlueprintTrainer) PreflopMetrics() PreflopMetricsReport {
	n := t.cfg.Poker.NPlayers
	report := PreflopMetricsReport{
		Iteration:         t.Iteration(),
		AvgPositiveRegret: t.AvgPositiveRegret(),
	}
	for seat := 0; seat < n-1; seat++ {
		actions, ok := t.PreflopActionFrequencies(seat)
		if !ok {
			continue
		}
		report.Positions = append(report.Positions, PositionMetrics{Position: seat, Actions: actions})
	}
	return report
}

// parseActionHistoryKey inverts ActionHistory.Key/String: it rebuilds an
// ActionHistory from the "-"-joined action tokens a history's map key is
// made of, reusing the same token grammar LoadBlueprintConfigHCL parses
// action-profile overrides with ("f", "cc", "allin", "b60%").
func parseActionHistoryKey(key string) (ActionHistory, error) {
	if key == "" {
		return NewActionHistory(), nil
	}
	tokens := strings.Split(key, "-")
	actions, err := parseActionTokens(tokens)
	if err != nil {
		return ActionHistory{}, err
	}
	return NewActionHistory(actions...), nil
}
