package solver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const snapshotFileVersion = 1

// snapshot is the on-disk representation of a BlueprintTrainer's full
// state: enough to resume training exactly where it left off, or to
// extract a standalone average-strategy blueprint (spec.md §4.7/§6).
type snapshot struct {
	Version    int                `json:"version"`
	Iteration  int64              `json:"iteration"`
	Seed       int64              `json:"seed"`
	CoordCalls int64              `json:"coord_calls"`
	Config     BlueprintConfig    `json:"config"`
	Regrets    storageSnapshot    `json:"regrets"`
	Phi        phiStorageSnapshot `json:"phi"`
}

type storageSnapshot struct {
	Histories map[string]int `json:"histories"`
	Values    []int32        `json:"values"`
}

type phiStorageSnapshot struct {
	NClusters int            `json:"n_clusters"`
	Histories map[string]int `json:"histories"`
	Values    []float32      `json:"values"`
}

// SaveSnapshot writes the trainer's full state to path using a
// write-to-temp-then-rename sequence, so a crash mid-write never leaves a
// corrupt file at path (spec.md §7's durability requirement for periodic
// checkpoints).
func (t *BlueprintTrainer) SaveSnapshot(path string) error {
	snap := snapshot{
		Version:    snapshotFileVersion,
		Iteration:  t.iteration.Load(),
		Seed:       t.cfg.Seed,
		CoordCalls: t.coordCalls,
		Config:     t.cfg,
		Regrets: storageSnapshot{
			Histories: t.regrets.Entries(),
			Values:    t.regrets.Snapshot(),
		},
		Phi: phiStorageSnapshot{
			NClusters: t.phi.NClusters(),
			Histories: t.phi.Entries(),
			Values:    t.phi.Snapshot(),
		},
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("solver: create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("solver: create snapshot temp file: %w", err)
	}
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("solver: encode snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("solver: close snapshot temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("solver: persist snapshot: %w", err)
	}
	return nil
}

// LoadTrainerSnapshot restores a trainer from a file written by
// SaveSnapshot, fast-forwarding the coordinator RNG to the exact call
// count it had reached so subsequent iterations draw the same sequence a
// continuous run would have.
func LoadTrainerSnapshot(path string) (*BlueprintTrainer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("solver: open snapshot: %w", err)
	}
	defer f.Close()

	snap, err := decodeSnapshot(f)
	if err != nil {
		return nil, err
	}

	t, err := NewBlueprintTrainer(snap.Config)
	if err != nil {
		return nil, fmt.Errorf("solver: rebuild trainer from snapshot: %w", err)
	}

	t.iteration.Store(snap.Iteration)
	t.coordRNG = NewFastRandV2(snap.Seed)
	for i := int64(0); i < snap.CoordCalls; i++ {
		t.coordRNG.Int63()
	}
	t.coordCalls = snap.CoordCalls

	t.regrets.Restore(snap.Regrets.Values, snap.Regrets.Histories)
	t.phi.Restore(snap.Phi.Values, snap.Phi.Histories)
	return t, nil
}

func decodeSnapshot(r io.Reader) (*snapshot, error) {
	var snap snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("solver: decode snapshot: %w", err)
	}
	if snap.Version != snapshotFileVersion {
		return nil, errors.New("solver: unsupported snapshot version")
	}
	if err := snap.Config.Validate(); err != nil {
		return nil, fmt.Errorf("solver: snapshot config invalid: %w", err)
	}
	return &snap, nil
}

// BlueprintAction pairs one legal action with its averaged probability, a
// single row of the normalized strategy returned by AverageStrategy.
type BlueprintAction struct {
	Action Action  `json:"action"`
	Prob   float64 `json:"prob"`
}

// AverageStrategy returns the normalized average preflop strategy phi
// accumulated for history at cluster, or ok=false if that (history,
// cluster) pair was never visited during training.
func (t *BlueprintTrainer) AverageStrategy(history ActionHistory, cluster uint16) ([]BlueprintAction, bool) {
	base, ok := t.phi.Lookup(history)
	if !ok {
		return nil, false
	}
	actions := ValidActions(history.replayState(t.cfg.Poker), t.cfg.Profile)
	nActions := len(actions)
	rowBase := base + int(cluster)*nActions

	sum := 0.0
	weights := make([]float64, nActions)
	for a := 0; a < nActions; a++ {
		w := float64(t.phi.Get(rowBase + a))
		weights[a] = w
		sum += w
	}
	if sum <= 0 {
		return nil, false
	}

	out := make([]BlueprintAction, nActions)
	for a := range actions {
		out[a] = BlueprintAction{Action: actions[a], Prob: weights[a] / sum}
	}
	return out, true
}

// replayState reconstructs the PokerState that produced history by
// replaying it from a fresh deal, used only to recover the legal-action
// menu at a stored history when reading back a trained blueprint.
func (h ActionHistory) replayState(cfg PokerConfig) *PokerState {
	return NewPokerState(cfg).ApplyHistory(h)
}

// ParseActionHistory rebuilds an ActionHistory from its dash-joined action
// tokens ("f", "cc", "allin", "b75%" -- the same grammar ActionHistory.Key
// produces and LoadBlueprintConfigHCL's action-profile overrides accept),
// for tooling that inspects a saved blueprint by history rather than by
// replaying play.
func ParseActionHistory(key string) (ActionHistory, error) {
	return parseActionHistoryKey(key)
}
