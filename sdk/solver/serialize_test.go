package solver

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestSaveAndLoadTrainerSnapshotRoundTrip(t *testing.T) {
	cfg := smallTrainerConfig(2)
	trainer, err := NewBlueprintTrainer(cfg)
	if err != nil {
		t.Fatalf("NewBlueprintTrainer: %v", err)
	}
	if err := trainer.Run(context.Background(), 4, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	path := filepath.Join(t.TempDir(), "nested", "snapshot.json")
	if err := trainer.SaveSnapshot(path); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	restored, err := LoadTrainerSnapshot(path)
	if err != nil {
		t.Fatalf("LoadTrainerSnapshot: %v", err)
	}

	if restored.Iteration() != trainer.Iteration() {
		t.Fatalf("restored iteration = %d, want %d", restored.Iteration(), trainer.Iteration())
	}
	if restored.Regrets().Size() != trainer.Regrets().Size() {
		t.Fatalf("restored regret row count = %d, want %d", restored.Regrets().Size(), trainer.Regrets().Size())
	}
	for key, base := range trainer.Regrets().Entries() {
		rbase, ok := restored.Regrets().Entries()[key]
		if !ok {
			t.Fatalf("history %q missing after restore", key)
		}
		if restored.Regrets().Get(rbase) != trainer.Regrets().Get(base) {
			t.Fatalf("regret value mismatch for history %q after restore", key)
		}
	}
	if restored.Phi().Size() != trainer.Phi().Size() {
		t.Fatalf("restored phi row count = %d, want %d", restored.Phi().Size(), trainer.Phi().Size())
	}
}

func TestLoadTrainerSnapshotResumesCoordinatorRNG(t *testing.T) {
	cfg := smallTrainerConfig(2)
	trainer, err := NewBlueprintTrainer(cfg)
	if err != nil {
		t.Fatalf("NewBlueprintTrainer: %v", err)
	}
	if err := trainer.Run(context.Background(), 3, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	path := filepath.Join(t.TempDir(), "snapshot.json")
	if err := trainer.SaveSnapshot(path); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	continuous, err := NewBlueprintTrainer(cfg)
	if err != nil {
		t.Fatalf("NewBlueprintTrainer: %v", err)
	}
	if err := continuous.Run(context.Background(), 3+2, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	resumed, err := LoadTrainerSnapshot(path)
	if err != nil {
		t.Fatalf("LoadTrainerSnapshot: %v", err)
	}
	if err := resumed.Run(context.Background(), 2, nil); err != nil {
		t.Fatalf("Run (resumed): %v", err)
	}

	if resumed.Iteration() != continuous.Iteration() {
		t.Fatalf("resumed iteration = %d, want %d", resumed.Iteration(), continuous.Iteration())
	}
	if resumed.coordCalls != continuous.coordCalls {
		t.Fatalf("resumed coordinator call count = %d, want %d", resumed.coordCalls, continuous.coordCalls)
	}
	if got, want := resumed.coordRNG.Int63(), continuous.coordRNG.Int63(); got != want {
		t.Fatalf("resumed coordinator RNG drew %d, continuous run drew %d", got, want)
	}
}

func TestLoadTrainerSnapshotRejectsVersionMismatch(t *testing.T) {
	cfg := smallTrainerConfig(2)
	path := filepath.Join(t.TempDir(), "version-mismatch.json")

	snap := snapshot{
		Version: snapshotFileVersion + 1,
		Config:  cfg,
	}
	writeRawSnapshot(t, path, snap)

	if _, err := LoadTrainerSnapshot(path); err == nil {
		t.Fatalf("expected version mismatch to fail")
	}
}

func TestLoadTrainerSnapshotRejectsInvalidConfig(t *testing.T) {
	cfg := smallTrainerConfig(2)
	cfg.Profile = nil
	path := filepath.Join(t.TempDir(), "invalid-config.json")

	snap := snapshot{
		Version: snapshotFileVersion,
		Config:  cfg,
	}
	writeRawSnapshot(t, path, snap)

	if _, err := LoadTrainerSnapshot(path); err == nil {
		t.Fatalf("expected invalid config to fail")
	}
}

func TestLoadTrainerSnapshotRejectsCorruptedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupted.json")
	if err := os.WriteFile(path, []byte("{not-json"), 0o644); err != nil {
		t.Fatalf("write corrupted file: %v", err)
	}
	if _, err := LoadTrainerSnapshot(path); err == nil {
		t.Fatalf("expected corrupted snapshot to fail")
	}
}

func TestLoadTrainerSnapshotRejectsMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")
	if _, err := LoadTrainerSnapshot(path); err == nil {
		t.Fatalf("expected missing snapshot file to fail")
	}
}

func TestAverageStrategyNormalizes(t *testing.T) {
	cfg := smallTrainerConfig(2)
	trainer, err := NewBlueprintTrainer(cfg)
	if err != nil {
		t.Fatalf("NewBlueprintTrainer: %v", err)
	}
	if err := trainer.Run(context.Background(), 20, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	root := NewActionHistory()
	var found bool
	for cluster := 0; cluster < NPreflopClusters; cluster++ {
		actions, ok := trainer.AverageStrategy(root, uint16(cluster))
		if !ok {
			continue
		}
		found = true
		sum := 0.0
		for _, a := range actions {
			sum += a.Prob
		}
		if sum < 0.999 || sum > 1.001 {
			t.Fatalf("average strategy probabilities sum to %v, want ~1", sum)
		}
	}
	if !found {
		t.Fatalf("expected at least one preflop cluster with an accumulated average strategy at the root")
	}
}

func TestAverageStrategyUnknownHistoryNotOK(t *testing.T) {
	cfg := smallTrainerConfig(2)
	trainer, err := NewBlueprintTrainer(cfg)
	if err != nil {
		t.Fatalf("NewBlueprintTrainer: %v", err)
	}
	if _, ok := trainer.AverageStrategy(NewActionHistory(Fold, Fold, Fold), 0); ok {
		t.Fatalf("expected ok=false for a history never visited during training")
	}
}

func writeRawSnapshot(t *testing.T, path string, snap snapshot) {
	t.Helper()
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}
}
