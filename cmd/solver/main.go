package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime/pprof"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"

	"github.com/kbond2024/bananakid/sdk/solver"
)

var cli struct {
	Debug bool `help:"enable debug logging"`

	Train     TrainCmd     `cmd:"" help:"run MCCFR blueprint training"`
	Blueprint BlueprintCmd `cmd:"" help:"inspect a saved blueprint snapshot"`
}

type TrainCmd struct {
	Out             string `help:"path to write the trained snapshot" required:""`
	Iterations      int64  `help:"number of MCCFR iterations" default:"1000000"`
	Players         int    `help:"number of players in self-play" default:"2"`
	Seed            int64  `help:"random seed" default:"1"`
	SmallBlind      int    `help:"small blind size" default:"50"`
	BigBlind        int    `help:"big blind size" default:"100"`
	Stack           int    `help:"starting stack size" default:"20000"`
	SnapshotEvery   int64  `help:"snapshot interval in iterations, checked only on progress-log iterations (0 keeps the config default)" default:"0"`
	LogEvery        int64  `help:"progress log interval in iterations (0 keeps the config default)" default:"0"`
	ResumeFrom      string `help:"resume training from a snapshot file"`
	ConfigFile      string `help:"HCL configuration file overriding defaults"`
	CPUProfile      string `help:"write CPU profile to file"`
}

type BlueprintCmd struct {
	Path    string `help:"path to a trained snapshot" required:""`
	History string `help:"dash-joined action history to look up, e.g. \"f-cc\" (empty for the root node)" default:""`
	Cluster int    `help:"preflop cluster id (0-168) to look up" default:"0"`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("solver"),
		kong.Description("MCCFR blueprint solver"),
		kong.UsageOnError(),
	)

	logger := log.New(os.Stderr)
	if cli.Debug {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.InfoLevel)
	}
	log.SetDefault(logger)

	switch ctx.Command() {
	case "train":
		if err := cli.Train.Run(context.Background()); err != nil {
			logger.Fatal("training failed", "err", err)
		}
	case "blueprint":
		if err := cli.Blueprint.Run(context.Background()); err != nil {
			logger.Fatal("blueprint inspection failed", "err", err)
		}
	default:
		logger.Fatal("unknown command", "command", ctx.Command())
	}
}

func (cmd *TrainCmd) Run(ctx context.Context) error {
	logger := log.Default().WithPrefix("train")

	if cmd.CPUProfile != "" {
		f, err := os.Create(cmd.CPUProfile)
		if err != nil {
			return fmt.Errorf("create cpu profile: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("start cpu profile: %w", err)
		}
		defer pprof.StopCPUProfile()
		logger.Info("CPU profiling enabled", "path", cmd.CPUProfile)
	}

	var trainer *solver.BlueprintTrainer
	var err error

	switch {
	case cmd.ResumeFrom != "":
		trainer, err = solver.LoadTrainerSnapshot(cmd.ResumeFrom)
		if err != nil {
			return fmt.Errorf("load snapshot: %w", err)
		}
		logger.Info("resumed training run", "snapshot", cmd.ResumeFrom, "iteration", trainer.Iteration())
	case cmd.ConfigFile != "":
		bcfg, err := solver.LoadBlueprintConfigHCL(cmd.ConfigFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		trainer, err = solver.NewBlueprintTrainer(bcfg)
		if err != nil {
			return err
		}
	default:
		bcfg := solver.DefaultBlueprintConfig(cmd.Players)
		bcfg.Seed = cmd.Seed
		bcfg.Poker.SmallBlind = cmd.SmallBlind
		bcfg.Poker.BigBlind = cmd.BigBlind
		bcfg.Poker.Chips = cmd.Stack
		if cmd.SnapshotEvery > 0 {
			bcfg.Timing.SnapshotInterval = cmd.SnapshotEvery
		}
		if cmd.LogEvery > 0 {
			bcfg.Timing.LogInterval = cmd.LogEvery
		}
		trainer, err = solver.NewBlueprintTrainer(bcfg)
		if err != nil {
			return err
		}
	}

	logger.Info("starting training run",
		"iterations", cmd.Iterations,
		"players", trainer.Config().Poker.NPlayers,
		"seed", trainer.Config().Seed,
	)

	start := time.Now()
	progress := func(p solver.Progress) {
		logger.Info("progress",
			"iteration", p.Iteration,
			"regret_rows", p.RegretRows,
			"phi_rows", p.PhiRows,
			"nodes", p.Stats.NodesVisited,
			"terminals", p.Stats.TerminalNodes,
			"pruned", p.Stats.PrunedNodes,
			"iter_per_sec", p.IterPerSec,
		)
		if metricsJSON, err := json.Marshal(p.Metrics); err != nil {
			logger.Warn("encode metrics record", "err", err)
		} else {
			logger.Info("metrics", "record", string(metricsJSON))
		}
		snapInterval := trainer.Config().Timing.SnapshotInterval
		if snapInterval > 0 && p.Iteration%snapInterval == 0 {
			if err := trainer.SaveSnapshot(cmd.Out); err != nil {
				logger.Error("snapshot failed", "err", err)
			}
		}
	}

	if err := trainer.Run(ctx, cmd.Iterations, progress); err != nil {
		return err
	}

	duration := time.Since(start)
	logger.Info("training completed", "duration", duration, "regret_rows", trainer.Regrets().Size())

	if err := trainer.SaveSnapshot(cmd.Out); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	logger.Info("snapshot saved", "path", cmd.Out)
	return nil
}

func (cmd *BlueprintCmd) Run(ctx context.Context) error {
	trainer, err := solver.LoadTrainerSnapshot(cmd.Path)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	logger := log.Default().WithPrefix("blueprint")
	logger.Info("snapshot loaded", "iteration", trainer.Iteration(), "regret_rows", trainer.Regrets().Size())

	history, err := solver.ParseActionHistory(cmd.History)
	if err != nil {
		return fmt.Errorf("parse history: %w", err)
	}

	strategy, ok := trainer.AverageStrategy(history, uint16(cmd.Cluster))
	if !ok {
		logger.Warn("no average strategy recorded for this (history, cluster) pair", "history", cmd.History, "cluster", cmd.Cluster)
		return nil
	}

	out, err := json.MarshalIndent(strategy, "", "  ")
	if err != nil {
		return fmt.Errorf("encode strategy: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
