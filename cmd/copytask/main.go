package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"

	"copytask/internal/config"
	"copytask/internal/trainer"
)

func main() {
	cfgPath := flag.String("config", "configs/copytask.yaml", "Path to YAML config")
	epochs := flag.Int("epochs", 0, "Override number of training epochs")
	batchSize := flag.Int("batch-size", 0, "Override batch size")
	numWorkers := flag.Int("num-workers", 0, "Override dataset generation workers")
	seed := flag.Int64("seed", 0, "Override PRNG seed")
	logEvery := flag.Int("log-every", 0, "Override step logging interval")
	stopLoss := flag.Float64("stop-loss", 0, "Override early-stop loss threshold")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 3 {
		usage()
		os.Exit(2)
	}
	cell := flag.Arg(0)
	modelDir := flag.Arg(1)
	resultsDir := flag.Arg(2)

	log := logrus.New()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	cfg.ApplyOverrides(config.Overrides{
		Epochs:     *epochs,
		BatchSize:  *batchSize,
		NumWorkers: *numWorkers,
		Seed:       *seed,
		LogEvery:   *logEvery,
		StopLoss:   *stopLoss,
	})

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	for _, dir := range []string{modelDir, resultsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("create %s: %v", dir, err)
		}
	}

	logPath := filepath.Join(resultsDir, fmt.Sprintf("copytask_%s.log", cell))
	logFile, err := os.Create(logPath)
	if err != nil {
		log.Fatalf("create log file: %v", err)
	}
	defer logFile.Close()
	log.SetOutput(io.MultiWriter(os.Stdout, logFile))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runCfg := trainer.RunConfig{
		Cell:         cell,
		ModelDir:     modelDir,
		ResultsDir:   resultsDir,
		Lags:         cfg.Lags,
		DatasetSize:  cfg.DatasetSize,
		TestSize:     cfg.TestSize,
		BatchSize:    cfg.BatchSize,
		Epochs:       cfg.Epochs,
		HiddenSizes:  cfg.HiddenSizes,
		LearningRate: cfg.LearningRate,
		StopLoss:     cfg.StopLoss,
		Seed:         cfg.Seed,
		NumWorkers:   cfg.NumWorkers,
		LogEvery:     cfg.LogEvery,
		Log:          log,
	}

	if err := trainer.Run(ctx, runCfg); err != nil {
		log.Fatalf("training failed: %v", err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [flags] <cell> <model-dir> <results-dir>\n\n", filepath.Base(os.Args[0]))
	fmt.Fprintf(os.Stderr, "cell is one of LSTM, GRU, nBRC, BRC.\n\nFlags:\n")
	flag.PrintDefaults()
}
