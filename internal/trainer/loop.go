package trainer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"copytask/internal/checkpoint"
	"copytask/internal/dataset"
	"copytask/internal/metrics"
	"copytask/internal/model"
	"copytask/internal/results"
)

// RunConfig captures the knobs required by the benchmark loop.
type RunConfig struct {
	Cell       string
	ModelDir   string
	ResultsDir string

	Lags         []int
	DatasetSize  int
	TestSize     int
	BatchSize    int
	Epochs       int
	HiddenSizes  []int
	LearningRate float64
	StopLoss     float64
	Seed         int64
	NumWorkers   int
	LogEvery     int

	Log *logrus.Logger
}

// Run trains the configured cell at every lag length, checkpointing the best
// model per lag and writing loss histories and plots, then renders the
// combined per-cell figure.
func Run(ctx context.Context, cfg RunConfig) error {
	if len(cfg.Lags) == 0 {
		return errors.New("trainer: at least one lag required")
	}
	if cfg.Epochs <= 0 {
		return errors.New("trainer: epochs must be > 0")
	}
	if cfg.BatchSize <= 0 {
		return errors.New("trainer: batch size must be > 0")
	}
	if cfg.LogEvery <= 0 {
		cfg.LogEvery = 50
	}
	if cfg.Log == nil {
		cfg.Log = logrus.New()
	}

	combined := make([]results.Series, 0, len(cfg.Lags))
	for _, lag := range cfg.Lags {
		hist, err := runLag(ctx, cfg, lag)
		if err != nil {
			return fmt.Errorf("lag %d: %w", lag, err)
		}
		combined = append(combined, results.Series{
			Label:  fmt.Sprintf("Length %d", lag),
			Values: hist.TrainSteps,
		})
	}

	combinedPath := filepath.Join(cfg.ResultsDir, fmt.Sprintf("%s_copy_first_input.png", cfg.Cell))
	title := fmt.Sprintf("Copy-First-Input Training Loss of %s", cfg.Cell)
	if err := results.SaveCurvePNG(combinedPath, title, combined); err != nil {
		return err
	}
	return nil
}

func runLag(ctx context.Context, cfg RunConfig, lag int) (*results.History, error) {
	log := cfg.Log.WithFields(logrus.Fields{"cell": cfg.Cell, "lag": lag})

	train, test, err := dataset.BuildSplits(cfg.DatasetSize, cfg.TestSize, lag, cfg.Seed, cfg.NumWorkers)
	if err != nil {
		return nil, err
	}
	net, err := model.NewNetwork(cfg.Cell, 1, cfg.HiddenSizes, cfg.Seed)
	if err != nil {
		return nil, err
	}
	opt := model.NewAdam(net.Params(), cfg.LearningRate)
	rng := rand.New(rand.NewSource(cfg.Seed))

	hist := &results.History{}
	best := math.Inf(1)
	ckptPath := filepath.Join(cfg.ModelDir, fmt.Sprintf("%s_%d.ckpt", cfg.Cell, lag))
	var window metrics.Window
	step := 0

	log.WithFields(logrus.Fields{
		"train_size": train.Len(),
		"test_size":  test.Len(),
		"epochs":     cfg.Epochs,
	}).Info("training started")

	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		var trainAvg metrics.RunningMean
		batches, errCh, err := dataset.StreamBatches(ctx, train, cfg.BatchSize, rng)
		if err != nil {
			return nil, err
		}
		startData := time.Now()
		for batch := range batches {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
			dataTime := time.Since(startData)

			startCompute := time.Now()
			pred := net.Forward(batch.Inputs)
			loss, dPred := model.MSELoss(pred, batch.Targets)
			net.ZeroGrads()
			net.Backward(dPred)
			opt.Step(net.Params(), net.Grads())
			computeTime := time.Since(startCompute)

			window.Record(len(batch.Targets), dataTime, computeTime, loss)
			hist.TrainSteps = append(hist.TrainSteps, loss)
			trainAvg.Add(loss)
			step++

			if step%cfg.LogEvery == 0 {
				snap := window.Snapshot()
				log.WithFields(logrus.Fields{
					"step":        step,
					"seq_per_sec": snap.SequencesPerSec,
					"data_ms":     snap.AvgDataMS,
					"compute_ms":  snap.AvgComputeMS,
					"loss":        snap.LastLoss,
				}).Info("train step")
			}
			startData = time.Now()
		}
		if err := drain(errCh); err != nil {
			return nil, err
		}

		var testAvg metrics.RunningMean
		evalBatches, evalErrCh, err := dataset.StreamBatches(ctx, test, cfg.BatchSize, rng)
		if err != nil {
			return nil, err
		}
		for batch := range evalBatches {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
			pred := net.Forward(batch.Inputs)
			loss, _ := model.MSELoss(pred, batch.Targets)
			hist.TestSteps = append(hist.TestSteps, loss)
			testAvg.Add(loss)
		}
		if err := drain(evalErrCh); err != nil {
			return nil, err
		}

		hist.TrainEpochAvg = append(hist.TrainEpochAvg, trainAvg.Mean())
		hist.TestEpochAvg = append(hist.TestEpochAvg, testAvg.Mean())
		log.WithFields(logrus.Fields{
			"epoch":      epoch,
			"epochs":     cfg.Epochs,
			"train_loss": trainAvg.Mean(),
			"test_loss":  testAvg.Mean(),
		}).Info("epoch complete")

		if testAvg.Mean() < best {
			best = testAvg.Mean()
			st := checkpoint.Capture(cfg.Cell, lag, epoch, trainAvg.Mean(), testAvg.Mean(), net.Params(), opt.State())
			if err := checkpoint.Save(ckptPath, st); err != nil {
				return nil, err
			}
			log.WithFields(logrus.Fields{"path": ckptPath, "test_loss": best}).Info("checkpoint saved")
		}

		if testAvg.Mean() < cfg.StopLoss {
			log.WithField("epoch", epoch).Info("stop threshold reached")
			break
		}
	}

	if err := hist.Save(cfg.ResultsDir, cfg.Cell, lag); err != nil {
		return nil, err
	}
	lagPath := filepath.Join(cfg.ResultsDir, fmt.Sprintf("Training_%s%d.png", cfg.Cell, lag))
	title := fmt.Sprintf("Copy-First-Input Training Loss of %s, Length %d", cfg.Cell, lag)
	series := []results.Series{{Label: fmt.Sprintf("Length %d", lag), Values: hist.TrainSteps}}
	if err := results.SaveCurvePNG(lagPath, title, series); err != nil {
		return nil, err
	}
	log.WithField("best_test_loss", hist.BestTest()).Info("lag complete")
	return hist, nil
}

func drain(errCh <-chan error) error {
	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}
