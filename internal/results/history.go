package results

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/floats"
)

// History collects the loss curves for one (cell, lag) run: per gradient
// step and per epoch, for both the training and the held-out split.
type History struct {
	TrainSteps    []float64
	TrainEpochAvg []float64
	TestSteps     []float64
	TestEpochAvg  []float64
}

// BestTest returns the lowest epoch-average test loss seen, or +Inf if no
// epoch completed.
func (h *History) BestTest() float64 {
	if len(h.TestEpochAvg) == 0 {
		return math.Inf(1)
	}
	return floats.Min(h.TestEpochAvg)
}

// Save writes the four curves as JSON arrays under dir, named after the
// original benchmark outputs.
func (h *History) Save(dir, cell string, lag int) error {
	files := map[string][]float64{
		fmt.Sprintf("TrainLoss_AllE_%s_%d.json", cell, lag):    h.TrainSteps,
		fmt.Sprintf("TrainAvgLoss_AllE_%s_%d.json", cell, lag): h.TrainEpochAvg,
		fmt.Sprintf("ValidLoss_AllE_%s_%d.json", cell, lag):    h.TestSteps,
		fmt.Sprintf("ValidAvgLoss_AllE_%s_%d.json", cell, lag): h.TestEpochAvg,
	}
	for name, vals := range files {
		if err := writeJSON(filepath.Join(dir, name), vals); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(path string, vals []float64) error {
	if vals == nil {
		vals = []float64{}
	}
	data, err := json.Marshal(vals)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}

// LoadCurve reads one JSON loss curve back.
func LoadCurve(path string) ([]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	var vals []float64
	if err := json.Unmarshal(data, &vals); err != nil {
		return nil, fmt.Errorf("parse history: %w", err)
	}
	return vals, nil
}
