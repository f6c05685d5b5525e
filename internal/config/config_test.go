package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const sampleYAML = `lags: [5, 100, 300]
dataset_size: 50000
test_size: 5000
batch_size: 100
epochs: 60
hidden_sizes: [100, 100]
learning_rate: 0.001
stop_loss: 0.1
seed: 42
num_workers: 4
log_every: 50
`

func mustWrite(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValid(t *testing.T) {
	cfg, err := Load(mustWrite(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if !reflect.DeepEqual(cfg.Lags, []int{5, 100, 300}) {
		t.Fatalf("unexpected lags %v", cfg.Lags)
	}
	if cfg.DatasetSize != 50000 || cfg.TestSize != 5000 {
		t.Fatalf("unexpected sizes %d/%d", cfg.DatasetSize, cfg.TestSize)
	}
	if !reflect.DeepEqual(cfg.HiddenSizes, []int{100, 100}) {
		t.Fatalf("unexpected hidden sizes %v", cfg.HiddenSizes)
	}
	if cfg.LearningRate != 0.001 || cfg.StopLoss != 0.1 {
		t.Fatalf("unexpected rates %g/%g", cfg.LearningRate, cfg.StopLoss)
	}
}

func TestLoadUnknownKey(t *testing.T) {
	_, err := Load(mustWrite(t, sampleYAML+"bogus_knob: 1\n"))
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
	if !strings.Contains(err.Error(), "bogus_knob") {
		t.Fatalf("error does not name the key: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestApplyOverrides(t *testing.T) {
	cfg, err := Load(mustWrite(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	cfg.ApplyOverrides(Overrides{Epochs: 3, BatchSize: 10, Seed: 7, StopLoss: 0.5})
	if cfg.Epochs != 3 || cfg.BatchSize != 10 || cfg.Seed != 7 || cfg.StopLoss != 0.5 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.NumWorkers != 4 || cfg.LogEvery != 50 {
		t.Fatalf("zero overrides clobbered config: %+v", cfg)
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	base := func() *Config {
		return &Config{
			Lags:         []int{5},
			DatasetSize:  100,
			TestSize:     20,
			BatchSize:    10,
			Epochs:       2,
			HiddenSizes:  []int{8},
			LearningRate: 0.01,
			StopLoss:     0.1,
		}
	}
	cases := map[string]func(*Config){
		"no lags":           func(c *Config) { c.Lags = nil },
		"negative lag":      func(c *Config) { c.Lags = []int{-1} },
		"test too big":      func(c *Config) { c.DatasetSize = 20 },
		"zero batch":        func(c *Config) { c.BatchSize = 0 },
		"zero epochs":       func(c *Config) { c.Epochs = 0 },
		"no hidden sizes":   func(c *Config) { c.HiddenSizes = nil },
		"zero hidden size":  func(c *Config) { c.HiddenSizes = []int{0} },
		"zero lr":           func(c *Config) { c.LearningRate = 0 },
		"zero stop loss":    func(c *Config) { c.StopLoss = 0 },
		"negative testsize": func(c *Config) { c.TestSize = -1 },
	}
	for name, mutate := range cases {
		cfg := base()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestValidateFillsDefaults(t *testing.T) {
	cfg := &Config{
		Lags:         []int{5},
		DatasetSize:  100,
		TestSize:     20,
		BatchSize:    10,
		Epochs:       2,
		HiddenSizes:  []int{8},
		LearningRate: 0.01,
		StopLoss:     0.1,
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if cfg.Seed != 42 || cfg.NumWorkers != 1 || cfg.LogEvery != 50 {
		t.Fatalf("defaults not filled: %+v", cfg)
	}
}
