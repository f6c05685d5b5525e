package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Config captures the runtime knobs for a benchmark run.
type Config struct {
	Lags         []int   `yaml:"lags"`
	DatasetSize  int     `yaml:"dataset_size"`
	TestSize     int     `yaml:"test_size"`
	BatchSize    int     `yaml:"batch_size"`
	Epochs       int     `yaml:"epochs"`
	HiddenSizes  []int   `yaml:"hidden_sizes"`
	LearningRate float64 `yaml:"learning_rate"`
	StopLoss     float64 `yaml:"stop_loss"`
	Seed         int64   `yaml:"seed"`
	NumWorkers   int     `yaml:"num_workers"`
	LogEvery     int     `yaml:"log_every"`
}

// Overrides captures CLI supplied values.
type Overrides struct {
	Epochs     int
	BatchSize  int
	NumWorkers int
	Seed       int64
	LogEvery   int
	StopLoss   float64
}

// Load reads and validates a Config from YAML.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyOverrides updates cfg using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.Epochs > 0 {
		c.Epochs = o.Epochs
	}
	if o.BatchSize > 0 {
		c.BatchSize = o.BatchSize
	}
	if o.NumWorkers > 0 {
		c.NumWorkers = o.NumWorkers
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
	if o.LogEvery > 0 {
		c.LogEvery = o.LogEvery
	}
	if o.StopLoss > 0 {
		c.StopLoss = o.StopLoss
	}
}

// Validate verifies the config is runnable and fills defaults.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if len(c.Lags) == 0 {
		return errors.New("at least one lag must be set")
	}
	for _, lag := range c.Lags {
		if lag <= 0 {
			return fmt.Errorf("lags must be > 0 (got %d)", lag)
		}
	}
	if c.TestSize <= 0 {
		return fmt.Errorf("test_size must be > 0 (got %d)", c.TestSize)
	}
	if c.DatasetSize <= c.TestSize {
		return fmt.Errorf("dataset_size must exceed test_size (got %d <= %d)", c.DatasetSize, c.TestSize)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0 (got %d)", c.BatchSize)
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be > 0 (got %d)", c.Epochs)
	}
	if len(c.HiddenSizes) == 0 {
		return errors.New("at least one hidden size must be set")
	}
	for _, h := range c.HiddenSizes {
		if h <= 0 {
			return fmt.Errorf("hidden_sizes must be > 0 (got %d)", h)
		}
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning_rate must be > 0 (got %g)", c.LearningRate)
	}
	if c.StopLoss <= 0 {
		return fmt.Errorf("stop_loss must be > 0 (got %g)", c.StopLoss)
	}
	if c.Seed == 0 {
		c.Seed = 42
	}
	if c.NumWorkers <= 0 {
		c.NumWorkers = 1
	}
	if c.LogEvery <= 0 {
		c.LogEvery = 50
	}
	return nil
}

func parse(r io.Reader) (*Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	cfg := &Config{}
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
