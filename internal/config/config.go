package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"gatelearn/internal/activation"
	"gatelearn/internal/dataset"
	"gatelearn/internal/model"
	"gatelearn/internal/trainer"
)

// Config captures the runtime knobs for an experiment run.
type Config struct {
	Experiment    string         `yaml:"experiment"`
	Gate          string         `yaml:"gate"`
	Runs          int            `yaml:"runs"`
	Seed          int64          `yaml:"seed"`
	Workers       int            `yaml:"workers"`
	LogEvery      int            `yaml:"log_every"`
	Verbose       bool           `yaml:"verbose"`
	Output        string         `yaml:"output"`
	DataDir       string         `yaml:"data_dir"`
	NoisyXOR      NoisyXOR       `yaml:"noisy_xor"`
	Perceptron    Perceptron     `yaml:"perceptron"`
	MLP           MLP            `yaml:"mlp"`
	RandomSearch  RandomSearch   `yaml:"random_search"`
	Architectures []Architecture `yaml:"architectures"`
}

// NoisyXOR adds N sampled XOR points with gaussian jitter to the gates
// experiment. N of 0 leaves it out.
type NoisyXOR struct {
	N     int     `yaml:"n"`
	Noise float64 `yaml:"noise"`
}

// Perceptron configures the single-layer baseline.
type Perceptron struct {
	LearningRate float64 `yaml:"learning_rate"`
	Epochs       int     `yaml:"epochs"`
	StepRule     string  `yaml:"step_rule"`
	Update       string  `yaml:"update"`
}

// MLP configures the multi-layer network.
type MLP struct {
	LayerSizes    []int   `yaml:"layer_sizes"`
	Activation    string  `yaml:"activation"`
	LearningRate  float64 `yaml:"learning_rate"`
	Epochs        int     `yaml:"epochs"`
	LossThreshold float64 `yaml:"loss_threshold"`
}

// RandomSearch configures the gradient-free baseline.
type RandomSearch struct {
	Scale  float64 `yaml:"scale"`
	Epochs int     `yaml:"epochs"`
}

// Architecture is one entry of the hidden-width sweep.
type Architecture struct {
	Name       string `yaml:"name"`
	LayerSizes []int  `yaml:"layer_sizes"`
}

// Overrides captures CLI supplied values.
type Overrides struct {
	Experiment string
	Gate       string
	Runs       int
	Seed       int64
	Workers    int
	LogEvery   int
	Output     string
	DataDir    string
	Verbose    bool
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Experiment: trainer.ExperimentCompare,
		Gate:       "XOR",
		Runs:       10,
		Seed:       42,
		LogEvery:   100,
		Perceptron: Perceptron{LearningRate: 0.1, Epochs: 500, StepRule: "inclusive", Update: "online"},
		MLP: MLP{
			LayerSizes:    []int{2, 2, 1},
			Activation:    activation.Sigmoid,
			LearningRate:  0.5,
			Epochs:        2000,
			LossThreshold: 0.01,
		},
		RandomSearch: RandomSearch{Scale: model.DefaultSearchScale, Epochs: 1000},
	}
}

// Load reads and validates a Config from YAML. Keys missing from the file
// keep their Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "open config")
	}

	cfg, err := parseYAML(data)
	if err != nil {
		return nil, errors.Wrap(err, "parse config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseYAML(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return cfg, nil
		}
		return nil, err
	}
	return cfg, nil
}

// ApplyOverrides updates cfg using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.Experiment != "" {
		c.Experiment = o.Experiment
	}
	if o.Gate != "" {
		c.Gate = o.Gate
	}
	if o.Runs > 0 {
		c.Runs = o.Runs
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
	if o.Workers > 0 {
		c.Workers = o.Workers
	}
	if o.LogEvery > 0 {
		c.LogEvery = o.LogEvery
	}
	if o.Output != "" {
		c.Output = o.Output
	}
	if o.DataDir != "" {
		c.DataDir = o.DataDir
	}
	if o.Verbose {
		c.Verbose = true
	}
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if !contains(trainer.Experiments(), c.Experiment) {
		return errors.Errorf("experiment must be one of %s (got %q)", strings.Join(trainer.Experiments(), ", "), c.Experiment)
	}
	if _, err := dataset.Gate(c.Gate); err != nil {
		return errors.Wrap(err, "gate")
	}
	if c.Runs <= 0 {
		return errors.Errorf("runs must be > 0 (got %d)", c.Runs)
	}
	if err := trainer.CheckSeeds(c.Seed, c.Runs); err != nil {
		return errors.Wrap(err, "seed")
	}
	if c.Workers < 0 {
		return errors.Errorf("workers must be >= 0 (got %d)", c.Workers)
	}
	if c.NoisyXOR.N < 0 {
		return errors.Errorf("noisy_xor.n must be >= 0 (got %d)", c.NoisyXOR.N)
	}
	if c.NoisyXOR.Noise < 0 {
		return errors.Errorf("noisy_xor.noise must be >= 0 (got %g)", c.NoisyXOR.Noise)
	}
	if c.Perceptron.LearningRate <= 0 {
		return errors.Errorf("perceptron.learning_rate must be > 0 (got %g)", c.Perceptron.LearningRate)
	}
	if c.Perceptron.Epochs <= 0 {
		return errors.Errorf("perceptron.epochs must be > 0 (got %d)", c.Perceptron.Epochs)
	}
	if _, err := activation.ParseStepRule(c.Perceptron.StepRule); err != nil {
		return errors.Wrap(err, "perceptron.step_rule")
	}
	if _, err := model.ParseUpdateMode(c.Perceptron.Update); err != nil {
		return errors.Wrap(err, "perceptron.update")
	}
	if err := validateSizes("mlp.layer_sizes", c.MLP.LayerSizes); err != nil {
		return err
	}
	if _, err := activation.Lookup(c.MLP.Activation); err != nil {
		return errors.Wrap(err, "mlp.activation")
	}
	if c.MLP.LearningRate <= 0 {
		return errors.Errorf("mlp.learning_rate must be > 0 (got %g)", c.MLP.LearningRate)
	}
	if c.MLP.Epochs <= 0 {
		return errors.Errorf("mlp.epochs must be > 0 (got %d)", c.MLP.Epochs)
	}
	if c.MLP.LossThreshold < 0 {
		return errors.Errorf("mlp.loss_threshold must be >= 0 (got %g)", c.MLP.LossThreshold)
	}
	if c.RandomSearch.Scale < 0 {
		return errors.Errorf("random_search.scale must be >= 0 (got %g)", c.RandomSearch.Scale)
	}
	if c.RandomSearch.Epochs <= 0 {
		return errors.Errorf("random_search.epochs must be > 0 (got %d)", c.RandomSearch.Epochs)
	}
	for i, a := range c.Architectures {
		if err := validateSizes(fmt.Sprintf("architectures[%d].layer_sizes", i), a.LayerSizes); err != nil {
			return err
		}
	}
	if c.LogEvery <= 0 {
		c.LogEvery = 100
	}
	return nil
}

func validateSizes(key string, sizes []int) error {
	if len(sizes) < 2 {
		return errors.Errorf("%s needs at least 2 entries (got %v)", key, sizes)
	}
	for _, n := range sizes {
		if n < 1 {
			return errors.Errorf("%s entries must be > 0 (got %v)", key, sizes)
		}
	}
	if sizes[len(sizes)-1] != 1 {
		return errors.Errorf("%s must end in 1 (got %v)", key, sizes)
	}
	return nil
}

// RunConfig converts a validated Config into trainer settings.
func (c *Config) RunConfig() (trainer.RunConfig, error) {
	rule, err := activation.ParseStepRule(c.Perceptron.StepRule)
	if err != nil {
		return trainer.RunConfig{}, err
	}
	mode, err := model.ParseUpdateMode(c.Perceptron.Update)
	if err != nil {
		return trainer.RunConfig{}, err
	}
	archs := make([]trainer.Architecture, 0, len(c.Architectures))
	for _, a := range c.Architectures {
		archs = append(archs, trainer.Architecture{Name: a.Name, LayerSizes: a.LayerSizes})
	}
	return trainer.RunConfig{
		Experiment: c.Experiment,
		Gate:       c.Gate,
		Runs:       c.Runs,
		Seed:       c.Seed,
		Workers:    c.Workers,
		LogEvery:   c.LogEvery,
		Verbose:    c.Verbose,
		DataDir:    c.DataDir,
		NoisyXOR:   trainer.NoisySettings{N: c.NoisyXOR.N, Noise: c.NoisyXOR.Noise},
		Perceptron: trainer.PerceptronSettings{
			LearningRate: c.Perceptron.LearningRate,
			Epochs:       c.Perceptron.Epochs,
			StepRule:     rule,
			Update:       mode,
		},
		MLP: trainer.MLPSettings{
			LayerSizes:    c.MLP.LayerSizes,
			Activation:    c.MLP.Activation,
			LearningRate:  c.MLP.LearningRate,
			Epochs:        c.MLP.Epochs,
			LossThreshold: c.MLP.LossThreshold,
		},
		Search: trainer.SearchSettings{
			Scale:  c.RandomSearch.Scale,
			Epochs: c.RandomSearch.Epochs,
		},
		Architectures: archs,
	}, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
