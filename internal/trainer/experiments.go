package trainer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"gatelearn/internal/activation"
	"gatelearn/internal/dataset"
	"gatelearn/internal/model"
)

// Experiment names accepted by Run.
const (
	ExperimentCompare = "compare"
	ExperimentHidden  = "hidden"
	ExperimentGates   = "gates"
	ExperimentSearch  = "search"
)

// Experiments lists the supported experiment names.
func Experiments() []string {
	return []string{ExperimentCompare, ExperimentHidden, ExperimentGates, ExperimentSearch}
}

// Architecture names a layer size list for the hidden-width sweep.
type Architecture struct {
	Name       string
	LayerSizes []int
}

// DefaultArchitectures is the 2-1-1 through 2-16-1 sweep.
func DefaultArchitectures() []Architecture {
	out := make([]Architecture, 0, 6)
	for _, h := range []int{1, 2, 3, 4, 8, 16} {
		sizes := []int{2, h, 1}
		out = append(out, Architecture{Name: ArchName(sizes), LayerSizes: sizes})
	}
	return out
}

// ArchName renders layer sizes as "2-4-1".
func ArchName(sizes []int) string {
	parts := make([]string, len(sizes))
	for i, n := range sizes {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, "-")
}

// PerceptronSettings holds the perceptron knobs shared by every trial.
type PerceptronSettings struct {
	LearningRate float64
	Epochs       int
	StepRule     activation.StepRule
	Update       model.UpdateMode
}

// MLPSettings holds the multi-layer network knobs shared by every trial.
type MLPSettings struct {
	LayerSizes    []int
	Activation    string
	LearningRate  float64
	Epochs        int
	LossThreshold float64
}

// NoisySettings adds a sampled noisy XOR set to the gates experiment when N
// is positive.
type NoisySettings struct {
	N     int
	Noise float64
}

// SearchSettings holds the random-search knobs.
type SearchSettings struct {
	Scale  float64
	Epochs int
}

func (c RunConfig) perceptronSpec(ds dataset.Dataset) TrialSpec {
	p := c.Perceptron
	return TrialSpec{
		Name:   fmt.Sprintf("perceptron/%s", ds.Name),
		Model:  "perceptron",
		Data:   ds,
		Epochs: p.Epochs,
		Build: func(seed int64) (model.Classifier, error) {
			return model.NewPerceptron(model.PerceptronConfig{
				InputSize:    ds.Features(),
				LearningRate: p.LearningRate,
				Seed:         seed,
				StepRule:     p.StepRule,
				Update:       p.Update,
				Verbose:      c.Verbose,
				LogEvery:     c.LogEvery,
			})
		},
	}
}

func (c RunConfig) mlpSpec(ds dataset.Dataset, sizes []int, rule model.UpdateRule, epochs int) TrialSpec {
	if len(sizes) > 0 {
		sizes = append([]int{ds.Features()}, sizes[1:]...)
	}
	m := c.MLP
	name := "mlp " + ArchName(sizes)
	if rule.String() != model.Backpropagation().String() {
		name += " " + rule.String()
	}
	return TrialSpec{
		Name:   fmt.Sprintf("%s/%s", name, ds.Name),
		Model:  name,
		Data:   ds,
		Epochs: epochs,
		Build: func(seed int64) (model.Classifier, error) {
			return model.NewMLP(model.MLPConfig{
				LayerSizes:    sizes,
				Activation:    m.Activation,
				LearningRate:  m.LearningRate,
				Seed:          seed,
				Rule:          rule,
				LossThreshold: m.LossThreshold,
				Verbose:       c.Verbose,
				LogEvery:      c.LogEvery,
			})
		},
	}
}

// plan expands the configured experiment into trial groups.
func (c RunConfig) plan() ([]TrialSpec, error) {
	switch c.Experiment {
	case ExperimentCompare, "":
		ds, err := dataset.Gate(c.Gate)
		if err != nil {
			return nil, err
		}
		return []TrialSpec{
			c.perceptronSpec(ds),
			c.mlpSpec(ds, c.MLP.LayerSizes, model.Backpropagation(), c.MLP.Epochs),
		}, nil

	case ExperimentHidden:
		ds, err := dataset.Gate(c.Gate)
		if err != nil {
			return nil, err
		}
		archs := c.Architectures
		if len(archs) == 0 {
			archs = DefaultArchitectures()
		}
		specs := make([]TrialSpec, 0, len(archs))
		for _, a := range archs {
			spec := c.mlpSpec(ds, a.LayerSizes, model.Backpropagation(), c.MLP.Epochs)
			if a.Name != "" {
				spec.Name = fmt.Sprintf("%s/%s", a.Name, ds.Name)
			}
			specs = append(specs, spec)
		}
		return specs, nil

	case ExperimentGates:
		sets := make([]dataset.Dataset, 0, len(dataset.GateNames()))
		for _, name := range dataset.GateNames() {
			ds, err := dataset.Gate(name)
			if err != nil {
				return nil, err
			}
			sets = append(sets, ds)
		}
		if c.DataDir != "" {
			extra, err := dataset.LoadDir(c.DataDir)
			if err != nil {
				return nil, err
			}
			sets = append(sets, extra...)
		}
		if c.NoisyXOR.N > 0 {
			noisy, err := dataset.NoisyXOR(c.NoisyXOR.N, c.NoisyXOR.Noise, c.Seed)
			if err != nil {
				return nil, err
			}
			sets = append(sets, noisy)
		}
		specs := make([]TrialSpec, 0, 2*len(sets))
		for _, ds := range sets {
			specs = append(specs,
				c.perceptronSpec(ds),
				c.mlpSpec(ds, c.MLP.LayerSizes, model.Backpropagation(), c.MLP.Epochs),
			)
		}
		return specs, nil

	case ExperimentSearch:
		ds, err := dataset.Gate(c.Gate)
		if err != nil {
			return nil, err
		}
		return []TrialSpec{
			c.mlpSpec(ds, c.MLP.LayerSizes, model.Backpropagation(), c.Search.Epochs),
			c.mlpSpec(ds, c.MLP.LayerSizes, model.RandomSearch(c.Search.Scale), c.Search.Epochs),
		}, nil
	}
	return nil, errors.Errorf("trainer: unknown experiment %q", c.Experiment)
}
