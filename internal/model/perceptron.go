package model

import (
	"log"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"

	"gatelearn/internal/activation"
	"gatelearn/internal/fault"
)

const (
	defaultInitScale          = 0.1
	defaultPerceptronLogEvery = 10
)

// UpdateMode selects when the perceptron computes the errors it learns from.
type UpdateMode int

const (
	// Online predicts each sample with the weights left by the previous one.
	Online UpdateMode = iota
	// Batch predicts every sample first and then applies the per-sample
	// corrections with those errors.
	Batch
)

func (m UpdateMode) String() string {
	if m == Batch {
		return "batch"
	}
	return "online"
}

// ParseUpdateMode maps "online" or "batch" (or "" for online) to a mode.
func ParseUpdateMode(s string) (UpdateMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "online":
		return Online, nil
	case "batch":
		return Batch, nil
	}
	return Online, fault.Configf("unknown perceptron update mode %q", s)
}

// PerceptronConfig configures a single-layer perceptron.
type PerceptronConfig struct {
	InputSize    int
	LearningRate float64
	// Seed feeds the instance generator; zero seeds from the clock.
	Seed     int64
	StepRule activation.StepRule
	Update   UpdateMode
	// InitScale is the standard deviation of the initial weights and bias.
	// Defaults to 0.1.
	InitScale float64
	Verbose   bool
	LogEvery  int
	Logger    *log.Logger
}

// Perceptron is Rosenblatt's single-layer linear threshold classifier.
type Perceptron struct {
	inputs    int
	lr        float64
	step      activation.Func
	mode      UpdateMode
	initScale float64
	verbose   bool
	logEvery  int
	logger    *log.Logger

	rng     *normalSource
	weights *mat.VecDense
	bias    float64
	history History
}

// NewPerceptron validates cfg and draws the initial weights and bias.
func NewPerceptron(cfg PerceptronConfig) (*Perceptron, error) {
	if cfg.InputSize < 1 {
		return nil, fault.Configf("input size must be >= 1 (got %d)", cfg.InputSize)
	}
	if cfg.LearningRate <= 0 || math.IsNaN(cfg.LearningRate) {
		return nil, fault.Configf("learning rate must be > 0 (got %g)", cfg.LearningRate)
	}
	if cfg.InitScale <= 0 {
		cfg.InitScale = defaultInitScale
	}
	if cfg.LogEvery <= 0 {
		cfg.LogEvery = defaultPerceptronLogEvery
	}
	p := &Perceptron{
		inputs:    cfg.InputSize,
		lr:        cfg.LearningRate,
		step:      activation.StepFunc(cfg.StepRule),
		mode:      cfg.Update,
		initScale: cfg.InitScale,
		verbose:   cfg.Verbose,
		logEvery:  cfg.LogEvery,
		logger:    loggerOrDefault(cfg.Logger),
		rng:       newRand(cfg.Seed),
	}
	p.initParameters()
	return p, nil
}

func (p *Perceptron) initParameters() {
	w := make([]float64, p.inputs)
	for i := range w {
		w[i] = p.rng.NormFloat64() * p.initScale
	}
	p.weights = mat.NewVecDense(p.inputs, w)
	p.bias = p.rng.NormFloat64() * p.initScale
}

// Weights returns a copy of the weight vector.
func (p *Perceptron) Weights() []float64 {
	return cloneFloats(p.weights.RawVector().Data)
}

// Bias returns the bias term.
func (p *Perceptron) Bias() float64 { return p.bias }

// DecisionBoundary returns the hyperplane w·x + b = 0 the perceptron
// separates on.
func (p *Perceptron) DecisionBoundary() (w []float64, b float64) {
	return p.Weights(), p.bias
}

// History returns a copy of the per-epoch record.
func (p *Perceptron) History() History { return p.history.Clone() }

// Reset redraws weights and bias from the instance generator and clears the
// history.
func (p *Perceptron) Reset() {
	p.initParameters()
	p.history.reset()
}

func (p *Perceptron) predictRow(x mat.Vector) float64 {
	return p.step.Apply(mat.Dot(x, p.weights) + p.bias)
}

// Predict returns the 0/1 class of every row of X.
func (p *Perceptron) Predict(X mat.Matrix) (*mat.VecDense, error) {
	rows, err := checkInputs(X, nil, p.inputs)
	if err != nil {
		return nil, err
	}
	return p.predict(mat.DenseCopyOf(X), rows), nil
}

func (p *Perceptron) predict(X *mat.Dense, rows int) *mat.VecDense {
	out := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		out.SetVec(i, p.predictRow(X.RowView(i)))
	}
	return out
}

// Score returns the fraction of rows predicted correctly.
func (p *Perceptron) Score(X mat.Matrix, y mat.Vector) (float64, error) {
	rows, err := checkInputs(X, y, p.inputs)
	if err != nil {
		return 0, err
	}
	return accuracy(p.predict(mat.DenseCopyOf(X), rows), y), nil
}

// TrainStep makes one pass over the samples in order and returns the mean
// absolute error of that pass.
func (p *Perceptron) TrainStep(X mat.Matrix, y mat.Vector) (float64, error) {
	rows, err := checkInputs(X, y, p.inputs)
	if err != nil {
		return 0, err
	}
	return p.trainStep(mat.DenseCopyOf(X), y, rows), nil
}

func (p *Perceptron) trainStep(X *mat.Dense, y mat.Vector, rows int) float64 {
	var stale *mat.VecDense
	if p.mode == Batch {
		stale = p.predict(X, rows)
	}
	total := 0.0
	for i := 0; i < rows; i++ {
		x := X.RowView(i)
		var pred float64
		if stale != nil {
			pred = stale.AtVec(i)
		} else {
			pred = p.predictRow(x)
		}
		e := y.AtVec(i) - pred
		total += math.Abs(e)
		if e != 0 {
			p.weights.AddScaledVec(p.weights, p.lr*e, x)
			p.bias += p.lr * e
		}
	}
	return total / float64(rows)
}

// Fit runs up to epochs training passes, recording loss, accuracy and a
// snapshot of the parameters after each one. It stops after the first pass
// without a misclassification. Calling Fit again continues training.
func (p *Perceptron) Fit(X mat.Matrix, y mat.Vector, epochs int) error {
	if epochs < 0 {
		return fault.Configf("epochs must be >= 0 (got %d)", epochs)
	}
	rows, err := checkInputs(X, y, p.inputs)
	if err != nil {
		return err
	}
	x := mat.DenseCopyOf(X)
	for epoch := 1; epoch <= epochs; epoch++ {
		loss := p.trainStep(x, y, rows)
		acc := accuracy(p.predict(x, rows), y)
		p.history.record(loss, acc)
		p.history.recordParams(p.weights.RawVector().Data, p.bias)

		if p.verbose && (epoch%p.logEvery == 0 || epoch == epochs) {
			p.logger.Printf("epoch=%d errors=%.4f accuracy=%.2f", epoch, loss, acc)
		}
		if loss == 0 {
			if p.verbose {
				p.logger.Printf("converged epoch=%d", epoch)
			}
			break
		}
	}
	return nil
}
