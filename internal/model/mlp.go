package model

import (
	"log"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"gatelearn/internal/activation"
	"gatelearn/internal/fault"
)

// ErrLayerSizes is returned for layer size lists the network cannot be built from.
var ErrLayerSizes = errors.Wrap(fault.ErrConfiguration, "invalid layer sizes")

const (
	lossEpsilon          = 1e-7
	defaultLossThreshold = 0.01
	defaultMLPLogEvery   = 100
)

// MLPConfig configures a fully connected binary classifier.
type MLPConfig struct {
	// LayerSizes lists the width of every layer, input first. The last entry
	// must be 1.
	LayerSizes []int
	// Activation names the hidden-layer nonlinearity. Defaults to sigmoid.
	// The output layer is always sigmoid.
	Activation   string
	LearningRate float64
	// Seed feeds the instance generator; zero seeds from the clock.
	Seed int64
	// Rule defaults to Backpropagation.
	Rule UpdateRule
	// LossThreshold ends Fit once accuracy is perfect and the loss is below
	// it. Defaults to 0.01.
	LossThreshold float64
	Verbose       bool
	LogEvery      int
	Logger        *log.Logger
}

// Layer holds one weight matrix of shape (in, out) and its bias of width out.
type Layer struct {
	Weights *mat.Dense
	Bias    *mat.VecDense
}

func (l Layer) clone() Layer {
	return Layer{Weights: mat.DenseCopyOf(l.Weights), Bias: mat.VecDenseCopyOf(l.Bias)}
}

// Pass keeps the intermediate values of one forward pass. Activations[0] is
// the input; PreActivations[i] feeds Activations[i+1].
type Pass struct {
	Activations    []*mat.Dense
	PreActivations []*mat.Dense
}

// Output returns the network output column.
func (p *Pass) Output() *mat.Dense {
	return p.Activations[len(p.Activations)-1]
}

// MLP is a multi-layer perceptron trained on binary cross-entropy.
type MLP struct {
	sizes         []int
	hidden        activation.Func
	output        activation.Func
	lr            float64
	rule          UpdateRule
	lossThreshold float64
	verbose       bool
	logEvery      int
	logger        *log.Logger

	rng     *normalSource
	layers  []Layer
	history History
}

// NewMLP validates cfg and draws the initial parameters.
func NewMLP(cfg MLPConfig) (*MLP, error) {
	if len(cfg.LayerSizes) < 2 {
		return nil, errors.Wrapf(ErrLayerSizes, "need at least input and output sizes (got %v)", cfg.LayerSizes)
	}
	for i, n := range cfg.LayerSizes {
		if n < 1 {
			return nil, errors.Wrapf(ErrLayerSizes, "layer %d has width %d", i, n)
		}
	}
	if out := cfg.LayerSizes[len(cfg.LayerSizes)-1]; out != 1 {
		return nil, errors.Wrapf(ErrLayerSizes, "output width must be 1 (got %d)", out)
	}
	if cfg.LearningRate <= 0 || math.IsNaN(cfg.LearningRate) {
		return nil, fault.Configf("learning rate must be > 0 (got %g)", cfg.LearningRate)
	}
	if cfg.Activation == "" {
		cfg.Activation = activation.Sigmoid
	}
	hidden, err := activation.Lookup(cfg.Activation)
	if err != nil {
		return nil, err
	}
	output, err := activation.Lookup(activation.Sigmoid)
	if err != nil {
		return nil, err
	}
	if cfg.Rule == nil {
		cfg.Rule = Backpropagation()
	}
	if cfg.LossThreshold <= 0 {
		cfg.LossThreshold = defaultLossThreshold
	}
	if cfg.LogEvery <= 0 {
		cfg.LogEvery = defaultMLPLogEvery
	}
	sizes := make([]int, len(cfg.LayerSizes))
	copy(sizes, cfg.LayerSizes)

	m := &MLP{
		sizes:         sizes,
		hidden:        hidden,
		output:        output,
		lr:            cfg.LearningRate,
		rule:          cfg.Rule,
		lossThreshold: cfg.LossThreshold,
		verbose:       cfg.Verbose,
		logEvery:      cfg.LogEvery,
		logger:        loggerOrDefault(cfg.Logger),
		rng:           newRand(cfg.Seed),
	}
	m.initParameters()
	return m, nil
}

// initParameters draws He-scaled gaussian weights one unit at a time, all
// incoming weights of a unit together, and zeroes the biases.
func (m *MLP) initParameters() {
	m.layers = make([]Layer, len(m.sizes)-1)
	for i := range m.layers {
		in, out := m.sizes[i], m.sizes[i+1]
		std := math.Sqrt(2 / float64(in))
		w := make([]float64, in*out)
		for j := 0; j < out; j++ {
			for k := 0; k < in; k++ {
				w[k*out+j] = m.rng.NormFloat64() * std
			}
		}
		m.layers[i] = Layer{
			Weights: mat.NewDense(in, out, w),
			Bias:    mat.NewVecDense(out, nil),
		}
	}
}

// LayerSizes returns a copy of the layer widths.
func (m *MLP) LayerSizes() []int {
	out := make([]int, len(m.sizes))
	copy(out, m.sizes)
	return out
}

// Activation returns the hidden-layer activation name.
func (m *MLP) Activation() string { return m.hidden.Name }

// Parameters returns deep copies of every layer.
func (m *MLP) Parameters() []Layer {
	out := make([]Layer, len(m.layers))
	for i, l := range m.layers {
		out[i] = l.clone()
	}
	return out
}

// History returns a copy of the per-epoch record.
func (m *MLP) History() History { return m.history.Clone() }

// Reset redraws all parameters from the instance generator and clears the
// history.
func (m *MLP) Reset() {
	m.initParameters()
	m.history.reset()
}

// Forward runs X through the network.
func (m *MLP) Forward(X mat.Matrix) (*Pass, error) {
	if _, err := checkInputs(X, nil, m.sizes[0]); err != nil {
		return nil, err
	}
	return m.forward(X), nil
}

func (m *MLP) forward(X mat.Matrix) *Pass {
	n := len(m.layers)
	pass := &Pass{
		Activations:    make([]*mat.Dense, 0, n+1),
		PreActivations: make([]*mat.Dense, 0, n),
	}
	a := mat.DenseCopyOf(X)
	pass.Activations = append(pass.Activations, a)
	for i, l := range m.layers {
		z := new(mat.Dense)
		z.Mul(a, l.Weights)
		bias := l.Bias
		z.Apply(func(_, j int, v float64) float64 { return v + bias.AtVec(j) }, z)

		next := new(mat.Dense)
		if i == n-1 {
			m.output.ApplyTo(next, z)
		} else {
			m.hidden.ApplyTo(next, z)
		}
		pass.PreActivations = append(pass.PreActivations, z)
		pass.Activations = append(pass.Activations, next)
		a = next
	}
	return pass
}

// PredictProba returns the positive-class probability of every row.
func (m *MLP) PredictProba(X mat.Matrix) (*mat.VecDense, error) {
	pass, err := m.Forward(X)
	if err != nil {
		return nil, err
	}
	return mat.VecDenseCopyOf(pass.Output().ColView(0)), nil
}

// Predict thresholds the probabilities: p > 0.5 is class 1.
func (m *MLP) Predict(X mat.Matrix) (*mat.VecDense, error) {
	proba, err := m.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return threshold(proba), nil
}

// Score returns the fraction of rows predicted correctly.
func (m *MLP) Score(X mat.Matrix, y mat.Vector) (float64, error) {
	if _, err := checkInputs(X, y, m.sizes[0]); err != nil {
		return 0, err
	}
	pred, err := m.Predict(X)
	if err != nil {
		return 0, err
	}
	return accuracy(pred, y), nil
}

// ComputeLoss returns the mean binary cross-entropy of the current network.
func (m *MLP) ComputeLoss(X mat.Matrix, y mat.Vector) (float64, error) {
	if _, err := checkInputs(X, y, m.sizes[0]); err != nil {
		return 0, err
	}
	return crossEntropy(m.forward(X).Output(), y), nil
}

// Gradients returns the loss gradient of every layer for the given pass
// without touching the parameters.
func (m *MLP) Gradients(X mat.Matrix, y mat.Vector, pass *Pass) ([]Layer, error) {
	if err := m.checkPass(X, y, pass); err != nil {
		return nil, err
	}
	return m.gradients(pass, y), nil
}

// Backward computes every layer's gradient from pass and then applies one
// gradient-descent step to all layers.
func (m *MLP) Backward(X mat.Matrix, y mat.Vector, pass *Pass) error {
	grads, err := m.Gradients(X, y, pass)
	if err != nil {
		return err
	}
	m.applyGradients(grads)
	return nil
}

func (m *MLP) checkPass(X mat.Matrix, y mat.Vector, pass *Pass) error {
	rows, err := checkInputs(X, y, m.sizes[0])
	if err != nil {
		return err
	}
	if pass == nil || len(pass.Activations) != len(m.sizes) || len(pass.PreActivations) != len(m.layers) {
		return fault.Shapef("forward pass does not match a %d-layer network", len(m.sizes))
	}
	for i, a := range pass.Activations {
		if a == nil {
			return fault.Shapef("activation %d is missing", i)
		}
		r, c := a.Dims()
		if r != rows || c != m.sizes[i] {
			return fault.Shapef("activation %d is %dx%d, want %dx%d", i, r, c, rows, m.sizes[i])
		}
	}
	for i, z := range pass.PreActivations {
		if z == nil {
			return fault.Shapef("pre-activation %d is missing", i)
		}
		r, c := z.Dims()
		if r != rows || c != m.sizes[i+1] {
			return fault.Shapef("pre-activation %d is %dx%d, want %dx%d", i, r, c, rows, m.sizes[i+1])
		}
	}
	return nil
}

func (m *MLP) gradients(pass *Pass, y mat.Vector) []Layer {
	n := len(m.layers)
	grads := make([]Layer, n)
	rows, _ := pass.Output().Dims()
	scale := 1 / float64(rows)

	delta := new(mat.Dense)
	delta.Apply(func(i, _ int, v float64) float64 { return v - y.AtVec(i) }, pass.Output())

	for i := n - 1; i >= 0; i-- {
		dW := new(mat.Dense)
		dW.Mul(pass.Activations[i].T(), delta)
		dW.Scale(scale, dW)
		grads[i] = Layer{Weights: dW, Bias: columnMeans(delta)}

		if i == 0 {
			break
		}
		back := new(mat.Dense)
		back.Mul(delta, m.layers[i].Weights.T())
		deriv := new(mat.Dense)
		m.hidden.DerivativeTo(deriv, pass.PreActivations[i-1])
		back.MulElem(back, deriv)
		delta = back
	}
	return grads
}

func (m *MLP) applyGradients(grads []Layer) {
	for i, g := range grads {
		l := m.layers[i]
		step := new(mat.Dense)
		step.Scale(m.lr, g.Weights)
		l.Weights.Sub(l.Weights, step)
		l.Bias.AddScaledVec(l.Bias, -m.lr, g.Bias)
	}
}

// perturb adds gaussian noise to every weight and bias, layer by layer with
// weights before bias, and returns the parameters it replaced.
func (m *MLP) perturb(scale float64) []Layer {
	saved := m.Parameters()
	for _, l := range m.layers {
		l.Weights.Apply(func(_, _ int, v float64) float64 { return v + m.rng.NormFloat64()*scale }, l.Weights)
		bias := l.Bias.RawVector().Data
		for j := range bias {
			bias[j] += m.rng.NormFloat64() * scale
		}
	}
	return saved
}

func (m *MLP) restore(saved []Layer) {
	for i, l := range saved {
		m.layers[i].Weights.Copy(l.Weights)
		m.layers[i].Bias.CopyVec(l.Bias)
	}
}

// Fit trains for up to epochs epochs with the configured update rule. Each
// epoch applies one update and then records loss and accuracy. Training
// stops early once every sample is classified correctly and the loss is
// below the configured threshold. Calling Fit again continues from the
// current parameters and appends to the history.
func (m *MLP) Fit(X mat.Matrix, y mat.Vector, epochs int) error {
	if epochs < 0 {
		return fault.Configf("epochs must be >= 0 (got %d)", epochs)
	}
	rows, err := checkInputs(X, y, m.sizes[0])
	if err != nil {
		return err
	}
	x := mat.DenseCopyOf(X)
	t := mat.NewVecDense(rows, nil)
	t.CopyVec(y)

	for epoch := 1; epoch <= epochs; epoch++ {
		m.rule.step(m, x, t)

		out := m.forward(x).Output()
		loss := crossEntropy(out, t)
		acc := accuracy(threshold(mat.VecDenseCopyOf(out.ColView(0))), t)
		m.history.record(loss, acc)

		if m.verbose && (epoch%m.logEvery == 0 || epoch == epochs) {
			m.logger.Printf("epoch=%d loss=%.4f accuracy=%.2f", epoch, loss, acc)
		}
		if acc == 1 && loss < m.lossThreshold {
			if m.verbose {
				m.logger.Printf("converged epoch=%d loss=%.4f", epoch, loss)
			}
			break
		}
	}
	return nil
}

func (m *MLP) loss(X *mat.Dense, y *mat.VecDense) float64 {
	return crossEntropy(m.forward(X).Output(), y)
}

func crossEntropy(out mat.Matrix, y mat.Vector) float64 {
	n := y.Len()
	sum := 0.0
	for i := 0; i < n; i++ {
		p, t := out.At(i, 0), y.AtVec(i)
		sum += t*math.Log(p+lossEpsilon) + (1-t)*math.Log(1-p+lossEpsilon)
	}
	return -sum / float64(n)
}

func threshold(proba *mat.VecDense) *mat.VecDense {
	out := mat.NewVecDense(proba.Len(), nil)
	for i := 0; i < proba.Len(); i++ {
		if proba.AtVec(i) > 0.5 {
			out.SetVec(i, 1)
		}
	}
	return out
}

func columnMeans(d *mat.Dense) *mat.VecDense {
	rows, cols := d.Dims()
	out := mat.NewVecDense(cols, nil)
	for j := 0; j < cols; j++ {
		sum := 0.0
		for i := 0; i < rows; i++ {
			sum += d.At(i, j)
		}
		out.SetVec(j, sum/float64(rows))
	}
	return out
}
