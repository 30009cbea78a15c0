package model

import (
	"bytes"
	"log"
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"

	"gatelearn/internal/activation"
	"gatelearn/internal/fault"
)

func newTestMLP(t *testing.T, sizes []int, act string, seed int64) *MLP {
	t.Helper()
	m, err := NewMLP(MLPConfig{LayerSizes: sizes, Activation: act, LearningRate: 0.5, Seed: seed})
	require.NoError(t, err)
	return m
}

func flatten(layers []Layer) []float64 {
	var out []float64
	for _, l := range layers {
		r, c := l.Weights.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				out = append(out, l.Weights.At(i, j))
			}
		}
		for j := 0; j < l.Bias.Len(); j++ {
			out = append(out, l.Bias.AtVec(j))
		}
	}
	return out
}

func (m *MLP) setFlat(params []float64) {
	k := 0
	for _, l := range m.layers {
		r, c := l.Weights.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				l.Weights.Set(i, j, params[k])
				k++
			}
		}
		for j := 0; j < l.Bias.Len(); j++ {
			l.Bias.SetVec(j, params[k])
			k++
		}
	}
}

func TestMLPLearnsXOR(t *testing.T) {
	ds := mustGate(t, "XOR")
	for _, lr := range []float64{0.5, 0.6, 0.7, 0.75, 0.8, 0.9, 1.0} {
		m, err := NewMLP(MLPConfig{LayerSizes: []int{2, 2, 1}, LearningRate: lr, Seed: 42})
		require.NoError(t, err)
		require.NoError(t, m.Fit(ds.X, ds.Y, 2000))

		acc, err := m.Score(ds.X, ds.Y)
		require.NoError(t, err)
		assert.Equal(t, 1.0, acc, "lr=%g", lr)

		pred, err := m.Predict(ds.X)
		require.NoError(t, err)
		assert.Equal(t, []float64{0, 1, 1, 0}, pred.RawVector().Data, "lr=%g", lr)
	}
}

func TestMLPHiddenActivations(t *testing.T) {
	ds := mustGate(t, "XOR")
	for _, act := range []string{activation.Tanh, activation.ReLU} {
		m := newTestMLP(t, []int{2, 8, 1}, act, 7)
		require.NoError(t, m.Fit(ds.X, ds.Y, 2000))

		h := m.History()
		assert.Less(t, h.Len(), 2000, "%s should stop early", act)
		loss, acc := h.Last()
		assert.Equal(t, 1.0, acc, act)
		assert.Less(t, loss, 0.01, act)
		assert.Equal(t, act, m.Activation())
	}
}

func TestMLPLearnsEveryGateAfterReset(t *testing.T) {
	m := newTestMLP(t, []int{2, 4, 1}, activation.Sigmoid, 42)
	for _, gate := range []string{"AND", "OR", "XOR", "NAND", "NOR", "XNOR"} {
		ds := mustGate(t, gate)
		m.Reset()
		require.NoError(t, m.Fit(ds.X, ds.Y, 2000))
		acc, err := m.Score(ds.X, ds.Y)
		require.NoError(t, err)
		assert.Equal(t, 1.0, acc, gate)
	}
}

func TestMLPLossDecreasesUnderBackprop(t *testing.T) {
	ds := mustGate(t, "XOR")
	m := newTestMLP(t, []int{2, 2, 1}, activation.Sigmoid, 42)
	require.NoError(t, m.Fit(ds.X, ds.Y, 300))

	h := m.History()
	require.Equal(t, 300, h.Len())
	for i := 1; i < h.Len(); i++ {
		assert.Less(t, h.Loss[i], h.Loss[i-1], "epoch %d", i+1)
	}
}

func TestMLPHistoryLengths(t *testing.T) {
	ds := mustGate(t, "AND")
	m := newTestMLP(t, []int{2, 4, 1}, activation.Sigmoid, 42)
	require.NoError(t, m.Fit(ds.X, ds.Y, 2000))

	h := m.History()
	assert.Len(t, h.Accuracy, h.Len())
	assert.Less(t, h.Len(), 2000)
	assert.Nil(t, h.Weights)
	_, ok := h.Series("bias")
	assert.False(t, ok)
	series, ok := h.Series("loss")
	require.True(t, ok)
	assert.Equal(t, h.Loss, series)

	loss, acc := h.Last()
	assert.Equal(t, 1.0, acc)
	assert.Less(t, loss, 0.01)
	for i := 0; i < h.Len()-1; i++ {
		assert.False(t, h.Accuracy[i] == 1 && h.Loss[i] < 0.01, "epoch %d met the stop criterion", i+1)
	}
}

func TestMLPFitResumesAndAppends(t *testing.T) {
	ds := mustGate(t, "XOR")
	m := newTestMLP(t, []int{2, 2, 1}, activation.Sigmoid, 7)
	require.NoError(t, m.Fit(ds.X, ds.Y, 10))
	require.NoError(t, m.Fit(ds.X, ds.Y, 15))
	assert.Equal(t, 25, m.History().Len())

	require.NoError(t, m.Fit(ds.X, ds.Y, 0))
	assert.Equal(t, 25, m.History().Len())
}

func TestMLPInitialisation(t *testing.T) {
	m := newTestMLP(t, []int{2, 5, 3, 1}, activation.ReLU, 3)
	assert.Equal(t, []int{2, 5, 3, 1}, m.LayerSizes())

	params := m.Parameters()
	require.Len(t, params, 3)
	for i, l := range params {
		r, c := l.Weights.Dims()
		assert.Equal(t, m.sizes[i], r)
		assert.Equal(t, m.sizes[i+1], c)
		assert.Equal(t, c, l.Bias.Len())
		assert.Equal(t, 0.0, mat.Norm(l.Bias, 2))
		assert.NotEqual(t, 0.0, mat.Norm(l.Weights, 2))
	}

	params[0].Weights.Set(0, 0, 42)
	assert.NotEqual(t, 42.0, m.Parameters()[0].Weights.At(0, 0))
}

func TestMLPDeterministicPerSeed(t *testing.T) {
	ds := mustGate(t, "XOR")
	a := newTestMLP(t, []int{2, 3, 1}, activation.Sigmoid, 99)
	b := newTestMLP(t, []int{2, 3, 1}, activation.Sigmoid, 99)
	assert.Equal(t, flatten(a.Parameters()), flatten(b.Parameters()))

	require.NoError(t, a.Fit(ds.X, ds.Y, 50))
	require.NoError(t, b.Fit(ds.X, ds.Y, 50))
	assert.Equal(t, a.History(), b.History())

	a.Reset()
	b.Reset()
	assert.Equal(t, flatten(a.Parameters()), flatten(b.Parameters()))
}

func TestMLPReset(t *testing.T) {
	ds := mustGate(t, "XOR")
	m := newTestMLP(t, []int{2, 2, 1}, activation.Sigmoid, 5)
	initial := flatten(m.Parameters())
	require.NoError(t, m.Fit(ds.X, ds.Y, 20))

	m.Reset()
	assert.Equal(t, 0, m.History().Len())
	assert.NotEqual(t, initial, flatten(m.Parameters()))
	require.NoError(t, m.Fit(ds.X, ds.Y, 5))
	assert.Equal(t, 5, m.History().Len())
}

func TestMLPProbabilities(t *testing.T) {
	ds := mustGate(t, "XOR")
	m := newTestMLP(t, []int{2, 3, 1}, activation.Tanh, 8)
	proba, err := m.PredictProba(ds.X)
	require.NoError(t, err)
	pred, err := m.Predict(ds.X)
	require.NoError(t, err)
	for i := 0; i < proba.Len(); i++ {
		p := proba.AtVec(i)
		assert.True(t, p > 0 && p < 1)
		want := 0.0
		if p > 0.5 {
			want = 1
		}
		assert.Equal(t, want, pred.AtVec(i))
	}
}

func TestMLPComputeLossIsFiniteAtSaturation(t *testing.T) {
	ds := mustGate(t, "AND")
	m := newTestMLP(t, []int{2, 1}, activation.Sigmoid, 1)
	m.layers[0].Weights.Set(0, 0, -1e4)
	m.layers[0].Weights.Set(1, 0, -1e4)
	m.layers[0].Bias.SetVec(0, 1e4)

	// Rows 00 and 11 are confidently wrong; epsilon keeps their terms at
	// -log(1e-7).
	loss, err := m.ComputeLoss(ds.X, ds.Y)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(loss) || math.IsInf(loss, 0))
	assert.InDelta(t, (2*-math.Log(1e-7)+2*math.Log(2))/4, loss, 1e-6)
}

func TestBackwardMatchesNumericalGradient(t *testing.T) {
	ds := mustGate(t, "XOR")
	for _, act := range []string{activation.Sigmoid, activation.Tanh} {
		m := newTestMLP(t, []int{2, 3, 2, 1}, act, 11)
		pass, err := m.Forward(ds.X)
		require.NoError(t, err)
		grads, err := m.Gradients(ds.X, ds.Y, pass)
		require.NoError(t, err)

		origin := flatten(m.Parameters())
		numeric := fd.Gradient(nil, func(x []float64) float64 {
			m.setFlat(x)
			loss, err := m.ComputeLoss(ds.X, ds.Y)
			require.NoError(t, err)
			return loss
		}, origin, &fd.Settings{Formula: fd.Central, Step: 1e-6})
		m.setFlat(origin)

		assert.InDeltaSlice(t, numeric, flatten(grads), 1e-6, act)
	}
}

func TestBackwardAppliesOneDescentStep(t *testing.T) {
	ds := mustGate(t, "XOR")
	m := newTestMLP(t, []int{2, 3, 1}, activation.Sigmoid, 4)
	before := flatten(m.Parameters())
	pass, err := m.Forward(ds.X)
	require.NoError(t, err)
	grads, err := m.Gradients(ds.X, ds.Y, pass)
	require.NoError(t, err)
	require.NoError(t, m.Backward(ds.X, ds.Y, pass))

	after := flatten(m.Parameters())
	g := flatten(grads)
	for i := range before {
		assert.InDelta(t, before[i]-0.5*g[i], after[i], 1e-12)
	}
}

func TestRandomSearchNeverIncreasesLoss(t *testing.T) {
	ds := mustGate(t, "XOR")
	m, err := NewMLP(MLPConfig{
		LayerSizes: []int{2, 2, 1}, LearningRate: 0.5, Seed: 1, Rule: RandomSearch(0),
	})
	require.NoError(t, err)
	start, err := m.ComputeLoss(ds.X, ds.Y)
	require.NoError(t, err)
	require.NoError(t, m.Fit(ds.X, ds.Y, 1000))

	h := m.History()
	require.Equal(t, 1000, h.Len())
	assert.LessOrEqual(t, h.Loss[0], start)
	for i := 1; i < h.Len(); i++ {
		assert.LessOrEqual(t, h.Loss[i], h.Loss[i-1], "epoch %d", i+1)
	}
	assert.Less(t, h.Loss[h.Len()-1], start)
}

func TestRandomSearchDoesNotSolveXOR(t *testing.T) {
	ds := mustGate(t, "XOR")
	solved := 0
	for _, seed := range []int64{42, 43, 44, 45, 46} {
		m, err := NewMLP(MLPConfig{
			LayerSizes: []int{2, 2, 1}, LearningRate: 0.5, Seed: seed, Rule: RandomSearch(DefaultSearchScale),
		})
		require.NoError(t, err)
		require.NoError(t, m.Fit(ds.X, ds.Y, 1000))
		acc, err := m.Score(ds.X, ds.Y)
		require.NoError(t, err)
		if seed == 42 {
			assert.Less(t, acc, 1.0)
		}
		if acc == 1 {
			solved++
		}
	}
	assert.Less(t, solved, 5)
}

func TestRandomSearchRejectRestoresExactly(t *testing.T) {
	m := newTestMLP(t, []int{2, 2, 1}, activation.Sigmoid, 2)
	before := flatten(m.Parameters())
	saved := m.perturb(0.5)
	assert.NotEqual(t, before, flatten(m.Parameters()))
	m.restore(saved)
	assert.Equal(t, before, flatten(m.Parameters()))
}

func TestParseUpdateRule(t *testing.T) {
	rule, err := ParseUpdateRule("backprop", 0)
	require.NoError(t, err)
	assert.Equal(t, "backprop", rule.String())
	rule, err = ParseUpdateRule("random", 0)
	require.NoError(t, err)
	assert.Equal(t, "random(scale=0.01)", rule.String())
	_, err = ParseUpdateRule("annealing", 0)
	assert.True(t, errors.Is(err, fault.ErrConfiguration))
}

func TestMLPConfigErrors(t *testing.T) {
	cases := []struct {
		cfg  MLPConfig
		want error
	}{
		{MLPConfig{LayerSizes: []int{2}, LearningRate: 0.1}, ErrLayerSizes},
		{MLPConfig{LayerSizes: nil, LearningRate: 0.1}, ErrLayerSizes},
		{MLPConfig{LayerSizes: []int{2, 0, 1}, LearningRate: 0.1}, ErrLayerSizes},
		{MLPConfig{LayerSizes: []int{2, 2, 2}, LearningRate: 0.1}, ErrLayerSizes},
		{MLPConfig{LayerSizes: []int{2, 2, 1}, LearningRate: 0}, fault.ErrConfiguration},
		{MLPConfig{LayerSizes: []int{2, 2, 1}, LearningRate: 0.1, Activation: "softmax"}, activation.ErrInvalidActivation},
	}
	for _, tc := range cases {
		_, err := NewMLP(tc.cfg)
		require.Error(t, err, "%+v", tc.cfg)
		assert.True(t, errors.Is(err, tc.want), "%+v: %v", tc.cfg, err)
		assert.True(t, errors.Is(err, fault.ErrConfiguration))
	}
}

func TestMLPShapeErrors(t *testing.T) {
	m := newTestMLP(t, []int{2, 2, 1}, activation.Sigmoid, 1)
	wide := mat.NewDense(4, 3, nil)
	X := mat.NewDense(4, 2, nil)

	_, err := m.Forward(wide)
	assert.True(t, errors.Is(err, fault.ErrShape))
	_, err = m.PredictProba(wide)
	assert.True(t, errors.Is(err, fault.ErrShape))
	_, err = m.Score(X, mat.NewVecDense(3, nil))
	assert.True(t, errors.Is(err, fault.ErrShape))
	_, err = m.ComputeLoss(X, mat.NewVecDense(5, nil))
	assert.True(t, errors.Is(err, fault.ErrShape))
	assert.True(t, errors.Is(m.Fit(wide, mat.NewVecDense(4, nil), 10), fault.ErrShape))

	pass, err := m.Forward(mat.NewDense(2, 2, nil))
	require.NoError(t, err)
	assert.True(t, errors.Is(m.Backward(X, mat.NewVecDense(4, nil), pass), fault.ErrShape))
	assert.Equal(t, 0, m.History().Len())
}

func TestBackwardRejectsMalformedPreActivations(t *testing.T) {
	m := newTestMLP(t, []int{2, 2, 1}, activation.Sigmoid, 1)
	ds := mustGate(t, "XOR")
	before := flatten(m.Parameters())

	pass, err := m.Forward(ds.X)
	require.NoError(t, err)
	pass.PreActivations[0] = mat.NewDense(4, 3, nil)
	assert.True(t, errors.Is(m.Backward(ds.X, ds.Y, pass), fault.ErrShape))

	pass.PreActivations[0] = nil
	_, err = m.Gradients(ds.X, ds.Y, pass)
	assert.True(t, errors.Is(err, fault.ErrShape))
	assert.Equal(t, before, flatten(m.Parameters()))
}

func TestMLPVerboseLogging(t *testing.T) {
	var buf bytes.Buffer
	ds := mustGate(t, "XOR")
	m, err := NewMLP(MLPConfig{
		LayerSizes: []int{2, 2, 1}, LearningRate: 0.5, Seed: 7,
		Verbose: true, LogEvery: 50, Logger: log.New(&buf, "", 0),
	})
	require.NoError(t, err)
	require.NoError(t, m.Fit(ds.X, ds.Y, 120))
	assert.Contains(t, buf.String(), "epoch=50 loss=")
	assert.Contains(t, buf.String(), "epoch=100 loss=")
	assert.Contains(t, buf.String(), "epoch=120 loss=")
}
