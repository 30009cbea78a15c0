package model

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"gatelearn/internal/fault"
)

// DefaultSearchScale is the perturbation standard deviation used by
// RandomSearch when none is given.
const DefaultSearchScale = 0.01

// UpdateRule selects how the multi-layer network changes its parameters
// once per epoch. Construct one with Backpropagation or RandomSearch.
type UpdateRule interface {
	fmt.Stringer
	step(m *MLP, X *mat.Dense, y *mat.VecDense)
}

// Backpropagation applies full-batch gradient descent on the binary
// cross-entropy.
func Backpropagation() UpdateRule { return backprop{} }

// RandomSearch perturbs every weight and bias with gaussian noise of the
// given standard deviation and keeps the perturbation only when the loss
// strictly improves. A non-positive scale selects DefaultSearchScale.
func RandomSearch(scale float64) UpdateRule {
	if scale <= 0 {
		scale = DefaultSearchScale
	}
	return randomSearch{scale: scale}
}

// ParseUpdateRule maps "backprop" or "random" to an UpdateRule.
func ParseUpdateRule(name string, scale float64) (UpdateRule, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "backprop", "backpropagation":
		return Backpropagation(), nil
	case "random", "random_search":
		return RandomSearch(scale), nil
	}
	return nil, fault.Configf("unknown update rule %q", name)
}

type backprop struct{}

func (backprop) String() string { return "backprop" }

func (backprop) step(m *MLP, X *mat.Dense, y *mat.VecDense) {
	pass := m.forward(X)
	m.applyGradients(m.gradients(pass, y))
}

type randomSearch struct {
	scale float64
}

func (r randomSearch) String() string { return fmt.Sprintf("random(scale=%g)", r.scale) }

func (r randomSearch) step(m *MLP, X *mat.Dense, y *mat.VecDense) {
	current := m.loss(X, y)
	saved := m.perturb(r.scale)
	if m.loss(X, y) >= current {
		m.restore(saved)
	}
}
