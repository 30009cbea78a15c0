// Package activation provides the scalar nonlinearities used by the
// perceptron and the multi-layer network, together with their derivatives.
package activation

import (
	"math"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"gatelearn/internal/fault"
)

// Supported activation names.
const (
	Step    = "step"
	Sigmoid = "sigmoid"
	Tanh    = "tanh"
	ReLU    = "relu"
)

// ErrInvalidActivation is returned for names outside the supported set.
var ErrInvalidActivation = errors.Wrap(fault.ErrConfiguration, "invalid activation")

// sigmoidClip bounds the sigmoid input so exp never overflows.
const sigmoidClip = 500.0

// StepRule selects how the step function treats an input of exactly zero.
type StepRule int

const (
	// Inclusive fires for z >= 0.
	Inclusive StepRule = iota
	// Strict fires only for z > 0.
	Strict
)

func (r StepRule) String() string {
	if r == Strict {
		return "strict"
	}
	return "inclusive"
}

// ParseStepRule maps "inclusive"/"strict" (or "" for the default) to a rule.
func ParseStepRule(s string) (StepRule, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "inclusive", ">=":
		return Inclusive, nil
	case "strict", ">":
		return Strict, nil
	}
	return Inclusive, fault.Configf("unknown step rule %q", s)
}

// Func pairs an activation with its derivative. Derivative always takes the
// pre-activation z, never the activation output.
type Func struct {
	Name       string
	Apply      func(z float64) float64
	Derivative func(z float64) float64
}

// Lookup resolves a supported activation by name. The step function uses
// the Inclusive rule; use StepFunc for the strict variant.
func Lookup(name string) (Func, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case Step:
		return StepFunc(Inclusive), nil
	case Sigmoid:
		return Func{Name: Sigmoid, Apply: sigmoid, Derivative: sigmoidPrime}, nil
	case Tanh:
		return Func{Name: Tanh, Apply: math.Tanh, Derivative: tanhPrime}, nil
	case ReLU:
		return Func{Name: ReLU, Apply: relu, Derivative: reluPrime}, nil
	}
	return Func{}, errors.Wrapf(ErrInvalidActivation, "%q (want one of %s)", name, strings.Join(Names(), ", "))
}

// Names lists the supported activation names in sorted order.
func Names() []string {
	names := []string{Step, Sigmoid, Tanh, ReLU}
	sort.Strings(names)
	return names
}

// StepFunc returns the Heaviside step under the given zero rule. Its
// derivative is zero everywhere.
func StepFunc(rule StepRule) Func {
	apply := func(z float64) float64 {
		if z >= 0 {
			return 1
		}
		return 0
	}
	if rule == Strict {
		apply = func(z float64) float64 {
			if z > 0 {
				return 1
			}
			return 0
		}
	}
	return Func{Name: Step, Apply: apply, Derivative: func(float64) float64 { return 0 }}
}

// ApplyTo writes f(z) elementwise into dst.
func (f Func) ApplyTo(dst *mat.Dense, z mat.Matrix) {
	dst.Apply(func(_, _ int, v float64) float64 { return f.Apply(v) }, z)
}

// DerivativeTo writes f'(z) elementwise into dst.
func (f Func) DerivativeTo(dst *mat.Dense, z mat.Matrix) {
	dst.Apply(func(_, _ int, v float64) float64 { return f.Derivative(v) }, z)
}

func sigmoid(z float64) float64 {
	z = math.Max(-sigmoidClip, math.Min(sigmoidClip, z))
	return 1 / (1 + math.Exp(-z))
}

func sigmoidPrime(z float64) float64 {
	s := sigmoid(z)
	return s * (1 - s)
}

func tanhPrime(z float64) float64 {
	t := math.Tanh(z)
	return 1 - t*t
}

func relu(z float64) float64 {
	if z > 0 {
		return z
	}
	return 0
}

func reluPrime(z float64) float64 {
	if z > 0 {
		return 1
	}
	return 0
}
