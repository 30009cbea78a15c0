package dataset

import (
	"math/rand"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"gatelearn/internal/fault"
)

// ErrUnknownGate is returned for gate names outside GateNames.
var ErrUnknownGate = errors.Wrap(fault.ErrConfiguration, "unknown gate")

// Dataset is a binary classification set: one sample per row of X and a 0/1
// target per entry of Y.
type Dataset struct {
	Name string
	X    *mat.Dense
	Y    *mat.VecDense
}

// Len returns the number of samples.
func (d Dataset) Len() int {
	if d.X == nil {
		return 0
	}
	r, _ := d.X.Dims()
	return r
}

// Features returns the number of input columns.
func (d Dataset) Features() int {
	if d.X == nil {
		return 0
	}
	_, c := d.X.Dims()
	return c
}

// Labels returns a copy of the targets.
func (d Dataset) Labels() []float64 {
	out := make([]float64, d.Y.Len())
	for i := range out {
		out[i] = d.Y.AtVec(i)
	}
	return out
}

var gateInputs = []float64{
	0, 0,
	0, 1,
	1, 0,
	1, 1,
}

var gateTables = map[string][4]float64{
	"AND":  {0, 0, 0, 1},
	"OR":   {0, 1, 1, 1},
	"XOR":  {0, 1, 1, 0},
	"NAND": {1, 1, 1, 0},
	"NOR":  {1, 0, 0, 0},
	"XNOR": {1, 0, 0, 1},
}

// GateNames lists the supported gates in presentation order.
func GateNames() []string {
	return []string{"AND", "OR", "XOR", "NAND", "NOR", "XNOR"}
}

// Gate returns the truth table of a two-input logic gate with rows ordered
// 00, 01, 10, 11. Names are case-insensitive.
func Gate(name string) (Dataset, error) {
	key := strings.ToUpper(strings.TrimSpace(name))
	labels, ok := gateTables[key]
	if !ok {
		return Dataset{}, errors.Wrapf(ErrUnknownGate, "%q", name)
	}
	x := make([]float64, len(gateInputs))
	copy(x, gateInputs)
	y := make([]float64, len(labels))
	copy(y, labels[:])
	return Dataset{
		Name: key,
		X:    mat.NewDense(4, 2, x),
		Y:    mat.NewVecDense(4, y),
	}, nil
}

// LinearlySeparable reports whether a single hyperplane separates the gate's
// classes. Only XOR and XNOR are not separable.
func LinearlySeparable(name string) (bool, error) {
	key := strings.ToUpper(strings.TrimSpace(name))
	if _, ok := gateTables[key]; !ok {
		return false, errors.Wrapf(ErrUnknownGate, "%q", name)
	}
	return key != "XOR" && key != "XNOR", nil
}

// NoisyXOR samples n points uniformly from the unit square, perturbs them
// with gaussian noise of the given standard deviation and labels each
// perturbed point by whether exactly one coordinate exceeds 0.5.
func NoisyXOR(n int, noise float64, seed int64) (Dataset, error) {
	if n <= 0 {
		return Dataset{}, fault.Configf("noisy xor: n must be > 0 (got %d)", n)
	}
	if noise < 0 {
		return Dataset{}, fault.Configf("noisy xor: noise must be >= 0 (got %g)", noise)
	}
	rng := rand.New(rand.NewSource(seed))
	x := make([]float64, 2*n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		a := rng.Float64() + rng.NormFloat64()*noise
		b := rng.Float64() + rng.NormFloat64()*noise
		if (a > 0.5) != (b > 0.5) {
			y[i] = 1
		}
		x[2*i], x[2*i+1] = a, b
	}
	return Dataset{
		Name: "NOISY_XOR",
		X:    mat.NewDense(n, 2, x),
		Y:    mat.NewVecDense(n, y),
	}, nil
}
