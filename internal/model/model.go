package model

import (
	"log"

	"gonum.org/v1/gonum/mat"

	"gatelearn/internal/fault"
)

// Classifier is the surface shared by the perceptron and the multi-layer
// network. Targets are 0/1 values, one per row of X.
type Classifier interface {
	Fit(X mat.Matrix, y mat.Vector, epochs int) error
	Predict(X mat.Matrix) (*mat.VecDense, error)
	Score(X mat.Matrix, y mat.Vector) (float64, error)
	History() History
	Reset()
}

func loggerOrDefault(l *log.Logger) *log.Logger {
	if l == nil {
		return log.Default()
	}
	return l
}

// checkInputs validates X against the expected feature count and, when y is
// non-nil, the target count against the row count.
func checkInputs(X mat.Matrix, y mat.Vector, features int) (int, error) {
	if X == nil {
		return 0, fault.Shapef("nil input matrix")
	}
	rows, cols := X.Dims()
	if rows == 0 {
		return 0, fault.Shapef("input has no rows")
	}
	if cols != features {
		return 0, fault.Shapef("expected %d features, got %d", features, cols)
	}
	if y != nil && y.Len() != rows {
		return 0, fault.Shapef("%d samples but %d targets", rows, y.Len())
	}
	return rows, nil
}

func accuracy(pred, y mat.Vector) float64 {
	n := y.Len()
	hits := 0
	for i := 0; i < n; i++ {
		if pred.AtVec(i) == y.AtVec(i) {
			hits++
		}
	}
	return float64(hits) / float64(n)
}
