package model

// History records one entry per completed training epoch. Loss and Accuracy
// are always populated; Weights and Bias are only filled by the perceptron.
type History struct {
	Loss     []float64   `json:"loss"`
	Accuracy []float64   `json:"accuracy"`
	Weights  [][]float64 `json:"weights,omitempty"`
	Bias     []float64   `json:"bias,omitempty"`
}

// Len returns the number of recorded epochs.
func (h History) Len() int { return len(h.Loss) }

// Series returns the named scalar sequence: "loss", "accuracy" or "bias".
func (h History) Series(name string) ([]float64, bool) {
	switch name {
	case "loss":
		return h.Loss, true
	case "accuracy":
		return h.Accuracy, true
	case "bias":
		if h.Bias == nil {
			return nil, false
		}
		return h.Bias, true
	}
	return nil, false
}

// Last returns the final loss and accuracy, or zeros for an empty history.
func (h History) Last() (loss, acc float64) {
	if len(h.Loss) == 0 {
		return 0, 0
	}
	return h.Loss[len(h.Loss)-1], h.Accuracy[len(h.Accuracy)-1]
}

// Clone returns a deep copy.
func (h History) Clone() History {
	out := History{
		Loss:     cloneFloats(h.Loss),
		Accuracy: cloneFloats(h.Accuracy),
		Bias:     cloneFloats(h.Bias),
	}
	if h.Weights != nil {
		out.Weights = make([][]float64, len(h.Weights))
		for i, w := range h.Weights {
			out.Weights[i] = cloneFloats(w)
		}
	}
	return out
}

func (h *History) record(loss, acc float64) {
	h.Loss = append(h.Loss, loss)
	h.Accuracy = append(h.Accuracy, acc)
}

func (h *History) recordParams(w []float64, b float64) {
	h.Weights = append(h.Weights, cloneFloats(w))
	h.Bias = append(h.Bias, b)
}

func (h *History) reset() {
	*h = History{}
}

func cloneFloats(v []float64) []float64 {
	if v == nil {
		return nil
	}
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
