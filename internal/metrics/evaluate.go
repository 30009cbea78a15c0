package metrics

import "gonum.org/v1/gonum/mat"

// Confusion holds binary confusion counts and the scores derived from them.
type Confusion struct {
	TP int `json:"true_positives"`
	TN int `json:"true_negatives"`
	FP int `json:"false_positives"`
	FN int `json:"false_negatives"`

	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// Evaluate compares 0/1 predictions with 0/1 targets. Precision, recall and
// F1 are zero when their denominators are.
func Evaluate(pred, y mat.Vector) Confusion {
	var c Confusion
	n := y.Len()
	for i := 0; i < n; i++ {
		p, t := pred.AtVec(i) == 1, y.AtVec(i) == 1
		switch {
		case p && t:
			c.TP++
		case !p && !t:
			c.TN++
		case p && !t:
			c.FP++
		default:
			c.FN++
		}
	}
	if n > 0 {
		c.Accuracy = float64(c.TP+c.TN) / float64(n)
	}
	if c.TP+c.FP > 0 {
		c.Precision = float64(c.TP) / float64(c.TP+c.FP)
	}
	if c.TP+c.FN > 0 {
		c.Recall = float64(c.TP) / float64(c.TP+c.FN)
	}
	if c.Precision+c.Recall > 0 {
		c.F1 = 2 * c.Precision * c.Recall / (c.Precision + c.Recall)
	}
	return c
}
