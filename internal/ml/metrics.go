package ml

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// MSE is the mean squared error.
func MSE(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	var sum float64
	for i := range yTrue {
		d := yTrue[i] - yPred[i]
		sum += d * d
	}
	return sum / float64(len(yTrue))
}

// RMSE is the root mean squared error.
func RMSE(yTrue, yPred []float64) float64 {
	return math.Sqrt(MSE(yTrue, yPred))
}

// MAE is the mean absolute error.
func MAE(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	var sum float64
	for i := range yTrue {
		sum += math.Abs(yTrue[i] - yPred[i])
	}
	return sum / float64(len(yTrue))
}

// R2 is the coefficient of determination. A constant target yields 0 when
// predictions match and can go negative when they don't.
func R2(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	mean := stat.Mean(yTrue, nil)
	var ssRes, ssTot float64
	for i := range yTrue {
		d := yTrue[i] - yPred[i]
		ssRes += d * d
		t := yTrue[i] - mean
		ssTot += t * t
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 0
		}
		return -ssRes
	}
	return 1 - ssRes/ssTot
}

// Accuracy is the fraction of matching labels.
func Accuracy(yTrue, yPred []int) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	var correct int
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue))
}

// ClassStats holds per-class precision, recall, F1 and support.
type ClassStats struct {
	Class     int     `json:"class"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// ClassificationReport computes per-class stats plus support-weighted
// averages over all classes present in yTrue or yPred.
func ClassificationReport(yTrue, yPred []int) (perClass []ClassStats, precision, recall, f1 float64) {
	labels := uniqueSorted(append(append([]int{}, yTrue...), yPred...))
	total := len(yTrue)

	for _, label := range labels {
		var tp, fp, fn, support int
		for i := range yTrue {
			switch {
			case yTrue[i] == label && yPred[i] == label:
				tp++
			case yTrue[i] != label && yPred[i] == label:
				fp++
			case yTrue[i] == label && yPred[i] != label:
				fn++
			}
			if yTrue[i] == label {
				support++
			}
		}

		stats := ClassStats{Class: label, Support: support}
		if tp+fp > 0 {
			stats.Precision = float64(tp) / float64(tp+fp)
		}
		if tp+fn > 0 {
			stats.Recall = float64(tp) / float64(tp+fn)
		}
		if stats.Precision+stats.Recall > 0 {
			stats.F1 = 2 * stats.Precision * stats.Recall / (stats.Precision + stats.Recall)
		}
		perClass = append(perClass, stats)

		if total > 0 {
			weight := float64(support) / float64(total)
			precision += weight * stats.Precision
			recall += weight * stats.Recall
			f1 += weight * stats.F1
		}
	}
	return perClass, precision, recall, f1
}

// QualityBand maps a score (R² or accuracy) to a human-readable label.
func QualityBand(score float64) string {
	switch {
	case score > 0.9:
		return "excellent"
	case score > 0.75:
		return "good"
	case score > 0.5:
		return "fair"
	default:
		return "poor"
	}
}
