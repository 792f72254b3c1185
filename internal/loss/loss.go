// Package loss provides the error measures used to report training progress.
// Training itself always steps along target − output.
package loss

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// ErrLengthMismatch is returned when prediction and target differ in length.
var ErrLengthMismatch = errors.New("prediction and target must have same length")

// Loss measures the distance between a prediction and its target.
type Loss interface {
	Forward(yPred, yTrue []float64) (float64, error)
}

// MSE (Mean Squared Error) loss.
type MSE struct{}

// Forward computes (1/n) * sum((y_pred - y_true)^2).
func (MSE) Forward(yPred, yTrue []float64) (float64, error) {
	if err := check(yPred, yTrue); err != nil {
		return 0, err
	}
	d := floats.Distance(yPred, yTrue, 2)
	return d * d / float64(len(yPred)), nil
}

func (MSE) String() string { return "mse" }

// MAE (Mean Absolute Error) loss.
type MAE struct{}

// Forward computes (1/n) * sum(|y_pred - y_true|).
func (MAE) Forward(yPred, yTrue []float64) (float64, error) {
	if err := check(yPred, yTrue); err != nil {
		return 0, err
	}
	return floats.Distance(yPred, yTrue, 1) / float64(len(yPred)), nil
}

func (MAE) String() string { return "mae" }

// Mean averages l over paired predictions and targets.
func Mean(l Loss, preds, targets [][]float64) (float64, error) {
	if len(preds) != len(targets) {
		return 0, errors.Wrapf(ErrLengthMismatch, "%d predictions, %d targets", len(preds), len(targets))
	}
	if len(preds) == 0 {
		return 0, nil
	}
	var sum float64
	for i := range preds {
		v, err := l.Forward(preds[i], targets[i])
		if err != nil {
			return 0, errors.Wrapf(err, "sample %d", i)
		}
		sum += v
	}
	return sum / float64(len(preds)), nil
}

func check(yPred, yTrue []float64) error {
	if len(yPred) != len(yTrue) {
		return errors.Wrapf(ErrLengthMismatch, "%d vs %d", len(yPred), len(yTrue))
	}
	if len(yPred) == 0 {
		return errors.Wrap(ErrLengthMismatch, "empty")
	}
	return nil
}
