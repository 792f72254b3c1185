// Package trainer runs epochs of online training over a dataset.
package trainer

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/pkg/errors"

	"github.com/FlavioCFOliveira/perceptron/internal/dataset"
	"github.com/FlavioCFOliveira/perceptron/internal/loss"
	"github.com/FlavioCFOliveira/perceptron/internal/net"
)

// Options controls Fit.
type Options struct {
	Epochs  int
	Shuffle bool  // reorder samples every epoch
	Seed    int64 // shuffle seed, 0 picks one from the clock

	// Loss is used for reporting only. Defaults to MSE.
	Loss loss.Loss

	// Validation, if set, is evaluated after every epoch.
	Validation *dataset.Dataset

	Callbacks []Callback
}

// History records the per-epoch losses of a Fit call.
type History struct {
	Loss    []float64
	ValLoss []float64 // empty without a validation set
	Stopped bool      // a callback ended training early
}

// Epochs returns how many epochs ran.
func (h History) Epochs() int {
	return len(h.Loss)
}

// Fit trains n on every sample of train, one Train call per sample, for
// opts.Epochs epochs. It returns the history so far together with the first
// error from training, a callback or ctx.
func Fit(ctx context.Context, n *net.Network, train *dataset.Dataset, opts Options) (History, error) {
	var h History
	if opts.Epochs <= 0 {
		return h, errors.Errorf("epochs must be positive, got %d", opts.Epochs)
	}
	if err := checkWidths(n, train); err != nil {
		return h, errors.Wrap(err, "training set")
	}
	if opts.Validation != nil {
		if err := checkWidths(n, opts.Validation); err != nil {
			return h, errors.Wrap(err, "validation set")
		}
	}
	if opts.Loss == nil {
		opts.Loss = loss.MSE{}
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	defer func() {
		for _, cb := range opts.Callbacks {
			cb.OnTrainEnd(n)
		}
	}()
	for _, cb := range opts.Callbacks {
		if err := cb.OnTrainBegin(n); err != nil {
			return h, errors.Wrap(err, "train begin")
		}
	}

	order := make([]int, train.Len())
	for i := range order {
		order[i] = i
	}

	start := time.Now()
	for epoch := 0; epoch < opts.Epochs; epoch++ {
		if opts.Shuffle {
			rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		}
		for _, i := range order {
			if err := ctx.Err(); err != nil {
				return h, err
			}
			if err := n.Train(train.Samples[i], train.Labels[i]); err != nil {
				return h, errors.Wrapf(err, "epoch %d sample %d", epoch, i)
			}
		}

		logs := EpochLogs{Epoch: epoch, ValLoss: math.NaN(), Elapsed: time.Since(start)}
		var err error
		if logs.Loss, err = Evaluate(n, train, opts.Loss); err != nil {
			return h, errors.Wrapf(err, "epoch %d", epoch)
		}
		h.Loss = append(h.Loss, logs.Loss)
		if opts.Validation != nil {
			if logs.ValLoss, err = Evaluate(n, opts.Validation, opts.Loss); err != nil {
				return h, errors.Wrapf(err, "epoch %d validation", epoch)
			}
			h.ValLoss = append(h.ValLoss, logs.ValLoss)
		}

		for _, cb := range opts.Callbacks {
			if err := cb.OnEpochEnd(logs, n); err != nil {
				return h, errors.Wrapf(err, "epoch %d callback", epoch)
			}
		}
		for _, cb := range opts.Callbacks {
			if s, ok := cb.(Stopper); ok && s.ShouldStop() {
				h.Stopped = true
				return h, nil
			}
		}
	}
	return h, nil
}

// Evaluate returns the mean loss of n over d.
func Evaluate(n *net.Network, d *dataset.Dataset, l loss.Loss) (float64, error) {
	preds := make([][]float64, d.Len())
	for i, s := range d.Samples {
		p, err := n.Predict(s)
		if err != nil {
			return 0, errors.Wrapf(err, "sample %d", i)
		}
		preds[i] = p
	}
	return loss.Mean(l, preds, d.Labels)
}

func checkWidths(n *net.Network, d *dataset.Dataset) error {
	if d == nil || d.Len() == 0 {
		return dataset.ErrEmpty
	}
	if len(d.Samples) != len(d.Labels) {
		return errors.Errorf("%d samples, %d labels", len(d.Samples), len(d.Labels))
	}
	cfg := n.Config()
	for i := range d.Samples {
		if len(d.Samples[i]) != cfg.Inputs || len(d.Labels[i]) != cfg.Outputs {
			return errors.Wrapf(net.ErrDimensionMismatch, "sample %d is %d->%d, network is %d->%d",
				i, len(d.Samples[i]), len(d.Labels[i]), cfg.Inputs, cfg.Outputs)
		}
	}
	return nil
}
