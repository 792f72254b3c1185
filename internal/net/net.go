// Package net provides the multilayer perceptron: construction, inference
// and single-sample gradient-descent training.
package net

import (
	"math"
	"math/rand"
	"sync"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/FlavioCFOliveira/perceptron/internal/activations"
	"github.com/FlavioCFOliveira/perceptron/internal/layer"
)

var (
	// ErrDimensionMismatch is returned when an input or target vector does
	// not match the network's input or output width.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrNonFinite is returned when a forward pass produces NaN or ±Inf.
	ErrNonFinite = errors.New("non-finite activation")
)

// Network is a fully connected feed-forward network.
//
// A Network is safe for concurrent use: Predict runs under a read lock and
// Train under the write lock.
type Network struct {
	mu     sync.RWMutex
	cfg    Config
	layers []*layer.Layer
}

// New builds a network for cfg with freshly initialised layers.
// Layer 0 maps Inputs to HiddenNeurons (or straight to Outputs when there are
// no hidden layers), hidden layers map HiddenNeurons to HiddenNeurons and the
// last layer maps HiddenNeurons to Outputs.
func New(cfg Config) (*Network, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	act, err := activations.Lookup(cfg.Activation)
	if err != nil {
		return nil, err
	}

	var rng *rand.Rand
	if cfg.Seed != 0 {
		rng = rand.New(rand.NewSource(cfg.Seed))
	}

	widths := cfg.widths()
	layers := make([]*layer.Layer, 0, len(widths)-1)
	for i := 0; i+1 < len(widths); i++ {
		l, err := layer.New(widths[i], widths[i+1], act, rng)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create layer %d", i)
		}
		layers = append(layers, l)
	}

	return &Network{cfg: cfg, layers: layers}, nil
}

// Config returns the configuration the network was built with.
func (n *Network) Config() Config {
	return n.cfg
}

// NumLayers returns HiddenLayers + 1.
func (n *Network) NumLayers() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.layers)
}

// Layers returns deep copies of the network's layers.
func (n *Network) Layers() []*layer.Layer {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]*layer.Layer, len(n.layers))
	for i, l := range n.layers {
		out[i] = l.Clone()
	}
	return out
}

// Params returns all network parameters flattened (copy).
func (n *Network) Params() []float64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	var params []float64
	for _, l := range n.layers {
		params = append(params, l.Params()...)
	}
	return params
}

// Predict runs input through every layer and returns the output activations.
func (n *Network) Predict(input []float64) ([]float64, error) {
	if len(input) != n.cfg.Inputs {
		return nil, errors.Wrapf(ErrDimensionMismatch, "input length %d, want %d", len(input), n.cfg.Inputs)
	}

	n.mu.RLock()
	outputs := n.forward(input)
	n.mu.RUnlock()

	out := outputs[len(outputs)-1]
	if !finite(out) {
		return nil, errors.Wrap(ErrNonFinite, "output")
	}
	return append([]float64(nil), out.RawVector().Data...), nil
}

// Train performs one online gradient-descent step on a single sample.
//
// For each layer from last to first the error is gated by the activation
// derivative at the layer's output, the weights and bias are moved by
// learningRate times the gated error, and the error is carried to the
// previous layer through the weights as they stand after that update.
// Nothing is mutated when an error is returned.
func (n *Network) Train(input, target []float64) error {
	if len(input) != n.cfg.Inputs {
		return errors.Wrapf(ErrDimensionMismatch, "input length %d, want %d", len(input), n.cfg.Inputs)
	}
	if len(target) != n.cfg.Outputs {
		return errors.Wrapf(ErrDimensionMismatch, "target length %d, want %d", len(target), n.cfg.Outputs)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	outputs := n.forward(input)
	for i, o := range outputs[1:] {
		if !finite(o) {
			return errors.Wrapf(ErrNonFinite, "layer %d output", i)
		}
	}

	last := len(n.layers)
	delta := mat.NewVecDense(n.cfg.Outputs, nil)
	delta.SubVec(mat.NewVecDense(len(target), target), outputs[last])

	lr := n.cfg.LearningRate
	for i := last - 1; i >= 0; i-- {
		l := n.layers[i]
		l.Gate(delta, outputs[i+1])
		l.Update(outputs[i], delta, lr)
		if i > 0 {
			var back mat.VecDense
			l.Propagate(&back, delta)
			delta = &back
		}
	}
	return nil
}

// forward returns the input followed by every layer's output.
// Callers must hold n.mu.
func (n *Network) forward(input []float64) []*mat.VecDense {
	outputs := make([]*mat.VecDense, 0, len(n.layers)+1)
	x := mat.NewVecDense(len(input), append([]float64(nil), input...))
	outputs = append(outputs, x)
	for _, l := range n.layers {
		var y mat.VecDense
		l.Forward(&y, x)
		outputs = append(outputs, &y)
		x = &y
	}
	return outputs
}

func finite(v *mat.VecDense) bool {
	for i := 0; i < v.Len(); i++ {
		x := v.AtVec(i)
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
