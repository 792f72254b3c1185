// Package layer provides the fully connected layer used by the network.
package layer

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/FlavioCFOliveira/perceptron/internal/activations"
)

// ErrShape is returned when a layer is built from inconsistent dimensions.
var ErrShape = errors.New("invalid layer shape")

// Layer is one affine map followed by an elementwise activation.
//
// Weights has shape [fanIn x fanOut] and maps an input of length fanIn to an
// output of length fanOut through Wᵀx. Bias has length fanOut. The bias is
// trained alongside the weights but Forward does not add it.
type Layer struct {
	weights *mat.Dense
	bias    *mat.VecDense
	act     activations.Activation
}

// New creates a layer whose weights and bias are drawn uniformly from
// [-1, 1) and scaled by 1/sqrt(fanIn). A nil rng uses the process-wide
// math/rand source.
func New(fanIn, fanOut int, act activations.Activation, rng *rand.Rand) (*Layer, error) {
	if fanIn <= 0 || fanOut <= 0 {
		return nil, errors.Wrapf(ErrShape, "fan-in %d, fan-out %d", fanIn, fanOut)
	}
	if !act.Kind().Valid() {
		return nil, errors.Wrap(activations.ErrUnknownActivation, "layer activation")
	}

	uniform := rand.Float64
	if rng != nil {
		uniform = rng.Float64
	}
	scale := 1 / math.Sqrt(float64(fanIn))

	weights := make([]float64, fanIn*fanOut)
	for i := range weights {
		weights[i] = (uniform()*2 - 1) * scale
	}
	bias := make([]float64, fanOut)
	for i := range bias {
		bias[i] = (uniform()*2 - 1) * scale
	}

	return &Layer{
		weights: mat.NewDense(fanIn, fanOut, weights),
		bias:    mat.NewVecDense(fanOut, bias),
		act:     act,
	}, nil
}

// FromParams builds a layer around copies of w and b.
// w must be [fanIn x fanOut] and b must have length fanOut.
func FromParams(w mat.Matrix, b mat.Vector, act activations.Activation) (*Layer, error) {
	r, c := w.Dims()
	if r == 0 || c == 0 {
		return nil, errors.Wrap(ErrShape, "empty weights")
	}
	if b.Len() != c {
		return nil, errors.Wrapf(ErrShape, "bias length %d, want %d", b.Len(), c)
	}
	if !act.Kind().Valid() {
		return nil, errors.Wrap(activations.ErrUnknownActivation, "layer activation")
	}
	bias := mat.NewVecDense(c, nil)
	bias.CopyVec(b)
	return &Layer{
		weights: mat.DenseCopyOf(w),
		bias:    bias,
		act:     act,
	}, nil
}

// FanIn returns the input width of the layer.
func (l *Layer) FanIn() int {
	r, _ := l.weights.Dims()
	return r
}

// FanOut returns the output width of the layer.
func (l *Layer) FanOut() int {
	_, c := l.weights.Dims()
	return c
}

// Activation returns the layer's activation.
func (l *Layer) Activation() activations.Activation {
	return l.act
}

// Weights returns a copy of the weight matrix.
func (l *Layer) Weights() *mat.Dense {
	return mat.DenseCopyOf(l.weights)
}

// Bias returns a copy of the bias vector.
func (l *Layer) Bias() *mat.VecDense {
	b := mat.NewVecDense(l.bias.Len(), nil)
	b.CopyVec(l.bias)
	return b
}

// Weight gets a single weight at (row, col).
func (l *Layer) Weight(row, col int) float64 {
	return l.weights.At(row, col)
}

// SetWeight sets a single weight at (row, col).
func (l *Layer) SetWeight(row, col int, val float64) {
	l.weights.Set(row, col, val)
}

// BiasAt gets a single bias.
func (l *Layer) BiasAt(idx int) float64 {
	return l.bias.AtVec(idx)
}

// SetBias sets a single bias.
func (l *Layer) SetBias(idx int, val float64) {
	l.bias.SetVec(idx, val)
}

// NumParams returns fanIn*fanOut + fanOut.
func (l *Layer) NumParams() int {
	r, c := l.weights.Dims()
	return r*c + c
}

// Params returns the weights in row-major order followed by the bias.
func (l *Layer) Params() []float64 {
	r, c := l.weights.Dims()
	params := make([]float64, 0, l.NumParams())
	for i := 0; i < r; i++ {
		params = append(params, l.weights.RawRowView(i)[:c]...)
	}
	for i := 0; i < c; i++ {
		params = append(params, l.bias.AtVec(i))
	}
	return params
}

// Clone returns a deep copy of the layer. The activation is shared.
func (l *Layer) Clone() *Layer {
	return &Layer{
		weights: l.Weights(),
		bias:    l.Bias(),
		act:     l.act,
	}
}

// Forward stores f(Wᵀx) into dst. An empty dst is resized to fanOut.
func (l *Layer) Forward(dst, x *mat.VecDense) {
	dst.MulVec(l.weights.T(), x)
	l.act.Apply(dst, dst)
}

// Gate multiplies delta in place by the activation derivative evaluated at
// the layer's output y.
func (l *Layer) Gate(delta, y *mat.VecDense) {
	var d mat.VecDense
	l.act.Derivative(&d, y)
	delta.MulElemVec(&d, delta)
}

// Update applies W += lr·x⊗delta and b += lr·delta in place, where x is the
// layer's input and delta the gated error at its output.
func (l *Layer) Update(x, delta *mat.VecDense, lr float64) {
	l.weights.RankOne(l.weights, lr, x, delta)
	l.bias.AddScaledVec(l.bias, lr, delta)
}

// Propagate stores W·delta into dst, carrying an output-side error back to
// the layer's input side using the current weights.
func (l *Layer) Propagate(dst, delta *mat.VecDense) {
	dst.MulVec(l.weights, delta)
}
