// Package activations provides unit tests for activation functions.
package activations

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func mustLookup(t *testing.T, k Kind) Activation {
	t.Helper()
	a, err := Lookup(k)
	require.NoError(t, err)
	return a
}

// TestParse tests name resolution.
func TestParse(t *testing.T) {
	tests := []struct {
		name string
		want Kind
	}{
		{"sigmoid", Sigmoid},
		{"tanh", Tanh},
		{"relu", ReLU},
		{"  ReLU ", ReLU},
		{"SIGMOID", Sigmoid},
	}

	for _, tt := range tests {
		got, err := Parse(tt.name)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}
}

// TestParseUnknown tests that unknown names are a configuration error.
func TestParseUnknown(t *testing.T) {
	for _, name := range []string{"", "softmax", "leaky_relu", "invalid"} {
		_, err := Parse(name)
		assert.True(t, errors.Is(err, ErrUnknownActivation), "Parse(%q) = %v", name, err)

		_, err = ByName(name)
		assert.True(t, errors.Is(err, ErrUnknownActivation), "ByName(%q) = %v", name, err)
	}
}

// TestLookupInvalidKind tests lookup outside the enumeration.
func TestLookupInvalidKind(t *testing.T) {
	for _, k := range []Kind{Kind(0), Kind(-1), Kind(42)} {
		_, err := Lookup(k)
		assert.True(t, errors.Is(err, ErrUnknownActivation))
		assert.False(t, k.Valid())
		assert.Equal(t, "invalid", k.String())
	}
}

// TestKindText tests the text round trip used by flags and encoders.
func TestKindText(t *testing.T) {
	for _, k := range Kinds() {
		text, err := k.MarshalText()
		require.NoError(t, err)

		var got Kind
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, k, got)
	}

	_, err := Kind(0).MarshalText()
	assert.Error(t, err)

	var k Kind
	assert.Error(t, k.UnmarshalText([]byte("gelu")))
}

// TestSigmoid tests Sigmoid activation and derivative.
func TestSigmoid(t *testing.T) {
	a := mustLookup(t, Sigmoid)

	tests := []struct {
		input    float64
		expected float64
	}{
		{math.Inf(-1), 0},
		{-2, 1 / (1 + math.Exp(2))},
		{0, 0.5},
		{1, 1 / (1 + math.Exp(-1))},
		{math.Inf(1), 1},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.expected, a.Scalar(tt.input), 1e-12, "Sigmoid(%v)", tt.input)
	}

	// derivative takes the output: y = 0.5 -> 0.25
	assert.InDelta(t, 0.25, a.ScalarDerivative(0.5), 1e-12)
	assert.InDelta(t, 0.0, a.ScalarDerivative(1), 1e-12)
	assert.InDelta(t, 0.09, a.ScalarDerivative(0.9), 1e-12)
}

// TestTanh tests Tanh activation and derivative.
func TestTanh(t *testing.T) {
	a := mustLookup(t, Tanh)

	for _, x := range []float64{-2, -1, 0, 1, 2} {
		assert.InDelta(t, math.Tanh(x), a.Scalar(x), 1e-12)
		y := a.Scalar(x)
		assert.InDelta(t, 1-math.Tanh(x)*math.Tanh(x), a.ScalarDerivative(y), 1e-12)
	}
	assert.Equal(t, 1.0, a.ScalarDerivative(0))
}

// TestReLU tests ReLU activation and derivative.
func TestReLU(t *testing.T) {
	a := mustLookup(t, ReLU)

	tests := []struct {
		input, expected, deriv float64
	}{
		{-1, 0, 0},
		{0, 0, 0},
		{1, 1, 1},
		{2.5, 2.5, 1},
		{-0.1, 0, 0},
	}
	for _, tt := range tests {
		y := a.Scalar(tt.input)
		assert.Equal(t, tt.expected, y, "ReLU(%v)", tt.input)
		assert.Equal(t, tt.deriv, a.ScalarDerivative(y), "ReLU'(%v)", tt.input)
	}
}

// TestApplyVector tests the elementwise vector forms.
func TestApplyVector(t *testing.T) {
	x := mat.NewVecDense(4, []float64{-2, -0.5, 0.5, 2})

	for _, k := range Kinds() {
		a := mustLookup(t, k)

		var y mat.VecDense
		a.Apply(&y, x)
		require.Equal(t, x.Len(), y.Len())

		var d mat.VecDense
		a.Derivative(&d, &y)
		for i := 0; i < x.Len(); i++ {
			assert.Equal(t, a.Scalar(x.AtVec(i)), y.AtVec(i), "%s[%d]", k, i)
			assert.Equal(t, a.ScalarDerivative(y.AtVec(i)), d.AtVec(i), "%s'[%d]", k, i)
		}
	}
}

// TestApplyInPlace tests that dst may alias the source vector.
func TestApplyInPlace(t *testing.T) {
	a := mustLookup(t, ReLU)
	v := mat.NewVecDense(3, []float64{-1, 0, 3})
	a.Apply(v, v)
	assert.Equal(t, []float64{0, 0, 3}, v.RawVector().Data)
}

// TestApplyShapeMismatch tests that a wrongly sized dst panics.
func TestApplyShapeMismatch(t *testing.T) {
	a := mustLookup(t, Tanh)
	assert.Panics(t, func() {
		a.Apply(mat.NewVecDense(2, nil), mat.NewVecDense(3, nil))
	})
}

// TestActivationRange tests that activations stay in expected ranges.
func TestActivationRange(t *testing.T) {
	sig := mustLookup(t, Sigmoid)
	tanh := mustLookup(t, Tanh)
	relu := mustLookup(t, ReLU)

	for _, x := range []float64{-10, -5, -1, 0, 1, 5, 10} {
		y := sig.Scalar(x)
		assert.True(t, y > 0 && y < 1, "Sigmoid(%v) = %v, outside (0,1)", x, y)

		y = tanh.Scalar(x)
		assert.True(t, y >= -1 && y <= 1, "Tanh(%v) = %v, outside [-1,1]", x, y)

		assert.GreaterOrEqual(t, relu.Scalar(x), 0.0)
	}
}
