// Package activations provides the closed set of activation functions a
// network can be built with.
package activations

import (
	"math"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrUnknownActivation is returned when an activation name or kind is not
// one of the supported functions.
var ErrUnknownActivation = errors.New("unknown activation")

// Kind enumerates the supported activation functions.
// The zero value is not a valid kind.
type Kind int

const (
	invalid Kind = iota
	Sigmoid
	Tanh
	ReLU
)

var names = [...]string{
	invalid: "invalid",
	Sigmoid: "sigmoid",
	Tanh:    "tanh",
	ReLU:    "relu",
}

// Kinds returns every supported kind in declaration order.
func Kinds() []Kind {
	return []Kind{Sigmoid, Tanh, ReLU}
}

// Valid reports whether k names a supported activation.
func (k Kind) Valid() bool {
	return k > invalid && int(k) < len(names)
}

func (k Kind) String() string {
	if !k.Valid() {
		return names[invalid]
	}
	return names[k]
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, errors.Wrapf(ErrUnknownActivation, "kind %d", int(k))
	}
	return []byte(names[k]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Parse resolves an activation name such as "sigmoid", "tanh" or "relu".
// Matching ignores case and surrounding whitespace.
func Parse(name string) (Kind, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, k := range Kinds() {
		if names[k] == n {
			return k, nil
		}
	}
	return invalid, errors.Wrapf(ErrUnknownActivation, "%q", name)
}

// Activation pairs an elementwise function with its derivative.
// The derivative takes the activation's output y = f(x), not x.
// Activation values are immutable and safe to share between layers.
type Activation struct {
	kind  Kind
	fn    func(x float64) float64
	deriv func(y float64) float64
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

var registry = [...]Activation{
	Sigmoid: {
		kind:  Sigmoid,
		fn:    sigmoid,
		deriv: func(y float64) float64 { return y * (1 - y) },
	},
	Tanh: {
		kind:  Tanh,
		fn:    math.Tanh,
		deriv: func(y float64) float64 { return 1 - y*y },
	},
	ReLU: {
		kind: ReLU,
		fn:   func(x float64) float64 { return math.Max(x, 0) },
		deriv: func(y float64) float64 {
			if y > 0 {
				return 1
			}
			return 0
		},
	},
}

// Lookup returns the activation registered for k.
func Lookup(k Kind) (Activation, error) {
	if !k.Valid() {
		return Activation{}, errors.Wrapf(ErrUnknownActivation, "kind %d", int(k))
	}
	return registry[k], nil
}

// ByName is Parse followed by Lookup.
func ByName(name string) (Activation, error) {
	k, err := Parse(name)
	if err != nil {
		return Activation{}, err
	}
	return Lookup(k)
}

// Kind returns the kind of a.
func (a Activation) Kind() Kind { return a.kind }

func (a Activation) String() string { return a.kind.String() }

// Scalar computes f(x).
func (a Activation) Scalar(x float64) float64 {
	return a.fn(x)
}

// ScalarDerivative computes f'(x) expressed through y = f(x).
func (a Activation) ScalarDerivative(y float64) float64 {
	return a.deriv(y)
}

// Apply stores f(x) elementwise into dst. dst may alias x.
// An empty dst is resized to the length of x.
func (a Activation) Apply(dst, x *mat.VecDense) {
	apply(dst, x, a.fn)
}

// Derivative stores f'(.) elementwise into dst, evaluated from the
// activation outputs y. dst may alias y.
func (a Activation) Derivative(dst, y *mat.VecDense) {
	apply(dst, y, a.deriv)
}

func apply(dst, src *mat.VecDense, f func(float64) float64) {
	n := src.Len()
	if dst.IsEmpty() {
		dst.ReuseAsVec(n)
	}
	if dst.Len() != n {
		panic(mat.ErrShape)
	}
	for i := 0; i < n; i++ {
		dst.SetVec(i, f(src.AtVec(i)))
	}
}
