package net

import (
	"math"

	"github.com/pkg/errors"

	"github.com/FlavioCFOliveira/perceptron/internal/activations"
)

// ErrInvalidConfig is returned when a Config describes an unusable topology
// or learning rate.
var ErrInvalidConfig = errors.New("invalid network config")

// MaxHiddenLayers bounds Config.HiddenLayers.
const MaxHiddenLayers = 1 << 16

// Config configures the network. It is fixed once the network is built.
type Config struct {
	Inputs        int     // width of the input vector
	Outputs       int     // width of the output vector
	HiddenLayers  int     // number of hidden layers, may be 0
	HiddenNeurons int     // width of every hidden layer
	LearningRate  float64 // gradient step size, > 0

	Activation activations.Kind // shared by every layer

	// Seed makes weight initialisation reproducible. 0 uses the
	// process-wide random source.
	Seed int64
}

// DefaultConfig returns a one-hidden-layer sigmoid network with learning rate 0.1.
func DefaultConfig(inputs, outputs int) Config {
	return Config{
		Inputs:        inputs,
		Outputs:       outputs,
		HiddenLayers:  1,
		HiddenNeurons: 2 * inputs,
		LearningRate:  0.1,
		Activation:    activations.Sigmoid,
	}
}

// Validate reports the first problem with c, if any.
func (c Config) Validate() error {
	switch {
	case c.Inputs <= 0:
		return errors.Wrapf(ErrInvalidConfig, "inputs %d", c.Inputs)
	case c.Outputs <= 0:
		return errors.Wrapf(ErrInvalidConfig, "outputs %d", c.Outputs)
	case c.HiddenLayers < 0 || c.HiddenLayers > MaxHiddenLayers:
		return errors.Wrapf(ErrInvalidConfig, "hidden layers %d", c.HiddenLayers)
	case c.HiddenLayers > 0 && c.HiddenNeurons <= 0:
		return errors.Wrapf(ErrInvalidConfig, "hidden neurons %d", c.HiddenNeurons)
	case !(c.LearningRate > 0) || math.IsInf(c.LearningRate, 0):
		return errors.Wrapf(ErrInvalidConfig, "learning rate %v", c.LearningRate)
	case !c.Activation.Valid():
		return errors.Wrapf(activations.ErrUnknownActivation, "kind %d", int(c.Activation))
	}
	return nil
}

// IsValid reports whether Validate succeeds.
func (c Config) IsValid() bool {
	return c.Validate() == nil
}

// widths returns the layer boundaries: Inputs, the hidden widths, Outputs.
func (c Config) widths() []int {
	w := make([]int, 0, c.HiddenLayers+2)
	w = append(w, c.Inputs)
	for i := 0; i < c.HiddenLayers; i++ {
		w = append(w, c.HiddenNeurons)
	}
	return append(w, c.Outputs)
}
