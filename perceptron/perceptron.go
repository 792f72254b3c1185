// Package perceptron is the public entry point to the multilayer perceptron.
package perceptron

import (
	"context"

	"github.com/FlavioCFOliveira/perceptron/internal/activations"
	"github.com/FlavioCFOliveira/perceptron/internal/dataset"
	"github.com/FlavioCFOliveira/perceptron/internal/loss"
	"github.com/FlavioCFOliveira/perceptron/internal/net"
	"github.com/FlavioCFOliveira/perceptron/internal/trainer"
)

// Re-export common types and functions for easier access
type (
	Network    = net.Network
	Config     = net.Config
	Activation = activations.Kind
	Dataset    = dataset.Dataset
	Loss       = loss.Loss
	Options    = trainer.Options
	History    = trainer.History
	Callback   = trainer.Callback
)

// Activations
const (
	Sigmoid = activations.Sigmoid
	Tanh    = activations.Tanh
	ReLU    = activations.ReLU
)

// Errors
var (
	ErrUnknownActivation = activations.ErrUnknownActivation
	ErrInvalidConfig     = net.ErrInvalidConfig
	ErrDimensionMismatch = net.ErrDimensionMismatch
	ErrNonFinite         = net.ErrNonFinite
)

// New builds a network from cfg.
func New(cfg Config) (*Network, error) {
	return net.New(cfg)
}

// NewByName builds a network, resolving the activation from its name.
func NewByName(inputs, outputs, hiddenLayers, hiddenNeurons int, learningRate float64, activation string) (*Network, error) {
	k, err := activations.Parse(activation)
	if err != nil {
		return nil, err
	}
	return net.New(Config{
		Inputs:        inputs,
		Outputs:       outputs,
		HiddenLayers:  hiddenLayers,
		HiddenNeurons: hiddenNeurons,
		LearningRate:  learningRate,
		Activation:    k,
	})
}

// ParseActivation resolves "sigmoid", "tanh" or "relu".
func ParseActivation(name string) (Activation, error) {
	return activations.Parse(name)
}

// Model Persistence
func Load(filename string) (*Network, error) {
	return net.Load(filename)
}

// Data
func LoadCSV(filename string, labelCols []int, hasHeader bool) (*Dataset, error) {
	return dataset.LoadCSV(filename, labelCols, hasHeader)
}

func XOR() *Dataset {
	return dataset.XOR()
}

// Training
func Fit(ctx context.Context, n *Network, d *Dataset, opts Options) (History, error) {
	return trainer.Fit(ctx, n, d, opts)
}

// Losses
var (
	MSE = loss.MSE{}
	MAE = loss.MAE{}
)

// Callbacks
func Logger(interval int) trainer.Logger {
	return trainer.Logger{Interval: interval}
}

func EarlyStopping(patience int, threshold float64) *trainer.EarlyStopping {
	return trainer.NewEarlyStopping(patience, threshold)
}

func ModelCheckpoint(filename string) *trainer.ModelCheckpoint {
	return trainer.NewModelCheckpoint(filename)
}

func CSVLogger(filename string, append bool) *trainer.CSVLogger {
	return trainer.NewCSVLogger(filename, append)
}
