package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/FlavioCFOliveira/perceptron/perceptron"
)

func main() {
	if err := run(os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(out io.Writer) error {
	fmt.Fprintln(out, "=== XOR Training Example ===")

	// 2 inputs -> 3 hidden -> 1 output, tanh everywhere
	cfg := perceptron.Config{
		Inputs:        2,
		Outputs:       1,
		HiddenLayers:  1,
		HiddenNeurons: 3,
		LearningRate:  0.1,
		Activation:    perceptron.Tanh,
		Seed:          42,
	}
	fmt.Fprintf(out, "Network architecture: %d-%d-%d\n", cfg.Inputs, cfg.HiddenNeurons, cfg.Outputs)
	fmt.Fprintf(out, "Activation: %s, learning rate %g\n", cfg.Activation, cfg.LearningRate)

	network, err := perceptron.New(cfg)
	if err != nil {
		return err
	}

	data := perceptron.XOR()
	logger := perceptron.Logger(500)
	logger.Out = out

	history, err := perceptron.Fit(context.Background(), network, data, perceptron.Options{
		Epochs:    5000,
		Loss:      perceptron.MSE,
		Callbacks: []perceptron.Callback{logger},
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Final loss after %d epochs: %.4f\n", history.Epochs(), history.Loss[history.Epochs()-1])

	fmt.Fprintln(out, "\nResults:")
	for i, x := range data.Samples {
		pred, err := network.Predict(x)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  %v -> %.4f (target: %.0f, |err| %.4f)\n",
			x, pred[0], data.Labels[i][0], math.Abs(data.Labels[i][0]-pred[0]))
	}
	return nil
}
