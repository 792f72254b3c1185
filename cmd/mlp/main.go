// Command mlp trains a multilayer perceptron on a CSV file, or on XOR when
// no file is given, and prints its predictions.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/FlavioCFOliveira/perceptron/internal/activations"
	"github.com/FlavioCFOliveira/perceptron/internal/dataset"
	"github.com/FlavioCFOliveira/perceptron/internal/net"
	"github.com/FlavioCFOliveira/perceptron/internal/trainer"
)

type options struct {
	data      string
	labels    string
	header    bool
	normalize bool
	split     float64
	describe  bool

	hiddenLayers  int
	hiddenNeurons int
	lr            float64
	act           activations.Kind
	seed          int64

	epochs   int
	shuffle  bool
	patience int
	logEvery int
	csvLog   string

	save string
	load string
	gguf string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	o := options{act: activations.Sigmoid}
	fs := flag.NewFlagSet("mlp", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&o.data, "data", "", "CSV file with samples (empty = XOR)")
	fs.StringVar(&o.labels, "labels", "", "comma separated label column indices (default: last column)")
	fs.BoolVar(&o.header, "header", false, "skip the first CSV line")
	fs.BoolVar(&o.normalize, "normalize", false, "min-max normalize features")
	fs.Float64Var(&o.split, "split", 1, "fraction of samples used for training, the rest validates")
	fs.BoolVar(&o.describe, "describe", false, "print per-feature statistics and exit")

	fs.IntVar(&o.hiddenLayers, "hidden-layers", 1, "number of hidden layers")
	fs.IntVar(&o.hiddenNeurons, "hidden-neurons", 4, "neurons per hidden layer")
	fs.Float64Var(&o.lr, "lr", 0.1, "learning rate")
	fs.TextVar(&o.act, "act", activations.Sigmoid, "activation: sigmoid, tanh or relu")
	fs.Int64Var(&o.seed, "seed", 0, "random seed (0 = random)")

	fs.IntVar(&o.epochs, "epochs", 5000, "training epochs")
	fs.BoolVar(&o.shuffle, "shuffle", false, "shuffle samples every epoch")
	fs.IntVar(&o.patience, "patience", 0, "early stopping patience in epochs (0 = off)")
	fs.IntVar(&o.logEvery, "log-every", 500, "print the loss every N epochs (0 = never)")
	fs.StringVar(&o.csvLog, "csv-log", "", "write per-epoch losses to this CSV file")

	fs.StringVar(&o.save, "save", "", "save the trained network to this file")
	fs.StringVar(&o.load, "load", "", "load a saved network instead of building one")
	fs.StringVar(&o.gguf, "gguf", "", "export the trained weights as GGUF to this file")

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	return o, nil
}

func loadData(o options) (*dataset.Dataset, error) {
	if o.data == "" {
		return dataset.XOR(), nil
	}
	cols, err := labelColumns(o)
	if err != nil {
		return nil, err
	}
	return dataset.LoadCSV(o.data, cols, o.header)
}

// labelColumns parses -labels, defaulting to the file's last column.
func labelColumns(o options) ([]int, error) {
	if o.labels == "" {
		n, err := dataset.Columns(o.data)
		if err != nil {
			return nil, err
		}
		return []int{n - 1}, nil
	}
	var cols []int
	for _, s := range strings.Split(o.labels, ",") {
		c, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return nil, errors.Wrapf(err, "bad label column %q", s)
		}
		cols = append(cols, c)
	}
	return cols, nil
}

func buildNetwork(o options, d *dataset.Dataset) (*net.Network, error) {
	if o.load != "" {
		return net.Load(o.load)
	}
	inputs, outputs := d.Widths()
	return net.New(net.Config{
		Inputs:        inputs,
		Outputs:       outputs,
		HiddenLayers:  o.hiddenLayers,
		HiddenNeurons: o.hiddenNeurons,
		LearningRate:  o.lr,
		Activation:    o.act,
		Seed:          o.seed,
	})
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	d, err := loadData(o)
	if err != nil {
		return errors.Wrap(err, "failed to load data")
	}
	if o.describe {
		return describe(stdout, d)
	}
	if o.normalize {
		d.Normalize()
	}

	train, val := d.Split(o.split)
	if train.Len() == 0 {
		return errors.Errorf("split %.2f leaves no training samples", o.split)
	}

	n, err := buildNetwork(o, d)
	if err != nil {
		return errors.Wrap(err, "failed to build network")
	}
	cfg := n.Config()
	fmt.Fprintf(stdout, "Network: %d inputs, %d hidden layers x %d, %d outputs, %s, lr %g\n",
		cfg.Inputs, cfg.HiddenLayers, cfg.HiddenNeurons, cfg.Outputs, cfg.Activation, cfg.LearningRate)
	fmt.Fprintf(stdout, "Samples: %d train, %d validation\n", train.Len(), val.Len())

	opts := trainer.Options{
		Epochs:    o.epochs,
		Shuffle:   o.shuffle,
		Seed:      o.seed,
		Callbacks: []trainer.Callback{trainer.Logger{Interval: o.logEvery, Out: stdout}},
	}
	if val.Len() > 0 {
		opts.Validation = val
	}
	var es *trainer.EarlyStopping
	if o.patience > 0 {
		es = trainer.NewEarlyStopping(o.patience, 0)
		opts.Callbacks = append(opts.Callbacks, es)
	}
	if o.csvLog != "" {
		opts.Callbacks = append(opts.Callbacks, trainer.NewCSVLogger(o.csvLog, false))
	}

	h, err := trainer.Fit(ctx, n, train, opts)
	if err != nil {
		return errors.Wrap(err, "training failed")
	}
	if h.Stopped && es != nil {
		fmt.Fprintf(stdout, "Early stopping at epoch %d\n", es.StoppedAt)
	}
	if h.Epochs() > 0 {
		fmt.Fprintf(stdout, "Final loss: %.6f\n", h.Loss[h.Epochs()-1])
	}

	fmt.Fprintln(stdout, "Results:")
	for i, s := range train.Samples {
		if i == 10 {
			fmt.Fprintf(stdout, "  ... %d more\n", train.Len()-i)
			break
		}
		pred, err := n.Predict(s)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "  %v -> %s (target: %v)\n", s, formatVec(pred), train.Labels[i])
	}

	if o.save != "" {
		if err := n.Save(o.save); err != nil {
			return errors.Wrap(err, "failed to save network")
		}
		fmt.Fprintf(stdout, "Saved network to %s\n", o.save)
	}
	if o.gguf != "" {
		if err := n.SaveGGUF(o.gguf); err != nil {
			return errors.Wrap(err, "failed to export gguf")
		}
		fmt.Fprintf(stdout, "Exported GGUF to %s\n", o.gguf)
	}
	return nil
}

func describe(w io.Writer, d *dataset.Dataset) error {
	s, err := d.Describe()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%d samples\n", d.Len())
	fmt.Fprintf(w, "%-8s %12s %12s %12s %12s\n", "feature", "mean", "std", "min", "max")
	for j := range s.Mean {
		fmt.Fprintf(w, "%-8d %12.4f %12.4f %12.4f %12.4f\n", j, s.Mean[j], s.StdDev[j], s.Ranges[j].Min, s.Ranges[j].Max)
	}
	return nil
}

func formatVec(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatFloat(x, 'f', 4, 64)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "mlp: %v\n", err)
		os.Exit(1)
	}
}
