package net

import (
	"encoding/gob"
	"io"
	"os"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/FlavioCFOliveira/perceptron/internal/activations"
	"github.com/FlavioCFOliveira/perceptron/internal/layer"
)

// formatVersion is bumped whenever the gob layout changes.
const formatVersion = 1

// ErrBadFormat is returned when a saved network cannot be decoded.
var ErrBadFormat = errors.New("bad network encoding")

type header struct {
	Version       int
	Inputs        int
	Outputs       int
	HiddenLayers  int
	HiddenNeurons int
	LearningRate  float64
	Activation    string
	Seed          int64
	NumLayers     int
}

// layerRecord holds one layer's parameters in gonum's binary matrix format.
type layerRecord struct {
	FanIn   int
	FanOut  int
	Weights []byte
	Bias    []byte
}

// Save saves the network to a file using gob encoding.
func (n *Network) Save(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}
	if err := n.Encode(file); err != nil {
		file.Close()
		return err
	}
	return errors.Wrap(file.Close(), "failed to close file")
}

// Load loads a network saved with Save.
func Load(filename string) (*Network, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open file")
	}
	defer file.Close()
	return Decode(file)
}

// Encode writes the configuration and every layer's parameters to w.
func (n *Network) Encode(w io.Writer) error {
	n.mu.RLock()
	defer n.mu.RUnlock()

	enc := gob.NewEncoder(w)
	h := header{
		Version:       formatVersion,
		Inputs:        n.cfg.Inputs,
		Outputs:       n.cfg.Outputs,
		HiddenLayers:  n.cfg.HiddenLayers,
		HiddenNeurons: n.cfg.HiddenNeurons,
		LearningRate:  n.cfg.LearningRate,
		Activation:    n.cfg.Activation.String(),
		Seed:          n.cfg.Seed,
		NumLayers:     len(n.layers),
	}
	if err := enc.Encode(h); err != nil {
		return errors.Wrap(err, "failed to encode header")
	}

	for i, l := range n.layers {
		wb, err := l.Weights().MarshalBinary()
		if err != nil {
			return errors.Wrapf(err, "failed to marshal weights of layer %d", i)
		}
		bb, err := l.Bias().MarshalBinary()
		if err != nil {
			return errors.Wrapf(err, "failed to marshal bias of layer %d", i)
		}
		rec := layerRecord{FanIn: l.FanIn(), FanOut: l.FanOut(), Weights: wb, Bias: bb}
		if err := enc.Encode(rec); err != nil {
			return errors.Wrapf(err, "failed to encode layer %d", i)
		}
	}
	return nil
}

// Decode reads a network written by Encode.
func Decode(r io.Reader) (*Network, error) {
	dec := gob.NewDecoder(r)

	var h header
	if err := dec.Decode(&h); err != nil {
		return nil, errors.Wrap(err, "failed to read header")
	}
	if h.Version != formatVersion {
		return nil, errors.Wrapf(ErrBadFormat, "version %d, want %d", h.Version, formatVersion)
	}

	kind, err := activations.Parse(h.Activation)
	if err != nil {
		return nil, err
	}
	if h.HiddenLayers < 0 || h.NumLayers != h.HiddenLayers+1 {
		return nil, errors.Wrapf(ErrBadFormat, "%d layers for %d hidden", h.NumLayers, h.HiddenLayers)
	}
	cfg := Config{
		Inputs:        h.Inputs,
		Outputs:       h.Outputs,
		HiddenLayers:  h.HiddenLayers,
		HiddenNeurons: h.HiddenNeurons,
		LearningRate:  h.LearningRate,
		Activation:    kind,
		Seed:          h.Seed,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	act, err := activations.Lookup(kind)
	if err != nil {
		return nil, err
	}

	widths := cfg.widths()

	layers := make([]*layer.Layer, h.NumLayers)
	for i := range layers {
		var rec layerRecord
		if err := dec.Decode(&rec); err != nil {
			return nil, errors.Wrapf(err, "failed to read layer %d", i)
		}
		if rec.FanIn != widths[i] || rec.FanOut != widths[i+1] {
			return nil, errors.Wrapf(ErrBadFormat, "layer %d is %dx%d, want %dx%d",
				i, rec.FanIn, rec.FanOut, widths[i], widths[i+1])
		}

		var w mat.Dense
		if err := w.UnmarshalBinary(rec.Weights); err != nil {
			return nil, errors.Wrapf(err, "failed to unmarshal weights of layer %d", i)
		}
		var b mat.VecDense
		if err := b.UnmarshalBinary(rec.Bias); err != nil {
			return nil, errors.Wrapf(err, "failed to unmarshal bias of layer %d", i)
		}
		if r, c := w.Dims(); r != rec.FanIn || c != rec.FanOut {
			return nil, errors.Wrapf(ErrBadFormat, "layer %d weights are %dx%d", i, r, c)
		}

		l, err := layer.FromParams(&w, &b, act)
		if err != nil {
			return nil, errors.Wrapf(err, "layer %d", i)
		}
		layers[i] = l
	}

	return &Network{cfg: cfg, layers: layers}, nil
}
