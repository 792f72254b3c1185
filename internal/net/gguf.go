package net

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
)

// GGUF Constants
const (
	GGUFMagic   = 0x46554747 // "GGUF" in little-endian
	GGUFVersion = 3

	ggufAlignment = 32
)

// GGUFType is a metadata value type.
type GGUFType uint32

const (
	GGUFTypeUint32  GGUFType = 4
	GGUFTypeString  GGUFType = 8
	GGUFTypeFloat64 GGUFType = 12
)

// GGMLTypeF32 is the only tensor type written.
const GGMLTypeF32 uint32 = 0

// ggufWriter writes little-endian GGUF primitives and remembers the first error.
type ggufWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (gw *ggufWriter) write(v interface{}) {
	if gw.err != nil {
		return
	}
	gw.err = binary.Write(gw.w, binary.LittleEndian, v)
	if gw.err == nil {
		gw.n += int64(binary.Size(v))
	}
}

func (gw *ggufWriter) writeString(s string) {
	gw.write(uint64(len(s)))
	gw.write([]byte(s))
}

func (gw *ggufWriter) writeKV(key string, valType GGUFType, value interface{}) {
	gw.writeString(key)
	gw.write(uint32(valType))
	switch valType {
	case GGUFTypeUint32:
		gw.write(value.(uint32))
	case GGUFTypeFloat64:
		gw.write(value.(float64))
	case GGUFTypeString:
		gw.writeString(value.(string))
	default:
		if gw.err == nil {
			gw.err = errors.Errorf("unsupported GGUF type: %v", valType)
		}
	}
}

func (gw *ggufWriter) pad() {
	if rem := gw.n % ggufAlignment; rem != 0 {
		gw.write(make([]byte, ggufAlignment-rem))
	}
}

type ggufTensor struct {
	name  string
	shape []uint64
	data  []float32
}

// ExportGGUF writes the network's weights and biases as F32 tensors in a
// GGUF v3 file. Weights of layer i are named "blk.i.weight" with shape
// [fanIn, fanOut]; biases are "blk.i.bias".
func (n *Network) ExportGGUF(w io.Writer) error {
	n.mu.RLock()
	tensors := make([]ggufTensor, 0, 2*len(n.layers))
	for i, l := range n.layers {
		p := l.Params()
		in, out := l.FanIn(), l.FanOut()
		tensors = append(tensors,
			ggufTensor{fmt.Sprintf("blk.%d.weight", i), []uint64{uint64(in), uint64(out)}, toF32(p[:in*out])},
			ggufTensor{fmt.Sprintf("blk.%d.bias", i), []uint64{uint64(out)}, toF32(p[in*out:])},
		)
	}
	cfg := n.cfg
	n.mu.RUnlock()

	gw := &ggufWriter{w: w}
	kv := []struct {
		key string
		typ GGUFType
		val interface{}
	}{
		{"general.architecture", GGUFTypeString, "mlp"},
		{"mlp.input_length", GGUFTypeUint32, uint32(cfg.Inputs)},
		{"mlp.output_length", GGUFTypeUint32, uint32(cfg.Outputs)},
		{"mlp.block_count", GGUFTypeUint32, uint32(cfg.HiddenLayers + 1)},
		{"mlp.hidden_length", GGUFTypeUint32, uint32(cfg.HiddenNeurons)},
		{"mlp.activation", GGUFTypeString, cfg.Activation.String()},
		{"mlp.learning_rate", GGUFTypeFloat64, cfg.LearningRate},
	}

	gw.write(uint32(GGUFMagic))
	gw.write(uint32(GGUFVersion))
	gw.write(uint64(len(tensors)))
	gw.write(uint64(len(kv)))
	for _, e := range kv {
		gw.writeKV(e.key, e.typ, e.val)
	}

	var offset uint64
	for _, t := range tensors {
		gw.writeString(t.name)
		gw.write(uint32(len(t.shape)))
		// GGUF dimensions are in reverse order (last dimension first)
		for i := len(t.shape) - 1; i >= 0; i-- {
			gw.write(t.shape[i])
		}
		gw.write(GGMLTypeF32)
		gw.write(offset)
		offset = alignUp(offset + uint64(4*len(t.data)))
	}

	gw.pad()
	for _, t := range tensors {
		gw.write(t.data)
		gw.pad()
	}
	return errors.Wrap(gw.err, "failed to write gguf")
}

// SaveGGUF writes ExportGGUF output to a file.
func (n *Network) SaveGGUF(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}
	if err := n.ExportGGUF(file); err != nil {
		file.Close()
		return err
	}
	return errors.Wrap(file.Close(), "failed to close file")
}

func alignUp(x uint64) uint64 {
	return (x + ggufAlignment - 1) / ggufAlignment * ggufAlignment
}

func toF32(s []float64) []float32 {
	out := make([]float32, len(s))
	for i, v := range s {
		out[i] = float32(v)
	}
	return out
}
