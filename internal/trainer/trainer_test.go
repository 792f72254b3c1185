package trainer

import (
	"bytes"
	"context"
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FlavioCFOliveira/perceptron/internal/activations"
	"github.com/FlavioCFOliveira/perceptron/internal/dataset"
	"github.com/FlavioCFOliveira/perceptron/internal/net"
)

func newNet(t *testing.T) *net.Network {
	t.Helper()
	n, err := net.New(net.Config{
		Inputs:        2,
		Outputs:       1,
		HiddenLayers:  1,
		HiddenNeurons: 4,
		LearningRate:  0.5,
		Activation:    activations.Sigmoid,
		Seed:          3,
	})
	require.NoError(t, err)
	return n
}

func twoPoints() *dataset.Dataset {
	return &dataset.Dataset{
		Samples: [][]float64{{1, 0}, {0, 1}},
		Labels:  [][]float64{{0.9}, {0.1}},
	}
}

// recorder counts callback invocations.
type recorder struct {
	BaseCallback
	begins, ends int
	epochs       []int
}

func (r *recorder) OnTrainBegin(n *net.Network) error { r.begins++; return nil }
func (r *recorder) OnEpochEnd(logs EpochLogs, n *net.Network) error {
	r.epochs = append(r.epochs, logs.Epoch)
	return nil
}
func (r *recorder) OnTrainEnd(n *net.Network) { r.ends++ }

func TestFitReducesLoss(t *testing.T) {
	n := newNet(t)
	rec := &recorder{}

	h, err := Fit(context.Background(), n, twoPoints(), Options{
		Epochs:    300,
		Shuffle:   true,
		Seed:      1,
		Callbacks: []Callback{rec},
	})
	require.NoError(t, err)

	assert.Equal(t, 300, h.Epochs())
	assert.Empty(t, h.ValLoss)
	assert.False(t, h.Stopped)
	assert.Less(t, h.Loss[len(h.Loss)-1], h.Loss[0])

	assert.Equal(t, 1, rec.begins)
	assert.Equal(t, 1, rec.ends)
	assert.Len(t, rec.epochs, 300)
}

func TestFitValidation(t *testing.T) {
	n := newNet(t)
	h, err := Fit(context.Background(), n, twoPoints(), Options{
		Epochs:     5,
		Validation: twoPoints(),
	})
	require.NoError(t, err)
	require.Len(t, h.ValLoss, 5)
	assert.Equal(t, h.Loss, h.ValLoss)
}

func TestFitRejectsBadInput(t *testing.T) {
	n := newNet(t)

	_, err := Fit(context.Background(), n, twoPoints(), Options{})
	assert.Error(t, err)

	_, err = Fit(context.Background(), n, &dataset.Dataset{}, Options{Epochs: 1})
	assert.True(t, errors.Is(err, dataset.ErrEmpty))

	wide := &dataset.Dataset{Samples: [][]float64{{1, 2, 3}}, Labels: [][]float64{{1}}}
	_, err = Fit(context.Background(), n, wide, Options{Epochs: 1})
	assert.True(t, errors.Is(err, net.ErrDimensionMismatch))

	_, err = Fit(context.Background(), n, twoPoints(), Options{Epochs: 1, Validation: wide})
	assert.True(t, errors.Is(err, net.ErrDimensionMismatch))
}

func TestFitCancelled(t *testing.T) {
	n := newNet(t)
	before := n.Params()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &recorder{}
	h, err := Fit(ctx, n, twoPoints(), Options{Epochs: 10, Callbacks: []Callback{rec}})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, h.Epochs())
	assert.Equal(t, before, n.Params())
	assert.Equal(t, 1, rec.ends)
}

func TestEarlyStopping(t *testing.T) {
	es := NewEarlyStopping(2, 0)
	require.NoError(t, es.OnTrainBegin(nil))

	for i, l := range []float64{1, 0.5, 0.6, 0.7} {
		require.NoError(t, es.OnEpochEnd(EpochLogs{Epoch: i, Loss: l, ValLoss: math.NaN()}, nil))
	}
	assert.True(t, es.ShouldStop())
	assert.Equal(t, 3, es.StoppedAt)

	// validation loss wins when present
	require.NoError(t, es.OnTrainBegin(nil))
	require.NoError(t, es.OnEpochEnd(EpochLogs{Loss: 0, ValLoss: 5}, nil))
	require.NoError(t, es.OnEpochEnd(EpochLogs{Loss: 0, ValLoss: 4}, nil))
	assert.False(t, es.ShouldStop())

	// patience 0 disables stopping
	off := NewEarlyStopping(0, 0)
	require.NoError(t, off.OnTrainBegin(nil))
	for i, l := range []float64{1, 2, 3, 4, 5} {
		require.NoError(t, off.OnEpochEnd(EpochLogs{Epoch: i, Loss: l, ValLoss: math.NaN()}, nil))
	}
	assert.False(t, off.ShouldStop())
}

func TestFitEarlyStop(t *testing.T) {
	n := newNet(t)
	// a huge threshold means no epoch ever counts as an improvement after the first
	es := NewEarlyStopping(3, 1e9)

	h, err := Fit(context.Background(), n, twoPoints(), Options{Epochs: 100, Callbacks: []Callback{es}})
	require.NoError(t, err)
	assert.True(t, h.Stopped)
	assert.Equal(t, 4, h.Epochs())
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	l := Logger{Interval: 2, Out: &buf}

	for i := 0; i < 4; i++ {
		require.NoError(t, l.OnEpochEnd(EpochLogs{Epoch: i, Loss: 0.25, ValLoss: math.NaN()}, nil))
	}
	require.NoError(t, l.OnEpochEnd(EpochLogs{Epoch: 4, Loss: 0.25, ValLoss: 0.5}, nil))

	assert.Equal(t,
		"Epoch 0: loss = 0.250000\nEpoch 2: loss = 0.250000\nEpoch 4: loss = 0.250000, val_loss = 0.500000\n",
		buf.String())
}

func TestCSVLogger(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "log.csv")
	n := newNet(t)

	_, err := Fit(context.Background(), n, twoPoints(), Options{
		Epochs:    3,
		Callbacks: []Callback{NewCSVLogger(filename, false)},
	})
	require.NoError(t, err)

	f, err := os.Open(filename)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 4)
	assert.Equal(t, []string{"epoch", "loss", "val_loss", "time_seconds"}, records[0])
	assert.Equal(t, "2", records[3][0])
	assert.Equal(t, "", records[3][2])

	// appending keeps the old rows and writes no second header
	_, err = Fit(context.Background(), n, twoPoints(), Options{
		Epochs:    1,
		Callbacks: []Callback{NewCSVLogger(filename, true)},
	})
	require.NoError(t, err)
	data, err := os.ReadFile(filename)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "epoch"))
	assert.Equal(t, 5, strings.Count(string(data), "\n"))
}

func TestModelCheckpoint(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "best.gob")
	n := newNet(t)
	mc := NewModelCheckpoint(filename)

	require.NoError(t, mc.OnEpochEnd(EpochLogs{Loss: 1, ValLoss: math.NaN()}, n))
	require.NoError(t, mc.OnEpochEnd(EpochLogs{Loss: 2, ValLoss: math.NaN()}, n))
	require.NoError(t, mc.OnEpochEnd(EpochLogs{Loss: 0.5, ValLoss: math.NaN()}, n))
	assert.Equal(t, 2, mc.Saves)

	got, err := net.Load(filename)
	require.NoError(t, err)
	assert.Equal(t, n.Params(), got.Params())
}

func TestModelCheckpointReuse(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "best.gob")
	n := newNet(t)
	mc := &ModelCheckpoint{Filename: filename}

	h, err := Fit(context.Background(), n, twoPoints(), Options{Epochs: 3, Callbacks: []Callback{mc}})
	require.NoError(t, err)
	require.Equal(t, 3, h.Epochs())
	first := mc.Saves
	assert.Positive(t, first)

	// a second run starts from a fresh best loss
	_, err = Fit(context.Background(), n, twoPoints(), Options{Epochs: 1, Callbacks: []Callback{mc}})
	require.NoError(t, err)
	assert.Equal(t, first+1, mc.Saves)
}
