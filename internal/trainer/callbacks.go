package trainer

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/FlavioCFOliveira/perceptron/internal/net"
)

// EpochLogs is what callbacks see at the end of every epoch.
type EpochLogs struct {
	Epoch   int
	Loss    float64
	ValLoss float64 // NaN without a validation set
	Elapsed time.Duration
}

// Callback defines the interface for training callbacks.
type Callback interface {
	OnTrainBegin(n *net.Network) error
	OnEpochEnd(logs EpochLogs, n *net.Network) error
	OnTrainEnd(n *net.Network)
}

// Stopper is implemented by callbacks that can end training early.
type Stopper interface {
	ShouldStop() bool
}

// BaseCallback provides default empty implementations for Callback.
type BaseCallback struct{}

func (BaseCallback) OnTrainBegin(n *net.Network) error               { return nil }
func (BaseCallback) OnEpochEnd(logs EpochLogs, n *net.Network) error { return nil }
func (BaseCallback) OnTrainEnd(n *net.Network)                       {}

// monitored picks the validation loss when there is one.
func monitored(logs EpochLogs) float64 {
	if math.IsNaN(logs.ValLoss) {
		return logs.Loss
	}
	return logs.ValLoss
}

// Logger logs training progress.
type Logger struct {
	BaseCallback
	Interval int
	Out      io.Writer // defaults to os.Stdout
}

func (c Logger) OnEpochEnd(logs EpochLogs, n *net.Network) error {
	if c.Interval <= 0 || logs.Epoch%c.Interval != 0 {
		return nil
	}
	out := c.Out
	if out == nil {
		out = os.Stdout
	}
	if math.IsNaN(logs.ValLoss) {
		fmt.Fprintf(out, "Epoch %d: loss = %.6f\n", logs.Epoch, logs.Loss)
	} else {
		fmt.Fprintf(out, "Epoch %d: loss = %.6f, val_loss = %.6f\n", logs.Epoch, logs.Loss, logs.ValLoss)
	}
	return nil
}

// EarlyStopping stops training when the monitored loss has stopped improving.
// A Patience of 0 or less never stops.
type EarlyStopping struct {
	BaseCallback
	Patience  int
	Threshold float64

	best         best
	numBadEpochs int
	Stopped      bool
	StoppedAt    int
}

func NewEarlyStopping(patience int, threshold float64) *EarlyStopping {
	return &EarlyStopping{
		Patience:  patience,
		Threshold: threshold,
	}
}

func (c *EarlyStopping) OnTrainBegin(n *net.Network) error {
	c.best = best{}
	c.numBadEpochs = 0
	c.Stopped = false
	return nil
}

func (c *EarlyStopping) OnEpochEnd(logs EpochLogs, n *net.Network) error {
	if c.best.improve(monitored(logs), c.Threshold) {
		c.numBadEpochs = 0
	} else {
		c.numBadEpochs++
	}
	if c.Patience > 0 && c.numBadEpochs >= c.Patience {
		c.Stopped = true
		c.StoppedAt = logs.Epoch
	}
	return nil
}

func (c *EarlyStopping) ShouldStop() bool { return c.Stopped }

// ModelCheckpoint saves the network whenever the monitored loss is the best so far.
type ModelCheckpoint struct {
	BaseCallback
	Filename string

	best  best
	Saves int
}

func NewModelCheckpoint(filename string) *ModelCheckpoint {
	return &ModelCheckpoint{Filename: filename}
}

func (c *ModelCheckpoint) OnTrainBegin(n *net.Network) error {
	c.best = best{}
	return nil
}

func (c *ModelCheckpoint) OnEpochEnd(logs EpochLogs, n *net.Network) error {
	if !c.best.improve(monitored(logs), 0) {
		return nil
	}
	if err := n.Save(c.Filename); err != nil {
		return errors.Wrap(err, "failed to save checkpoint")
	}
	c.Saves++
	return nil
}

// best tracks the lowest loss seen since the last reset.
type best struct {
	loss float64
	seen bool
}

// improve records l if it beats the best loss by more than threshold.
func (b *best) improve(l, threshold float64) bool {
	if b.seen && !(l < b.loss-threshold) {
		return false
	}
	b.loss, b.seen = l, true
	return true
}

// CSVLogger logs training progress to a CSV file.
type CSVLogger struct {
	BaseCallback
	Filename string
	Append   bool

	file   *os.File
	writer *csv.Writer
}

// NewCSVLogger creates a new CSVLogger.
func NewCSVLogger(filename string, append bool) *CSVLogger {
	return &CSVLogger{
		Filename: filename,
		Append:   append,
	}
}

func (c *CSVLogger) OnTrainBegin(n *net.Network) error {
	mode := os.O_CREATE | os.O_WRONLY
	if c.Append {
		mode |= os.O_APPEND
	} else {
		mode |= os.O_TRUNC
	}

	file, err := os.OpenFile(c.Filename, mode, 0o644)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", c.Filename)
	}
	c.file = file
	c.writer = csv.NewWriter(file)

	// header only for a fresh file
	info, err := file.Stat()
	if err == nil && info.Size() == 0 {
		c.writer.Write([]string{"epoch", "loss", "val_loss", "time_seconds"})
		c.writer.Flush()
	}
	return c.writer.Error()
}

func (c *CSVLogger) OnEpochEnd(logs EpochLogs, n *net.Network) error {
	if c.writer == nil {
		return nil
	}
	val := ""
	if !math.IsNaN(logs.ValLoss) {
		val = strconv.FormatFloat(logs.ValLoss, 'f', 6, 64)
	}
	record := []string{
		strconv.Itoa(logs.Epoch),
		strconv.FormatFloat(logs.Loss, 'f', 6, 64),
		val,
		strconv.FormatFloat(logs.Elapsed.Seconds(), 'f', 2, 64),
	}
	if err := c.writer.Write(record); err != nil {
		return errors.Wrap(err, "failed to write record")
	}
	c.writer.Flush()
	return c.writer.Error()
}

func (c *CSVLogger) OnTrainEnd(n *net.Network) {
	if c.file != nil {
		c.writer.Flush()
		c.file.Close()
		c.file = nil
		c.writer = nil
	}
}
