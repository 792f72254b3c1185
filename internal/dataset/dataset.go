// Package dataset loads and prepares labelled samples for online training.
package dataset

import (
	"encoding/csv"
	"io"
	"math/rand"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrEmpty is returned when a source holds no data rows.
var ErrEmpty = errors.New("dataset is empty")

// Dataset represents a collection of samples and labels.
// Samples[i] is paired with Labels[i].
type Dataset struct {
	Samples [][]float64
	Labels  [][]float64
}

// XOR returns the four-sample exclusive-or truth table.
func XOR() *Dataset {
	return &Dataset{
		Samples: [][]float64{{0, 0}, {0, 1}, {1, 0}, {1, 1}},
		Labels:  [][]float64{{0}, {1}, {1}, {0}},
	}
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	return len(d.Samples)
}

// Widths returns the feature and label widths of the first sample.
func (d *Dataset) Widths() (features, labels int) {
	if d.Len() == 0 {
		return 0, 0
	}
	return len(d.Samples[0]), len(d.Labels[0])
}

// LoadCSV loads data from a CSV file.
// labelCols specifies the indices of columns to be used as labels.
// All other columns are used as features.
// hasHeader skips the first line if true.
func LoadCSV(filename string, labelCols []int, hasHeader bool) (*Dataset, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open file")
	}
	defer file.Close()
	return Read(file, labelCols, hasHeader)
}

// Columns returns the number of fields in the first record of a CSV file.
func Columns(filename string) (int, error) {
	file, err := os.Open(filename)
	if err != nil {
		return 0, errors.Wrap(err, "failed to open file")
	}
	defer file.Close()

	record, err := csv.NewReader(file).Read()
	if err == io.EOF {
		return 0, errors.Wrap(ErrEmpty, "csv has no records")
	}
	if err != nil {
		return 0, errors.Wrap(err, "failed to read csv")
	}
	return len(record), nil
}

// Read parses CSV records from r. See LoadCSV.
func Read(r io.Reader, labelCols []int, hasHeader bool) (*Dataset, error) {
	cr := csv.NewReader(r)
	// column counts are checked per row below
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read csv")
	}

	startRow := 0
	if hasHeader {
		startRow = 1
	}
	if len(records) <= startRow {
		return nil, errors.Wrap(ErrEmpty, "csv has no data rows")
	}

	numCols := len(records[0])
	isLabelCol := make(map[int]bool, len(labelCols))
	for _, col := range labelCols {
		if col < 0 || col >= numCols {
			return nil, errors.Errorf("label column %d out of range [0,%d)", col, numCols)
		}
		if isLabelCol[col] {
			return nil, errors.Errorf("label column %d listed twice", col)
		}
		isLabelCol[col] = true
	}
	if len(labelCols) == 0 || len(labelCols) == numCols {
		return nil, errors.Errorf("need at least one feature and one label column, got %d labels of %d columns", len(labelCols), numCols)
	}

	numSamples := len(records) - startRow
	d := &Dataset{
		Samples: make([][]float64, 0, numSamples),
		Labels:  make([][]float64, 0, numSamples),
	}

	for i := startRow; i < len(records); i++ {
		record := records[i]
		if len(record) != numCols {
			return nil, errors.Errorf("inconsistent number of columns at row %d: %d, want %d", i, len(record), numCols)
		}

		values := make([]float64, numCols)
		for j, s := range record {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to parse value at row %d, col %d", i, j)
			}
			values[j] = v
		}

		sample := make([]float64, 0, numCols-len(labelCols))
		for j, v := range values {
			if !isLabelCol[j] {
				sample = append(sample, v)
			}
		}
		// labels keep the order given in labelCols
		label := make([]float64, 0, len(labelCols))
		for _, col := range labelCols {
			label = append(label, values[col])
		}

		d.Samples = append(d.Samples, sample)
		d.Labels = append(d.Labels, label)
	}
	return d, nil
}

// Range is the observed [Min, Max] of one feature.
type Range struct {
	Min, Max float64
}

// Normalize performs min-max normalization on the samples in place and
// returns the per-feature ranges it used. Constant features become 0.
func (d *Dataset) Normalize() []Range {
	features, _ := d.Widths()
	ranges := make([]Range, features)
	col := make([]float64, d.Len())
	for j := range ranges {
		for i, s := range d.Samples {
			col[i] = s[j]
		}
		ranges[j] = Range{Min: floats.Min(col), Max: floats.Max(col)}
	}
	d.Apply(ranges)
	return ranges
}

// Apply rescales every sample with ranges computed by Normalize.
func (d *Dataset) Apply(ranges []Range) {
	for _, s := range d.Samples {
		for j, r := range ranges {
			if j >= len(s) {
				break
			}
			if diff := r.Max - r.Min; diff != 0 {
				s[j] = (s[j] - r.Min) / diff
			} else {
				s[j] = 0
			}
		}
	}
}

// Split splits the dataset into two based on the given ratio (0.0 to 1.0).
// Returns two new Datasets (train, test) sharing the underlying rows.
func (d *Dataset) Split(ratio float64) (*Dataset, *Dataset) {
	if ratio <= 0 {
		return &Dataset{}, d
	}
	if ratio >= 1 {
		return d, &Dataset{}
	}

	splitIdx := int(float64(d.Len()) * ratio)
	train := &Dataset{
		Samples: d.Samples[:splitIdx],
		Labels:  d.Labels[:splitIdx],
	}
	test := &Dataset{
		Samples: d.Samples[splitIdx:],
		Labels:  d.Labels[splitIdx:],
	}
	return train, test
}

// Shuffle permutes samples and labels together.
func (d *Dataset) Shuffle(rng *rand.Rand) {
	rng.Shuffle(d.Len(), func(i, j int) {
		d.Samples[i], d.Samples[j] = d.Samples[j], d.Samples[i]
		d.Labels[i], d.Labels[j] = d.Labels[j], d.Labels[i]
	})
}

// Summary holds per-feature statistics.
type Summary struct {
	Mean   []float64
	StdDev []float64
	Ranges []Range
}

// Describe computes the mean, sample standard deviation and range of every
// feature.
func (d *Dataset) Describe() (Summary, error) {
	if d.Len() == 0 {
		return Summary{}, ErrEmpty
	}
	features, _ := d.Widths()
	s := Summary{
		Mean:   make([]float64, features),
		StdDev: make([]float64, features),
		Ranges: make([]Range, features),
	}
	col := make([]float64, d.Len())
	for j := 0; j < features; j++ {
		for i, sample := range d.Samples {
			col[i] = sample[j]
		}
		s.Mean[j], s.StdDev[j] = stat.MeanStdDev(col, nil)
		s.Ranges[j] = Range{Min: floats.Min(col), Max: floats.Max(col)}
	}
	return s, nil
}
