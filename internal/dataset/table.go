package dataset

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrEmptyTable indicates a table file without any sample rows.
var ErrEmptyTable = errors.New("table: no samples")

// LoadTable reads a sample table from path. The dataset is named after the
// file without its extension, upper-cased.
func LoadTable(path string) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dataset{}, errors.Wrap(err, "open table")
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	ds, err := ReadTable(strings.ToUpper(name), f)
	if err != nil {
		return Dataset{}, errors.Wrapf(err, "read table %s", path)
	}
	return ds, nil
}

// ReadTable parses one sample per line. Values are separated by commas or
// whitespace and the last column is the 0/1 label. Blank lines and lines
// starting with '#' are skipped.
func ReadTable(name string, r io.Reader) (Dataset, error) {
	var (
		xs     []float64
		ys     []float64
		width  = -1
		lineNo int
	)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})
		if len(fields) < 2 {
			return Dataset{}, errors.Errorf("line %d: need at least one feature and a label", lineNo)
		}
		if width == -1 {
			width = len(fields) - 1
		} else if len(fields)-1 != width {
			return Dataset{}, errors.Errorf("line %d: expected %d features, got %d", lineNo, width, len(fields)-1)
		}
		for _, field := range fields[:width] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return Dataset{}, errors.Wrapf(err, "line %d", lineNo)
			}
			xs = append(xs, v)
		}
		label, err := strconv.ParseFloat(fields[width], 64)
		if err != nil {
			return Dataset{}, errors.Wrapf(err, "line %d: label", lineNo)
		}
		if label != 0 && label != 1 {
			return Dataset{}, errors.Errorf("line %d: label must be 0 or 1 (got %g)", lineNo, label)
		}
		ys = append(ys, label)
	}
	if err := scanner.Err(); err != nil {
		return Dataset{}, err
	}
	if len(ys) == 0 {
		return Dataset{}, ErrEmptyTable
	}
	return Dataset{
		Name: name,
		X:    mat.NewDense(len(ys), width, xs),
		Y:    mat.NewVecDense(len(ys), ys),
	}, nil
}
