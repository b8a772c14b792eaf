package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/forest-guardian/phenology-zones/internal/failure"
	"github.com/gocarina/gocsv"
)

// columnWriter sits between gocsv and the csv.Writer. It reorders every row
// to the declared columns and rejects rows with an empty or NaN cell.
type columnWriter struct {
	out     *csv.Writer
	columns []string
	order   []int
	rows    int
	err     error
}

func (w *columnWriter) Write(row []string) error {
	if w.err != nil {
		return w.err
	}
	if w.order == nil {
		w.err = w.header(row)
		if w.err != nil {
			return w.err
		}
		return w.out.Write(w.columns)
	}

	out := make([]string, len(w.order))
	for i, j := range w.order {
		cell := row[j]
		if cell == "" || strings.EqualFold(cell, "NaN") {
			w.err = failure.New(failure.SchemaMismatch, w.columns[i], "row %d has no value for column %s", w.rows+1, w.columns[i])
			return w.err
		}
		out[i] = cell
	}
	w.rows++
	return w.out.Write(out)
}

func (w *columnWriter) header(fields []string) error {
	w.order = make([]int, len(w.columns))
	for i, col := range w.columns {
		j := slices.Index(fields, col)
		if j < 0 {
			return failure.New(failure.SchemaMismatch, col, "records have no column %s", col)
		}
		w.order[i] = j
	}
	return nil
}

func (w *columnWriter) Flush() {
	w.out.Flush()
}

func (w *columnWriter) Error() error {
	if w.err != nil {
		return w.err
	}
	return w.out.Error()
}

// WriteCSV writes records to path in the given order under a header of
// columns, and returns the number of rows written. Every column must exist
// on the record type and hold a value in every record.
func WriteCSV[T any](records []T, path string, columns []string) (int, error) {
	if len(columns) == 0 {
		return 0, failure.New(failure.SchemaMismatch, "columns", "no columns declared for %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	writer := &columnWriter{out: csv.NewWriter(file), columns: columns}
	if err := gocsv.MarshalCSV(&records, writer); err != nil {
		if writer.err != nil {
			return writer.rows, writer.err
		}
		return writer.rows, fmt.Errorf("failed to write %s: %w", path, err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return writer.rows, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return writer.rows, file.Close()
}

func readCSV[T any](path string) ([]T, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	var records []T
	if err := gocsv.UnmarshalFile(file, &records); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return records, nil
}

func ReadZoneStats(path string) ([]ZoneStat, error) {
	return readCSV[ZoneStat](path)
}

func ReadPointValues(path string) ([]PointValue, error) {
	return readCSV[PointValue](path)
}
