package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/san-kum/pksim/internal/pk"
)

// ErrEmptyProfile is returned when there is nothing to export.
var ErrEmptyProfile = errors.New("storage: profile has no samples")

// WriteProfileCSV writes the profile with a time column followed by the named columns,
// or every column when names is empty.
func WriteProfileCSV(w io.Writer, ts *pk.TimeSeries, names []string) error {
	if ts == nil || ts.Len() == 0 {
		return ErrEmptyProfile
	}
	if len(names) == 0 {
		names = ts.Names
	}
	cols := make([]pk.Column, len(names))
	for i, name := range names {
		col, ok := ts.Column(name)
		if !ok {
			return fmt.Errorf("storage: profile has no column %q", name)
		}
		cols[i] = col
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{pk.TimeKey}, names...)); err != nil {
		return err
	}
	row := make([]string, len(names)+1)
	for i, t := range ts.Time {
		row[0] = formatFloat(t)
		for j, col := range cols {
			row[j+1] = formatSample(col[i])
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WritePKCSV writes one row per compartment with the standard metrics, then any extra
// metric names in sorted order.
func WritePKCSV(w io.Writer, s pk.Summary) error {
	extra := s.ExtraNames()
	header := []string{"compartment", pk.MetricCmax, pk.MetricTmax, pk.MetricAUC, pk.MetricHalfLife}
	header = append(header, extra...)

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, e := range s {
		row := []string{e.Compartment,
			formatMetric(e.Cmax), formatMetric(e.Tmax), formatMetric(e.AUC), formatMetric(e.HalfLife)}
		for _, name := range extra {
			row = append(row, formatMetric(e.Extra[name]))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportProfile writes the profile CSV to path.
func ExportProfile(path string, ts *pk.TimeSeries, names []string) error {
	return writeFile(path, func(w io.Writer) error { return WriteProfileCSV(w, ts, names) })
}

// ExportPK writes the PK summary CSV to path.
func ExportPK(path string, s pk.Summary) error {
	return writeFile(path, func(w io.Writer) error { return WritePKCSV(w, s) })
}

func writeFile(path string, fn func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatSample(v float64) string {
	if pk.IsMissing(v) {
		return ""
	}
	return formatFloat(v)
}

func formatMetric(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
