package observed

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/san-kum/pksim/internal/pk"
)

// Warning describes a row dropped during ingestion. Row is 1-based and counts the header.
type Warning struct {
	Row    int
	Reason string
}

func (w Warning) String() string { return fmt.Sprintf("row %d: %s", w.Row, w.Reason) }

// Parse turns tabular rows (header first) into a time series. Rows with the wrong number of
// fields or an unreadable time value are dropped with a warning; unreadable values in other
// columns become missing samples so every column stays aligned with Time.
func Parse(rows [][]string) (*pk.TimeSeries, []Warning, error) {
	if len(rows) == 0 || isBlank(rows[0]) {
		return nil, nil, ErrNoHeader
	}

	header := make([]string, len(rows[0]))
	timeIdx := -1
	seen := make(map[string]bool, len(header))
	for i, h := range rows[0] {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		header[i] = h
		if strings.EqualFold(h, "time") {
			if timeIdx >= 0 {
				return nil, nil, fmt.Errorf("%w: %s", ErrDuplicateColumn, h)
			}
			timeIdx = i
			continue
		}
		if h == "" {
			continue
		}
		if seen[h] || h == pk.TimeKey {
			return nil, nil, fmt.Errorf("%w: %s", ErrDuplicateColumn, h)
		}
		seen[h] = true
	}
	if timeIdx < 0 {
		return nil, nil, ErrNoTimeColumn
	}

	var (
		warnings []Warning
		times    []float64
		values   = make([][]float64, len(header))
	)
	for r, row := range rows[1:] {
		line := r + 2
		if isBlank(row) {
			continue
		}
		if len(row) != len(header) {
			warnings = append(warnings, Warning{Row: line, Reason: fmt.Sprintf("expected %d fields, got %d", len(header), len(row))})
			continue
		}
		t, err := parseNumber(row[timeIdx])
		if err != nil {
			warnings = append(warnings, Warning{Row: line, Reason: fmt.Sprintf("unreadable time %q", row[timeIdx])})
			continue
		}
		times = append(times, t)
		for i, field := range row {
			if i == timeIdx || header[i] == "" {
				continue
			}
			v, err := parseNumber(field)
			if err != nil {
				v = pk.Missing
			}
			values[i] = append(values[i], v)
		}
	}

	ts := pk.NewTimeSeries(times)
	if ts.Time == nil {
		ts.Time = []float64{}
	}
	for i, name := range header {
		if i == timeIdx || name == "" {
			continue
		}
		col := pk.Column(values[i])
		if col == nil {
			col = pk.Column{}
		}
		if err := ts.AddColumn(name, col); err != nil {
			return nil, nil, err
		}
	}
	return ts, warnings, nil
}

func parseNumber(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if !pk.Finite(v) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}

func isBlank(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
