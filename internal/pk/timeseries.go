package pk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
)

// TimeKey is the canonical name of the time axis on the wire.
const TimeKey = "Time"

// Column holds one series aligned with a Time axis. NaN marks a missing sample.
type Column []float64

// Missing is the value stored for a missing sample.
var Missing = math.NaN()

// IsMissing reports whether v marks a missing sample.
func IsMissing(v float64) bool { return math.IsNaN(v) }

// Present counts the non-missing samples.
func (c Column) Present() int {
	n := 0
	for _, v := range c {
		if !IsMissing(v) {
			n++
		}
	}
	return n
}

func (c Column) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, v := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		if !Finite(v) {
			buf.WriteString("null")
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func (c *Column) UnmarshalJSON(data []byte) error {
	var raw []*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Column, len(raw))
	for i, v := range raw {
		if v == nil {
			out[i] = Missing
			continue
		}
		out[i] = *v
	}
	*c = out
	return nil
}

// TimeSeries is a Time axis with named columns of equal length. Names keeps column order.
type TimeSeries struct {
	Time    []float64
	Names   []string
	Columns map[string]Column
}

func NewTimeSeries(time []float64) *TimeSeries {
	return &TimeSeries{Time: time, Columns: make(map[string]Column)}
}

// Len returns the number of samples on the time axis.
func (ts *TimeSeries) Len() int { return len(ts.Time) }

// AddColumn appends a named column. The column must be aligned with Time.
func (ts *TimeSeries) AddColumn(name string, col Column) error {
	if name == TimeKey {
		return fmt.Errorf("pk: column name %q is reserved", TimeKey)
	}
	if len(col) != len(ts.Time) {
		return fmt.Errorf("%w: %s has %d values, time has %d", ErrMisaligned, name, len(col), len(ts.Time))
	}
	if ts.Columns == nil {
		ts.Columns = make(map[string]Column)
	}
	if _, ok := ts.Columns[name]; !ok {
		ts.Names = append(ts.Names, name)
	}
	ts.Columns[name] = col
	return nil
}

func (ts *TimeSeries) Column(name string) (Column, bool) {
	c, ok := ts.Columns[name]
	return c, ok
}

// Validate checks the alignment invariant for every column.
func (ts *TimeSeries) Validate() error {
	for _, name := range ts.Names {
		if col, ok := ts.Columns[name]; !ok || len(col) != len(ts.Time) {
			return fmt.Errorf("%w: %s", ErrMisaligned, name)
		}
	}
	if len(ts.Names) != len(ts.Columns) {
		return fmt.Errorf("pk: column index out of sync with columns")
	}
	return nil
}

func (ts *TimeSeries) Clone() *TimeSeries {
	if ts == nil {
		return nil
	}
	c := &TimeSeries{
		Time:    slices.Clone(ts.Time),
		Names:   slices.Clone(ts.Names),
		Columns: make(map[string]Column, len(ts.Columns)),
	}
	for k, v := range ts.Columns {
		c.Columns[k] = slices.Clone(v)
	}
	return c
}

// MarshalJSON encodes the flat object form with Time first and columns in order.
func (ts TimeSeries) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"Time":`)
	t, err := Column(ts.Time).MarshalJSON()
	if err != nil {
		return nil, err
	}
	buf.Write(t)
	for _, name := range ts.Names {
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		col, err := ts.Columns[name].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(col)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes the flat object form, keeping the key order of the document.
func (ts *TimeSeries) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("pk: time series must be a JSON object")
	}

	out := TimeSeries{Columns: make(map[string]Column)}
	hasTime := false
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key := tok.(string)
		var col Column
		if err := dec.Decode(&col); err != nil {
			return fmt.Errorf("pk: column %q: %w", key, err)
		}
		if key == TimeKey {
			out.Time = col
			hasTime = true
			continue
		}
		if _, dup := out.Columns[key]; !dup {
			out.Names = append(out.Names, key)
		}
		out.Columns[key] = col
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	if !hasTime {
		return fmt.Errorf("pk: time series has no %q axis", TimeKey)
	}
	if err := out.Validate(); err != nil {
		return err
	}
	*ts = out
	return nil
}
