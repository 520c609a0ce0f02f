package pk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Wire names of the standard PK metrics.
const (
	MetricCmax     = "Cmax"
	MetricTmax     = "Tmax"
	MetricAUC      = "AUC"
	MetricHalfLife = "Half-life"
)

// Metrics holds the PK summary of one compartment. A nil field means the service could not
// compute it (for example, no terminal elimination phase for the half-life).
type Metrics struct {
	Cmax     *float64
	Tmax     *float64
	AUC      *float64
	HalfLife *float64
	Extra    map[string]*float64
}

// Entry is the summary of a single compartment.
type Entry struct {
	Compartment string
	Metrics
}

// Summary is the canonical, ordered PK summary of a simulation.
type Summary []Entry

func (s Summary) Lookup(compartment string) (Metrics, bool) {
	for _, e := range s {
		if e.Compartment == compartment {
			return e.Metrics, true
		}
	}
	return Metrics{}, false
}

// ExtraNames returns the sorted union of non-standard metric names across entries.
func (s Summary) ExtraNames() []string {
	set := make(map[string]struct{})
	for _, e := range s {
		for k := range e.Extra {
			set[k] = struct{}{}
		}
	}
	names := make([]string, 0, len(set))
	for k := range set {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (m Metrics) fields() map[string]*float64 {
	out := map[string]*float64{
		MetricCmax:     m.Cmax,
		MetricTmax:     m.Tmax,
		MetricAUC:      m.AUC,
		MetricHalfLife: m.HalfLife,
	}
	for k, v := range m.Extra {
		out[k] = v
	}
	return out
}

// MarshalJSON writes the map form, `{"A": {"Cmax": ...}}`, in summary order.
func (s Summary) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Compartment)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e.Metrics.fields())
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts the map form and the array form
// `[{"compartment": "A", "Cmax": ...}]` and normalizes both.
func (s *Summary) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = nil
		return nil
	}

	switch data[0] {
	case '{':
		return s.decodeMap(data)
	case '[':
		return s.decodeArray(data)
	default:
		return fmt.Errorf("pk: unsupported PK summary shape")
	}
}

func (s *Summary) decodeMap(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return err
	}
	var out Summary
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		var raw map[string]json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("pk: summary for %v: %w", tok, err)
		}
		out = append(out, Entry{Compartment: tok.(string), Metrics: metricsFromRaw(raw)})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*s = out
	return nil
}

func (s *Summary) decodeArray(data []byte) error {
	var rows []map[string]json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return err
	}
	out := make(Summary, 0, len(rows))
	for i, raw := range rows {
		var comp string
		if err := json.Unmarshal(raw["compartment"], &comp); err != nil || comp == "" {
			return fmt.Errorf("pk: summary row %d has no compartment", i)
		}
		delete(raw, "compartment")
		out = append(out, Entry{Compartment: comp, Metrics: metricsFromRaw(raw)})
	}
	*s = out
	return nil
}

// metricsFromRaw keeps numeric and null values; anything else is not a metric.
func metricsFromRaw(raw map[string]json.RawMessage) Metrics {
	var m Metrics
	for key, val := range raw {
		var v *float64
		if err := json.Unmarshal(val, &v); err != nil {
			continue
		}
		switch key {
		case MetricCmax:
			m.Cmax = v
		case MetricTmax:
			m.Tmax = v
		case MetricAUC:
			m.AUC = v
		case MetricHalfLife, "HalfLife", "HL_half_life":
			m.HalfLife = v
		default:
			if m.Extra == nil {
				m.Extra = make(map[string]*float64)
			}
			m.Extra[key] = v
		}
	}
	return m
}
