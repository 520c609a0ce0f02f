package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/pksim/internal/dosing"
	"github.com/san-kum/pksim/internal/pk"
)

// Document is the flat, shareable form of a session: enough to rebuild the model inputs
// and simulation settings, without datasets, groups or results.
type Document struct {
	Equations  string             `json:"ode" yaml:"ode"`
	Initials   map[string]float64 `json:"initials" yaml:"initials"`
	Parameters map[string]float64 `json:"parameters" yaml:"parameters"`
	Doses      []dosing.Protocol  `json:"doses" yaml:"doses"`
	Settings   Settings           `json:"simulationSettings" yaml:"simulationSettings"`
}

// Format selects the document encoding.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
)

// FormatOf picks the format from a file extension. Unknown extensions are JSON.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML
	}
	return JSON
}

// Document captures the current state.
func (s *State) Document() Document {
	doses := s.Doses.Protocols()
	if doses == nil {
		doses = []dosing.Protocol{}
	}
	return Document{
		Equations:  s.Equations,
		Initials:   maps.Clone(s.Initials),
		Parameters: maps.Clone(s.Fit.Values),
		Doses:      doses,
		Settings:   s.Settings.clone(),
	}
}

// Skipped lists document entries that did not match the parsed model.
type Skipped struct {
	Initials   []string
	Parameters []string
}

func (s Skipped) Empty() bool { return len(s.Initials) == 0 && len(s.Parameters) == 0 }

// ApplyDocument replays doc onto the state after its equations were parsed into m:
// model, then initials, parameters, doses and settings. Values for names the model does
// not declare are skipped and reported. Zero settings fall back to def. Everything is
// validated first; a rejected document leaves the state untouched. Replaying the same
// document twice yields the same state.
func (s *State) ApplyDocument(doc Document, m *pk.Model, def Settings) (Skipped, error) {
	var skipped Skipped

	doses := make([]dosing.Protocol, 0, len(doc.Doses))
	for i, p := range doc.Doses {
		p = p.Normalize()
		if err := dosing.Validate(p); err != nil {
			return skipped, pk.Invalid(fmt.Sprintf("dose %d", i+1), err)
		}
		if !m.HasCompartment(p.Compartment) {
			return skipped, pk.Invalid(fmt.Sprintf("dose %d", i+1), fmt.Errorf("%w: %s", pk.ErrUnknownCompartment, p.Compartment))
		}
		doses = append(doses, p)
	}
	for _, name := range sortedKeys(doc.Initials) {
		if v := doc.Initials[name]; m.HasCompartment(name) && !pk.Finite(v) {
			return skipped, pk.Invalid("initial of "+name, fmt.Errorf("%w: %v", ErrInvalidValue, v))
		}
	}
	for _, name := range sortedKeys(doc.Parameters) {
		if v := doc.Parameters[name]; m.HasParameter(name) && !pk.Finite(v) {
			return skipped, pk.Invalid("value of "+name, fmt.Errorf("%w: %v", ErrInvalidValue, v))
		}
	}
	settings := doc.Settings.withDefaults(def)
	settings.SelectedCompartments = slices.DeleteFunc(slices.Clone(settings.SelectedCompartments), func(c string) bool { return !m.HasCompartment(c) })
	if err := settings.Validate(); err != nil {
		return skipped, err
	}

	s.ApplyModel(doc.Equations, m)
	for _, name := range sortedKeys(doc.Initials) {
		if !m.HasCompartment(name) {
			skipped.Initials = append(skipped.Initials, name)
			continue
		}
		s.Initials[name] = doc.Initials[name]
	}
	for _, name := range sortedKeys(doc.Parameters) {
		if !m.HasParameter(name) {
			skipped.Parameters = append(skipped.Parameters, name)
			continue
		}
		_ = s.Fit.SetValue(name, doc.Parameters[name])
		delete(s.Estimates, name)
	}
	if err := s.Doses.Replace(doses); err != nil {
		return skipped, pk.Invalid("doses", err)
	}
	if len(settings.SelectedCompartments) == 0 {
		settings.SelectedCompartments = slices.Clone(m.Compartments)
	}
	s.Settings = settings
	return skipped, nil
}

// Encode writes doc in format f.
func (doc Document) Encode(w io.Writer, f Format) error {
	switch f {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
}

// DecodeDocument reads a document in format f.
func DecodeDocument(r io.Reader, f Format) (Document, error) {
	var doc Document
	data, err := io.ReadAll(r)
	if err != nil {
		return doc, err
	}
	switch f {
	case JSON:
		err = json.Unmarshal(data, &doc)
	case YAML:
		err = yaml.Unmarshal(data, &doc)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
	}
	if err != nil {
		return Document{}, fmt.Errorf("session: decoding document: %w", err)
	}
	return doc, nil
}

// SaveDocument writes doc to path, picking the format from the extension.
func SaveDocument(path string, doc Document) error {
	var buf bytes.Buffer
	if err := doc.Encode(&buf, FormatOf(path)); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// LoadDocument reads a document from path, picking the format from the extension.
func LoadDocument(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return Document{}, err
	}
	defer f.Close()
	return DecodeDocument(f, FormatOf(path))
}

func sortedKeys(m map[string]float64) []string {
	return slices.Sorted(maps.Keys(m))
}
