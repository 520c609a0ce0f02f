package observed

import (
	"fmt"
	"slices"

	"github.com/san-kum/pksim/internal/pk"
)

// Store holds the observed datasets of a session keyed by id. Ids and colours derive from
// the insertion counter, which never goes backwards, so removing a dataset cannot retarget
// or recolour another one.
type Store struct {
	datasets []*Dataset
	inserted int
}

func NewStore() *Store { return &Store{} }

// Ingest parses rows into a new selected dataset named name. model may be nil when the
// equations have not been parsed yet; otherwise matching columns are mapped automatically.
// A rejected file leaves the store unchanged and is reported as a *pk.DataIngestionError.
func (s *Store) Ingest(name string, rows [][]string, model *pk.Model) (*Dataset, []Warning, error) {
	ts, warnings, err := Parse(rows)
	if err != nil {
		return nil, nil, &pk.DataIngestionError{File: name, Err: err}
	}

	s.inserted++
	d := &Dataset{
		ID:       s.inserted,
		Name:     name,
		Color:    Palette[(s.inserted-1)%len(Palette)],
		Selected: true,
		Data:     ts,
		Mappings: make(map[string]string),
	}
	d.autoMap(model)
	s.datasets = append(s.datasets, d)
	return d, warnings, nil
}

// Get returns the dataset with id. The returned value is owned by the store.
func (s *Store) Get(id int) (*Dataset, bool) {
	i := s.index(id)
	if i < 0 {
		return nil, false
	}
	return s.datasets[i], true
}

func (s *Store) SetSelected(id int, selected bool) error {
	d, ok := s.Get(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	d.Selected = selected
	return nil
}

func (s *Store) Remove(id int) error {
	i := s.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	s.datasets = slices.Delete(s.datasets, i, i+1)
	return nil
}

// SetMapping records a user mapping of column to variable; an empty variable unmaps the
// column. Either way the column is marked as user edited.
func (s *Store) SetMapping(id int, column, variable string) error {
	d, ok := s.Get(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if _, ok := d.Data.Column(column); !ok {
		return fmt.Errorf("%w: %s has no column %q", ErrUnknownColumn, d.Name, column)
	}
	if d.Edited == nil {
		d.Edited = make(map[string]bool)
	}
	if d.Mappings == nil {
		d.Mappings = make(map[string]string)
	}
	d.Edited[column] = true
	if variable == "" {
		delete(d.Mappings, column)
		return nil
	}
	d.Mappings[column] = variable
	return nil
}

// AutoMap re-runs the name-matching heuristic on every dataset against model.
func (s *Store) AutoMap(model *pk.Model) {
	for _, d := range s.datasets {
		d.autoMap(model)
	}
}

// All returns the datasets in insertion order.
func (s *Store) All() []*Dataset { return slices.Clone(s.datasets) }

// Selected returns the selected datasets in insertion order.
func (s *Store) Selected() []*Dataset {
	var out []*Dataset
	for _, d := range s.datasets {
		if d.Selected {
			out = append(out, d)
		}
	}
	return out
}

func (s *Store) Len() int { return len(s.datasets) }

func (s *Store) index(id int) int {
	return slices.IndexFunc(s.datasets, func(d *Dataset) bool { return d.ID == id })
}

// Snapshot is the persisted form of a Store.
type Snapshot struct {
	Datasets []*Dataset `json:"datasets"`
	Inserted int        `json:"inserted"`
}

func (s *Store) Snapshot() Snapshot {
	out := Snapshot{Inserted: s.inserted}
	for _, d := range s.datasets {
		out.Datasets = append(out.Datasets, d.Clone())
	}
	return out
}

// Restore rebuilds a store from a snapshot.
func Restore(snap Snapshot) (*Store, error) {
	s := &Store{inserted: snap.Inserted}
	for _, d := range snap.Datasets {
		if d.Data == nil {
			return nil, fmt.Errorf("observed: dataset %d has no data", d.ID)
		}
		if err := d.Data.Validate(); err != nil {
			return nil, fmt.Errorf("observed: dataset %d: %w", d.ID, err)
		}
		if d.ID > s.inserted {
			s.inserted = d.ID
		}
		if d.Mappings == nil {
			d.Mappings = make(map[string]string)
		}
		s.datasets = append(s.datasets, d)
	}
	return s, nil
}
