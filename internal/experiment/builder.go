package experiment

import (
	"fmt"
	"slices"

	"github.com/san-kum/pksim/internal/dosing"
)

// Builder keeps the ordered list of experimental groups. Group ids increase monotonically
// and are never reused, so a late callback holding a removed id finds nothing instead of
// another group.
type Builder struct {
	groups []*Group
	nextID int
}

func NewBuilder() *Builder { return &Builder{nextID: 1} }

// AddGroup appends an empty group and returns its id. When exactly one selected dataset
// exists it is preselected.
func (b *Builder) AddGroup(src Datasets) int {
	if b.nextID == 0 {
		b.nextID = 1
	}
	g := &Group{ID: b.nextID, Doses: dosing.NewList()}
	b.nextID++
	if src != nil {
		if sel := src.Selected(); len(sel) == 1 {
			g.DatasetID = sel[0].ID
		}
	}
	b.groups = append(b.groups, g)
	return g.ID
}

func (b *Builder) RemoveGroup(id int) error {
	i := b.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	b.groups = slices.Delete(b.groups, i, i+1)
	return nil
}

// SetDataset binds group id to datasetID; 0 clears the binding. Existence is checked at
// payload time, since the dataset may be removed or deselected in between.
func (b *Builder) SetDataset(id, datasetID int) error {
	g, ok := b.Group(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	g.DatasetID = datasetID
	return nil
}

func (b *Builder) AddDose(id int, p dosing.Protocol) (int, error) {
	g, ok := b.Group(id)
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return g.Doses.Add(p)
}

func (b *Builder) RemoveDose(id, doseID int) error {
	g, ok := b.Group(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return g.Doses.Remove(doseID)
}

func (b *Builder) Group(id int) (*Group, bool) {
	i := b.index(id)
	if i < 0 {
		return nil, false
	}
	return b.groups[i], true
}

func (b *Builder) Groups() []*Group { return slices.Clone(b.groups) }
func (b *Builder) Len() int         { return len(b.groups) }

// ToRequestPayload resolves every group against src. It fails on the first group without a
// resolvable, selected dataset and returns nothing in that case.
func (b *Builder) ToRequestPayload(src Datasets) ([]Payload, error) {
	if len(b.groups) == 0 {
		return nil, ErrNoGroups
	}
	out := make([]Payload, 0, len(b.groups))
	for i, g := range b.groups {
		p, err := g.payload(i, src)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (b *Builder) index(id int) int {
	return slices.IndexFunc(b.groups, func(g *Group) bool { return g.ID == id })
}

// GroupSnapshot is the persisted form of a Group.
type GroupSnapshot struct {
	ID        int             `json:"id"`
	DatasetID int             `json:"dataset_id"`
	Doses     dosing.Snapshot `json:"doses"`
}

// Snapshot is the persisted form of a Builder.
type Snapshot struct {
	Groups []GroupSnapshot `json:"groups"`
	NextID int             `json:"next_id"`
}

func (b *Builder) Snapshot() Snapshot {
	s := Snapshot{NextID: b.nextID}
	for _, g := range b.groups {
		s.Groups = append(s.Groups, GroupSnapshot{ID: g.ID, DatasetID: g.DatasetID, Doses: g.Doses.Snapshot()})
	}
	return s
}

// Restore rebuilds a builder from a snapshot.
func Restore(s Snapshot) (*Builder, error) {
	b := &Builder{nextID: s.NextID}
	for _, gs := range s.Groups {
		doses, err := dosing.Restore(gs.Doses)
		if err != nil {
			return nil, fmt.Errorf("experiment: group %d: %w", gs.ID, err)
		}
		if gs.ID >= b.nextID {
			b.nextID = gs.ID + 1
		}
		b.groups = append(b.groups, &Group{ID: gs.ID, DatasetID: gs.DatasetID, Doses: doses})
	}
	if b.nextID == 0 {
		b.nextID = 1
	}
	return b, nil
}
