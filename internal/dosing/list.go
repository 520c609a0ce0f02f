package dosing

import "slices"

// List is an ordered sequence of validated protocols. Insertion order is display order,
// and entries are removed by id, never by position.
type List struct {
	entries []Entry
	nextID  int
}

func NewList() *List { return &List{nextID: 1} }

// Add normalizes and validates p, then appends it. A rejected protocol leaves the list unchanged.
func (l *List) Add(p Protocol) (int, error) {
	p = p.Normalize()
	if err := Validate(p); err != nil {
		return 0, err
	}
	if l.nextID == 0 {
		l.nextID = 1
	}
	id := l.nextID
	l.nextID++
	l.entries = append(l.entries, Entry{ID: id, Protocol: p})
	return id, nil
}

func (l *List) Remove(id int) error {
	i := slices.IndexFunc(l.entries, func(e Entry) bool { return e.ID == id })
	if i < 0 {
		return ErrNotFound
	}
	l.entries = slices.Delete(l.entries, i, i+1)
	return nil
}

// Replace validates every protocol first and swaps the contents only when all pass.
// Ids keep increasing across replacements.
func (l *List) Replace(ps []Protocol) error {
	normalized := make([]Protocol, len(ps))
	for i, p := range ps {
		normalized[i] = p.Normalize()
		if err := Validate(normalized[i]); err != nil {
			return err
		}
	}
	if l.nextID == 0 {
		l.nextID = 1
	}
	entries := make([]Entry, 0, len(ps))
	for _, p := range normalized {
		entries = append(entries, Entry{ID: l.nextID, Protocol: p})
		l.nextID++
	}
	l.entries = entries
	return nil
}

func (l *List) Get(id int) (Protocol, bool) {
	for _, e := range l.entries {
		if e.ID == id {
			return e.Protocol, true
		}
	}
	return Protocol{}, false
}

func (l *List) Entries() []Entry { return slices.Clone(l.entries) }
func (l *List) Len() int         { return len(l.entries) }

// Protocols returns the plain protocols in list order.
func (l *List) Protocols() []Protocol {
	out := make([]Protocol, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.Protocol
	}
	return out
}

// Snapshot is the persisted form of a List.
type Snapshot struct {
	Entries []Entry `json:"entries"`
	NextID  int     `json:"next_id"`
}

func (l *List) Snapshot() Snapshot {
	return Snapshot{Entries: l.Entries(), NextID: l.nextID}
}

// Restore rebuilds a list from a snapshot, revalidating every entry.
func Restore(s Snapshot) (*List, error) {
	l := &List{nextID: s.NextID}
	for _, e := range s.Entries {
		if err := Validate(e.Protocol); err != nil {
			return nil, err
		}
		if e.ID >= l.nextID {
			l.nextID = e.ID + 1
		}
		l.entries = append(l.entries, e)
	}
	if l.nextID == 0 {
		l.nextID = 1
	}
	return l, nil
}
