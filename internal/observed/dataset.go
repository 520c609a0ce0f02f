package observed

import (
	"maps"

	"github.com/san-kum/pksim/internal/pk"
)

// Palette is the fixed colour cycle assigned to datasets in insertion order.
var Palette = []string{"#d9534f", "#0275d8", "#5cb85c", "#f0ad4e", "#6f42c1"}

// Dataset is one ingested observation file. Mappings link data columns to model variables;
// a column without an entry is unmapped. Edited marks columns the user has set explicitly,
// including explicit unmapping, so the auto-mapper leaves them alone.
type Dataset struct {
	ID       int               `json:"id"`
	Name     string            `json:"name"`
	Color    string            `json:"color"`
	Selected bool              `json:"selected"`
	Data     *pk.TimeSeries    `json:"data"`
	Mappings map[string]string `json:"mappings"`
	Edited   map[string]bool   `json:"edited,omitempty"`
}

// Mapping returns the model variable of column, if any.
func (d *Dataset) Mapping(column string) (string, bool) {
	v, ok := d.Mappings[column]
	return v, ok
}

// MappedColumns returns the mapped column names in column order.
func (d *Dataset) MappedColumns() []string {
	var cols []string
	for _, name := range d.Data.Names {
		if _, ok := d.Mappings[name]; ok {
			cols = append(cols, name)
		}
	}
	return cols
}

// Clone returns a deep copy, safe to hand to an in-flight request.
func (d *Dataset) Clone() *Dataset {
	c := *d
	c.Data = d.Data.Clone()
	c.Mappings = maps.Clone(d.Mappings)
	c.Edited = maps.Clone(d.Edited)
	if c.Mappings == nil {
		c.Mappings = make(map[string]string)
	}
	return &c
}

// autoMap fills mappings for columns whose names match an observable model variable.
// Columns the user edited are never touched.
func (d *Dataset) autoMap(model *pk.Model) {
	if model == nil {
		return
	}
	if d.Mappings == nil {
		d.Mappings = make(map[string]string)
	}
	for _, col := range d.Data.Names {
		if d.Edited[col] {
			continue
		}
		if model.IsObservable(col) {
			d.Mappings[col] = col
		} else {
			delete(d.Mappings, col)
		}
	}
}
