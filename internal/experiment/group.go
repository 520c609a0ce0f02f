package experiment

import (
	"github.com/san-kum/pksim/internal/dosing"
	"github.com/san-kum/pksim/internal/observed"
	"github.com/san-kum/pksim/internal/pk"
)

// Group is one experimental arm: its own observed dataset and its own dosing, sharing the
// model and parameters with every other arm. DatasetID 0 means no dataset is chosen.
type Group struct {
	ID        int
	DatasetID int
	Doses     *dosing.List
}

// Datasets resolves dataset ids. *observed.Store satisfies it.
type Datasets interface {
	Get(id int) (*observed.Dataset, bool)
	Selected() []*observed.Dataset
}

// Payload is the plain, self-contained form of a group sent to the fitting service.
type Payload struct {
	GroupID  int               `json:"-"`
	Doses    []dosing.Protocol `json:"doses"`
	Observed *pk.TimeSeries    `json:"observed"`
	Mappings map[string]string `json:"mappings"`
}

func (g *Group) payload(index int, src Datasets) (Payload, error) {
	missing := &MissingObservedDataError{Index: index, GroupID: g.ID, DatasetID: g.DatasetID}
	if g.DatasetID == 0 {
		return Payload{}, missing
	}
	d, ok := src.Get(g.DatasetID)
	if !ok || !d.Selected {
		return Payload{}, missing
	}
	d = d.Clone()
	doses := g.Doses.Protocols()
	if doses == nil {
		doses = []dosing.Protocol{}
	}
	return Payload{
		GroupID:  g.ID,
		Doses:    doses,
		Observed: d.Data,
		Mappings: d.Mappings,
	}, nil
}
