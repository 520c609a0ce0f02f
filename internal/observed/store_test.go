package observed

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/pksim/internal/pk"
)

func rows(csv string) [][]string {
	r, err := ReadCSV(strings.NewReader(csv))
	if err != nil {
		panic(err)
	}
	return r
}

func TestIngestBuildsAlignedSeries(t *testing.T) {
	s := NewStore()
	d, warnings, err := s.Ingest("obs.csv", rows("TIME,C,D\n0,1.5,2\n1,oops,3\n2,0.5,\n"), nil)
	require.NoError(t, err)
	require.Empty(t, warnings)

	assert.Equal(t, []float64{0, 1, 2}, d.Data.Time)
	assert.Equal(t, []string{"C", "D"}, d.Data.Names)
	c := d.Data.Columns["C"]
	require.Len(t, c, 3)
	assert.True(t, pk.IsMissing(c[1]), "unparseable value must become missing, not zero")
	assert.True(t, pk.IsMissing(d.Data.Columns["D"][2]))
	assert.True(t, d.Selected)
	assert.Equal(t, Palette[0], d.Color)
}

func TestIngestDropsBadRowsWithWarnings(t *testing.T) {
	s := NewStore()
	d, warnings, err := s.Ingest("obs.csv", rows("time,C\n0,1\n1,2,3\nx,4\n2,5\n"), nil)
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 2}, d.Data.Time)
	require.Len(t, warnings, 2)
	assert.Equal(t, 3, warnings[0].Row)
	assert.Equal(t, 4, warnings[1].Row)
	assert.NoError(t, d.Data.Validate())
}

func TestIngestRejectsFileWithoutTime(t *testing.T) {
	s := NewStore()
	_, _, err := s.Ingest("first.csv", rows("time,C\n0,1\n"), nil)
	require.NoError(t, err)
	_, _, err = s.Ingest("dose.csv", rows("hour,C\n0,1\n"), nil)

	var ingestErr *pk.DataIngestionError
	require.ErrorAs(t, err, &ingestErr)
	assert.Equal(t, "dose.csv", ingestErr.File)
	assert.ErrorIs(t, err, ErrNoTimeColumn)
	assert.Equal(t, 1, s.Len(), "rejected file must not change the store")
}

func TestIngestRejectsEmptyFile(t *testing.T) {
	s := NewStore()
	_, _, err := s.Ingest("empty.csv", nil, nil)
	assert.ErrorIs(t, err, ErrNoHeader)
	assert.Zero(t, s.Len())
}

func TestIdsAndColorsSurviveRemoval(t *testing.T) {
	s := NewStore()
	var ids []int
	for i := 0; i < len(Palette); i++ {
		d, _, err := s.Ingest("f.csv", rows("time,C\n0,1\n"), nil)
		require.NoError(t, err)
		ids = append(ids, d.ID)
	}
	require.NoError(t, s.Remove(ids[0]))

	d, _, err := s.Ingest("next.csv", rows("time,C\n0,1\n"), nil)
	require.NoError(t, err)
	assert.NotContains(t, ids, d.ID)
	assert.Equal(t, Palette[len(Palette)%len(Palette)], d.Color)

	second, ok := s.Get(ids[1])
	require.True(t, ok)
	assert.Equal(t, Palette[1], second.Color)
}

func TestAutoMapRespectsUserEdits(t *testing.T) {
	model := &pk.Model{
		Compartments:       []string{"A", "B"},
		Parameters:         []string{"k"},
		DerivedExpressions: map[string]string{"Cp": "A/V"},
	}
	s := NewStore()
	d, _, err := s.Ingest("obs.csv", rows("time,A,B,Cp,k\n0,1,2,3,4\n"), model)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"A": "A", "B": "B", "Cp": "Cp"}, d.Mappings)

	require.NoError(t, s.SetMapping(d.ID, "A", "B"))
	require.NoError(t, s.SetMapping(d.ID, "B", ""))
	s.AutoMap(model)

	v, ok := d.Mapping("A")
	assert.True(t, ok)
	assert.Equal(t, "B", v)
	_, ok = d.Mapping("B")
	assert.False(t, ok, "explicit unmapping must survive auto-map")

	s.AutoMap(&pk.Model{Compartments: []string{"A"}})
	_, ok = d.Mapping("Cp")
	assert.False(t, ok, "auto mapping to a vanished variable is cleared")
}

func TestSetMappingErrors(t *testing.T) {
	s := NewStore()
	d, _, err := s.Ingest("obs.csv", rows("time,C\n0,1\n"), nil)
	require.NoError(t, err)

	assert.ErrorIs(t, s.SetMapping(d.ID, "nope", "A"), ErrUnknownColumn)
	assert.ErrorIs(t, s.SetMapping(99, "C", "A"), ErrNotFound)
	assert.ErrorIs(t, s.SetSelected(99, true), ErrNotFound)
	assert.ErrorIs(t, s.Remove(99), ErrNotFound)
}

func TestSelected(t *testing.T) {
	s := NewStore()
	a, _, _ := s.Ingest("a.csv", rows("time,C\n0,1\n"), nil)
	b, _, _ := s.Ingest("b.csv", rows("time,C\n0,1\n"), nil)
	require.NoError(t, s.SetSelected(a.ID, false))

	sel := s.Selected()
	require.Len(t, sel, 1)
	assert.Equal(t, b.ID, sel[0].ID)
}

func TestIngestFilesKeepsGoingPastBadFile(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
		return p
	}
	paths := []string{
		write("a.csv", "time,C\n0,1\n1,2\n"),
		write("bad.csv", "t,C\n0,1\n"),
		filepath.Join(dir, "missing.csv"),
		write("b.csv", "Time,D\n0,3\n"),
	}

	s := NewStore()
	results := s.IngestFiles(context.Background(), paths, nil)
	require.Len(t, results, 4)

	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, ErrNoTimeColumn)
	var ingestErr *pk.DataIngestionError
	require.True(t, errors.As(results[2].Err, &ingestErr))
	assert.Equal(t, "missing.csv", ingestErr.File)
	assert.NoError(t, results[3].Err)

	all := s.All()
	require.Len(t, all, 2)
	assert.Equal(t, "a.csv", all[0].Name)
	assert.Equal(t, "b.csv", all[1].Name)
}

func TestSnapshotRestore(t *testing.T) {
	s := NewStore()
	s.Ingest("a.csv", rows("time,C\n0,1\n"), nil)
	b, _, _ := s.Ingest("b.csv", rows("time,C\n0,1\n"), nil)
	require.NoError(t, s.Remove(b.ID))

	restored, err := Restore(s.Snapshot())
	require.NoError(t, err)
	d, _, err := restored.Ingest("c.csv", rows("time,C\n0,1\n"), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, d.ID)
	assert.Equal(t, Palette[2], d.Color)
}
