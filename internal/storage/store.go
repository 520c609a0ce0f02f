package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/pksim/internal/pk"
	"github.com/san-kum/pksim/internal/solver"
)

const (
	metadataFile = "metadata.json"
	profileFile  = "profile.csv"
	pkFile       = "pk.csv"
)

// ErrRunNotFound is returned for an unknown run id.
var ErrRunNotFound = errors.New("storage: run not found")

// Run kinds recorded in metadata.
const (
	KindSimulation = "simulation"
	KindFit        = "fit"
)

type Store struct {
	baseDir string
	now     func() time.Time
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir, now: time.Now}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// RunMetadata describes an archived run.
type RunMetadata struct {
	ID           string             `json:"id"`
	Kind         string             `json:"kind"`
	Session      string             `json:"session"`
	Timestamp    time.Time          `json:"timestamp"`
	Equations    string             `json:"equations"`
	Parameters   map[string]float64 `json:"parameters"`
	Initials     map[string]float64 `json:"initials,omitempty"`
	Compartments []string           `json:"compartments,omitempty"`
	TStart       float64            `json:"t_start,omitempty"`
	TEnd         float64            `json:"t_end,omitempty"`
	TSteps       int                `json:"t_steps,omitempty"`
	Doses        int                `json:"doses"`

	Weighting string            `json:"weighting,omitempty"`
	Groups    int               `json:"groups,omitempty"`
	Estimates []solver.Estimate `json:"estimates,omitempty"`
	SSRTotal  *float64          `json:"ssr_total,omitempty"`
	NFev      int               `json:"nfev,omitempty"`
	Message   string            `json:"message,omitempty"`
}

// SaveSimulation archives a successful simulation with its profile and PK summary.
func (s *Store) SaveSimulation(sessionID string, req *solver.SimulateRequest, res *solver.SimulateResult) (string, error) {
	meta := RunMetadata{
		Kind:         KindSimulation,
		Session:      sessionID,
		Equations:    req.Equations,
		Parameters:   req.Parameters,
		Initials:     req.Initials,
		Compartments: req.Compartments,
		TStart:       req.TStart,
		TEnd:         req.TEnd,
		TSteps:       req.TSteps,
		Doses:        len(req.Doses),
	}
	err := s.create(&meta, func(runDir string) error {
		if res.Profile != nil && res.Profile.Len() > 0 {
			if err := ExportProfile(filepath.Join(runDir, profileFile), res.Profile, nil); err != nil {
				return err
			}
		}
		return ExportPK(filepath.Join(runDir, pkFile), res.PK)
	})
	if err != nil {
		return "", err
	}
	return meta.ID, nil
}

// SaveFit archives a successful fit with the values it started from.
func (s *Store) SaveFit(sessionID string, req *solver.FitRequest, res *solver.FitResult) (string, error) {
	doses := 0
	for _, g := range req.Groups {
		doses += len(g.Doses)
	}
	meta := RunMetadata{
		Kind:       KindFit,
		Session:    sessionID,
		Equations:  req.Equations,
		Parameters: req.Params,
		Initials:   req.Initials,
		Doses:      doses,
		Weighting:  string(req.Weighting),
		Groups:     len(req.Groups),
		Estimates:  res.Params,
		SSRTotal:   res.SSRTotal,
		NFev:       res.NFev,
		Message:    res.Message,
	}
	if err := s.create(&meta, nil); err != nil {
		return "", err
	}
	return meta.ID, nil
}

// create writes a new run directory: the artifacts from write first, the metadata last.
// A run that fails halfway is removed.
func (s *Store) create(meta *RunMetadata, write func(runDir string) error) (err error) {
	meta.ID = uuid.NewString()
	meta.Timestamp = s.now()
	runDir := filepath.Join(s.baseDir, meta.ID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.RemoveAll(runDir)
		}
	}()

	if write != nil {
		if err := write(runDir); err != nil {
			return fmt.Errorf("storage: run %s: %w", meta.ID, err)
		}
	}
	return writeMetadata(filepath.Join(runDir, metadataFile), meta)
}

func writeMetadata(path string, meta *RunMetadata) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// List returns every archived run, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	slices.SortFunc(runs, func(a, b RunMetadata) int { return a.Timestamp.Compare(b.Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("storage: run %s: %w", runID, err)
	}
	return &meta, nil
}

// LoadProfile reads the archived profile of a simulation run. Empty cells come back as
// missing samples.
func (s *Store) LoadProfile(runID string) (*pk.TimeSeries, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, profileFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s has no profile", ErrRunNotFound, runID)
		}
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, ErrEmptyProfile
	}

	header := records[0]
	times := make([]float64, 0, len(records)-1)
	cols := make([]pk.Column, len(header)-1)
	for _, record := range records[1:] {
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, fmt.Errorf("storage: run %s: bad time %q", runID, record[0])
		}
		times = append(times, t)
		for j := 1; j < len(record); j++ {
			v := pk.Missing
			if record[j] != "" {
				if v, err = strconv.ParseFloat(record[j], 64); err != nil {
					return nil, fmt.Errorf("storage: run %s: bad value %q", runID, record[j])
				}
			}
			cols[j-1] = append(cols[j-1], v)
		}
	}

	ts := pk.NewTimeSeries(times)
	for j, name := range header[1:] {
		if err := ts.AddColumn(name, cols[j]); err != nil {
			return nil, err
		}
	}
	return ts, nil
}
