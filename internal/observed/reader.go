package observed

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/pksim/internal/pk"
)

// ReadCSV tokenizes r into rows. Rows may have differing field counts; Parse decides what
// to keep.
func ReadCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'
	return cr.ReadAll()
}

// File is the outcome of reading one file in a batch.
type File struct {
	Path string
	Rows [][]string
	Err  error
}

// Name is the display name of the file.
func (f File) Name() string { return filepath.Base(f.Path) }

// ReadFiles reads paths concurrently. Each file's error is kept on its own result, so one
// unreadable file does not affect the others. Results follow the order of paths.
func ReadFiles(ctx context.Context, paths []string) []File {
	out := make([]File, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, path := range paths {
		g.Go(func() error {
			out[i] = readFile(ctx, path)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func readFile(ctx context.Context, path string) File {
	if err := ctx.Err(); err != nil {
		return File{Path: path, Err: err}
	}
	f, err := os.Open(path)
	if err != nil {
		return File{Path: path, Err: err}
	}
	defer f.Close()
	rows, err := ReadCSV(f)
	return File{Path: path, Rows: rows, Err: err}
}

// Result is the ingestion outcome of one file.
type Result struct {
	File     string
	Dataset  *Dataset
	Warnings []Warning
	Err      error
}

// IngestFiles reads paths and ingests them in argument order. A failing file yields a
// *pk.DataIngestionError naming it and the rest of the batch still goes through.
func (s *Store) IngestFiles(ctx context.Context, paths []string, model *pk.Model) []Result {
	files := ReadFiles(ctx, paths)
	results := make([]Result, 0, len(files))
	for _, f := range files {
		res := Result{File: f.Name()}
		if f.Err != nil {
			var ingestErr *pk.DataIngestionError
			if !errors.As(f.Err, &ingestErr) {
				f.Err = &pk.DataIngestionError{File: f.Name(), Err: f.Err}
			}
			res.Err = f.Err
			results = append(results, res)
			continue
		}
		res.Dataset, res.Warnings, res.Err = s.Ingest(f.Name(), f.Rows, model)
		results = append(results, res)
	}
	return results
}
