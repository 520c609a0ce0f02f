package observed

import "errors"

var (
	ErrNoHeader        = errors.New("observed: file has no header row")
	ErrNoTimeColumn    = errors.New("observed: no column named 'time'")
	ErrDuplicateColumn = errors.New("observed: duplicate column name")
	ErrNotFound        = errors.New("observed: no dataset with that id")
	ErrUnknownColumn   = errors.New("observed: dataset has no such column")
)
