package experiment

import (
	"errors"
	"fmt"
)

var (
	ErrNoGroups            = errors.New("experiment: add at least one experimental group")
	ErrNotFound            = errors.New("experiment: no group with that id")
	ErrMissingObservedData = errors.New("experiment: no selected observed dataset")
)

// MissingObservedDataError names the group that cannot be resolved. Index is the group's
// 0-based position in the list at the time of the check.
type MissingObservedDataError struct {
	Index     int
	GroupID   int
	DatasetID int
}

func (e *MissingObservedDataError) Error() string {
	if e.DatasetID == 0 {
		return fmt.Sprintf("group %d (#%d) has no observed data selected", e.Index+1, e.GroupID)
	}
	return fmt.Sprintf("group %d (#%d) references dataset %d, which is missing or not selected", e.Index+1, e.GroupID, e.DatasetID)
}

func (e *MissingObservedDataError) Unwrap() error { return ErrMissingObservedData }
