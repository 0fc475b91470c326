package repository

import "errors"

var (
	ErrStudentNotFound = errors.New("student not found")
	// ErrStaleSnapshot means payments were recorded for a student after its ledger was built.
	ErrStaleSnapshot = errors.New("ledger snapshot is stale")
)
