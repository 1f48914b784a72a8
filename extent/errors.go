package extent

import "errors"

var (
	// ErrCapacity is returned when records do not fit into an extent.
	ErrCapacity = errors.New("extent capacity exceeded")

	// ErrConsistency covers schema, page size, name and id mismatches between
	// a table and an extent handed to it.
	ErrConsistency = errors.New("table consistency violation")

	ErrOutOfRange = errors.New("index out of range")
	ErrNotFound   = errors.New("not found")
	ErrClosed     = errors.New("writer closed")
)
