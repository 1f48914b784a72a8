package schema

import "errors"

var (
	// ErrSchemaViolation covers field count, affinity, nullability and column
	// definition failures.
	ErrSchemaViolation = errors.New("schema violation")
	ErrKey             = errors.New("invalid key")
	ErrHeader          = errors.New("invalid header")
)
