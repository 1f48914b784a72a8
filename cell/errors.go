package cell

import "errors"

// ErrFormat marks malformed text or values that cannot become a cell.
var ErrFormat = errors.New("format error")
