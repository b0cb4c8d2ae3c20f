package store

import "errors"

// ErrInvalidInput indicates a caller-supplied value failed validation
// before any mutation took place. Missing records are not errors: lookup
// paths report them as empty results or a false second return.
var ErrInvalidInput = errors.New("invalid input")
