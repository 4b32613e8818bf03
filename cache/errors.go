package cache

import "github.com/cockroachdb/errors"

// ErrInvalidConfig is returned by New when an option is out of range.
var ErrInvalidConfig = errors.New("cache: invalid configuration")

// ErrTypeMismatch is returned by GetAs when a cached value cannot be converted to the requested type.
var ErrTypeMismatch = errors.New("cache: type mismatch")
