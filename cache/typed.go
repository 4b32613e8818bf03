package cache

import (
	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// GetAs retrieves a typed value from the cache. Values stored by this
// process are returned with a direct type assertion. Values restored from a
// store are plain maps, slices and numbers; they are converted to T through
// msgpack.
func GetAs[T any](c *Cache, key string, opts ...EntryOption) (T, bool, error) {
	var zero T
	val, found := c.Get(key, opts...)
	if !found {
		return zero, false, nil
	}
	if typed, ok := val.(T); ok {
		return typed, true, nil
	}
	data, err := msgpack.Marshal(val)
	if err != nil {
		return zero, false, errors.Mark(errors.Wrapf(err, "cache: cannot convert value of type %T to %T", val, zero), ErrTypeMismatch)
	}
	var result T
	if err := msgpack.Unmarshal(data, &result); err != nil {
		return zero, false, errors.Mark(errors.Wrapf(err, "cache: cannot convert value of type %T to %T", val, zero), ErrTypeMismatch)
	}
	return result, true, nil
}
