package util

import (
	"bytes"
	"encoding/json"
)

// Opt is a tri-state JSON field: absent, explicit null, or a value.
// Absent fields leave the target untouched; null clears it.
type Opt[T any] struct {
	Set   bool
	Null  bool
	Value T
}

func (o *Opt[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(b, []byte("null")) {
		o.Null = true
		return nil
	}
	return json.Unmarshal(b, &o.Value)
}

// Apply overwrites dst when the field carried a value, zeroes it on null,
// and leaves it alone when absent.
func (o Opt[T]) Apply(dst *T) bool {
	if !o.Set {
		return false
	}
	if o.Null {
		var zero T
		*dst = zero
		return true
	}
	*dst = o.Value
	return true
}
