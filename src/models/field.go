package models

import (
	"bytes"
	"encoding/json"
)

type fieldState uint8

const (
	fieldUnset fieldState = iota
	fieldClear
	fieldSet
)

// Field is the three-state optional used by partial updates. An absent JSON
// key leaves the stored value unchanged, an explicit null clears it, and a
// value sets it. The zero value means "leave unchanged", so a decoded request
// body only carries the keys the client actually sent.
type Field[T any] struct {
	state fieldState
	value T
}

// SetField returns a Field holding v.
func SetField[T any](v T) Field[T] { return Field[T]{state: fieldSet, value: v} }

// ClearField returns a Field that clears the stored value.
func ClearField[T any]() Field[T] { return Field[T]{state: fieldClear} }

func (f Field[T]) IsUnset() bool { return f.state == fieldUnset }
func (f Field[T]) IsClear() bool { return f.state == fieldClear }
func (f Field[T]) IsSet() bool   { return f.state == fieldSet }

// Value returns the held value; ok is false unless the field is set.
func (f Field[T]) Value() (T, bool) {
	if f.state != fieldSet {
		var zero T
		return zero, false
	}
	return f.value, true
}

// Apply resolves the patch against the currently stored value and returns the
// resulting pointer. A nil result means the column becomes NULL.
func (f Field[T]) Apply(current *T) *T {
	switch f.state {
	case fieldClear:
		return nil
	case fieldSet:
		v := f.value
		return &v
	default:
		return current
	}
}

// Or returns overlay when it carries a state, otherwise f. Later patches win
// field by field when buffered writes pile up behind a sync lock.
func (f Field[T]) Or(overlay Field[T]) Field[T] {
	if overlay.state == fieldUnset {
		return f
	}
	return overlay
}

func (f *Field[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*f = Field[T]{state: fieldClear}
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Field[T]{state: fieldSet, value: v}
	return nil
}

func (f Field[T]) MarshalJSON() ([]byte, error) {
	if f.state == fieldSet {
		return json.Marshal(f.value)
	}
	return []byte("null"), nil
}
