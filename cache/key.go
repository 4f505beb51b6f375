package cache

import (
	"fmt"
	"reflect"
	"strings"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = "::"

// nilSegment renders an absent value. It never collides with a rendered
// concrete value because every concrete segment is prefixed by its name.
const nilSegment = "nil"

// KeyBuilder composes a cache key from named segments. Two keys are equal
// iff every segment matches, so an absent value differs from any concrete one.
type KeyBuilder struct {
	parts []string
}

// NewKey starts a key under namespace.
func NewKey(namespace string) *KeyBuilder {
	return &KeyBuilder{parts: []string{namespace}}
}

// Field appends name=value. Nil pointers render as "nil" and non-nil pointers
// are dereferenced before formatting.
func (b *KeyBuilder) Field(name string, value any) *KeyBuilder {
	b.parts = append(b.parts, name+"="+formatSegment(value))
	return b
}

// String returns the composed key.
func (b *KeyBuilder) String() string {
	return strings.Join(b.parts, KeySeparator)
}

func formatSegment(v any) string {
	if v == nil {
		return nilSegment
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nilSegment
		}
		return formatSegment(rv.Elem().Interface())
	}
	s := fmt.Sprint(v)
	return strings.ReplaceAll(s, KeySeparator, "\\:\\:")
}
