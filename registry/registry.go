// Package registry provides lookup of objects by type identity.
//
// A Registry holds entries, each with a declared type. Looking up a type
// yields every entry whose declared type is that type or is assignable
// to it, so asking for an interface finds its implementations. Within
// a single registry the most recently added entry is found first.
// Registries are immutable once built. They are layered with Join to
// form the hierarchies a request handler sees.
//
// Call sites use the generic helpers instead of type descriptors:
//
//	logger, ok := registry.Lookup[*zap.Logger](r)
//	for check := range registry.All[health.Check](r) {
//		...
//	}
package registry

import (
	"iter"
	"reflect"

	"github.com/dormoron/strand/internal/errs"
)

// ErrNotInRegistry is wrapped by every *NotInRegistryError.
var ErrNotInRegistry = errs.ErrNotInRegistry

// Registry is the keyed-lookup capability.
//
// Implementations report lookup failures by panicking. A panicking lazy
// entry is the usual source. Callers that forward lookups must let the
// panic through unchanged.
type Registry interface {
	// MaybeGet returns the first entry matching typ, if any.
	MaybeGet(typ reflect.Type) (any, bool)
	// GetAll returns every entry matching typ, in lookup order. The
	// sequence is lazy: entries are resolved as the caller ranges over it.
	GetAll(typ reflect.Type) iter.Seq[any]
}

// NotInRegistryError reports that Get found nothing for Type.
type NotInRegistryError struct {
	Type reflect.Type
}

func (e *NotInRegistryError) Error() string {
	return errs.ErrNotInRegistryType(typeName(e.Type)).Error()
}

func (e *NotInRegistryError) Unwrap() error {
	return ErrNotInRegistry
}

// TypeOf returns the type identity used as the lookup key for T.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}

// Lookup returns the first object in r that can be used as a T.
func Lookup[T any](r Registry) (T, bool) {
	v, ok := r.MaybeGet(TypeOf[T]())
	if !ok {
		var zero T
		return zero, false
	}
	t, _ := v.(T)
	return t, true
}

// Get is Lookup with absence reported as a *NotInRegistryError.
func Get[T any](r Registry) (T, error) {
	t, ok := Lookup[T](r)
	if !ok {
		return t, &NotInRegistryError{Type: TypeOf[T]()}
	}
	return t, nil
}

// MustGet panics with a *NotInRegistryError when no T is present.
func MustGet[T any](r Registry) T {
	t, err := Get[T](r)
	if err != nil {
		panic(err)
	}
	return t
}

// All yields every object in r that can be used as a T, in lookup order.
func All[T any](r Registry) iter.Seq[T] {
	return func(yield func(T) bool) {
		for v := range r.GetAll(TypeOf[T]()) {
			t, _ := v.(T)
			if !yield(t) {
				return
			}
		}
	}
}

func typeName(typ reflect.Type) string {
	if typ == nil {
		return "<nil>"
	}
	return typ.String()
}
