package registry

import (
	"iter"
	"reflect"
	"sync"

	"github.com/dormoron/strand/internal/errs"
)

type entry struct {
	typ reflect.Type
	get func() any
}

func (e entry) matches(typ reflect.Type) bool {
	if typ == nil {
		return false
	}
	return e.typ == typ || e.typ.AssignableTo(typ)
}

// multiEntry keeps entries most recent first.
type multiEntry struct {
	entries []entry
}

func (m *multiEntry) MaybeGet(typ reflect.Type) (any, bool) {
	for _, e := range m.entries {
		if e.matches(typ) {
			return e.get(), true
		}
	}
	return nil, false
}

func (m *multiEntry) GetAll(typ reflect.Type) iter.Seq[any] {
	return func(yield func(any) bool) {
		for _, e := range m.entries {
			if e.matches(typ) && !yield(e.get()) {
				return
			}
		}
	}
}

type emptyRegistry struct{}

func (emptyRegistry) MaybeGet(reflect.Type) (any, bool) { return nil, false }

func (emptyRegistry) GetAll(reflect.Type) iter.Seq[any] {
	return func(func(any) bool) {}
}

var empty Registry = emptyRegistry{}

// Empty returns the registry with no entries.
func Empty() Registry {
	return empty
}

func isEmpty(r Registry) bool {
	if r == nil {
		return true
	}
	_, ok := r.(emptyRegistry)
	return ok
}

// Builder collects entries for an immutable registry. Entries added
// later take precedence over earlier ones. A Builder is not safe for
// concurrent use.
type Builder struct {
	entries []entry
}

func NewBuilder() *Builder {
	return &Builder{}
}

// Add registers v under the declared type T.
func Add[T any](b *Builder, v T) *Builder {
	typ := TypeOf[T]()
	if isNil(v) {
		panic(errs.ErrNilEntry(typeName(typ)))
	}
	b.entries = append(b.entries, entry{typ: typ, get: func() any { return v }})
	return b
}

// AddLazy registers a supplier of T. It runs on first lookup and the
// result is reused afterwards. If the supplier panics, every lookup of
// the entry panics with the same value.
func AddLazy[T any](b *Builder, supplier func() T) *Builder {
	typ := TypeOf[T]()
	if supplier == nil {
		panic(errs.ErrNilSupplier(typeName(typ)))
	}
	once := sync.OnceValue(func() any { return supplier() })
	b.entries = append(b.entries, entry{typ: typ, get: once})
	return b
}

// AddValue registers v under its dynamic type.
func (b *Builder) AddValue(v any) *Builder {
	if isNil(v) {
		panic(errs.ErrNilEntry(typeName(reflect.TypeOf(v))))
	}
	b.entries = append(b.entries, entry{typ: reflect.TypeOf(v), get: func() any { return v }})
	return b
}

func (b *Builder) Size() int {
	return len(b.entries)
}

// Build returns a registry over the entries added so far. The builder
// may keep being used; later additions do not affect built registries.
func (b *Builder) Build() Registry {
	if len(b.entries) == 0 {
		return Empty()
	}
	entries := make([]entry, len(b.entries))
	for i, e := range b.entries {
		entries[len(b.entries)-1-i] = e
	}
	return &multiEntry{entries: entries}
}

// Of builds a registry with fn.
func Of(fn func(b *Builder)) Registry {
	b := NewBuilder()
	fn(b)
	return b.Build()
}

// Single returns a registry holding only v, declared as T.
func Single[T any](v T) Registry {
	return Add(NewBuilder(), v).Build()
}

// SingleLazy returns a registry holding only the supplier's result.
func SingleLazy[T any](supplier func() T) Registry {
	return AddLazy(NewBuilder(), supplier).Build()
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice, reflect.UnsafePointer:
		return rv.IsNil()
	}
	return false
}
