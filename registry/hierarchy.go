package registry

import (
	"iter"
	"reflect"
)

type hierarchical struct {
	parent Registry
	child  Registry
}

// Join layers child over parent. Lookups search child first; GetAll
// yields the child's matches followed by the parent's.
func Join(parent, child Registry) Registry {
	if isEmpty(child) {
		if parent == nil {
			return Empty()
		}
		return parent
	}
	if isEmpty(parent) {
		return child
	}
	return &hierarchical{parent: parent, child: child}
}

func (h *hierarchical) MaybeGet(typ reflect.Type) (any, bool) {
	if v, ok := h.child.MaybeGet(typ); ok {
		return v, true
	}
	return h.parent.MaybeGet(typ)
}

func (h *hierarchical) GetAll(typ reflect.Type) iter.Seq[any] {
	return func(yield func(any) bool) {
		for v := range h.child.GetAll(typ) {
			if !yield(v) {
				return
			}
		}
		for v := range h.parent.GetAll(typ) {
			if !yield(v) {
				return
			}
		}
	}
}
