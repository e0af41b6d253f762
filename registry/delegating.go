package registry

import (
	"iter"
	"reflect"
)

var _ Registry = Delegating{}

// Delegating satisfies Registry by forwarding both lookups to a delegate.
// Results, ordering, laziness and panics of the delegate pass through
// untouched; Delegating adds no state of its own.
//
// Embed it to give a type the Registry method set:
//
//	type Context struct {
//		registry.Delegating
//		...
//	}
//
// The zero value forwards to the empty registry.
type Delegating struct {
	delegate func() Registry
}

// DelegateTo forwards to r.
func DelegateTo(r Registry) Delegating {
	return Delegating{delegate: func() Registry { return r }}
}

// DelegateFunc resolves the delegate on every lookup, for owners whose
// registry in scope changes over time.
func DelegateFunc(fn func() Registry) Delegating {
	return Delegating{delegate: fn}
}

// Delegate returns the registry lookups are currently forwarded to.
func (d Delegating) Delegate() Registry {
	if d.delegate == nil {
		return Empty()
	}
	if r := d.delegate(); r != nil {
		return r
	}
	return Empty()
}

func (d Delegating) MaybeGet(typ reflect.Type) (any, bool) {
	return d.Delegate().MaybeGet(typ)
}

func (d Delegating) GetAll(typ reflect.Type) iter.Seq[any] {
	return d.Delegate().GetAll(typ)
}
