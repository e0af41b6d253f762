package registry

import (
	"errors"
	"iter"
	"reflect"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingRegistry remembers what it was asked for and how far its
// sequences were consumed.
type recordingRegistry struct {
	values   []any
	asked    []reflect.Type
	consumed int
}

func (r *recordingRegistry) MaybeGet(typ reflect.Type) (any, bool) {
	r.asked = append(r.asked, typ)
	if len(r.values) == 0 {
		return nil, false
	}
	return r.values[0], true
}

func (r *recordingRegistry) GetAll(typ reflect.Type) iter.Seq[any] {
	r.asked = append(r.asked, typ)
	return func(yield func(any) bool) {
		for _, v := range r.values {
			r.consumed++
			if !yield(v) {
				return
			}
		}
	}
}

func TestDelegating_Scenario(t *testing.T) {
	delegate := Single("x")
	adapter := DelegateTo(delegate)

	v, ok := adapter.MaybeGet(TypeOf[string]())
	require.True(t, ok)
	assert.Equal(t, "x", v)

	assert.Equal(t, []any{"x"}, slices.Collect(adapter.GetAll(TypeOf[string]())))

	_, ok = adapter.MaybeGet(TypeOf[int]())
	assert.False(t, ok)
	assert.Empty(t, slices.Collect(adapter.GetAll(TypeOf[int]())))
}

func TestDelegating_MatchesDelegate(t *testing.T) {
	delegate := Of(func(b *Builder) {
		Add(b, "a")
		Add(b, 1)
		Add[error](b, errors.New("first"))
		Add(b, "b")
		Add[error](b, errors.New("second"))
	})
	adapter := DelegateTo(delegate)

	types := []reflect.Type{
		TypeOf[string](),
		TypeOf[int](),
		TypeOf[error](),
		TypeOf[float64](),
		TypeOf[any](),
	}
	for _, typ := range types {
		t.Run(typ.String(), func(t *testing.T) {
			wantVal, wantOK := delegate.MaybeGet(typ)
			gotVal, gotOK := adapter.MaybeGet(typ)
			assert.Equal(t, wantOK, gotOK)
			assert.Equal(t, wantVal, gotVal)

			assert.Equal(t, slices.Collect(delegate.GetAll(typ)), slices.Collect(adapter.GetAll(typ)))
		})
	}
}

func TestDelegating_ForwardsArgumentsAndLaziness(t *testing.T) {
	rec := &recordingRegistry{values: []any{"a", "b", "c"}}
	adapter := DelegateTo(rec)

	adapter.MaybeGet(TypeOf[string]())
	seq := adapter.GetAll(TypeOf[int]())
	assert.Equal(t, []reflect.Type{TypeOf[string](), TypeOf[int]()}, rec.asked)
	assert.Equal(t, 0, rec.consumed, "sequence must not be resolved before ranging")

	for v := range seq {
		assert.Equal(t, "a", v)
		break
	}
	assert.Equal(t, 1, rec.consumed, "early termination must reach the delegate")
}

func TestDelegating_PropagatesFailure(t *testing.T) {
	boom := errors.New("boom")
	adapter := DelegateTo(SingleLazy(func() string { panic(boom) }))

	assert.PanicsWithValue(t, boom, func() {
		adapter.MaybeGet(TypeOf[string]())
	})
	assert.PanicsWithValue(t, boom, func() {
		for range adapter.GetAll(TypeOf[string]()) {
		}
	})
}

func TestDelegateFunc_FollowsCurrentDelegate(t *testing.T) {
	current := Single("before")
	adapter := DelegateFunc(func() Registry { return current })

	v, _ := Lookup[string](adapter)
	assert.Equal(t, "before", v)

	current = Single("after")
	v, _ = Lookup[string](adapter)
	assert.Equal(t, "after", v)
}

func TestDelegating_ZeroValue(t *testing.T) {
	var adapter Delegating
	_, ok := adapter.MaybeGet(TypeOf[string]())
	assert.False(t, ok)
	assert.Empty(t, slices.Collect(adapter.GetAll(TypeOf[string]())))
}

type embedsDelegating struct {
	Delegating
	name string
}

func TestDelegating_Embedding(t *testing.T) {
	var r Registry = embedsDelegating{Delegating: DelegateTo(Single(42)), name: "holder"}
	v, err := Get[int](r)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}
