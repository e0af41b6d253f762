package registry

import (
	"iter"
	"reflect"
	"slices"

	lru "github.com/hashicorp/golang-lru"
)

const defaultCacheSize = 256

type cachedLookup struct {
	val any
	ok  bool
}

type caching struct {
	delegate Registry
	single   *lru.Cache
	all      *lru.Cache
}

// Caching memoizes lookups of r per type in bounded LRU caches. r must
// be immutable. GetAll results are cached as resolved slices, so the
// first GetAll of a type resolves every matching lazy entry.
func Caching(r Registry, size int) Registry {
	if size <= 0 {
		size = defaultCacheSize
	}
	// lru.New only fails for a non-positive size.
	single, _ := lru.New(size)
	all, _ := lru.New(size)
	return &caching{delegate: r, single: single, all: all}
}

func (c *caching) MaybeGet(typ reflect.Type) (any, bool) {
	if v, ok := c.single.Get(typ); ok {
		l := v.(cachedLookup)
		return l.val, l.ok
	}
	val, ok := c.delegate.MaybeGet(typ)
	c.single.Add(typ, cachedLookup{val: val, ok: ok})
	return val, ok
}

func (c *caching) GetAll(typ reflect.Type) iter.Seq[any] {
	if v, ok := c.all.Get(typ); ok {
		return slices.Values(v.([]any))
	}
	vals := slices.Collect(c.delegate.GetAll(typ))
	c.all.Add(typ, vals)
	return slices.Values(vals)
}
