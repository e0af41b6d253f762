package auth

import (
	"testing"

	"github.com/dormoron/strand/registry"
	"github.com/stretchr/testify/assert"
)

func TestCurrent(t *testing.T) {
	_, ok := Current(registry.Empty())
	assert.False(t, ok)

	p := Principal{Name: "ann", Roles: []string{"admin"}, Source: "jwt"}
	got, ok := Current(registry.Join(registry.Empty(), Register(p)))
	assert.True(t, ok)
	assert.Equal(t, p, got)
	assert.True(t, got.HasRole("admin"))
	assert.False(t, got.HasRole("user"))
}
