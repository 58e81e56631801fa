package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryReserveAssignsIncreasingIDs(t *testing.T) {
	r := newRegistry()
	a := &Command{shape: ShapeString}
	b := &Command{shape: ShapeString}

	idA := r.reserve(a)
	idB := r.reserve(b)

	assert.Equal(t, idA+1, idB)
	assert.Equal(t, idA, a.id)
	assert.Equal(t, idB, b.id)
}

func TestRegistryLookupRoundTrips(t *testing.T) {
	r := newRegistry()
	cmd := &Command{shape: ShapeInt}
	id := r.reserve(cmd)

	got, ok := r.lookup(id, ShapeInt)
	assert.True(t, ok)
	assert.Same(t, cmd, got)
}

func TestRegistryLookupWrongShapeMisses(t *testing.T) {
	r := newRegistry()
	cmd := &Command{shape: ShapeInt}
	id := r.reserve(cmd)

	_, ok := r.lookup(id, ShapeString)
	assert.False(t, ok)
}

func TestRegistryRemoveIsIdempotent(t *testing.T) {
	r := newRegistry()
	cmd := &Command{shape: ShapeString}
	id := r.reserve(cmd)

	r.remove(id, ShapeString)
	_, ok := r.lookup(id, ShapeString)
	assert.False(t, ok)

	assert.NotPanics(t, func() { r.remove(id, ShapeString) })
}

func TestRegistryDrainEmptiesAllPartitions(t *testing.T) {
	r := newRegistry()
	idA := r.reserve(&Command{shape: ShapeString})
	idB := r.reserve(&Command{shape: ShapeInt})

	all := r.drain()
	assert.Len(t, all, 2)

	_, ok := r.lookup(idA, ShapeString)
	assert.False(t, ok)
	_, ok = r.lookup(idB, ShapeInt)
	assert.False(t, ok)

	assert.Empty(t, r.drain())
}
