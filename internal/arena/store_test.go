package arena

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type order struct {
	ID    string
	State string
	Qty   int64
}

func encodeOrder(o *order) []byte {
	return []byte(fmt.Sprintf("%s|%s|%d", o.ID, o.State, o.Qty))
}

func newOrderStore(t *testing.T, capacity int) *Store[string, order] {
	t.Helper()
	s := New[string, order](capacity, encodeOrder)
	require.NoError(t, s.AddIndex("state", func(o *order) string { return o.State }))
	return s
}

func TestAppendWithKey(t *testing.T) {
	s := newOrderStore(t, 4)

	off, rec, err := s.AppendWithKey("ord-1")
	require.NoError(t, err)
	assert.Equal(t, 0, off)
	require.NotNil(t, rec)
	assert.Equal(t, 1, s.Count())

	off2, _, err := s.AppendWithKey("ord-2")
	require.NoError(t, err)
	assert.Equal(t, 1, off2, "offsets are dense and monotonically increasing")
}

func TestAppendDuplicateKey(t *testing.T) {
	s := newOrderStore(t, 4)

	_, rec, err := s.AppendWithKey("ord-1")
	require.NoError(t, err)
	require.NoError(t, s.Mutate(0, func(o *order) { o.ID = "ord-1"; o.Qty = 10 }))

	_, _, err = s.AppendWithKey("ord-1")
	assert.ErrorIs(t, err, ErrDuplicateKey)

	// The first record is untouched by the rejected second insert.
	assert.Equal(t, int64(10), rec.Qty)
	assert.Equal(t, 1, s.Count())
}

func TestAppendAtCapacity(t *testing.T) {
	s := newOrderStore(t, 2)

	_, _, err := s.AppendWithKey("a")
	require.NoError(t, err)
	_, _, err = s.AppendWithKey("b")
	require.NoError(t, err)

	_, _, err = s.AppendWithKey("c")
	assert.ErrorIs(t, err, ErrAtCapacity)
	assert.Equal(t, 2, s.Count())
}

func TestGetByKey(t *testing.T) {
	s := newOrderStore(t, 4)
	_, _, err := s.AppendWithKey("ord-1")
	require.NoError(t, err)
	require.NoError(t, s.Mutate(0, func(o *order) { o.ID = "ord-1"; o.Qty = 42 }))

	off, rec, err := s.GetByKey("ord-1")
	require.NoError(t, err)
	assert.Equal(t, 0, off)
	assert.Equal(t, int64(42), rec.Qty)

	_, _, err = s.GetByKey("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetByOffsetGuardsStaleOffsets(t *testing.T) {
	s := newOrderStore(t, 4)
	_, _, err := s.AppendWithKey("ord-1")
	require.NoError(t, err)

	_, err = s.GetByOffset(0)
	assert.NoError(t, err)

	_, err = s.GetByOffset(1)
	assert.ErrorIs(t, err, ErrNotFound, "offset beyond live range must not resolve")
	_, err = s.GetByOffset(-1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetByIndexPosition(t *testing.T) {
	s := newOrderStore(t, 4)
	for _, key := range []string{"a", "b", "c"} {
		_, _, err := s.AppendWithKey(key)
		require.NoError(t, err)
	}

	_, err := s.GetByIndex(2)
	assert.NoError(t, err)
	_, err = s.GetByIndex(3)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSecondaryIndexMaintenance(t *testing.T) {
	s := newOrderStore(t, 4)

	for i, key := range []string{"a", "b", "c"} {
		off, _, err := s.AppendWithKey(key)
		require.NoError(t, err)
		require.Equal(t, i, off)
		require.NoError(t, s.Mutate(off, func(o *order) { o.ID = key; o.State = "OPEN" }))
	}

	open, err := s.IndexLookup("state", "OPEN")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, open)

	// Moving one record to a new value updates both sides of the index.
	require.NoError(t, s.Mutate(1, func(o *order) { o.State = "CLOSED" }))

	open, err = s.IndexLookup("state", "OPEN")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, open)

	closed, err := s.IndexLookup("state", "CLOSED")
	require.NoError(t, err)
	assert.Equal(t, []int{1}, closed)
}

func TestIndexLookupUnknownIndex(t *testing.T) {
	s := newOrderStore(t, 2)
	_, err := s.IndexLookup("nope", "x")
	assert.Error(t, err)
}

func TestAddIndexAfterAppendFails(t *testing.T) {
	s := newOrderStore(t, 2)
	_, _, err := s.AppendWithKey("a")
	require.NoError(t, err)

	err = s.AddIndex("qty", func(o *order) string { return fmt.Sprintf("%d", o.Qty) })
	assert.Error(t, err)
}

func TestIterateAll(t *testing.T) {
	s := newOrderStore(t, 4)
	keys := []string{"a", "b", "c"}
	for _, key := range keys {
		off, _, err := s.AppendWithKey(key)
		require.NoError(t, err)
		require.NoError(t, s.Mutate(off, func(o *order) { o.ID = key }))
	}

	var seen []string
	for off, rec := range s.All() {
		assert.Equal(t, len(seen), off)
		seen = append(seen, rec.ID)
	}
	assert.Equal(t, keys, seen, "iteration follows insertion order")

	// A fresh iterator restarts at offset 0.
	count := 0
	for range s.All() {
		count++
	}
	assert.Equal(t, 3, count)
}

func TestChecksumReflectsState(t *testing.T) {
	build := func(qty int64) *Store[string, order] {
		s := newOrderStore(t, 4)
		off, _, err := s.AppendWithKey("ord-1")
		require.NoError(t, err)
		require.NoError(t, s.Mutate(off, func(o *order) { o.ID = "ord-1"; o.State = "OPEN"; o.Qty = qty }))
		return s
	}

	a := build(10)
	b := build(10)
	c := build(11)

	assert.Equal(t, a.Checksum(), b.Checksum(), "identical state yields identical checksums")
	assert.NotEqual(t, a.Checksum(), c.Checksum(), "divergent state yields divergent checksums")
}

func TestRecordPointerStable(t *testing.T) {
	s := newOrderStore(t, 8)

	_, first, err := s.AppendWithKey("a")
	require.NoError(t, err)
	require.NoError(t, s.Mutate(0, func(o *order) { o.Qty = 1 }))

	// Fill the store; the first record must not move.
	for _, key := range []string{"b", "c", "d", "e", "f", "g", "h"} {
		_, _, err := s.AppendWithKey(key)
		require.NoError(t, err)
	}

	got, err := s.GetByOffset(0)
	require.NoError(t, err)
	assert.Same(t, first, got, "offset 0 record must never move")
}
