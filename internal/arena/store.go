package arena

import (
	"errors"
	"fmt"
	"hash/crc32"
	"iter"
	"sort"
)

var (
	// ErrAtCapacity is returned when the store holds capacity records.
	ErrAtCapacity = errors.New("store at capacity")

	// ErrDuplicateKey is returned when the primary key is already present.
	ErrDuplicateKey = errors.New("duplicate primary key")

	// ErrNotFound is returned for unknown keys, positions, or offsets.
	ErrNotFound = errors.New("record not found")
)

// Extractor derives a secondary-index value from a record. The returned
// string must be a pure function of the record's fields.
type Extractor[R any] func(*R) string

// Encoder produces the deterministic byte image of a record for checksum
// computation. Must emit identical bytes for identical field values on
// every replica - canonical JSON qualifies, fmt.Sprintf on a struct with
// maps does not.
type Encoder[R any] func(*R) []byte

// Store is a fixed-capacity arena of records of type R keyed by K.
//
// Offsets are assigned densely from 0 in append order and are never reused
// or compacted, so the set of live offsets is exactly [0, Count()).
type Store[K comparable, R any] struct {
	capacity int
	records  []R
	keys     []K // locked key per offset, write-once
	byKey    map[K]int
	indices  map[string]*index[R]
	encode   Encoder[R]
}

// index maintains forward (value → offsets) and reverse (offset → last
// value) maps for one indexed field.
type index[R any] struct {
	extract Extractor[R]
	forward map[string]map[int]struct{}
	reverse map[int]string
}

// New creates an empty store with a fixed capacity. The encoder is used by
// Checksum; pass the canonical record encoding.
func New[K comparable, R any](capacity int, encode Encoder[R]) *Store[K, R] {
	if capacity < 0 {
		capacity = 0
	}
	return &Store[K, R]{
		capacity: capacity,
		records:  make([]R, 0, capacity),
		keys:     make([]K, 0, capacity),
		byKey:    make(map[K]int, capacity),
		indices:  make(map[string]*index[R]),
		encode:   encode,
	}
}

// AddIndex registers a secondary index. Must be called before the first
// append; indexing an already-populated store is not supported.
func (s *Store[K, R]) AddIndex(field string, extract Extractor[R]) error {
	if len(s.records) > 0 {
		return fmt.Errorf("add index %q: store already has %d records", field, len(s.records))
	}
	if _, ok := s.indices[field]; ok {
		return fmt.Errorf("add index %q: already registered", field)
	}
	s.indices[field] = &index[R]{
		extract: extract,
		forward: make(map[string]map[int]struct{}),
		reverse: make(map[int]string),
	}
	return nil
}

// AppendWithKey allocates the next offset for the key and returns it with a
// pointer to the zero-valued record. The pointer stays valid for the life
// of the store (the backing slice never reallocates past construction).
//
// Fails with ErrAtCapacity when full and ErrDuplicateKey when the key is
// already present; both leave the store untouched.
//
// The caller must populate the record through Mutate (or before any index
// lookup) so secondary indices observe the written field values.
func (s *Store[K, R]) AppendWithKey(key K) (int, *R, error) {
	if len(s.records) >= s.capacity {
		return 0, nil, ErrAtCapacity
	}
	if _, exists := s.byKey[key]; exists {
		return 0, nil, ErrDuplicateKey
	}

	offset := len(s.records)
	var zero R
	s.records = append(s.records, zero)
	s.keys = append(s.keys, key)
	s.byKey[key] = offset

	// Index the zero value so the first Mutate diffs against a known state.
	for _, idx := range s.indices {
		idx.add(offset, idx.extract(&s.records[offset]))
	}

	return offset, &s.records[offset], nil
}

// Mutate applies fn to the record at offset and refreshes every secondary
// index whose extracted value changed. This is the only supported write
// path after append; writing through a retained pointer bypasses index
// maintenance.
func (s *Store[K, R]) Mutate(offset int, fn func(*R)) error {
	if offset < 0 || offset >= len(s.records) {
		return ErrNotFound
	}

	rec := &s.records[offset]
	fn(rec)

	for _, idx := range s.indices {
		newVal := idx.extract(rec)
		if oldVal, ok := idx.reverse[offset]; !ok || oldVal != newVal {
			idx.remove(offset)
			idx.add(offset, newVal)
		}
	}

	return nil
}

// GetByKey returns the offset and record for a primary key.
func (s *Store[K, R]) GetByKey(key K) (int, *R, error) {
	offset, ok := s.byKey[key]
	if !ok {
		return 0, nil, ErrNotFound
	}
	return offset, &s.records[offset], nil
}

// GetByIndex returns the record at a 0-based insertion position. Valid only
// for positions below Count.
func (s *Store[K, R]) GetByIndex(position int) (*R, error) {
	if position < 0 || position >= len(s.records) {
		return nil, ErrNotFound
	}
	return &s.records[position], nil
}

// GetByOffset returns the record at an offset, guarding against stale or
// foreign offsets: only offsets currently holding a live record resolve.
func (s *Store[K, R]) GetByOffset(offset int) (*R, error) {
	if offset < 0 || offset >= len(s.records) {
		return nil, ErrNotFound
	}
	return &s.records[offset], nil
}

// Key returns the locked primary key for an offset.
func (s *Store[K, R]) Key(offset int) (K, error) {
	if offset < 0 || offset >= len(s.keys) {
		var zero K
		return zero, ErrNotFound
	}
	return s.keys[offset], nil
}

// All iterates live records in offset order. A fresh iterator starts at
// offset 0. Appending during iteration is not a supported use.
func (s *Store[K, R]) All() iter.Seq2[int, *R] {
	return func(yield func(int, *R) bool) {
		for i := range s.records {
			if !yield(i, &s.records[i]) {
				return
			}
		}
	}
}

// IndexLookup returns the offsets whose indexed field currently equals
// value, in ascending offset order so replicas observe identical results.
func (s *Store[K, R]) IndexLookup(field, value string) ([]int, error) {
	idx, ok := s.indices[field]
	if !ok {
		return nil, fmt.Errorf("index lookup: no index %q", field)
	}

	set := idx.forward[value]
	offsets := make([]int, 0, len(set))
	for off := range set {
		offsets = append(offsets, off)
	}
	sort.Ints(offsets)
	return offsets, nil
}

// Checksum computes a CRC-32 over the encoded image of every live record in
// offset order. Replicas with identical state produce identical checksums.
func (s *Store[K, R]) Checksum() uint32 {
	h := crc32.NewIEEE()
	for i := range s.records {
		h.Write(s.encode(&s.records[i]))
	}
	return h.Sum32()
}

// Count returns the number of live records.
func (s *Store[K, R]) Count() int {
	return len(s.records)
}

// Capacity returns the fixed maximum record count.
func (s *Store[K, R]) Capacity() int {
	return s.capacity
}

func (idx *index[R]) add(offset int, value string) {
	set, ok := idx.forward[value]
	if !ok {
		set = make(map[int]struct{})
		idx.forward[value] = set
	}
	set[offset] = struct{}{}
	idx.reverse[offset] = value
}

func (idx *index[R]) remove(offset int) {
	value, ok := idx.reverse[offset]
	if !ok {
		return
	}
	delete(idx.reverse, offset)
	if set, ok := idx.forward[value]; ok {
		delete(set, offset)
		if len(set) == 0 {
			delete(idx.forward, value)
		}
	}
}
