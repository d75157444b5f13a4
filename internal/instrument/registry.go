// Package instrument maintains the catalog of tradable instruments.
//
// The catalog is append-only: instruments are created once, mutated only by
// enable/disable, and never deleted. It is one of the two single-writer
// registries walked by the snapshot codec.
package instrument

import (
	"errors"

	"github.com/quotewire/quotewire/internal/arena"
	"github.com/quotewire/quotewire/internal/canon"
	"github.com/quotewire/quotewire/internal/rfq"
)

// ErrNotFound is returned by SetEnabled for an unknown cusip.
var ErrNotFound = errors.New("instrument not found")

// Registry is the instrument catalog, keyed by cusip with a secondary
// index on the enabled flag.
type Registry struct {
	store *arena.Store[string, rfq.Instrument]
}

// indexEnabled is the secondary-index name for the enabled flag.
const indexEnabled = "enabled"

// NewRegistry creates an empty registry with a fixed capacity.
func NewRegistry(capacity int) *Registry {
	store := arena.New[string, rfq.Instrument](capacity, encodeInstrument)

	// AddIndex cannot fail on an empty store.
	_ = store.AddIndex(indexEnabled, func(inst *rfq.Instrument) string {
		if inst.Enabled {
			return "true"
		}
		return "false"
	})

	return &Registry{store: store}
}

// Add registers an instrument. Re-adding an existing cusip is a no-op
// success with alreadyExists=true - the original record keeps its minSize
// and enabled flag untouched. Returns arena.ErrAtCapacity when full.
func (r *Registry) Add(cusip string, securityID int64, enabled bool, minSize int64) (alreadyExists bool, err error) {
	if _, _, err := r.store.GetByKey(cusip); err == nil {
		return true, nil
	}

	offset, _, err := r.store.AppendWithKey(cusip)
	if err != nil {
		return false, err
	}

	err = r.store.Mutate(offset, func(inst *rfq.Instrument) {
		inst.Cusip = cusip
		inst.SecurityID = securityID
		inst.Enabled = enabled
		inst.MinSize = minSize
	})
	return false, err
}

// SetEnabled flips an instrument's enabled flag. ErrNotFound for an
// unknown cusip.
func (r *Registry) SetEnabled(cusip string, enabled bool) error {
	offset, _, err := r.store.GetByKey(cusip)
	if err != nil {
		return ErrNotFound
	}
	return r.store.Mutate(offset, func(inst *rfq.Instrument) {
		inst.Enabled = enabled
	})
}

// Get returns the instrument for a cusip.
func (r *Registry) Get(cusip string) (rfq.Instrument, bool) {
	_, inst, err := r.store.GetByKey(cusip)
	if err != nil {
		return rfq.Instrument{}, false
	}
	return *inst, true
}

// IsEnabled reports whether the cusip is known and enabled.
func (r *Registry) IsEnabled(cusip string) bool {
	_, inst, err := r.store.GetByKey(cusip)
	if err != nil {
		return false
	}
	return inst.Enabled
}

// MinSize returns the minimum tradable quantity, 0 for an unknown cusip.
func (r *Registry) MinSize(cusip string) int64 {
	_, inst, err := r.store.GetByKey(cusip)
	if err != nil {
		return 0
	}
	return inst.MinSize
}

// List returns all instruments in insertion order.
func (r *Registry) List() []rfq.Instrument {
	out := make([]rfq.Instrument, 0, r.store.Count())
	for _, inst := range r.store.All() {
		out = append(out, *inst)
	}
	return out
}

// EnabledOffsets returns the store offsets of currently enabled
// instruments, in insertion order.
func (r *Registry) EnabledOffsets() []int {
	offsets, err := r.store.IndexLookup(indexEnabled, "true")
	if err != nil {
		return nil
	}
	return offsets
}

// Count returns the number of registered instruments.
func (r *Registry) Count() int {
	return r.store.Count()
}

// Checksum returns the CRC-32 of the catalog's canonical byte image.
func (r *Registry) Checksum() uint32 {
	return r.store.Checksum()
}

// encodeInstrument is the deterministic record image used for checksums.
func encodeInstrument(inst *rfq.Instrument) []byte {
	data, err := canon.Marshal(canon.Obj{
		"cusip":       canon.Str(inst.Cusip),
		"security_id": canon.Int(inst.SecurityID),
		"enabled":     canon.Bool(inst.Enabled),
		"min_size":    canon.Int(inst.MinSize),
	})
	if err != nil {
		// Instrument fields are strings, ints, and bools; canonical
		// marshaling of them cannot fail.
		panic(err)
	}
	return data
}
