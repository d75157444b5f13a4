package snapshot

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"

	"github.com/quotewire/quotewire/internal/canon"
	"github.com/quotewire/quotewire/internal/engine"
	"github.com/quotewire/quotewire/internal/rfq"
)

// Record type tags on the wire.
const (
	recordInstrument = "instrument"
	recordRfq        = "rfq"
	recordEnd        = "end"
)

// Stats summarizes a load.
type Stats struct {
	Instruments int
	Rfqs        int

	// Complete is false when the end marker was missing or a record was
	// malformed; the engine holds whatever was restored up to that point.
	Complete bool
}

// WriteAll emits the full engine state to sink: instruments first, RFQs
// second, end marker last. Every line is canonical JSON, so two replicas
// with equal state produce byte-identical snapshots.
func WriteAll(sink io.Writer, e *engine.Engine) error {
	w := bufio.NewWriter(sink)

	for _, inst := range e.Instruments().List() {
		if err := writeLine(w, canon.Obj{
			"record":      canon.Str(recordInstrument),
			"cusip":       canon.Str(inst.Cusip),
			"security_id": canon.Int(inst.SecurityID),
			"enabled":     canon.Bool(inst.Enabled),
			"min_size":    canon.Int(inst.MinSize),
		}); err != nil {
			return fmt.Errorf("write instrument %s: %w", inst.Cusip, err)
		}
	}

	for _, r := range e.Rfqs().All() {
		if err := writeLine(w, canon.Obj{
			"record":            canon.Str(recordRfq),
			"id":                canon.Int(r.ID),
			"requester_user_id": canon.Int(r.RequesterUserID),
			"responder_user_id": canon.Int(r.ResponderUserID),
			"cusip":             canon.Str(r.Cusip),
			"security_id":       canon.Int(r.SecurityID),
			"side":              canon.Str(string(r.Side)),
			"quantity":          canon.Int(r.Quantity),
			"correlation":       canon.Str(r.Correlation),
			"state":             canon.Str(string(r.State)),
			"quote_sequence":    canon.Int(r.QuoteSequence),
			"price":             canon.Int(r.Price),
			"expire_time_ms":    canon.Int(r.ExpireTimeMs),
			"created_at_ms":     canon.Int(r.CreatedAtMs),
		}); err != nil {
			return fmt.Errorf("write rfq %d: %w", r.ID, err)
		}
	}

	end := canon.Obj{
		"record":              canon.Str(recordEnd),
		"instrument_count":    canon.Int(int64(e.Instruments().Count())),
		"rfq_count":           canon.Int(int64(e.Rfqs().Count())),
		"instrument_checksum": canon.Int(int64(e.Instruments().Checksum())),
		"rfq_checksum":        canon.Int(int64(e.Checksum())),
	}
	id, err := canon.HashSnapshot(end)
	if err != nil {
		return fmt.Errorf("hash end marker: %w", err)
	}
	end["id"] = canon.Str(id)
	if err := writeLine(w, end); err != nil {
		return fmt.Errorf("write end marker: %w", err)
	}

	return w.Flush()
}

// LoadAll re-applies a snapshot stream into a freshly constructed engine.
// Records go through the same construction paths as live commands, in
// restore mode, so replies and broadcasts stay suppressed and expiry timers
// are re-established (past-due RFQs are expired during the load).
//
// A missing end marker or malformed record degrades to a best-effort
// restore: the condition is logged, loading stops, and the engine keeps
// everything applied so far. Stats.Complete reports which case occurred.
func LoadAll(source io.Reader, e *engine.Engine, nowMs int64) (Stats, error) {
	e.BeginRestore()
	defer e.EndRestore()

	var stats Stats
	scanner := bufio.NewScanner(source)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		val, err := canon.Unmarshal(line)
		if err != nil {
			slog.Warn("malformed snapshot record, stopping load",
				"instruments", stats.Instruments,
				"rfqs", stats.Rfqs,
				"error", err,
			)
			return stats, nil
		}
		obj, ok := val.(canon.Obj)
		if !ok {
			slog.Warn("snapshot record is not an object, stopping load",
				"instruments", stats.Instruments,
				"rfqs", stats.Rfqs,
			)
			return stats, nil
		}

		kind, _ := obj["record"].(canon.Str)
		switch string(kind) {
		case recordInstrument:
			inst, err := decodeInstrument(obj)
			if err == nil {
				err = e.RestoreInstrument(inst)
			}
			if err != nil {
				slog.Warn("bad instrument record, stopping load", "error", err)
				return stats, nil
			}
			stats.Instruments++

		case recordRfq:
			rec, err := decodeRfq(obj)
			if err == nil {
				err = e.RestoreRfq(rec, nowMs)
			}
			if err != nil {
				slog.Warn("bad rfq record, stopping load", "error", err)
				return stats, nil
			}
			stats.Rfqs++

		case recordEnd:
			stats.Complete = true
			verifyEnd(obj, e, stats)
			return stats, nil

		default:
			slog.Warn("unknown snapshot record type, stopping load",
				"type", string(kind),
			)
			return stats, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("read snapshot: %w", err)
	}

	slog.Warn("snapshot stream ended without end marker, keeping partial state",
		"instruments", stats.Instruments,
		"rfqs", stats.Rfqs,
	)
	return stats, nil
}

// verifyEnd compares the end marker's counts and checksums against the
// restored state. A mismatch is logged, never fatal.
func verifyEnd(obj canon.Obj, e *engine.Engine, stats Stats) {
	if n, ok := obj["rfq_count"].(canon.Int); ok && int(n) != stats.Rfqs {
		slog.Warn("snapshot rfq count mismatch",
			"expected", int64(n), "restored", stats.Rfqs)
	}
	if n, ok := obj["instrument_count"].(canon.Int); ok && int(n) != stats.Instruments {
		slog.Warn("snapshot instrument count mismatch",
			"expected", int64(n), "restored", stats.Instruments)
	}
	if sum, ok := obj["rfq_checksum"].(canon.Int); ok && uint32(sum) != e.Checksum() {
		slog.Warn("snapshot rfq checksum mismatch",
			"expected", int64(sum), "restored", e.Checksum())
	}
	if sum, ok := obj["instrument_checksum"].(canon.Int); ok && uint32(sum) != e.Instruments().Checksum() {
		slog.Warn("snapshot instrument checksum mismatch",
			"expected", int64(sum), "restored", e.Instruments().Checksum())
	}
}

func writeLine(w *bufio.Writer, obj canon.Obj) error {
	data, err := canon.Marshal(obj)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	return w.WriteByte('\n')
}

func decodeInstrument(obj canon.Obj) (rfq.Instrument, error) {
	cusip, ok := obj["cusip"].(canon.Str)
	if !ok {
		return rfq.Instrument{}, fmt.Errorf("instrument record missing cusip")
	}
	securityID, ok := obj["security_id"].(canon.Int)
	if !ok {
		return rfq.Instrument{}, fmt.Errorf("instrument %s: missing security_id", cusip)
	}
	enabled, ok := obj["enabled"].(canon.Bool)
	if !ok {
		return rfq.Instrument{}, fmt.Errorf("instrument %s: missing enabled", cusip)
	}
	minSize, ok := obj["min_size"].(canon.Int)
	if !ok {
		return rfq.Instrument{}, fmt.Errorf("instrument %s: missing min_size", cusip)
	}
	return rfq.Instrument{
		Cusip:      string(cusip),
		SecurityID: int64(securityID),
		Enabled:    bool(enabled),
		MinSize:    int64(minSize),
	}, nil
}

func decodeRfq(obj canon.Obj) (rfq.Rfq, error) {
	var rec rfq.Rfq

	ints := map[string]*int64{
		"id":                &rec.ID,
		"requester_user_id": &rec.RequesterUserID,
		"responder_user_id": &rec.ResponderUserID,
		"security_id":       &rec.SecurityID,
		"quantity":          &rec.Quantity,
		"quote_sequence":    &rec.QuoteSequence,
		"price":             &rec.Price,
		"expire_time_ms":    &rec.ExpireTimeMs,
		"created_at_ms":     &rec.CreatedAtMs,
	}
	for key, dst := range ints {
		v, ok := obj[key].(canon.Int)
		if !ok {
			return rfq.Rfq{}, fmt.Errorf("rfq record missing %s", key)
		}
		*dst = int64(v)
	}

	cusip, ok := obj["cusip"].(canon.Str)
	if !ok {
		return rfq.Rfq{}, fmt.Errorf("rfq %d: missing cusip", rec.ID)
	}
	side, ok := obj["side"].(canon.Str)
	if !ok {
		return rfq.Rfq{}, fmt.Errorf("rfq %d: missing side", rec.ID)
	}
	correlation, ok := obj["correlation"].(canon.Str)
	if !ok {
		return rfq.Rfq{}, fmt.Errorf("rfq %d: missing correlation", rec.ID)
	}
	state, ok := obj["state"].(canon.Str)
	if !ok {
		return rfq.Rfq{}, fmt.Errorf("rfq %d: missing state", rec.ID)
	}

	rec.Cusip = string(cusip)
	rec.Side = rfq.Side(side)
	rec.Correlation = string(correlation)
	rec.State = rfq.State(state)
	return rec, nil
}
