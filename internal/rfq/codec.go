package rfq

import (
	"fmt"

	"github.com/quotewire/quotewire/internal/canon"
)

// EncodeEvent serializes an event to canonical JSON. The payload carries a
// "type" tag and an "id" field - the content-addressed hash of the payload
// without the id - so replicas and operators can compare individual events
// as cheaply as whole-store checksums.
func EncodeEvent(ev Event) ([]byte, error) {
	payload, err := eventPayload(ev)
	if err != nil {
		return nil, err
	}

	id, err := canon.HashEvent(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.EventName(), err)
	}
	payload["id"] = canon.Str(id)

	data, err := canon.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.EventName(), err)
	}
	return data, nil
}

// DecodeEvent parses canonical JSON produced by EncodeEvent back into a
// typed event. Used by the conformance harness and tests; production
// consumers sit on the far side of the transport.
func DecodeEvent(data []byte) (Event, error) {
	v, err := canon.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	obj, ok := v.(canon.Obj)
	if !ok {
		return nil, fmt.Errorf("decode event: not an object")
	}

	name, err := getStr(obj, "type")
	if err != nil {
		return nil, err
	}

	switch name {
	case "CommandRejected":
		return decodeCommandRejected(obj)
	case "InstrumentAdded":
		return decodeInstrumentAdded(obj)
	case "InstrumentEnabledSet":
		return decodeInstrumentEnabledSet(obj)
	case "InstrumentList":
		return decodeInstrumentList(obj)
	case "RfqCreated":
		return decodeRfqCreated(obj)
	case "RfqQuoted":
		return decodeRfqQuoted(obj)
	case "RfqAccepted":
		return decodeRfqAccepted(obj)
	case "RfqRejected":
		return decodeRfqRejected(obj)
	case "RfqCanceled":
		return decodeRfqCanceled(obj)
	case "RfqExpired":
		return decodeRfqExpired(obj)
	default:
		return nil, fmt.Errorf("decode event: unknown type %q", name)
	}
}

// eventPayload builds the canonical object for an event, without the id.
func eventPayload(ev Event) (canon.Obj, error) {
	switch e := ev.(type) {
	case CommandRejected:
		return canon.Obj{
			"type":        canon.Str(e.EventName()),
			"correlation": canon.Str(e.Correlation),
			"rfq_id":      canon.Int(e.RfqID),
			"reason":      canon.Str(e.Reason),
		}, nil

	case InstrumentAdded:
		return canon.Obj{
			"type":           canon.Str(e.EventName()),
			"correlation":    canon.Str(e.Correlation),
			"cusip":          canon.Str(e.Cusip),
			"security_id":    canon.Int(e.SecurityID),
			"enabled":        canon.Bool(e.Enabled),
			"min_size":       canon.Int(e.MinSize),
			"already_exists": canon.Bool(e.AlreadyExists),
		}, nil

	case InstrumentEnabledSet:
		return canon.Obj{
			"type":        canon.Str(e.EventName()),
			"correlation": canon.Str(e.Correlation),
			"cusip":       canon.Str(e.Cusip),
			"enabled":     canon.Bool(e.Enabled),
		}, nil

	case InstrumentList:
		list := make(canon.Arr, len(e.Instruments))
		for i, inst := range e.Instruments {
			list[i] = canon.Obj{
				"cusip":       canon.Str(inst.Cusip),
				"security_id": canon.Int(inst.SecurityID),
				"enabled":     canon.Bool(inst.Enabled),
				"min_size":    canon.Int(inst.MinSize),
			}
		}
		return canon.Obj{
			"type":        canon.Str(e.EventName()),
			"correlation": canon.Str(e.Correlation),
			"instruments": list,
		}, nil

	case RfqCreated:
		return canon.Obj{
			"type":              canon.Str(e.EventName()),
			"rfq_id":            canon.Int(e.RfqID),
			"requester_user_id": canon.Int(e.RequesterUserID),
			"cusip":             canon.Str(e.Cusip),
			"security_id":       canon.Int(e.SecurityID),
			"side":              canon.Str(string(e.Side)),
			"quantity":          canon.Int(e.Quantity),
			"expire_time_ms":    canon.Int(e.ExpireTimeMs),
			"correlation":       canon.Str(e.Correlation),
		}, nil

	case RfqQuoted:
		return canon.Obj{
			"type":              canon.Str(e.EventName()),
			"rfq_id":            canon.Int(e.RfqID),
			"quote_sequence":    canon.Int(e.QuoteSequence),
			"price":             canon.Int(e.Price),
			"requester_user_id": canon.Int(e.RequesterUserID),
			"responder_user_id": canon.Int(e.ResponderUserID),
			"correlation":       canon.Str(e.Correlation),
		}, nil

	case RfqAccepted:
		return canon.Obj{
			"type":                canon.Str(e.EventName()),
			"rfq_id":              canon.Int(e.RfqID),
			"quote_sequence":      canon.Int(e.QuoteSequence),
			"price":               canon.Int(e.Price),
			"accepted_by_user_id": canon.Int(e.AcceptedByUserID),
			"requester_user_id":   canon.Int(e.RequesterUserID),
			"responder_user_id":   canon.Int(e.ResponderUserID),
			"correlation":         canon.Str(e.Correlation),
		}, nil

	case RfqRejected:
		return canon.Obj{
			"type":                canon.Str(e.EventName()),
			"rfq_id":              canon.Int(e.RfqID),
			"quote_sequence":      canon.Int(e.QuoteSequence),
			"price":               canon.Int(e.Price),
			"rejected_by_user_id": canon.Int(e.RejectedByUserID),
			"requester_user_id":   canon.Int(e.RequesterUserID),
			"responder_user_id":   canon.Int(e.ResponderUserID),
			"correlation":         canon.Str(e.Correlation),
		}, nil

	case RfqCanceled:
		return canon.Obj{
			"type":              canon.Str(e.EventName()),
			"rfq_id":            canon.Int(e.RfqID),
			"requester_user_id": canon.Int(e.RequesterUserID),
			"correlation":       canon.Str(e.Correlation),
		}, nil

	case RfqExpired:
		return canon.Obj{
			"type":              canon.Str(e.EventName()),
			"rfq_id":            canon.Int(e.RfqID),
			"requester_user_id": canon.Int(e.RequesterUserID),
			"responder_user_id": canon.Int(e.ResponderUserID),
			"correlation":       canon.Str(e.Correlation),
		}, nil

	default:
		return nil, fmt.Errorf("unknown event type: %T", ev)
	}
}

func decodeCommandRejected(obj canon.Obj) (Event, error) {
	var (
		e   CommandRejected
		err error
	)
	if e.Correlation, err = getStr(obj, "correlation"); err != nil {
		return nil, err
	}
	if e.RfqID, err = getInt(obj, "rfq_id"); err != nil {
		return nil, err
	}
	if e.Reason, err = getStr(obj, "reason"); err != nil {
		return nil, err
	}
	return e, nil
}

func decodeInstrumentAdded(obj canon.Obj) (Event, error) {
	var (
		e   InstrumentAdded
		err error
	)
	if e.Correlation, err = getStr(obj, "correlation"); err != nil {
		return nil, err
	}
	if e.Cusip, err = getStr(obj, "cusip"); err != nil {
		return nil, err
	}
	if e.SecurityID, err = getInt(obj, "security_id"); err != nil {
		return nil, err
	}
	if e.Enabled, err = getBool(obj, "enabled"); err != nil {
		return nil, err
	}
	if e.MinSize, err = getInt(obj, "min_size"); err != nil {
		return nil, err
	}
	if e.AlreadyExists, err = getBool(obj, "already_exists"); err != nil {
		return nil, err
	}
	return e, nil
}

func decodeInstrumentEnabledSet(obj canon.Obj) (Event, error) {
	var (
		e   InstrumentEnabledSet
		err error
	)
	if e.Correlation, err = getStr(obj, "correlation"); err != nil {
		return nil, err
	}
	if e.Cusip, err = getStr(obj, "cusip"); err != nil {
		return nil, err
	}
	if e.Enabled, err = getBool(obj, "enabled"); err != nil {
		return nil, err
	}
	return e, nil
}

func decodeInstrumentList(obj canon.Obj) (Event, error) {
	var (
		e   InstrumentList
		err error
	)
	if e.Correlation, err = getStr(obj, "correlation"); err != nil {
		return nil, err
	}
	raw, ok := obj["instruments"]
	if !ok {
		return nil, fmt.Errorf("decode event: missing field %q", "instruments")
	}
	arr, ok := raw.(canon.Arr)
	if !ok {
		return nil, fmt.Errorf("decode event: field %q is not an array", "instruments")
	}
	e.Instruments = make([]Instrument, 0, len(arr))
	for i, elem := range arr {
		io, ok := elem.(canon.Obj)
		if !ok {
			return nil, fmt.Errorf("decode event: instruments[%d] is not an object", i)
		}
		var inst Instrument
		if inst.Cusip, err = getStr(io, "cusip"); err != nil {
			return nil, err
		}
		if inst.SecurityID, err = getInt(io, "security_id"); err != nil {
			return nil, err
		}
		if inst.Enabled, err = getBool(io, "enabled"); err != nil {
			return nil, err
		}
		if inst.MinSize, err = getInt(io, "min_size"); err != nil {
			return nil, err
		}
		e.Instruments = append(e.Instruments, inst)
	}
	return e, nil
}

func decodeRfqCreated(obj canon.Obj) (Event, error) {
	var (
		e   RfqCreated
		err error
	)
	if e.RfqID, err = getInt(obj, "rfq_id"); err != nil {
		return nil, err
	}
	if e.RequesterUserID, err = getInt(obj, "requester_user_id"); err != nil {
		return nil, err
	}
	if e.Cusip, err = getStr(obj, "cusip"); err != nil {
		return nil, err
	}
	if e.SecurityID, err = getInt(obj, "security_id"); err != nil {
		return nil, err
	}
	side, err := getStr(obj, "side")
	if err != nil {
		return nil, err
	}
	e.Side = Side(side)
	if e.Quantity, err = getInt(obj, "quantity"); err != nil {
		return nil, err
	}
	if e.ExpireTimeMs, err = getInt(obj, "expire_time_ms"); err != nil {
		return nil, err
	}
	if e.Correlation, err = getStr(obj, "correlation"); err != nil {
		return nil, err
	}
	return e, nil
}

func decodeRfqQuoted(obj canon.Obj) (Event, error) {
	var (
		e   RfqQuoted
		err error
	)
	if e.RfqID, err = getInt(obj, "rfq_id"); err != nil {
		return nil, err
	}
	if e.QuoteSequence, err = getInt(obj, "quote_sequence"); err != nil {
		return nil, err
	}
	if e.Price, err = getInt(obj, "price"); err != nil {
		return nil, err
	}
	if e.RequesterUserID, err = getInt(obj, "requester_user_id"); err != nil {
		return nil, err
	}
	if e.ResponderUserID, err = getInt(obj, "responder_user_id"); err != nil {
		return nil, err
	}
	if e.Correlation, err = getStr(obj, "correlation"); err != nil {
		return nil, err
	}
	return e, nil
}

func decodeRfqAccepted(obj canon.Obj) (Event, error) {
	var (
		e   RfqAccepted
		err error
	)
	if e.RfqID, err = getInt(obj, "rfq_id"); err != nil {
		return nil, err
	}
	if e.QuoteSequence, err = getInt(obj, "quote_sequence"); err != nil {
		return nil, err
	}
	if e.Price, err = getInt(obj, "price"); err != nil {
		return nil, err
	}
	if e.AcceptedByUserID, err = getInt(obj, "accepted_by_user_id"); err != nil {
		return nil, err
	}
	if e.RequesterUserID, err = getInt(obj, "requester_user_id"); err != nil {
		return nil, err
	}
	if e.ResponderUserID, err = getInt(obj, "responder_user_id"); err != nil {
		return nil, err
	}
	if e.Correlation, err = getStr(obj, "correlation"); err != nil {
		return nil, err
	}
	return e, nil
}

func decodeRfqRejected(obj canon.Obj) (Event, error) {
	var (
		e   RfqRejected
		err error
	)
	if e.RfqID, err = getInt(obj, "rfq_id"); err != nil {
		return nil, err
	}
	if e.QuoteSequence, err = getInt(obj, "quote_sequence"); err != nil {
		return nil, err
	}
	if e.Price, err = getInt(obj, "price"); err != nil {
		return nil, err
	}
	if e.RejectedByUserID, err = getInt(obj, "rejected_by_user_id"); err != nil {
		return nil, err
	}
	if e.RequesterUserID, err = getInt(obj, "requester_user_id"); err != nil {
		return nil, err
	}
	if e.ResponderUserID, err = getInt(obj, "responder_user_id"); err != nil {
		return nil, err
	}
	if e.Correlation, err = getStr(obj, "correlation"); err != nil {
		return nil, err
	}
	return e, nil
}

func decodeRfqCanceled(obj canon.Obj) (Event, error) {
	var (
		e   RfqCanceled
		err error
	)
	if e.RfqID, err = getInt(obj, "rfq_id"); err != nil {
		return nil, err
	}
	if e.RequesterUserID, err = getInt(obj, "requester_user_id"); err != nil {
		return nil, err
	}
	if e.Correlation, err = getStr(obj, "correlation"); err != nil {
		return nil, err
	}
	return e, nil
}

func decodeRfqExpired(obj canon.Obj) (Event, error) {
	var (
		e   RfqExpired
		err error
	)
	if e.RfqID, err = getInt(obj, "rfq_id"); err != nil {
		return nil, err
	}
	if e.RequesterUserID, err = getInt(obj, "requester_user_id"); err != nil {
		return nil, err
	}
	if e.ResponderUserID, err = getInt(obj, "responder_user_id"); err != nil {
		return nil, err
	}
	if e.Correlation, err = getStr(obj, "correlation"); err != nil {
		return nil, err
	}
	return e, nil
}

func getStr(obj canon.Obj, key string) (string, error) {
	v, ok := obj[key]
	if !ok {
		return "", fmt.Errorf("decode event: missing field %q", key)
	}
	s, ok := v.(canon.Str)
	if !ok {
		return "", fmt.Errorf("decode event: field %q is not a string", key)
	}
	return string(s), nil
}

func getInt(obj canon.Obj, key string) (int64, error) {
	v, ok := obj[key]
	if !ok {
		return 0, fmt.Errorf("decode event: missing field %q", key)
	}
	n, ok := v.(canon.Int)
	if !ok {
		return 0, fmt.Errorf("decode event: field %q is not an int", key)
	}
	return int64(n), nil
}

func getBool(obj canon.Obj, key string) (bool, error) {
	v, ok := obj[key]
	if !ok {
		return false, fmt.Errorf("decode event: missing field %q", key)
	}
	b, ok := v.(canon.Bool)
	if !ok {
		return false, fmt.Errorf("decode event: field %q is not a bool", key)
	}
	return bool(b), nil
}
