package rfq

import (
	"fmt"

	"github.com/quotewire/quotewire/internal/canon"
)

// EncodeCommand serializes a command to canonical JSON with a "type" tag.
// Used by the journal and the conformance harness; on the wire commands
// arrive through the transport's own envelope.
func EncodeCommand(cmd Command) ([]byte, error) {
	payload, err := commandPayload(cmd)
	if err != nil {
		return nil, err
	}
	data, err := canon.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", cmd.Name(), err)
	}
	return data, nil
}

// DecodeCommand parses canonical JSON produced by EncodeCommand back into
// a typed command.
func DecodeCommand(data []byte) (Command, error) {
	v, err := canon.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("decode command: %w", err)
	}
	obj, ok := v.(canon.Obj)
	if !ok {
		return nil, fmt.Errorf("decode command: not an object")
	}
	return DecodeCommandObj(obj)
}

// DecodeCommandObj decodes a command from an already-parsed canonical
// object. The harness uses this to decode scenario steps loaded from YAML.
func DecodeCommandObj(obj canon.Obj) (Command, error) {
	name, err := getStr(obj, "type")
	if err != nil {
		return nil, err
	}

	switch name {
	case "AddInstrument":
		return decodeAddInstrument(obj)
	case "SetInstrumentEnabled":
		return decodeSetInstrumentEnabled(obj)
	case "ListInstruments":
		return decodeListInstruments(obj)
	case "CreateRfq":
		return decodeCreateRfq(obj)
	case "CancelRfq":
		return decodeCancelRfq(obj)
	case "QuoteRfq":
		return decodeQuoteRfq(obj)
	case "CounterRfq":
		return decodeCounterRfq(obj)
	case "AcceptRfq":
		return decodeAcceptRfq(obj)
	case "RejectRfq":
		return decodeRejectRfq(obj)
	default:
		return nil, fmt.Errorf("decode command: unknown type %q", name)
	}
}

func commandPayload(cmd Command) (canon.Obj, error) {
	switch c := cmd.(type) {
	case AddInstrument:
		return canon.Obj{
			"type":        canon.Str(c.Name()),
			"cusip":       canon.Str(c.Cusip),
			"security_id": canon.Int(c.SecurityID),
			"enabled":     canon.Bool(c.Enabled),
			"min_size":    canon.Int(c.MinSize),
			"correlation": canon.Str(c.Correlation),
		}, nil

	case SetInstrumentEnabled:
		return canon.Obj{
			"type":        canon.Str(c.Name()),
			"cusip":       canon.Str(c.Cusip),
			"enabled":     canon.Bool(c.Enabled),
			"correlation": canon.Str(c.Correlation),
		}, nil

	case ListInstruments:
		return canon.Obj{
			"type":        canon.Str(c.Name()),
			"correlation": canon.Str(c.Correlation),
		}, nil

	case CreateRfq:
		return canon.Obj{
			"type":              canon.Str(c.Name()),
			"cusip":             canon.Str(c.Cusip),
			"side":              canon.Str(string(c.Side)),
			"quantity":          canon.Int(c.Quantity),
			"requester_user_id": canon.Int(c.RequesterUserID),
			"expire_time_ms":    canon.Int(c.ExpireTimeMs),
			"correlation":       canon.Str(c.Correlation),
		}, nil

	case CancelRfq:
		return canon.Obj{
			"type":        canon.Str(c.Name()),
			"rfq_id":      canon.Int(c.RfqID),
			"user_id":     canon.Int(c.UserID),
			"correlation": canon.Str(c.Correlation),
		}, nil

	case QuoteRfq:
		return canon.Obj{
			"type":              canon.Str(c.Name()),
			"rfq_id":            canon.Int(c.RfqID),
			"responder_user_id": canon.Int(c.ResponderUserID),
			"price":             canon.Int(c.Price),
			"correlation":       canon.Str(c.Correlation),
		}, nil

	case CounterRfq:
		return canon.Obj{
			"type":        canon.Str(c.Name()),
			"rfq_id":      canon.Int(c.RfqID),
			"user_id":     canon.Int(c.UserID),
			"price":       canon.Int(c.Price),
			"correlation": canon.Str(c.Correlation),
		}, nil

	case AcceptRfq:
		return canon.Obj{
			"type":           canon.Str(c.Name()),
			"rfq_id":         canon.Int(c.RfqID),
			"user_id":        canon.Int(c.UserID),
			"quote_sequence": canon.Int(c.QuoteSequence),
			"correlation":    canon.Str(c.Correlation),
		}, nil

	case RejectRfq:
		return canon.Obj{
			"type":           canon.Str(c.Name()),
			"rfq_id":         canon.Int(c.RfqID),
			"user_id":        canon.Int(c.UserID),
			"quote_sequence": canon.Int(c.QuoteSequence),
			"correlation":    canon.Str(c.Correlation),
		}, nil

	default:
		return nil, fmt.Errorf("encode command: unknown type %T", cmd)
	}
}

func decodeAddInstrument(obj canon.Obj) (Command, error) {
	cusip, err := getStr(obj, "cusip")
	if err != nil {
		return nil, err
	}
	securityID, err := getInt(obj, "security_id")
	if err != nil {
		return nil, err
	}
	enabled, err := getBool(obj, "enabled")
	if err != nil {
		return nil, err
	}
	minSize, err := getInt(obj, "min_size")
	if err != nil {
		return nil, err
	}
	correlation, err := getStr(obj, "correlation")
	if err != nil {
		return nil, err
	}
	return AddInstrument{
		Cusip:       cusip,
		SecurityID:  securityID,
		Enabled:     enabled,
		MinSize:     minSize,
		Correlation: correlation,
	}, nil
}

func decodeSetInstrumentEnabled(obj canon.Obj) (Command, error) {
	cusip, err := getStr(obj, "cusip")
	if err != nil {
		return nil, err
	}
	enabled, err := getBool(obj, "enabled")
	if err != nil {
		return nil, err
	}
	correlation, err := getStr(obj, "correlation")
	if err != nil {
		return nil, err
	}
	return SetInstrumentEnabled{Cusip: cusip, Enabled: enabled, Correlation: correlation}, nil
}

func decodeListInstruments(obj canon.Obj) (Command, error) {
	correlation, err := getStr(obj, "correlation")
	if err != nil {
		return nil, err
	}
	return ListInstruments{Correlation: correlation}, nil
}

func decodeCreateRfq(obj canon.Obj) (Command, error) {
	cusip, err := getStr(obj, "cusip")
	if err != nil {
		return nil, err
	}
	side, err := getStr(obj, "side")
	if err != nil {
		return nil, err
	}
	quantity, err := getInt(obj, "quantity")
	if err != nil {
		return nil, err
	}
	requester, err := getInt(obj, "requester_user_id")
	if err != nil {
		return nil, err
	}
	expire, err := getInt(obj, "expire_time_ms")
	if err != nil {
		return nil, err
	}
	correlation, err := getStr(obj, "correlation")
	if err != nil {
		return nil, err
	}
	return CreateRfq{
		Cusip:           cusip,
		Side:            Side(side),
		Quantity:        quantity,
		RequesterUserID: requester,
		ExpireTimeMs:    expire,
		Correlation:     correlation,
	}, nil
}

func decodeCancelRfq(obj canon.Obj) (Command, error) {
	rfqID, err := getInt(obj, "rfq_id")
	if err != nil {
		return nil, err
	}
	userID, err := getInt(obj, "user_id")
	if err != nil {
		return nil, err
	}
	correlation, err := getStr(obj, "correlation")
	if err != nil {
		return nil, err
	}
	return CancelRfq{RfqID: rfqID, UserID: userID, Correlation: correlation}, nil
}

func decodeQuoteRfq(obj canon.Obj) (Command, error) {
	rfqID, err := getInt(obj, "rfq_id")
	if err != nil {
		return nil, err
	}
	responder, err := getInt(obj, "responder_user_id")
	if err != nil {
		return nil, err
	}
	price, err := getInt(obj, "price")
	if err != nil {
		return nil, err
	}
	correlation, err := getStr(obj, "correlation")
	if err != nil {
		return nil, err
	}
	return QuoteRfq{
		RfqID:           rfqID,
		ResponderUserID: responder,
		Price:           price,
		Correlation:     correlation,
	}, nil
}

func decodeCounterRfq(obj canon.Obj) (Command, error) {
	rfqID, err := getInt(obj, "rfq_id")
	if err != nil {
		return nil, err
	}
	userID, err := getInt(obj, "user_id")
	if err != nil {
		return nil, err
	}
	price, err := getInt(obj, "price")
	if err != nil {
		return nil, err
	}
	correlation, err := getStr(obj, "correlation")
	if err != nil {
		return nil, err
	}
	return CounterRfq{RfqID: rfqID, UserID: userID, Price: price, Correlation: correlation}, nil
}

func decodeAcceptRfq(obj canon.Obj) (Command, error) {
	rfqID, err := getInt(obj, "rfq_id")
	if err != nil {
		return nil, err
	}
	userID, err := getInt(obj, "user_id")
	if err != nil {
		return nil, err
	}
	seq, err := getInt(obj, "quote_sequence")
	if err != nil {
		return nil, err
	}
	correlation, err := getStr(obj, "correlation")
	if err != nil {
		return nil, err
	}
	return AcceptRfq{RfqID: rfqID, UserID: userID, QuoteSequence: seq, Correlation: correlation}, nil
}

func decodeRejectRfq(obj canon.Obj) (Command, error) {
	rfqID, err := getInt(obj, "rfq_id")
	if err != nil {
		return nil, err
	}
	userID, err := getInt(obj, "user_id")
	if err != nil {
		return nil, err
	}
	seq, err := getInt(obj, "quote_sequence")
	if err != nil {
		return nil, err
	}
	correlation, err := getStr(obj, "correlation")
	if err != nil {
		return nil, err
	}
	return RejectRfq{RfqID: rfqID, UserID: userID, QuoteSequence: seq, Correlation: correlation}, nil
}
