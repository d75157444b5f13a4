package rfq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandRoundTrip(t *testing.T) {
	commands := []Command{
		AddInstrument{Cusip: "912828YK0", SecurityID: 42, Enabled: true, MinSize: 100, Correlation: "c1"},
		SetInstrumentEnabled{Cusip: "912828YK0", Enabled: false, Correlation: "c2"},
		ListInstruments{Correlation: "c3"},
		CreateRfq{Cusip: "912828YK0", Side: SideBuy, Quantity: 200, RequesterUserID: 500, ExpireTimeMs: 60_000, Correlation: "c4"},
		CancelRfq{RfqID: 1, UserID: 500, Correlation: "c5"},
		QuoteRfq{RfqID: 1, ResponderUserID: 700, Price: 100, Correlation: "c6"},
		CounterRfq{RfqID: 1, UserID: 500, Price: 99, Correlation: "c7"},
		AcceptRfq{RfqID: 1, UserID: 700, QuoteSequence: 2, Correlation: "c8"},
		RejectRfq{RfqID: 1, UserID: 500, QuoteSequence: 1, Correlation: "c9"},
	}

	for _, cmd := range commands {
		t.Run(cmd.Name(), func(t *testing.T) {
			data, err := EncodeCommand(cmd)
			require.NoError(t, err)

			decoded, err := DecodeCommand(data)
			require.NoError(t, err)
			assert.Equal(t, cmd, decoded)
		})
	}
}

func TestEncodeCommandDeterministic(t *testing.T) {
	cmd := CreateRfq{
		Cusip: "912828YK0", Side: SideSell, Quantity: 500,
		RequesterUserID: 501, ExpireTimeMs: 90_000, Correlation: "c",
	}
	a, err := EncodeCommand(cmd)
	require.NoError(t, err)
	b, err := EncodeCommand(cmd)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDecodeCommandUnknownType(t *testing.T) {
	_, err := DecodeCommand([]byte(`{"type":"Nope"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown type")
}

func TestDecodeCommandMissingField(t *testing.T) {
	_, err := DecodeCommand([]byte(`{"correlation":"c","type":"CancelRfq","user_id":500}`))
	require.Error(t, err)
}
