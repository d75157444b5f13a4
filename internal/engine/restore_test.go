package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotewire/quotewire/internal/rfq"
)

func TestRestoreSuppressesOutput(t *testing.T) {
	e, resp := newTestEngine(t)

	e.BeginRestore()
	require.NoError(t, e.RestoreInstrument(rfq.Instrument{
		Cusip: "912828YK0", SecurityID: 42, Enabled: true, MinSize: 100,
	}))
	require.NoError(t, e.RestoreRfq(rfq.Rfq{
		ID: 1, RequesterUserID: requester, ResponderUserID: rfq.NilUserID,
		Cusip: "912828YK0", SecurityID: 42, Side: rfq.SideBuy, Quantity: 200,
		Correlation: "create-1", State: rfq.StateCreated,
		ExpireTimeMs: 60_000, CreatedAtMs: 1000,
	}, 2000))
	e.EndRestore()

	assert.Empty(t, resp.replies)
	assert.Empty(t, resp.broadcasts)
	assert.Equal(t, 1, e.Instruments().Count())
	assert.Equal(t, 1, e.Rfqs().Count())
}

func TestRestoreResumesIDGenerator(t *testing.T) {
	e, resp := newTestEngine(t)

	e.BeginRestore()
	require.NoError(t, e.RestoreInstrument(rfq.Instrument{
		Cusip: "912828YK0", SecurityID: 42, Enabled: true, MinSize: 100,
	}))
	require.NoError(t, e.RestoreRfq(rfq.Rfq{
		ID: 7, RequesterUserID: requester, ResponderUserID: rfq.NilUserID,
		Cusip: "912828YK0", SecurityID: 42, Side: rfq.SideBuy, Quantity: 200,
		Correlation: "c-7", State: rfq.StateCanceled,
		ExpireTimeMs: 60_000, CreatedAtMs: 1000,
	}, 2000))
	e.EndRestore()

	require.Equal(t, int64(8), e.NextRfqID())

	require.NoError(t, e.Apply(rfq.CreateRfq{
		Cusip: "912828YK0", Side: rfq.SideBuy, Quantity: 200,
		RequesterUserID: requester, ExpireTimeMs: 90_000, Correlation: "c-8",
	}, 3000))
	ev, ok := resp.lastBroadcast(t).(rfq.RfqCreated)
	require.True(t, ok)
	assert.Equal(t, int64(8), ev.RfqID)
}

func TestRestoreReschedulesOpenDeadlines(t *testing.T) {
	e, _ := newTestEngine(t)

	e.BeginRestore()
	require.NoError(t, e.RestoreRfq(rfq.Rfq{
		ID: 1, RequesterUserID: requester, ResponderUserID: responder,
		Cusip: "912828YK0", SecurityID: 42, Side: rfq.SideSell, Quantity: 300,
		Correlation: "c-1", State: rfq.StateQuoted, QuoteSequence: 1, Price: 100,
		ExpireTimeMs: 60_000, CreatedAtMs: 1000,
	}, 2000))
	e.EndRestore()

	deadline, ok := e.Timers().Pending(1)
	require.True(t, ok)
	assert.Equal(t, int64(60_000), deadline)
}

func TestRestoreExpiresPastDue(t *testing.T) {
	e, resp := newTestEngine(t)

	e.BeginRestore()
	require.NoError(t, e.RestoreRfq(rfq.Rfq{
		ID: 1, RequesterUserID: requester, ResponderUserID: rfq.NilUserID,
		Cusip: "912828YK0", SecurityID: 42, Side: rfq.SideBuy, Quantity: 200,
		Correlation: "c-1", State: rfq.StateCreated,
		ExpireTimeMs: 60_000, CreatedAtMs: 1000,
	}, 120_000))
	e.EndRestore()

	assert.Empty(t, resp.broadcasts, "restore-time expiry stays silent")

	_, r, err := e.Rfqs().GetByKey(1)
	require.NoError(t, err)
	assert.Equal(t, rfq.StateExpired, r.State)

	_, pending := e.Timers().Pending(1)
	assert.False(t, pending)
}

func TestRestoreSkipsTimersForTerminal(t *testing.T) {
	e, _ := newTestEngine(t)

	e.BeginRestore()
	require.NoError(t, e.RestoreRfq(rfq.Rfq{
		ID: 1, RequesterUserID: requester, ResponderUserID: responder,
		Cusip: "912828YK0", SecurityID: 42, Side: rfq.SideBuy, Quantity: 200,
		Correlation: "c-1", State: rfq.StateAccepted, QuoteSequence: 2, Price: 99,
		ExpireTimeMs: 60_000, CreatedAtMs: 1000,
	}, 2000))
	e.EndRestore()

	_, pending := e.Timers().Pending(1)
	assert.False(t, pending)
}

func TestRestoreDuplicateInstrument(t *testing.T) {
	e, _ := newTestEngine(t)

	e.BeginRestore()
	inst := rfq.Instrument{Cusip: "912828YK0", SecurityID: 42, Enabled: true, MinSize: 100}
	require.NoError(t, e.RestoreInstrument(inst))
	err := e.RestoreInstrument(inst)
	e.EndRestore()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestRestoredStateMatchesLiveChecksum(t *testing.T) {
	// Build a live engine, then rebuild a second from its records and
	// compare the checksums replicas would exchange.
	live, _ := newNegotiation(t)
	quote(t, live, 100)

	restored, _ := newTestEngine(t)
	restored.BeginRestore()
	for _, inst := range live.Instruments().List() {
		require.NoError(t, restored.RestoreInstrument(inst))
	}
	for _, r := range live.Rfqs().All() {
		require.NoError(t, restored.RestoreRfq(*r, 2000))
	}
	restored.EndRestore()

	assert.Equal(t, live.Checksum(), restored.Checksum())
	assert.Equal(t, live.Instruments().Checksum(), restored.Instruments().Checksum())
}
