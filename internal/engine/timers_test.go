package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotewire/quotewire/internal/rfq"
)

func TestTimerFireExpires(t *testing.T) {
	e, resp := newNegotiation(t)

	e.OnTimerFire(1, 60_000)

	ev, ok := resp.lastBroadcast(t).(rfq.RfqExpired)
	require.True(t, ok)
	assert.Equal(t, int64(1), ev.RfqID)
	assert.Equal(t, requester, ev.RequesterUserID)

	_, r, err := e.Rfqs().GetByKey(1)
	require.NoError(t, err)
	assert.Equal(t, rfq.StateExpired, r.State)
}

func TestTimerFireIdempotent(t *testing.T) {
	e, resp := newNegotiation(t)

	e.OnTimerFire(1, 60_000)
	before := len(resp.broadcasts)

	e.OnTimerFire(1, 60_001)
	assert.Len(t, resp.broadcasts, before, "a duplicate fire emits nothing")
}

func TestTimerFireAfterSettlement(t *testing.T) {
	e, resp := newNegotiation(t)
	quote(t, e, 100)
	require.NoError(t, e.Apply(rfq.AcceptRfq{
		RfqID: 1, UserID: requester, QuoteSequence: 1, Correlation: "accept-1",
	}, 3000))
	before := len(resp.broadcasts)

	e.OnTimerFire(1, 60_000)

	assert.Len(t, resp.broadcasts, before, "stale fire on a settled rfq is dropped")
	_, r, err := e.Rfqs().GetByKey(1)
	require.NoError(t, err)
	assert.Equal(t, rfq.StateAccepted, r.State)
}

func TestTimerFireEarlyDropped(t *testing.T) {
	e, resp := newNegotiation(t)
	before := len(resp.broadcasts)

	e.OnTimerFire(1, 59_999)

	assert.Len(t, resp.broadcasts, before)
	_, r, err := e.Rfqs().GetByKey(1)
	require.NoError(t, err)
	assert.Equal(t, rfq.StateCreated, r.State)

	_, pending := e.Timers().Pending(1)
	assert.True(t, pending, "an early fire leaves the deadline tracked")
}

func TestTimerFireUnknownRfq(t *testing.T) {
	e, resp := newTestEngine(t)

	e.OnTimerFire(42, 1000)
	assert.Empty(t, resp.broadcasts)
}

func TestQuoteReschedulesSameDeadline(t *testing.T) {
	e, resp := newNegotiation(t)
	scheduledBefore := len(resp.scheduled)

	quote(t, e, 100)

	require.Len(t, resp.scheduled, scheduledBefore+1)
	last := resp.scheduled[len(resp.scheduled)-1]
	assert.Equal(t, int64(60_000), last.notBeforeMs)
	assert.Equal(t, int64(1), last.rfqID)
}

func TestCoordinatorLatestScheduleWins(t *testing.T) {
	resp := &fakeResponder{}
	tc := NewTimerCoordinator(resp)

	tc.Schedule(5000, 7)
	tc.Schedule(9000, 7)

	deadline, ok := tc.Pending(7)
	require.True(t, ok)
	assert.Equal(t, int64(9000), deadline)

	fired := 0
	tc.OnFire(7, 5000, func(rfqID, nowMs int64) { fired++ })
	assert.Zero(t, fired, "fire from the superseded registration is early")

	tc.OnFire(7, 9000, func(rfqID, nowMs int64) { fired++ })
	assert.Equal(t, 1, fired)

	_, ok = tc.Pending(7)
	assert.False(t, ok, "a dispatched fire clears the deadline")
}

func TestCoordinatorDueSortedByRfqID(t *testing.T) {
	resp := &fakeResponder{}
	tc := NewTimerCoordinator(resp)

	tc.Schedule(1000, 9)
	tc.Schedule(1000, 2)
	tc.Schedule(1000, 5)
	tc.Schedule(4000, 3)

	assert.Equal(t, []int64{2, 5, 9}, tc.Due(1000))

	// Due does not consume; only a dispatched fire clears a deadline.
	assert.Equal(t, []int64{2, 5, 9}, tc.Due(1000))

	tc.OnFire(2, 1000, func(rfqID, nowMs int64) {})
	assert.Equal(t, []int64{5, 9}, tc.Due(1000))
	assert.Equal(t, []int64{3, 5, 9}, tc.Due(4000))
}
