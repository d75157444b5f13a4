package engine

// Responder is the engine's only outbound surface. The core never addresses
// a transport session directly - it replies to the originating session,
// broadcasts to all sessions, or asks the replicated timer facility for an
// expiry callback, and the surrounding cluster runtime does the rest.
//
// Implemented by the cluster session egress (production) and by recording
// fakes (tests, conformance harness).
type Responder interface {
	// Reply delivers encoded event bytes to the originating session only.
	Reply(data []byte)

	// Broadcast delivers encoded event bytes to every connected session.
	Broadcast(data []byte)

	// ScheduleExpiry registers an expiry callback with the external
	// replicated timer facility. The callback must arrive as an
	// Engine.OnTimerFire with a cluster timestamp.
	ScheduleExpiry(notBeforeMs int64, rfqID int64)
}
