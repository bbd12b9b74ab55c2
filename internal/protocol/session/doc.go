// Package session owns the timing and bookkeeping primitives shared by
// links and the relay.
//
// Ownership boundary:
// - heartbeat / liveness timing config
// - SYNC_NOW probe backoff
// - pending relay requests (store-and-forward outbox)
package session
