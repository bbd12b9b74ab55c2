// Package link runs one end of one serial connection.
//
// Ownership boundary:
// - link state machine (disconnected, syncing, connected, standalone)
// - per-state accept rules and the per-link opcode handler table
// - liveness watchdog, heartbeats and SYNC_NOW probing
// - the synchronizer dump on the authoritative end
//
// A Link is driven only by Tick and is not safe for concurrent use. Cross
// link concerns (relay, fan-out, config ownership) are delegated through
// Hooks to the owning node.
package link
