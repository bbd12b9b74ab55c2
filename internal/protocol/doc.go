// Package protocol owns the fleet wire contract and its codec.
//
// Ownership boundary:
// - datagram and shape primitives
// - fixed-layout command/data/config/snapshot structs
// - per-direction sentinel validation
//
// Layouts are order-significant and carry no self-description. Adding a
// field to any shape is a breaking wire change and needs a new shape id.
package protocol
