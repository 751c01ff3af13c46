// Package media defines the boundary between the meetsync control plane and
// the real-time media transport that actually captures, encodes, and ships
// audio/video.
//
// meetsync never implements the transport itself. Every capability the
// control plane needs — device enumeration and selection, local tile and
// preview control, content share, and the presence/volume/active-speaker
// event streams — is expressed here as an interface or callback type, and the
// rest of the module is written against those. This mirrors the consumer-side
// transport interfaces used elsewhere in this codebase: the concrete
// implementation is supplied by the embedding application, and tests supply
// mocks.
//
// # Event Delivery
//
// The transport delivers presence, volume, active-speaker, and tile events as
// fire-and-forget callbacks with no backpressure. Handlers registered through
// this package must not block; the roster and tile registry apply each event
// as an atomic merge and return immediately.
package media
