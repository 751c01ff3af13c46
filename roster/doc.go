// Package roster maintains the set of meeting participants and their
// realtime telemetry.
//
// The roster is fed by four independently-arriving event streams from the
// media transport: presence join/leave, per-attendee volume updates, the
// active-speaker detector, and periodic activity scores. Callbacks may
// interleave arbitrarily; every handler applies its change as an atomic merge
// against the then-current record under one mutex, so two events touching
// different attendees can never lose each other's updates.
//
// Display names are resolved through an external lookup that may complete out
// of join order. A resolution finishing after its attendee already left is
// discarded rather than resurrecting a removed attendee.
//
// Callers never receive a mutable reference to roster state; they read
// snapshots and register a change notification that fires once per merge that
// actually changed visible state.
package roster
