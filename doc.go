// Package meetsync is a client-side control plane for group video meetings.
//
// It sits between an application's view layer and a realtime media transport
// (an SDK-provided audio/video session) and owns the state that the transport
// only reports as events: who is in the meeting, which video tiles exist,
// which devices are selected, and what lifecycle phase the session is in.
//
// # Basic Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//	api := backend.New(cfg.BackendURL, cfg.HTTPTimeout)
//	session, err := meetsync.New(cfg, api, creds, newTransport)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	if err := session.Join(ctx, "standup", "alice"); err != nil {
//		log.Fatal(err)
//	}
//	session.StartPreview(surface)
//	session.SelectVideoInput(ctx, media.DeviceID("camera-1"))
//	if err := session.Enter(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer session.Leave(ctx)
//
// # Architecture
//
// The packages mirror the session's concerns:
//
//   - backend: HTTP client for the meeting API (create, join, name lookup)
//   - media: the transport capability surface meetsync consumes
//   - devices: per-class device negotiation against the transport
//   - effects: the camera effect pipeline (virtual backgrounds)
//   - roster: the attendee set, merged from realtime events
//   - tiles: the attendee-to-video-tile mapping
//   - config: file and environment configuration
//
// Event callbacks arriving from the transport mutate roster and tile state
// through single-lock merge-on-write paths, so out-of-order completions of
// asynchronous work (name lookups, device choices) can never clobber newer
// state.
package meetsync
