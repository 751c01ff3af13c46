// Package tiles maintains the mapping from attendee to renderable video
// tile.
//
// Incoming tile updates are diffed against the stored record to decide
// whether anything externally observable happened. Only two cases require
// the view layer to (re)bind a render target: a tile for an attendee with no
// existing record (new tile) and a tile whose id differs from the stored one
// for the same attendee (tile replacement, e.g. after a camera restart).
// Everything else is an in-place metadata refresh and is stored silently.
//
// Tile removal is keyed by tile id, not attendee id, because the attendee
// may already own a replacement tile by the time the removal arrives.
package tiles
