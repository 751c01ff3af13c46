package roster

import "strings"

// ContentDelimiter separates an owner attendee id from the content-share
// suffix in a content-share pseudo-attendee id.
const ContentDelimiter = "#"

// Record is the merged view of one attendee. Values are copied out of the
// roster; mutating a Record never affects roster state.
type Record struct {
	AttendeeID     string
	DisplayName    string
	ActiveSpeaker  bool
	ActivityScore  float64
	Volume         float64
	Muted          bool
	Paused         bool
	SignalStrength float64

	// SharedContent marks a content-share pseudo-attendee: a synthetic
	// entry representing a participant's shared screen. OwnerID then
	// references the real attendee that owns the share.
	SharedContent bool
	OwnerID       string
}

// newRecord builds the initial record for an attendee, deriving the
// content-share fields from the id's delimiter-qualified suffix.
func newRecord(attendeeID, displayName string) *Record {
	r := &Record{
		AttendeeID:  attendeeID,
		DisplayName: displayName,
	}
	if parts := strings.Split(attendeeID, ContentDelimiter); len(parts) == 2 {
		r.SharedContent = true
		r.OwnerID = parts[0]
	}
	return r
}
