package backend

import "context"

// Resolver binds a client to one meeting's name-lookup context. It satisfies
// the roster's NameResolver interface.
type Resolver struct {
	Client      *Client
	MeetingName string
	Creds       Credentials
}

// ResolveDisplayName looks up the display name for an attendee in the bound
// meeting.
func (r *Resolver) ResolveDisplayName(ctx context.Context, attendeeID string) (string, error) {
	return r.Client.GetUserName(ctx, r.MeetingName, attendeeID, r.Creds)
}
