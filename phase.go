package meetsync

// Phase is the session lifecycle state. Transitions follow a fixed graph;
// every failed asynchronous step falls back to the phase it started from.
type Phase uint8

const (
	// PhaseIdle means no meeting session exists.
	PhaseIdle Phase = iota
	// PhaseCreating means a create-meeting request is in flight.
	PhaseCreating
	// PhaseJoining means a join request or transport construction is in
	// flight.
	PhaseJoining
	// PhaseInPreview means a session exists and devices can be previewed.
	PhaseInPreview
	// PhaseEntering means the meeting entry sequence is running.
	PhaseEntering
	// PhaseInMeeting means the realtime session is live.
	PhaseInMeeting
	// PhaseLeaving means session teardown is running.
	PhaseLeaving
)

// String returns a human-readable phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseCreating:
		return "creating"
	case PhaseJoining:
		return "joining"
	case PhaseInPreview:
		return "in-preview"
	case PhaseEntering:
		return "entering"
	case PhaseInMeeting:
		return "in-meeting"
	case PhaseLeaving:
		return "leaving"
	default:
		return "unknown"
	}
}

var phaseTransitions = map[Phase][]Phase{
	PhaseIdle:      {PhaseCreating, PhaseJoining},
	PhaseCreating:  {PhaseIdle},
	PhaseJoining:   {PhaseInPreview, PhaseIdle},
	PhaseInPreview: {PhaseEntering, PhaseLeaving},
	PhaseEntering:  {PhaseInMeeting, PhaseInPreview},
	PhaseInMeeting: {PhaseLeaving},
	PhaseLeaving:   {PhaseIdle},
}

// CanTransition reports whether the lifecycle graph permits moving from p
// to next.
func (p Phase) CanTransition(next Phase) bool {
	for _, allowed := range phaseTransitions[p] {
		if allowed == next {
			return true
		}
	}
	return false
}
