package conversation

import "slices"

// Route is the handler chosen for a turn.
type Route string

const (
	RouteResume Route = "RESUME"
	RouteChat   Route = "CHAT"
)

// Label returns the answer source shown next to an assistant reply.
func (r Route) Label() string {
	if r == RouteResume {
		return "Resume agent (resume database)"
	}
	return "Chat agent (general knowledge)"
}

// State is threaded through a single turn. Handlers never modify a State in
// place; every With* method returns a copy that shares no slices with the
// receiver, so a failed turn leaves the caller's value intact.
type State struct {
	History   []Message `json:"history"`
	Route     Route     `json:"route"`
	LastUsage *Usage    `json:"last_usage,omitempty"`
	FocusIDs  []int64   `json:"focus_ids,omitempty"`
}

// New returns the state of a fresh session.
func New() State {
	return State{Route: RouteChat}
}

func (s State) clone() State {
	return State{
		History:   slices.Clone(s.History),
		Route:     s.Route,
		LastUsage: cloneUsage(s.LastUsage),
		FocusIDs:  slices.Clone(s.FocusIDs),
	}
}

// WithMessage returns a copy of s with m appended to the history.
func (s State) WithMessage(m Message) State {
	next := s.clone()
	next.History = append(next.History, m)
	return next
}

// WithRoute returns a copy of s with the route replaced.
func (s State) WithRoute(r Route) State {
	next := s.clone()
	next.Route = r
	return next
}

// WithUsage returns a copy of s with the last usage replaced. A nil usage
// clears the slot.
func (s State) WithUsage(u *Usage) State {
	next := s.clone()
	next.LastUsage = cloneUsage(u)
	return next
}

// WithFocus returns a copy of s whose in-focus identifiers are replaced by ids.
// An empty ids keeps the previous focus.
func (s State) WithFocus(ids []int64) State {
	next := s.clone()
	if len(ids) > 0 {
		next.FocusIDs = slices.Clone(ids)
	}
	return next
}

// Last returns the latest message of the history.
func (s State) Last() (Message, bool) {
	if len(s.History) == 0 {
		return Message{}, false
	}
	return s.History[len(s.History)-1], true
}

// Reply returns the trailing message when it was produced by the assistant.
func (s State) Reply() (Message, bool) {
	last, ok := s.Last()
	if !ok || last.Role != RoleAssistant {
		return Message{}, false
	}
	return last, true
}

// LastAssistant returns the latest assistant message, if any.
func (s State) LastAssistant() (Message, bool) {
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].Role == RoleAssistant {
			return s.History[i], true
		}
	}
	return Message{}, false
}

// Window returns at most n trailing messages of the history. A non-positive n
// returns the whole history.
func (s State) Window(n int) []Message {
	if n <= 0 || len(s.History) <= n {
		return slices.Clone(s.History)
	}
	return slices.Clone(s.History[len(s.History)-n:])
}
