package websocket

// actionSet holds the client actions a hub connection may invoke. It is built
// once per bridge and only read afterwards.
type actionSet map[string]struct{}

func newActionSet(actions ...string) actionSet {
	s := make(actionSet, len(actions))
	for _, a := range actions {
		if a != "" {
			s[a] = struct{}{}
		}
	}
	return s
}

// allows reports whether action may be invoked. Matching is case-sensitive.
func (s actionSet) allows(action string) bool {
	_, ok := s[action]
	return ok
}

// chatActions are the actions accepted on the chat hub.
func chatActions() actionSet {
	return newActionSet(ActionJoinChat, ActionLeaveChat)
}
