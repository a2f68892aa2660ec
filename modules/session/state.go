package session

// State - lifecycle of one design session
type State string

const (
	StateIdle          State = "idle"
	StateHeroInFlight  State = "hero_in_flight"
	StateViewsInFlight State = "views_in_flight"
	StateSettled       State = "settled"
)

var transitions = map[State][]State{
	StateIdle:          {StateHeroInFlight},
	StateHeroInFlight:  {StateViewsInFlight, StateSettled},
	StateViewsInFlight: {StateSettled},
	StateSettled:       {},
}

// CanTransitionTo reports whether the state machine allows s -> next.
func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition exists.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}
