package auth

import (
	"fmt"

	"github.com/desertthunder/tracksaver/internal/shared"
)

// State is the sign-in state of a [Session].
type State int

const (
	SignedOut State = iota
	Authenticating
	SignedIn
)

func (s State) String() string {
	switch s {
	case SignedOut:
		return "signed_out"
	case Authenticating:
		return "authenticating"
	case SignedIn:
		return "signed_in"
	default:
		return fmt.Sprintf("state_%d", int(s))
	}
}

var transitions = map[State][]State{
	SignedOut:      {Authenticating},
	Authenticating: {SignedIn, SignedOut},
	SignedIn:       {SignedOut},
}

// Transition returns an error wrapping [shared.ErrInvalidTransition] unless from → to is allowed.
func Transition(from, to State) error {
	for _, next := range transitions[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", shared.ErrInvalidTransition, from, to)
}
