package dropmon

import "fmt"

// State is the state of the control loop.
type State uint32

const (
	Idle State = iota
	Activating
	Receiving
	RequestDeactivate
	RequestActivate
	Deactivating
	Failed
	Exit
)

var stateName = map[State]string{
	Idle:              "IDLE",
	Activating:        "ACTIVATING",
	Receiving:         "RECEIVING",
	RequestDeactivate: "REQUEST_DEACTIVATE",
	RequestActivate:   "REQUEST_ACTIVATE",
	Deactivating:      "DEACTIVATING",
	Failed:            "FAILED",
	Exit:              "EXIT",
}

func (s State) String() string {
	n, ok := stateName[s]
	if !ok {
		return fmt.Sprintf("UNKNOWN_STATE_%d", s)
	}
	return n
}

// transitions lists every state reachable from a given one. Terminal states
// have no outgoing transitions at all.
var transitions = map[State][]State{
	Idle:              {RequestActivate, RequestDeactivate, Exit},
	RequestActivate:   {Activating, Failed},
	Activating:        {Receiving, Failed},
	Receiving:         {RequestDeactivate, Failed},
	RequestDeactivate: {Deactivating, Failed},
	Deactivating:      {Idle, Failed},
	Failed:            nil,
	Exit:              nil,
}

func (s State) Terminal() bool {
	return s == Failed || s == Exit
}

// Blocking reports whether the loop waits on the socket while in s.
func (s State) Blocking() bool {
	return s == Activating || s == Receiving || s == Deactivating
}

func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
