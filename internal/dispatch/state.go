package dispatch

import "fmt"

// State is the stage of one print job
type State int

const (
	StateIdle State = iota
	StateEncoding
	StateConnecting
	StateWriting
	StateClosing
	StateDone
)

var stateNames = map[State]string{
	StateIdle:       "idle",
	StateEncoding:   "encoding",
	StateConnecting: "connecting",
	StateWriting:    "writing",
	StateClosing:    "closing",
	StateDone:       "done",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *State) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}

// transitions lists the legal next states. Every path to Done passes Closing.
var transitions = map[State][]State{
	StateIdle:       {StateEncoding},
	StateEncoding:   {StateConnecting, StateClosing},
	StateConnecting: {StateWriting, StateClosing},
	StateWriting:    {StateClosing},
	StateClosing:    {StateDone},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// job tracks the state of one dispatch call
type job struct {
	state State
	trace []State
}

func newJob() *job {
	return &job{state: StateIdle, trace: []State{StateIdle}}
}

func (j *job) to(s State) error {
	if !canTransition(j.state, s) {
		return fmt.Errorf("illegal transition %s -> %s", j.state, s)
	}
	j.state = s
	j.trace = append(j.trace, s)
	return nil
}
