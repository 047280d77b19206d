package chat

import (
	"strings"
	"sync"

	"github.com/mesh-intelligence/cakeday/pkg/types"
)

// State is the position of an owner's conversation.
type State int

const (
	Idle State = iota
	AwaitingLabel
	AwaitingGroup
	AwaitingDetails
	AwaitingDate
	AwaitingDeleteLabel
	Done
)

var stateNames = map[State]string{
	Idle:                "idle",
	AwaitingLabel:       "awaiting_label",
	AwaitingGroup:       "awaiting_group",
	AwaitingDetails:     "awaiting_details",
	AwaitingDate:        "awaiting_date",
	AwaitingDeleteLabel: "awaiting_delete_label",
	Done:                "done",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// inAdd reports whether s belongs to the add-record flow.
func (s State) inAdd() bool {
	return s >= AwaitingLabel && s <= AwaitingDate
}

// session is one owner's conversation. mu serializes that owner's
// interactions; other owners proceed independently.
type session struct {
	mu    sync.Mutex
	state State
	draft types.NewRecord
}

func (s *session) reset(state State) {
	s.state = state
	s.draft = types.NewRecord{}
}

// skipWord marks an optional field as absent.
const skipWord = "no"

// optionalAnswer maps the skip word, in any case, to nil.
func optionalAnswer(text string) *string {
	text = strings.TrimSpace(text)
	if strings.EqualFold(text, skipWord) {
		return nil
	}
	return types.Optional(text)
}
