package domain

import "fmt"

type Direction int8

const (
	Up   Direction = 1
	Down Direction = -1
)

func (d Direction) Valid() bool { return d == Up || d == Down }

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	}
	return fmt.Sprintf("direction(%d)", int8(d))
}

// ParseDirection accepts "up"/"upvote" and "down"/"downvote".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "up", "upvote":
		return Up, nil
	case "down", "downvote":
		return Down, nil
	}
	return 0, &ValidationError{Fields: map[string]string{"direction": "must be one of: up down"}}
}

// VoteState is a user's membership for one hotel. The zero value is Neutral.
// Upvoted and Downvoted share their numeric value with the matching Direction,
// which is how a membership row stores it.
type VoteState int8

const (
	Neutral   VoteState = 0
	Upvoted   VoteState = VoteState(Up)
	Downvoted VoteState = VoteState(Down)
)

func (s VoteState) String() string {
	switch s {
	case Neutral:
		return "neutral"
	case Upvoted:
		return "upvoted"
	case Downvoted:
		return "downvoted"
	}
	return fmt.Sprintf("state(%d)", int8(s))
}

// Apply returns the state after a request in direction d. Repeating the
// current direction clears the vote; the other direction moves it.
func (s VoteState) Apply(d Direction) VoteState {
	if s == VoteState(d) {
		return Neutral
	}
	return VoteState(d)
}

// VoteWrite is the single persistence operation a toggle needs.
type VoteWrite int8

const (
	VoteInsert VoteWrite = iota + 1
	VoteUpdate
	VoteDelete
)

func (w VoteWrite) String() string {
	switch w {
	case VoteInsert:
		return "insert"
	case VoteUpdate:
		return "update"
	case VoteDelete:
		return "delete"
	}
	return "none"
}

// PlanVote computes the next state for a request and the one write that
// takes storage from current to next.
func PlanVote(current VoteState, d Direction) (VoteState, VoteWrite, error) {
	if !d.Valid() {
		return current, 0, fmt.Errorf("plan vote: %w", &ValidationError{Fields: map[string]string{"direction": "must be up or down"}})
	}
	next := current.Apply(d)
	switch {
	case next == Neutral:
		return next, VoteDelete, nil
	case current == Neutral:
		return next, VoteInsert, nil
	default:
		return next, VoteUpdate, nil
	}
}

// MembershipOf reports where userID sits in the hotel's vote sets.
func MembershipOf(h *Hotel, userID int64) VoteState {
	if contains(h.Upvotes, userID) {
		return Upvoted
	}
	if contains(h.Downvotes, userID) {
		return Downvoted
	}
	return Neutral
}

// ApplyVote toggles userID's vote on h in place and returns the new state.
func ApplyVote(h *Hotel, userID int64, d Direction) (VoteState, error) {
	next, _, err := PlanVote(MembershipOf(h, userID), d)
	if err != nil {
		return Neutral, err
	}
	h.Upvotes = remove(h.Upvotes, userID)
	h.Downvotes = remove(h.Downvotes, userID)
	switch next {
	case Upvoted:
		h.Upvotes = append(h.Upvotes, userID)
	case Downvoted:
		h.Downvotes = append(h.Downvotes, userID)
	}
	return next, nil
}

func contains(set []int64, id int64) bool {
	for _, v := range set {
		if v == id {
			return true
		}
	}
	return false
}

func remove(set []int64, id int64) []int64 {
	out := set[:0]
	for _, v := range set {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
