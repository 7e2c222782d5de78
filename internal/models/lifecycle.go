package models

import (
	contextutils "bugtracker/internal/utils"
)

// transitions holds every allowed status edge. New is only ever a start state.
var transitions = map[Status][]Status{
	StatusNew:        {StatusTriaged, StatusAssigned, StatusDismissed},
	StatusTriaged:    {StatusTriaged, StatusAssigned, StatusDismissed},
	StatusAssigned:   {StatusInProgress, StatusDismissed},
	StatusInProgress: {StatusGoodToTest, StatusDismissed},
	StatusGoodToTest: {StatusResolved, StatusAssigned, StatusDismissed},
}

// CanTransition reports whether from -> to is an edge of the lifecycle
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses returns the statuses reachable from s in one step
func NextStatuses(s Status) []Status {
	out := make([]Status, len(transitions[s]))
	copy(out, transitions[s])
	return out
}

// PlanTransition decides what a status write from -> to does.
// It returns write=false for a same-status acknowledgement, and an
// INVALID_TRANSITION error when to is not reachable from from.
func PlanTransition(from, to Status) (write bool, err error) {
	if to == StatusNew {
		return false, contextutils.Detailf(contextutils.ErrInvalidTransition, "%s -> %s: bugs cannot return to %s", from, to, StatusNew)
	}
	if from == to && to != StatusTriaged {
		return false, nil
	}
	if !CanTransition(from, to) {
		return false, contextutils.Detailf(contextutils.ErrInvalidTransition, "%s -> %s", from, to)
	}
	return true, nil
}
