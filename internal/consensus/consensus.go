// Package consensus implements unanimous group deletion: every member has to
// approve before a group goes away.
package consensus

import "github.com/google/uuid"

// Toggle adds voter to approvals when absent and withdraws the vote when
// present. It returns the new approver set and whether voter is now approving.
func Toggle(approvals []uuid.UUID, voter uuid.UUID) ([]uuid.UUID, bool) {
	next := make([]uuid.UUID, 0, len(approvals)+1)
	withdrawn := false
	for _, id := range approvals {
		if id == voter {
			withdrawn = true
			continue
		}
		next = append(next, id)
	}
	if withdrawn {
		return next, false
	}
	return append(next, voter), true
}

// Reached reports whether the approver set covers the membership.
func Reached(approvals []uuid.UUID, memberCount int) bool {
	return memberCount > 0 && len(approvals) >= memberCount
}

// Retain drops approvals from users who are no longer members.
func Retain(approvals []uuid.UUID, members []uuid.UUID) []uuid.UUID {
	in := make(map[uuid.UUID]struct{}, len(members))
	for _, id := range members {
		in[id] = struct{}{}
	}
	out := make([]uuid.UUID, 0, len(approvals))
	for _, id := range approvals {
		if _, ok := in[id]; ok {
			out = append(out, id)
		}
	}
	return out
}
