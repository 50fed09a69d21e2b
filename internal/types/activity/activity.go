package activity

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionTaskCompleted    = "task_completed"
	ActionTaskUndone       = "task_undone"
	ActionChallengeCreated = "challenge_created"
	ActionMemberJoined     = "member_joined"
	ActionStrikeChanged    = "strike_changed"
	ActionPenaltyPaid      = "penalty_paid"
)

type Entry struct {
	ID          uuid.UUID  `json:"id"`
	GroupID     uuid.UUID  `json:"groupId"`
	ChallengeID *uuid.UUID `json:"challengeId,omitempty"`
	MemberID    *uuid.UUID `json:"memberId,omitempty"`
	Action      string     `json:"action"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type Page struct {
	Entries []*Entry `json:"entries"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
}
