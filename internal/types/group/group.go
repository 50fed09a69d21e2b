package group

import (
	"time"

	"github.com/google/uuid"

	"habitHeroAPI/internal/penalty"
	"habitHeroAPI/internal/types/challenge"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

const (
	DefaultIcon  = "✨"
	DefaultTheme = "indigo"
)

var Themes = []string{"indigo", "rose", "emerald", "amber", "sky", "violet", "slate"}

type Group struct {
	ID              uuid.UUID     `json:"id"`
	Name            string        `json:"name"`
	Description     string        `json:"description"`
	Icon            string        `json:"icon"`
	Theme           string        `json:"theme"`
	CreatedBy       uuid.UUID     `json:"createdBy"`
	PenaltyConfig   *penalty.Rule `json:"penaltyConfig"`
	DeleteApprovals []uuid.UUID   `json:"deleteApprovals"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

type Member struct {
	ID               uuid.UUID `json:"id"`
	GroupID          uuid.UUID `json:"groupId"`
	UserID           uuid.UUID `json:"userId"`
	DisplayName      string    `json:"displayName"`
	Avatar           string    `json:"avatar"`
	Role             Role      `json:"role"`
	Strikes          int       `json:"strikes"`
	PenaltiesPaid    int       `json:"penaltiesPaid"`
	PendingPenalties int       `json:"pendingPenalties"`
	JoinedAt         time.Time `json:"joinedAt"`
	Username         string    `json:"username,omitempty"`
}

// Summary is one row of the caller's group list.
type Summary struct {
	Group
	Role             Role   `json:"role"`
	DisplayName      string `json:"displayName"`
	MemberCount      int    `json:"memberCount"`
	ActiveChallenges int    `json:"activeChallenges"`
}

type Detail struct {
	Group
	Members    []*Member              `json:"members"`
	Challenges []*challenge.Challenge `json:"challenges"`
}

type CreateGroupRequest struct {
	Name          string        `json:"name" validate:"required,min=1,max=50"`
	Description   string        `json:"description" validate:"max=500"`
	Icon          string        `json:"icon" validate:"max=16"`
	Theme         string        `json:"theme" validate:"omitempty,oneof=indigo rose emerald amber sky violet slate"`
	PenaltyConfig *PenaltyInput `json:"penaltyConfig" validate:"omitempty"`
}

type UpdateGroupRequest struct {
	Name          *string       `json:"name" validate:"omitempty,min=1,max=50"`
	Description   *string       `json:"description" validate:"omitempty,max=500"`
	Icon          *string       `json:"icon" validate:"omitempty,max=16"`
	Theme         *string       `json:"theme" validate:"omitempty,oneof=indigo rose emerald amber sky violet slate"`
	PenaltyConfig *PenaltyInput `json:"penaltyConfig" validate:"omitempty"`
}

type PenaltyInput struct {
	Threshold   int    `json:"threshold" validate:"gt=0"`
	Description string `json:"description" validate:"max=200"`
}

type AddMemberRequest struct {
	UserID      string `json:"userId" validate:"required,uuid"`
	DisplayName string `json:"displayName" validate:"required,min=1,max=30"`
	Avatar      string `json:"avatar" validate:"max=500"`
}

type UpdateMemberProfileRequest struct {
	DisplayName string `json:"displayName" validate:"required,min=1,max=30"`
	Avatar      string `json:"avatar" validate:"max=500"`
}

type StrikeRequest struct {
	Delta int `json:"delta" validate:"oneof=1 -1"`
}

type DeleteVoteResult struct {
	Deleted   bool        `json:"deleted"`
	Voted     bool        `json:"voted"`
	Approvals []uuid.UUID `json:"approvals"`
	Required  int         `json:"required"`
}
