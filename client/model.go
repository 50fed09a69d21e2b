// Package client keeps HabitHero's client-side state: the local-first group
// data, notification preferences and the device's user id, plus a thin
// client for the REST API.
package client

import (
	"time"

	"github.com/google/uuid"

	"habitHeroAPI/internal/penalty"
	"habitHeroAPI/internal/schedule"
	"habitHeroAPI/internal/types/challenge"
	"habitHeroAPI/internal/types/group"
)

// Storage keys. The groups key carries a version suffix from an earlier
// layout change; existing installs depend on these exact names.
const (
	KeyGroups               = "habit_hero_groups_v2"
	KeyNotificationSettings = "habit_hero_notification_settings"
	KeyNotificationHistory  = "habit_hero_notification_history"
	KeyGlobalUserID         = "habit_hero_global_user_id"
)

// LocalGroup is a group as persisted by the local-first client.
type LocalGroup struct {
	ID              uuid.UUID        `json:"id"`
	Name            string           `json:"name"`
	Icon            string           `json:"icon"`
	Theme           string           `json:"theme,omitempty"`
	Members         []LocalMember    `json:"members"`
	Challenges      []LocalChallenge `json:"challenges"`
	CreatedAt       int64            `json:"createdAt"`
	DeleteApprovals []uuid.UUID      `json:"deleteApprovals,omitempty"`
	PenaltyConfig   *penalty.Rule    `json:"penaltyConfig,omitempty"`
}

type LocalMember struct {
	UserID        uuid.UUID  `json:"userId"`
	DisplayName   string     `json:"displayName"`
	Avatar        string     `json:"avatar"`
	Role          group.Role `json:"role"`
	JoinedAt      int64      `json:"joinedAt"`
	Strikes       int        `json:"strikes,omitempty"`
	PenaltiesPaid int        `json:"penaltiesPaid,omitempty"`
}

type LocalChallenge struct {
	ID                  uuid.UUID          `json:"id"`
	GroupID             uuid.UUID          `json:"groupId"`
	Title               string             `json:"title"`
	Description         string             `json:"description"`
	Category            challenge.Category `json:"category"`
	StartDate           string             `json:"startDate"`
	DurationDays        int                `json:"durationDays"`
	Tasks               []LocalTask        `json:"tasks"`
	Color               string             `json:"color"`
	CreatedAt           int64              `json:"createdAt"`
	Mode                string             `json:"mode"`
	DeadlineTime        string             `json:"deadlineTime,omitempty"`
	Frequency           schedule.Frequency `json:"frequency,omitempty"`
	CustomFrequencyDays int                `json:"customFrequencyDays,omitempty"`
}

// LocalTask is one day of a challenge. CompletedBy holds user ids.
type LocalTask struct {
	DayNumber   int         `json:"dayNumber"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	CompletedBy []uuid.UUID `json:"completedBy,omitempty"`
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}
