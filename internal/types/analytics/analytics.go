package analytics

import (
	"github.com/google/uuid"

	"habitHeroAPI/internal/leaderboard"
)

type GroupStats struct {
	GroupID          uuid.UUID           `json:"groupId"`
	TotalMembers     int                 `json:"totalMembers"`
	TotalChallenges  int                 `json:"totalChallenges"`
	ActiveChallenges int                 `json:"activeChallenges"`
	TotalTasks       int                 `json:"totalTasks"`
	TotalCompletions int                 `json:"totalCompletions"`
	CompletionRate   int                 `json:"completionRate"`
	Leaderboard      []leaderboard.Entry `json:"leaderboard"`
}

type UserGroupStats struct {
	GroupID        uuid.UUID `json:"groupId"`
	GroupName      string    `json:"groupName"`
	TasksCompleted int       `json:"tasksCompleted"`
	Strikes        int       `json:"strikes"`
	PendingPenalty int       `json:"pendingPenalties"`
	ChallengeCount int       `json:"challengeCount"`
}

type UserStats struct {
	TotalGroups         int              `json:"totalGroups"`
	TotalTasksCompleted int              `json:"totalTasksCompleted"`
	TotalStrikes        int              `json:"totalStrikes"`
	Groups              []UserGroupStats `json:"groups"`
}

type TaskProgress struct {
	TaskID      uuid.UUID `json:"taskId"`
	DayNumber   int       `json:"dayNumber"`
	Title       string    `json:"title"`
	Date        string    `json:"date"`
	Completions int       `json:"completions"`
	IsToday     bool      `json:"isToday"`
	IsPast      bool      `json:"isPast"`
}

type ChallengeProgress struct {
	ChallengeID      uuid.UUID           `json:"challengeId"`
	Status           string              `json:"status"`
	CurrentDay       int                 `json:"currentDay"`
	TotalTasks       int                 `json:"totalTasks"`
	TotalMembers     int                 `json:"totalMembers"`
	TotalCompletions int                 `json:"totalCompletions"`
	ProgressPercent  int                 `json:"progressPercent"`
	Tasks            []TaskProgress      `json:"tasks"`
	Leaderboard      []leaderboard.Entry `json:"leaderboard"`
}
