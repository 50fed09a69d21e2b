package leaderboard

import (
	"math"
	"sort"

	"github.com/google/uuid"
)

type Member struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	DisplayName string
	Avatar      string
}

// Task carries the members who completed one day-task.
type Task struct {
	DayNumber   int
	CompletedBy []uuid.UUID
}

type Entry struct {
	MemberID        uuid.UUID `json:"memberId"`
	UserID          uuid.UUID `json:"userId"`
	DisplayName     string    `json:"displayName"`
	Avatar          string    `json:"avatar"`
	CompletedCount  int       `json:"completedCount"`
	ProgressPercent int       `json:"progressPercent"`
	Rank            int       `json:"rank"`
	IsTop           bool      `json:"isTop"`
}

func CompletedCount(tasks []Task, memberID uuid.UUID) int {
	count := 0
	for _, t := range tasks {
		for _, id := range t.CompletedBy {
			if id == memberID {
				count++
				break
			}
		}
	}
	return count
}

// ProgressPercent is round(completed/total*100); zero when there is nothing to complete.
func ProgressPercent(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(completed) * 100 / float64(total)))
}

// Build ranks members by completed count, highest first. Members with equal
// counts keep their input order. Only a first place with at least one
// completion is flagged as top.
func Build(members []Member, tasks []Task) []Entry {
	entries := make([]Entry, 0, len(members))
	for _, m := range members {
		done := CompletedCount(tasks, m.ID)
		entries = append(entries, Entry{
			MemberID:        m.ID,
			UserID:          m.UserID,
			DisplayName:     m.DisplayName,
			Avatar:          m.Avatar,
			CompletedCount:  done,
			ProgressPercent: ProgressPercent(done, len(tasks)),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CompletedCount > entries[j].CompletedCount
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}
	if len(entries) > 0 && entries[0].CompletedCount > 0 {
		entries[0].IsTop = true
	}
	return entries
}

// Toggle adds memberID to completedBy when absent and removes it when present.
// It returns the new slice and whether the member now counts as completed.
func Toggle(completedBy []uuid.UUID, memberID uuid.UUID) ([]uuid.UUID, bool) {
	for i, id := range completedBy {
		if id == memberID {
			next := make([]uuid.UUID, 0, len(completedBy)-1)
			next = append(next, completedBy[:i]...)
			next = append(next, completedBy[i+1:]...)
			return next, false
		}
	}
	next := make([]uuid.UUID, 0, len(completedBy)+1)
	next = append(next, completedBy...)
	return append(next, memberID), true
}

// ChallengePercent is the share of all member-task slots that were completed.
func ChallengePercent(completions, tasks, members int) int {
	return ProgressPercent(completions, tasks*members)
}
