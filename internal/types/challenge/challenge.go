package challenge

import (
	"time"

	"github.com/google/uuid"

	"habitHeroAPI/internal/schedule"
	"habitHeroAPI/internal/types/task"
)

type Category string

const (
	CategoryFitness      Category = "FITNESS"
	CategoryLearning     Category = "LEARNING"
	CategoryMindfulness  Category = "MINDFULNESS"
	CategoryProductivity Category = "PRODUCTIVITY"
	CategoryHealth       Category = "HEALTH"
	CategoryOther        Category = "OTHER"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusPaused   Status = "paused"
	StatusFinished Status = "finished"
)

type Challenge struct {
	ID                  uuid.UUID          `json:"id"`
	GroupID             uuid.UUID          `json:"groupId"`
	Title               string             `json:"title"`
	Description         string             `json:"description"`
	Category            Category           `json:"category"`
	StartDate           string             `json:"startDate"`
	DurationDays        int                `json:"durationDays"`
	DeadlineTime        *string            `json:"deadlineTime"`
	Frequency           schedule.Frequency `json:"frequency"`
	CustomFrequencyDays *int               `json:"customFrequencyDays,omitempty"`
	Color               string             `json:"color"`
	Mode                string             `json:"mode"`
	Status              Status             `json:"status"`
	CreatedBy           *uuid.UUID         `json:"createdBy,omitempty"`
	CreatedAt           time.Time          `json:"createdAt"`
	UpdatedAt           time.Time          `json:"updatedAt"`
	Tasks               []*task.Task       `json:"tasks,omitempty"`
}

// Start returns the first day of the challenge at midnight in loc.
func (c *Challenge) Start(loc *time.Location) time.Time {
	t, err := schedule.ParseDate(c.StartDate, loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (c *Challenge) Deadline() string {
	if c.DeadlineTime == nil {
		return ""
	}
	return *c.DeadlineTime
}

// EffectiveStatus reports finished once the last day is behind now, and the
// stored status otherwise.
func (c *Challenge) EffectiveStatus(now time.Time) Status {
	if schedule.IsFinished(c.Start(now.Location()), c.DurationDays, now) {
		return StatusFinished
	}
	return c.Status
}

type CreateChallengeRequest struct {
	GroupID             string  `json:"groupId" validate:"required,uuid"`
	Title               string  `json:"title" validate:"required,min=1,max=100"`
	Description         string  `json:"description" validate:"max=1000"`
	Category            string  `json:"category" validate:"omitempty,oneof=FITNESS LEARNING MINDFULNESS PRODUCTIVITY HEALTH OTHER"`
	StartDate           string  `json:"startDate" validate:"required"`
	DurationDays        int     `json:"durationDays" validate:"omitempty,min=1,max=365"`
	EndDate             string  `json:"endDate"`
	DeadlineTime        *string `json:"deadlineTime" validate:"omitempty,hhmm"`
	Frequency           string  `json:"frequency" validate:"omitempty,oneof=daily 2days 3days weekly weekdays custom"`
	CustomFrequencyDays *int    `json:"customFrequencyDays" validate:"omitempty,min=1,max=365"`
	Color               string  `json:"color" validate:"max=32"`
	Mode                string  `json:"mode" validate:"omitempty,oneof=solo duo"`
}

type UpdateChallengeRequest struct {
	Title        *string `json:"title" validate:"omitempty,min=1,max=100"`
	Description  *string `json:"description" validate:"omitempty,max=1000"`
	Category     *string `json:"category" validate:"omitempty,oneof=FITNESS LEARNING MINDFULNESS PRODUCTIVITY HEALTH OTHER"`
	DeadlineTime *string `json:"deadlineTime" validate:"omitempty,hhmm"`
	Status       *string `json:"status" validate:"omitempty,oneof=active paused finished"`
}
