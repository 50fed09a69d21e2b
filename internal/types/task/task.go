package task

import (
	"time"

	"github.com/google/uuid"
)

type Task struct {
	ID          uuid.UUID     `json:"id"`
	ChallengeID uuid.UUID     `json:"challengeId"`
	DayNumber   int           `json:"dayNumber"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Date        string        `json:"date,omitempty"`
	Completions []*Completion `json:"completions,omitempty"`
}

type Completion struct {
	ID          uuid.UUID `json:"id"`
	TaskID      uuid.UUID `json:"taskId"`
	ChallengeID uuid.UUID `json:"challengeId"`
	MemberID    uuid.UUID `json:"memberId"`
	UserID      uuid.UUID `json:"userId"`
	DisplayName string    `json:"displayName,omitempty"`
	DayNumber   int       `json:"dayNumber,omitempty"`
	ProofURL    string    `json:"proofUrl,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	CompletedAt time.Time `json:"completedAt"`
}

type CompleteRequest struct {
	TaskID      string `json:"taskId" validate:"required,uuid"`
	ChallengeID string `json:"challengeId" validate:"required,uuid"`
	ProofURL    string `json:"proofUrl" validate:"omitempty,url"`
	Notes       string `json:"notes" validate:"max=500"`
}

type ToggleRequest struct {
	TaskID string `json:"taskId" validate:"required,uuid"`
}

type ToggleResult struct {
	Completed  bool        `json:"completed"`
	Completion *Completion `json:"completion,omitempty"`
}
