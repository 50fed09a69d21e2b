package notification

import "github.com/google/uuid"

const DefaultReminderTime = "20:00"

type Settings struct {
	UserID        uuid.UUID `json:"-"`
	Enabled       bool      `json:"enabled"`
	DailyReminder bool      `json:"dailyReminder"`
	ReminderTime  string    `json:"reminderTime"`
	DeadlineAlert bool      `json:"deadlineAlert"`
}

func DefaultSettings(userID uuid.UUID) *Settings {
	return &Settings{
		UserID:        userID,
		Enabled:       true,
		DailyReminder: true,
		ReminderTime:  DefaultReminderTime,
		DeadlineAlert: true,
	}
}

type UpdateSettingsRequest struct {
	Enabled       bool   `json:"enabled"`
	DailyReminder bool   `json:"dailyReminder"`
	ReminderTime  string `json:"reminderTime" validate:"required,hhmm"`
	DeadlineAlert bool   `json:"deadlineAlert"`
}
