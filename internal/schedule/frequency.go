package schedule

import (
	"fmt"
	"time"
)

type Frequency string

const (
	Daily          Frequency = "daily"
	EveryTwoDays   Frequency = "2days"
	EveryThreeDays Frequency = "3days"
	Weekly         Frequency = "weekly"
	Weekdays       Frequency = "weekdays"
	Custom         Frequency = "custom"
)

const DefaultTaskDescription = "Complete your daily goal."

var Frequencies = []Frequency{Daily, EveryTwoDays, EveryThreeDays, Weekly, Weekdays, Custom}

func (f Frequency) Valid() bool {
	for _, known := range Frequencies {
		if f == known {
			return true
		}
	}
	return false
}

// GeneratedTask is one materialized day of a challenge.
type GeneratedTask struct {
	DayNumber   int
	Title       string
	Description string
}

// GenerateTasks walks the days [0, durationDays) from start and keeps the ones
// the frequency selects. The day number is the offset from start plus one, so
// a 7-day "3days" challenge yields days 1, 4 and 7. customEvery is only read
// for Custom and must be at least 1.
func GenerateTasks(start time.Time, durationDays int, freq Frequency, customEvery int) ([]GeneratedTask, error) {
	if durationDays < 1 {
		return nil, fmt.Errorf("duration must be at least one day, got %d", durationDays)
	}
	if freq == "" {
		freq = Daily
	}
	if !freq.Valid() {
		return nil, fmt.Errorf("unknown frequency %q", freq)
	}
	if freq == Custom && customEvery < 1 {
		return nil, fmt.Errorf("custom frequency needs an interval of at least one day")
	}

	tasks := make([]GeneratedTask, 0, durationDays)
	for i := 0; i < durationDays; i++ {
		if !includes(freq, customEvery, start, i) {
			continue
		}
		tasks = append(tasks, GeneratedTask{
			DayNumber:   i + 1,
			Title:       fmt.Sprintf("Day %d", i+1),
			Description: DefaultTaskDescription,
		})
	}
	return tasks, nil
}

func includes(freq Frequency, customEvery int, start time.Time, offset int) bool {
	switch freq {
	case EveryTwoDays:
		return offset%2 == 0
	case EveryThreeDays:
		return offset%3 == 0
	case Weekly:
		return offset%7 == 0
	case Weekdays:
		wd := TaskDate(start, offset+1).Weekday()
		return wd != time.Saturday && wd != time.Sunday
	case Custom:
		return offset%customEvery == 0
	default:
		return true
	}
}
