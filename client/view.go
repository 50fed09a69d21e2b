package client

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"habitHeroAPI/internal/consensus"
	"habitHeroAPI/internal/leaderboard"
	"habitHeroAPI/internal/penalty"
	"habitHeroAPI/internal/schedule"
	"habitHeroAPI/internal/types/challenge"
	"habitHeroAPI/internal/types/group"
)

// Source tags where a GroupView came from.
type Source string

const (
	SourceLocal Source = "local"
	SourceAPI   Source = "api"
)

var (
	ErrServerBacked   = errors.New("group is server-backed; use the API client")
	ErrNotMember      = errors.New("user is not a member of this group")
	ErrUnknownTask    = errors.New("no such task in this group")
	ErrTaskNotDue     = errors.New("task is not due today")
	ErrDeadlinePassed = errors.New("today's deadline has passed")
)

// GroupView is the one shape screens render, whatever the backing store.
type GroupView struct {
	Source          Source
	ID              uuid.UUID
	Name            string
	Description     string
	Icon            string
	Theme           string
	PenaltyConfig   *penalty.Rule
	DeleteApprovals []uuid.UUID
	Members         []MemberView
	Challenges      []ChallengeView
	CreatedAt       time.Time
}

type MemberView struct {
	UserID           uuid.UUID
	DisplayName      string
	Avatar           string
	Role             group.Role
	Strikes          int
	PenaltiesPaid    int
	PendingPenalties int
	JoinedAt         time.Time
}

type ChallengeView struct {
	ID                  uuid.UUID
	Title               string
	Description         string
	Category            challenge.Category
	StartDate           string
	DurationDays        int
	DeadlineTime        string
	Frequency           schedule.Frequency
	CustomFrequencyDays int
	Color               string
	Mode                string
	CreatedAt           time.Time
	Tasks               []TaskView
}

// TaskView identifies a day by its number. TaskID is only set for API views.
type TaskView struct {
	TaskID      uuid.UUID
	DayNumber   int
	Title       string
	Description string
	CompletedBy []uuid.UUID
}

func pendingFor(rule *penalty.Rule, strikes, paid int) int {
	if rule == nil {
		return 0
	}
	return penalty.Pending(strikes, rule.Threshold, paid)
}

// GroupViewFromLocal adapts a locally persisted group.
func GroupViewFromLocal(g LocalGroup) GroupView {
	v := GroupView{
		Source:          SourceLocal,
		ID:              g.ID,
		Name:            g.Name,
		Icon:            g.Icon,
		Theme:           g.Theme,
		PenaltyConfig:   g.PenaltyConfig,
		DeleteApprovals: append([]uuid.UUID(nil), g.DeleteApprovals...),
		CreatedAt:       time.UnixMilli(g.CreatedAt),
	}
	if v.Theme == "" {
		v.Theme = group.DefaultTheme
	}
	for _, m := range g.Members {
		v.Members = append(v.Members, MemberView{
			UserID:           m.UserID,
			DisplayName:      m.DisplayName,
			Avatar:           m.Avatar,
			Role:             m.Role,
			Strikes:          m.Strikes,
			PenaltiesPaid:    m.PenaltiesPaid,
			PendingPenalties: pendingFor(g.PenaltyConfig, m.Strikes, m.PenaltiesPaid),
			JoinedAt:         time.UnixMilli(m.JoinedAt),
		})
	}
	for _, c := range g.Challenges {
		cv := ChallengeView{
			ID:                  c.ID,
			Title:               c.Title,
			Description:         c.Description,
			Category:            c.Category,
			StartDate:           c.StartDate,
			DurationDays:        c.DurationDays,
			DeadlineTime:        c.DeadlineTime,
			Frequency:           c.Frequency,
			CustomFrequencyDays: c.CustomFrequencyDays,
			Color:               c.Color,
			Mode:                c.Mode,
			CreatedAt:           time.UnixMilli(c.CreatedAt),
		}
		for _, t := range c.Tasks {
			cv.Tasks = append(cv.Tasks, TaskView{
				DayNumber:   t.DayNumber,
				Title:       t.Title,
				Description: t.Description,
				CompletedBy: append([]uuid.UUID(nil), t.CompletedBy...),
			})
		}
		v.Challenges = append(v.Challenges, cv)
	}
	return v
}

// GroupViewFromAPI adapts a group detail returned by the server. Completions
// are folded into CompletedBy as user ids so both sources rank the same way.
func GroupViewFromAPI(d *group.Detail) GroupView {
	v := GroupView{
		Source:          SourceAPI,
		ID:              d.ID,
		Name:            d.Name,
		Description:     d.Description,
		Icon:            d.Icon,
		Theme:           d.Theme,
		PenaltyConfig:   d.PenaltyConfig,
		DeleteApprovals: append([]uuid.UUID(nil), d.DeleteApprovals...),
		CreatedAt:       d.CreatedAt,
	}
	for _, m := range d.Members {
		v.Members = append(v.Members, MemberView{
			UserID:           m.UserID,
			DisplayName:      m.DisplayName,
			Avatar:           m.Avatar,
			Role:             m.Role,
			Strikes:          m.Strikes,
			PenaltiesPaid:    m.PenaltiesPaid,
			PendingPenalties: m.PendingPenalties,
			JoinedAt:         m.JoinedAt,
		})
	}
	for _, c := range d.Challenges {
		cv := ChallengeView{
			ID:           c.ID,
			Title:        c.Title,
			Description:  c.Description,
			Category:     c.Category,
			StartDate:    c.StartDate,
			DurationDays: c.DurationDays,
			DeadlineTime: c.Deadline(),
			Frequency:    c.Frequency,
			Color:        c.Color,
			Mode:         c.Mode,
			CreatedAt:    c.CreatedAt,
		}
		if c.CustomFrequencyDays != nil {
			cv.CustomFrequencyDays = *c.CustomFrequencyDays
		}
		for _, t := range c.Tasks {
			tv := TaskView{
				TaskID:      t.ID,
				DayNumber:   t.DayNumber,
				Title:       t.Title,
				Description: t.Description,
			}
			for _, comp := range t.Completions {
				tv.CompletedBy = append(tv.CompletedBy, comp.UserID)
			}
			cv.Tasks = append(cv.Tasks, tv)
		}
		v.Challenges = append(v.Challenges, cv)
	}
	return v
}

// ToLocal converts a local view back into its persisted form.
func (v *GroupView) ToLocal() (LocalGroup, error) {
	if v.Source != SourceLocal {
		return LocalGroup{}, ErrServerBacked
	}
	g := LocalGroup{
		ID:              v.ID,
		Name:            v.Name,
		Icon:            v.Icon,
		Theme:           v.Theme,
		PenaltyConfig:   v.PenaltyConfig,
		DeleteApprovals: v.DeleteApprovals,
		CreatedAt:       millis(v.CreatedAt),
		Members:         []LocalMember{},
		Challenges:      []LocalChallenge{},
	}
	for _, m := range v.Members {
		g.Members = append(g.Members, LocalMember{
			UserID:        m.UserID,
			DisplayName:   m.DisplayName,
			Avatar:        m.Avatar,
			Role:          m.Role,
			JoinedAt:      millis(m.JoinedAt),
			Strikes:       m.Strikes,
			PenaltiesPaid: m.PenaltiesPaid,
		})
	}
	for _, c := range v.Challenges {
		lc := LocalChallenge{
			ID:                  c.ID,
			GroupID:             v.ID,
			Title:               c.Title,
			Description:         c.Description,
			Category:            c.Category,
			StartDate:           c.StartDate,
			DurationDays:        c.DurationDays,
			Color:               c.Color,
			CreatedAt:           millis(c.CreatedAt),
			Mode:                c.Mode,
			DeadlineTime:        c.DeadlineTime,
			Frequency:           c.Frequency,
			CustomFrequencyDays: c.CustomFrequencyDays,
			Tasks:               []LocalTask{},
		}
		for _, t := range c.Tasks {
			lc.Tasks = append(lc.Tasks, LocalTask{
				DayNumber:   t.DayNumber,
				Title:       t.Title,
				Description: t.Description,
				CompletedBy: t.CompletedBy,
			})
		}
		g.Challenges = append(g.Challenges, lc)
	}
	return g, nil
}

func (v *GroupView) isMember(userID uuid.UUID) bool {
	for _, m := range v.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

func (v *GroupView) memberIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(v.Members))
	for _, m := range v.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}

func (v *GroupView) challenge(id uuid.UUID) (*ChallengeView, bool) {
	for i := range v.Challenges {
		if v.Challenges[i].ID == id {
			return &v.Challenges[i], true
		}
	}
	return nil, false
}

// ToggleTask flips userID's completion of one day. Only today's task can be
// toggled, and not after the challenge's daily deadline.
func (v *GroupView) ToggleTask(challengeID uuid.UUID, dayNumber int, userID uuid.UUID, now time.Time) (bool, error) {
	if v.Source != SourceLocal {
		return false, ErrServerBacked
	}
	if !v.isMember(userID) {
		return false, ErrNotMember
	}
	c, ok := v.challenge(challengeID)
	if !ok {
		return false, ErrUnknownTask
	}
	start, err := schedule.ParseDate(c.StartDate, now.Location())
	if err != nil {
		return false, fmt.Errorf("challenge %s: %w", c.ID, err)
	}
	for i := range c.Tasks {
		t := &c.Tasks[i]
		if t.DayNumber != dayNumber {
			continue
		}
		if !schedule.IsDueToday(start, dayNumber, now) {
			return false, ErrTaskNotDue
		}
		if schedule.IsDeadlinePassed(c.DeadlineTime, now) {
			return false, ErrDeadlinePassed
		}
		var done bool
		t.CompletedBy, done = leaderboard.Toggle(t.CompletedBy, userID)
		return done, nil
	}
	return false, ErrUnknownTask
}

// VoteDelete toggles userID's deletion vote. deleted is true once every
// member approves; the caller then drops the group.
func (v *GroupView) VoteDelete(userID uuid.UUID) (deleted bool, err error) {
	if v.Source != SourceLocal {
		return false, ErrServerBacked
	}
	if !v.isMember(userID) {
		return false, ErrNotMember
	}
	members := v.memberIDs()
	approvals, _ := consensus.Toggle(consensus.Retain(v.DeleteApprovals, members), userID)
	v.DeleteApprovals = approvals
	return consensus.Reached(approvals, len(members)), nil
}

// NewChallenge is the input for AddChallenge.
type NewChallenge struct {
	Title               string
	Description         string
	Category            challenge.Category
	StartDate           string
	DurationDays        int
	DeadlineTime        string
	Frequency           schedule.Frequency
	CustomFrequencyDays int
	Color               string
	Mode                string
}

// AddChallenge materializes the day-tasks for in and appends the challenge.
func (v *GroupView) AddChallenge(in NewChallenge, now time.Time) (*ChallengeView, error) {
	if v.Source != SourceLocal {
		return nil, ErrServerBacked
	}
	start, err := schedule.ParseDate(in.StartDate, now.Location())
	if err != nil {
		return nil, err
	}
	if in.DeadlineTime != "" {
		if _, _, err := schedule.ParseClock(in.DeadlineTime); err != nil {
			return nil, err
		}
	}
	generated, err := schedule.GenerateTasks(start, in.DurationDays, in.Frequency, in.CustomFrequencyDays)
	if err != nil {
		return nil, err
	}

	c := ChallengeView{
		ID:                  uuid.New(),
		Title:               in.Title,
		Description:         in.Description,
		Category:            in.Category,
		StartDate:           schedule.LocalDateString(start),
		DurationDays:        in.DurationDays,
		DeadlineTime:        in.DeadlineTime,
		Frequency:           in.Frequency,
		CustomFrequencyDays: in.CustomFrequencyDays,
		Color:               in.Color,
		Mode:                in.Mode,
		CreatedAt:           now,
	}
	if c.Category == "" {
		c.Category = challenge.CategoryOther
	}
	if c.Frequency == "" {
		c.Frequency = schedule.Daily
	}
	if c.Mode == "" {
		c.Mode = "solo"
	}
	for _, t := range generated {
		c.Tasks = append(c.Tasks, TaskView{DayNumber: t.DayNumber, Title: t.Title, Description: t.Description})
	}

	v.Challenges = append([]ChallengeView{c}, v.Challenges...)
	return &v.Challenges[0], nil
}

// Leaderboard ranks the members on one challenge.
func (v *GroupView) Leaderboard(challengeID uuid.UUID) []leaderboard.Entry {
	c, ok := v.challenge(challengeID)
	if !ok {
		return nil
	}
	members := make([]leaderboard.Member, 0, len(v.Members))
	for _, m := range v.Members {
		members = append(members, leaderboard.Member{ID: m.UserID, UserID: m.UserID, DisplayName: m.DisplayName, Avatar: m.Avatar})
	}
	tasks := make([]leaderboard.Task, 0, len(c.Tasks))
	for _, t := range c.Tasks {
		tasks = append(tasks, leaderboard.Task{DayNumber: t.DayNumber, CompletedBy: t.CompletedBy})
	}
	return leaderboard.Build(members, tasks)
}
