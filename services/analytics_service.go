package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"habitHeroAPI/internal/apperr"
	"habitHeroAPI/internal/database"
	"habitHeroAPI/internal/leaderboard"
	"habitHeroAPI/internal/penalty"
	"habitHeroAPI/internal/schedule"
	"habitHeroAPI/internal/types/activity"
	"habitHeroAPI/internal/types/analytics"
	"habitHeroAPI/internal/types/challenge"
	"habitHeroAPI/internal/types/group"
	"habitHeroAPI/internal/types/task"
)

type AnalyticsService struct {
	db  database.DB
	now Clock
}

func NewAnalyticsService(db database.DB) *AnalyticsService {
	return &AnalyticsService{db: db, now: time.Now}
}

func (s *AnalyticsService) SetClock(now Clock) {
	s.now = now
}

func leaderboardMembers(members []*group.Member) []leaderboard.Member {
	out := make([]leaderboard.Member, len(members))
	for i, m := range members {
		out[i] = leaderboard.Member{ID: m.ID, UserID: m.UserID, DisplayName: m.DisplayName, Avatar: m.Avatar}
	}
	return out
}

func leaderboardTasks(tasks []*task.Task) []leaderboard.Task {
	out := make([]leaderboard.Task, len(tasks))
	for i, t := range tasks {
		done := make([]uuid.UUID, len(t.Completions))
		for j, c := range t.Completions {
			done[j] = c.MemberID
		}
		out[i] = leaderboard.Task{DayNumber: t.DayNumber, CompletedBy: done}
	}
	return out
}

// GroupStats aggregates every challenge of the group into one leaderboard.
func (s *AnalyticsService) GroupStats(ctx context.Context, userID, groupID uuid.UUID) (*analytics.GroupStats, error) {
	g, err := loadGroup(ctx, s.db, groupID)
	if err != nil {
		return nil, err
	}
	if _, err := requireMember(ctx, s.db, groupID, userID); err != nil {
		return nil, err
	}

	var (
		members    []*group.Member
		challenges []*challenge.Challenge
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		members, err = listMembers(egCtx, s.db, groupID, g.PenaltyConfig)
		return err
	})
	eg.Go(func() error {
		var err error
		challenges, err = loadChallenges(egCtx, s.db, `c.group_id = $1`, groupID)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	now := s.now()
	stats := &analytics.GroupStats{
		GroupID:         groupID,
		TotalMembers:    len(members),
		TotalChallenges: len(challenges),
	}
	var allTasks []*task.Task
	for _, c := range challenges {
		if c.EffectiveStatus(now) == challenge.StatusActive {
			stats.ActiveChallenges++
		}
		for _, t := range c.Tasks {
			stats.TotalCompletions += len(t.Completions)
		}
		allTasks = append(allTasks, c.Tasks...)
	}
	stats.TotalTasks = len(allTasks)
	stats.CompletionRate = leaderboard.ChallengePercent(stats.TotalCompletions, stats.TotalTasks, stats.TotalMembers)
	stats.Leaderboard = leaderboard.Build(leaderboardMembers(members), leaderboardTasks(allTasks))
	return stats, nil
}

// UserStats summarises the caller's standing in every group they belong to.
func (s *AnalyticsService) UserStats(ctx context.Context, userID uuid.UUID) (*analytics.UserStats, error) {
	rows, err := s.db.Query(ctx, `
		SELECT g.id, g.name, m.strikes, m.penalties_paid, pc.threshold,
		       (SELECT COUNT(*) FROM task_completions tc WHERE tc.member_id = m.id),
		       (SELECT COUNT(*) FROM challenges c WHERE c.group_id = g.id)
		FROM group_members m
		JOIN groups g ON g.id = m.group_id
		LEFT JOIN penalty_configs pc ON pc.group_id = g.id
		WHERE m.user_id = $1
		ORDER BY m.joined_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("load user stats: %w", err)
	}
	defer rows.Close()

	stats := &analytics.UserStats{Groups: []analytics.UserGroupStats{}}
	for rows.Next() {
		var (
			gs        analytics.UserGroupStats
			paid      int
			threshold *int
		)
		if err := rows.Scan(&gs.GroupID, &gs.GroupName, &gs.Strikes, &paid, &threshold,
			&gs.TasksCompleted, &gs.ChallengeCount); err != nil {
			return nil, fmt.Errorf("scan user stats: %w", err)
		}
		if threshold != nil {
			gs.PendingPenalty = penalty.Pending(gs.Strikes, *threshold, paid)
		}
		stats.TotalGroups++
		stats.TotalTasksCompleted += gs.TasksCompleted
		stats.TotalStrikes += gs.Strikes
		stats.Groups = append(stats.Groups, gs)
	}
	return stats, rows.Err()
}

// Activity pages through the group's activity log, newest first.
func (s *AnalyticsService) Activity(ctx context.Context, userID, groupID uuid.UUID, limit, offset int) (*activity.Page, error) {
	if _, err := loadGroup(ctx, s.db, groupID); err != nil {
		return nil, err
	}
	if _, err := requireMember(ctx, s.db, groupID, userID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, group_id, challenge_id, member_id, action, description, created_at
		FROM activity_logs
		WHERE group_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, groupID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	page := &activity.Page{Entries: []*activity.Entry{}, Limit: limit, Offset: offset}
	for rows.Next() {
		e := &activity.Entry{}
		if err := rows.Scan(&e.ID, &e.GroupID, &e.ChallengeID, &e.MemberID, &e.Action, &e.Description, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		page.Entries = append(page.Entries, e)
	}
	return page, rows.Err()
}

// ChallengeProgress reports per-task completions and the challenge leaderboard.
func (s *AnalyticsService) ChallengeProgress(ctx context.Context, userID, challengeID uuid.UUID) (*analytics.ChallengeProgress, error) {
	challenges, err := loadChallenges(ctx, s.db, `c.id = $1`, challengeID)
	if err != nil {
		return nil, err
	}
	if len(challenges) == 0 {
		return nil, apperr.ErrChallengeMissing
	}
	c := challenges[0]
	if _, err := requireMember(ctx, s.db, c.GroupID, userID); err != nil {
		return nil, err
	}
	members, err := listMembers(ctx, s.db, c.GroupID, nil)
	if err != nil {
		return nil, err
	}

	now := s.now()
	start := c.Start(now.Location())
	progress := &analytics.ChallengeProgress{
		ChallengeID:  c.ID,
		Status:       string(c.EffectiveStatus(now)),
		CurrentDay:   schedule.DayIndex(start, now),
		TotalTasks:   len(c.Tasks),
		TotalMembers: len(members),
		Tasks:        make([]analytics.TaskProgress, 0, len(c.Tasks)),
	}
	for _, t := range c.Tasks {
		progress.TotalCompletions += len(t.Completions)
		progress.Tasks = append(progress.Tasks, analytics.TaskProgress{
			TaskID:      t.ID,
			DayNumber:   t.DayNumber,
			Title:       t.Title,
			Date:        dateString(schedule.TaskDate(start, t.DayNumber)),
			Completions: len(t.Completions),
			IsToday:     schedule.IsDueToday(start, t.DayNumber, now),
			IsPast:      schedule.IsInPast(start, t.DayNumber, now),
		})
	}
	progress.ProgressPercent = leaderboard.ChallengePercent(progress.TotalCompletions, progress.TotalTasks, progress.TotalMembers)
	progress.Leaderboard = leaderboard.Build(leaderboardMembers(members), leaderboardTasks(c.Tasks))
	return progress, nil
}
