package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"habitHeroAPI/internal/apperr"
	"habitHeroAPI/internal/database"
	"habitHeroAPI/internal/schedule"
	"habitHeroAPI/internal/types/activity"
	"habitHeroAPI/internal/types/challenge"
	"habitHeroAPI/internal/types/group"
	"habitHeroAPI/internal/types/task"
)

type ChallengeService struct {
	db  database.DB
	now Clock
}

func NewChallengeService(db database.DB) *ChallengeService {
	return &ChallengeService{db: db, now: time.Now}
}

func (s *ChallengeService) SetClock(now Clock) {
	s.now = now
}

const challengeColumns = `c.id, c.group_id, c.title, c.description, c.category, c.start_date, c.duration_days,
	c.deadline_time, c.frequency, c.custom_frequency_days, c.color, c.mode, c.status, c.created_by, c.created_at, c.updated_at`

func scanChallenge(row pgx.Row) (*challenge.Challenge, error) {
	c := &challenge.Challenge{}
	var start time.Time
	err := row.Scan(&c.ID, &c.GroupID, &c.Title, &c.Description, &c.Category, &start, &c.DurationDays,
		&c.DeadlineTime, &c.Frequency, &c.CustomFrequencyDays, &c.Color, &c.Mode, &c.Status, &c.CreatedBy,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.StartDate = dateString(start)
	return c, nil
}

// loadChallenges returns the challenges matching where, newest first, each with
// its tasks and their completions.
func loadChallenges(ctx context.Context, q database.Querier, where string, args ...any) ([]*challenge.Challenge, error) {
	rows, err := q.Query(ctx, `SELECT `+challengeColumns+` FROM challenges c WHERE `+where+` ORDER BY c.created_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	challenges := []*challenge.Challenge{}
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan challenge: %w", err)
		}
		challenges = append(challenges, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(challenges) == 0 {
		return challenges, nil
	}

	ids := make([]uuid.UUID, len(challenges))
	byID := make(map[uuid.UUID]*challenge.Challenge, len(challenges))
	for i, c := range challenges {
		ids[i] = c.ID
		byID[c.ID] = c
		c.Tasks = []*task.Task{}
	}

	tasks, err := loadTasks(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		c := byID[t.ChallengeID]
		t.Date = dateString(schedule.TaskDate(c.Start(time.UTC), t.DayNumber))
		c.Tasks = append(c.Tasks, t)
	}
	return challenges, nil
}

func loadTasks(ctx context.Context, q database.Querier, challengeIDs []uuid.UUID) ([]*task.Task, error) {
	rows, err := q.Query(ctx, `
		SELECT id, challenge_id, day_number, title, description
		FROM tasks WHERE challenge_id = ANY($1)
		ORDER BY challenge_id, day_number`, challengeIDs)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	tasks := []*task.Task{}
	byID := map[uuid.UUID]*task.Task{}
	for rows.Next() {
		t := &task.Task{Completions: []*task.Completion{}}
		if err := rows.Scan(&t.ID, &t.ChallengeID, &t.DayNumber, &t.Title, &t.Description); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
		byID[t.ID] = t
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	completions, err := queryCompletions(ctx, q, `tc.challenge_id = ANY($1)`, challengeIDs)
	if err != nil {
		return nil, err
	}
	for _, c := range completions {
		if t, ok := byID[c.TaskID]; ok {
			t.Completions = append(t.Completions, c)
		}
	}
	return tasks, nil
}

func queryCompletions(ctx context.Context, q database.Querier, where string, args ...any) ([]*task.Completion, error) {
	rows, err := q.Query(ctx, `
		SELECT tc.id, tc.task_id, tc.challenge_id, tc.member_id, tc.user_id, m.display_name, t.day_number,
		       tc.proof_url, tc.notes, tc.completed_at
		FROM task_completions tc
		JOIN group_members m ON m.id = tc.member_id
		JOIN tasks t ON t.id = tc.task_id
		WHERE `+where+`
		ORDER BY tc.completed_at`, args...)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	defer rows.Close()

	out := []*task.Completion{}
	for rows.Next() {
		c := &task.Completion{}
		if err := rows.Scan(&c.ID, &c.TaskID, &c.ChallengeID, &c.MemberID, &c.UserID, &c.DisplayName, &c.DayNumber,
			&c.ProofURL, &c.Notes, &c.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// resolveWindow turns the request's start plus either durationDays or endDate
// into a start date and a day count.
func resolveWindow(req *challenge.CreateChallengeRequest, loc *time.Location) (time.Time, int, error) {
	start, err := schedule.ParseDate(req.StartDate, loc)
	if err != nil {
		return time.Time{}, 0, apperr.Validation([]apperr.FieldError{{Path: "startDate", Message: "must be a date (YYYY-MM-DD)"}})
	}

	duration := req.DurationDays
	if duration == 0 && req.EndDate != "" {
		end, err := schedule.ParseDate(req.EndDate, loc)
		if err != nil {
			return time.Time{}, 0, apperr.Validation([]apperr.FieldError{{Path: "endDate", Message: "must be a date (YYYY-MM-DD)"}})
		}
		duration = schedule.DayIndex(start, end)
	}
	if duration < 1 || duration > 365 {
		return time.Time{}, 0, apperr.Validation([]apperr.FieldError{{Path: "durationDays", Message: "must be between 1 and 365 days"}})
	}
	return start, duration, nil
}

// CreateChallenge materializes every day-task up front. Tasks are never
// regenerated afterwards.
func (s *ChallengeService) CreateChallenge(ctx context.Context, userID uuid.UUID, req *challenge.CreateChallengeRequest) (*challenge.Challenge, error) {
	groupID, err := uuid.Parse(req.GroupID)
	if err != nil {
		return nil, apperr.BadRequest("invalid_id", "groupId must be a valid UUID")
	}
	if _, err := loadGroup(ctx, s.db, groupID); err != nil {
		return nil, err
	}
	member, err := requireMember(ctx, s.db, groupID, userID)
	if err != nil {
		return nil, err
	}

	start, duration, err := resolveWindow(req, s.now().Location())
	if err != nil {
		return nil, err
	}

	freq := schedule.Frequency(req.Frequency)
	if freq == "" {
		freq = schedule.Daily
	}
	customEvery := 0
	if freq == schedule.Custom {
		if req.CustomFrequencyDays == nil {
			return nil, apperr.Validation([]apperr.FieldError{{Path: "customFrequencyDays", Message: "is required for a custom frequency"}})
		}
		customEvery = *req.CustomFrequencyDays
	}

	generated, err := schedule.GenerateTasks(start, duration, freq, customEvery)
	if err != nil {
		return nil, apperr.BadRequest("invalid_schedule", err.Error())
	}

	category := req.Category
	if category == "" {
		category = string(challenge.CategoryOther)
	}
	color := req.Color
	if color == "" {
		color = group.DefaultTheme
	}
	mode := req.Mode
	if mode == "" {
		mode = "solo"
	}
	var customDays *int
	if freq == schedule.Custom {
		customDays = &customEvery
	}

	var created *challenge.Challenge
	err = database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		c, err := scanChallenge(tx.QueryRow(ctx, `
			INSERT INTO challenges AS c (group_id, title, description, category, start_date, duration_days,
				deadline_time, frequency, custom_frequency_days, color, mode, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING `+challengeColumns,
			groupID, strings.TrimSpace(req.Title), req.Description, category, dateString(start), duration,
			req.DeadlineTime, string(freq), customDays, color, mode, userID))
		if err != nil {
			return fmt.Errorf("insert challenge: %w", err)
		}

		days := make([]int, len(generated))
		titles := make([]string, len(generated))
		for i, g := range generated {
			days[i] = g.DayNumber
			titles[i] = g.Title
		}
		rows, err := tx.Query(ctx, `
			INSERT INTO tasks (challenge_id, day_number, title, description)
			SELECT $1, d, t, $4 FROM unnest($2::int[], $3::text[]) AS x(d, t)
			RETURNING id, challenge_id, day_number, title, description`,
			c.ID, days, titles, schedule.DefaultTaskDescription)
		if err != nil {
			return fmt.Errorf("insert tasks: %w", err)
		}
		c.Tasks = []*task.Task{}
		for rows.Next() {
			t := &task.Task{Completions: []*task.Completion{}}
			if err := rows.Scan(&t.ID, &t.ChallengeID, &t.DayNumber, &t.Title, &t.Description); err != nil {
				rows.Close()
				return fmt.Errorf("scan task: %w", err)
			}
			t.Date = dateString(schedule.TaskDate(start, t.DayNumber))
			c.Tasks = append(c.Tasks, t)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("insert tasks: %w", err)
		}
		created = c

		return logActivity(ctx, tx, groupID, &c.ID, &member.ID, activity.ActionChallengeCreated,
			fmt.Sprintf("%s started a new challenge: %s", member.DisplayName, c.Title))
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *ChallengeService) ListByGroup(ctx context.Context, userID, groupID uuid.UUID) ([]*challenge.Challenge, error) {
	if _, err := loadGroup(ctx, s.db, groupID); err != nil {
		return nil, err
	}
	if _, err := requireMember(ctx, s.db, groupID, userID); err != nil {
		return nil, err
	}
	challenges, err := loadChallenges(ctx, s.db, `c.group_id = $1`, groupID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for _, c := range challenges {
		c.Status = c.EffectiveStatus(now)
	}
	return challenges, nil
}

// getChallengeForMember loads one challenge and checks the caller belongs to its group.
func (s *ChallengeService) getChallengeForMember(ctx context.Context, userID, challengeID uuid.UUID) (*challenge.Challenge, *group.Member, error) {
	challenges, err := loadChallenges(ctx, s.db, `c.id = $1`, challengeID)
	if err != nil {
		return nil, nil, err
	}
	if len(challenges) == 0 {
		return nil, nil, apperr.ErrChallengeMissing
	}
	c := challenges[0]
	m, err := requireMember(ctx, s.db, c.GroupID, userID)
	if err != nil {
		return nil, nil, err
	}
	c.Status = c.EffectiveStatus(s.now())
	return c, m, nil
}

func (s *ChallengeService) GetChallenge(ctx context.Context, userID, challengeID uuid.UUID) (*challenge.Challenge, error) {
	c, _, err := s.getChallengeForMember(ctx, userID, challengeID)
	return c, err
}

// UpdateChallenge only touches title, description, category, deadline and
// status. The schedule and its tasks stay as generated.
func (s *ChallengeService) UpdateChallenge(ctx context.Context, userID, challengeID uuid.UUID, req *challenge.UpdateChallengeRequest) (*challenge.Challenge, error) {
	if _, _, err := s.getChallengeForMember(ctx, userID, challengeID); err != nil {
		return nil, err
	}

	// An empty deadline string clears the deadline.
	clearDeadline := req.DeadlineTime != nil && *req.DeadlineTime == ""
	deadline := req.DeadlineTime
	if clearDeadline {
		deadline = nil
	}

	_, err := s.db.Exec(ctx, `
		UPDATE challenges
		SET title = COALESCE($2, title),
		    description = COALESCE($3, description),
		    category = COALESCE($4, category),
		    deadline_time = CASE WHEN $5 THEN NULL ELSE COALESCE($6, deadline_time) END,
		    status = COALESCE($7, status),
		    updated_at = NOW()
		WHERE id = $1`,
		challengeID, req.Title, req.Description, req.Category, clearDeadline, deadline, req.Status)
	if err != nil {
		return nil, fmt.Errorf("update challenge: %w", err)
	}

	return s.GetChallenge(ctx, userID, challengeID)
}

// DeleteChallenge is allowed for the challenge creator and group admins.
func (s *ChallengeService) DeleteChallenge(ctx context.Context, userID, challengeID uuid.UUID) error {
	c, m, err := s.getChallengeForMember(ctx, userID, challengeID)
	if err != nil {
		return err
	}
	isCreator := c.CreatedBy != nil && *c.CreatedBy == userID
	if m.Role != group.RoleAdmin && !isCreator {
		return apperr.Forbidden("Only the creator or a group admin can delete this challenge")
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM challenges WHERE id = $1`, challengeID)
	if err != nil {
		return fmt.Errorf("delete challenge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrChallengeMissing
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
