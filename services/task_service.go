package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"habitHeroAPI/internal/apperr"
	"habitHeroAPI/internal/database"
	"habitHeroAPI/internal/schedule"
	"habitHeroAPI/internal/types/activity"
	"habitHeroAPI/internal/types/group"
	"habitHeroAPI/internal/types/task"
)

type TaskService struct {
	db      database.DB
	effects *EffectRunner
	now     Clock
}

func NewTaskService(db database.DB, effects *EffectRunner) *TaskService {
	return &TaskService{db: db, effects: effects, now: time.Now}
}

func (s *TaskService) SetClock(now Clock) {
	s.now = now
}

// taskContext is a task together with the challenge fields that decide whether
// it can be completed.
type taskContext struct {
	TaskID               uuid.UUID
	ChallengeID          uuid.UUID
	GroupID              uuid.UUID
	DayNumber            int
	TaskTitle            string
	ChallengeTitle       string
	ChallengeDescription string
	StartDate            time.Time
	Deadline             *string
}

func loadTaskContext(ctx context.Context, q database.Querier, taskID uuid.UUID) (*taskContext, error) {
	tc := &taskContext{}
	err := q.QueryRow(ctx, `
		SELECT t.id, t.challenge_id, c.group_id, t.day_number, t.title, c.title, c.description,
		       c.start_date, c.deadline_time
		FROM tasks t
		JOIN challenges c ON c.id = t.challenge_id
		WHERE t.id = $1`, taskID).Scan(
		&tc.TaskID, &tc.ChallengeID, &tc.GroupID, &tc.DayNumber, &tc.TaskTitle, &tc.ChallengeTitle,
		&tc.ChallengeDescription, &tc.StartDate, &tc.Deadline)
	if isNoRows(err) {
		return nil, apperr.ErrTaskMissing
	}
	if err != nil {
		return nil, fmt.Errorf("load task: %w", err)
	}
	return tc, nil
}

// checkEligible rejects tasks not due today and tasks whose deadline has passed.
func (tc *taskContext) checkEligible(now time.Time) error {
	start := time.Date(tc.StartDate.Year(), tc.StartDate.Month(), tc.StartDate.Day(), 0, 0, 0, 0, now.Location())
	if !schedule.IsDueToday(start, tc.DayNumber, now) {
		return apperr.ErrTaskNotDue
	}
	if tc.Deadline != nil && schedule.IsDeadlinePassed(*tc.Deadline, now) {
		return apperr.ErrDeadlinePassed
	}
	return nil
}

func (tc *taskContext) event(m *group.Member, completedAt time.Time) CompletionEvent {
	return CompletionEvent{
		GroupID:              tc.GroupID,
		ChallengeID:          tc.ChallengeID,
		TaskID:               tc.TaskID,
		MemberID:             m.ID,
		UserID:               m.UserID,
		DisplayName:          m.DisplayName,
		TaskTitle:            tc.TaskTitle,
		ChallengeTitle:       tc.ChallengeTitle,
		ChallengeDescription: tc.ChallengeDescription,
		DayNumber:            tc.DayNumber,
		CompletedAt:          completedAt,
	}
}

func progressCounts(ctx context.Context, q database.Querier, challengeID, memberID uuid.UUID) (int, int, error) {
	var completed, total int
	err := q.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM task_completions WHERE challenge_id = $1 AND member_id = $2),
			(SELECT COUNT(*) FROM tasks WHERE challenge_id = $1)`, challengeID, memberID).Scan(&completed, &total)
	if err != nil {
		return 0, 0, fmt.Errorf("count progress: %w", err)
	}
	return completed, total, nil
}

// insertCompletion records the completion and its activity entry. A second
// completion of the same task by the same member fails with ErrAlreadyCompleted.
func insertCompletion(ctx context.Context, tx pgx.Tx, tc *taskContext, m *group.Member, proofURL, notes string) (*task.Completion, error) {
	c := &task.Completion{DisplayName: m.DisplayName, DayNumber: tc.DayNumber}
	err := tx.QueryRow(ctx, `
		INSERT INTO task_completions (task_id, challenge_id, member_id, user_id, proof_url, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (task_id, member_id) DO NOTHING
		RETURNING id, task_id, challenge_id, member_id, user_id, proof_url, notes, completed_at`,
		tc.TaskID, tc.ChallengeID, m.ID, m.UserID, proofURL, notes).Scan(
		&c.ID, &c.TaskID, &c.ChallengeID, &c.MemberID, &c.UserID, &c.ProofURL, &c.Notes, &c.CompletedAt)
	if isNoRows(err) {
		return nil, apperr.ErrAlreadyCompleted
	}
	if err != nil {
		return nil, fmt.Errorf("insert completion: %w", err)
	}

	if err := logActivity(ctx, tx, tc.GroupID, &tc.ChallengeID, &m.ID, activity.ActionTaskCompleted,
		fmt.Sprintf("%s completed: %s", m.DisplayName, tc.TaskTitle)); err != nil {
		return nil, err
	}
	return c, nil
}

// Complete marks a task done for the caller. Side effects start only after
// the transaction commits and never delay the response.
func (s *TaskService) Complete(ctx context.Context, userID uuid.UUID, req *task.CompleteRequest) (*task.Completion, error) {
	taskID, err := uuid.Parse(req.TaskID)
	if err != nil {
		return nil, apperr.BadRequest("invalid_id", "taskId must be a valid UUID")
	}
	challengeID, err := uuid.Parse(req.ChallengeID)
	if err != nil {
		return nil, apperr.BadRequest("invalid_id", "challengeId must be a valid UUID")
	}

	var (
		completion *task.Completion
		ev         CompletionEvent
	)
	err = database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		tc, err := loadTaskContext(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if tc.ChallengeID != challengeID {
			return apperr.ErrTaskMissing
		}
		m, err := requireMember(ctx, tx, tc.GroupID, userID)
		if err != nil {
			return err
		}
		if err := tc.checkEligible(s.now()); err != nil {
			return err
		}

		completion, err = insertCompletion(ctx, tx, tc, m, req.ProofURL, req.Notes)
		if err != nil {
			return err
		}

		ev = tc.event(m, completion.CompletedAt)
		ev.CompletedCount, ev.TotalTasks, err = progressCounts(ctx, tx, tc.ChallengeID, m.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.effects.Run(ev)
	return completion, nil
}

// Toggle flips the caller's completion of a task under the same eligibility
// rules as Complete.
func (s *TaskService) Toggle(ctx context.Context, userID uuid.UUID, taskID uuid.UUID) (*task.ToggleResult, error) {
	var (
		result *task.ToggleResult
		ev     *CompletionEvent
	)
	err := database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		tc, err := loadTaskContext(ctx, tx, taskID)
		if err != nil {
			return err
		}
		m, err := requireMember(ctx, tx, tc.GroupID, userID)
		if err != nil {
			return err
		}
		if err := tc.checkEligible(s.now()); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `DELETE FROM task_completions WHERE task_id = $1 AND member_id = $2`, tc.TaskID, m.ID)
		if err != nil {
			return fmt.Errorf("remove completion: %w", err)
		}
		if tag.RowsAffected() > 0 {
			result = &task.ToggleResult{Completed: false}
			return logActivity(ctx, tx, tc.GroupID, &tc.ChallengeID, &m.ID, activity.ActionTaskUndone,
				fmt.Sprintf("%s undid: %s", m.DisplayName, tc.TaskTitle))
		}

		c, err := insertCompletion(ctx, tx, tc, m, "", "")
		if err != nil {
			return err
		}
		result = &task.ToggleResult{Completed: true, Completion: c}

		e := tc.event(m, c.CompletedAt)
		e.CompletedCount, e.TotalTasks, err = progressCounts(ctx, tx, tc.ChallengeID, m.ID)
		ev = &e
		return err
	})
	if err != nil {
		return nil, err
	}

	if ev != nil {
		s.effects.Run(*ev)
	}
	return result, nil
}

// Undo removes one of the caller's own completions.
func (s *TaskService) Undo(ctx context.Context, userID uuid.UUID, completionID uuid.UUID) error {
	return database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		var (
			taskID uuid.UUID
			owner  uuid.UUID
		)
		err := tx.QueryRow(ctx, `SELECT task_id, user_id FROM task_completions WHERE id = $1`, completionID).
			Scan(&taskID, &owner)
		if isNoRows(err) {
			return apperr.NotFound("Completion not found")
		}
		if err != nil {
			return fmt.Errorf("load completion: %w", err)
		}
		if owner != userID {
			return apperr.Forbidden("You can only undo your own completions")
		}

		tc, err := loadTaskContext(ctx, tx, taskID)
		if err != nil {
			return err
		}
		m, err := requireMember(ctx, tx, tc.GroupID, userID)
		if err != nil {
			return err
		}
		if err := tc.checkEligible(s.now()); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM task_completions WHERE id = $1`, completionID); err != nil {
			return fmt.Errorf("delete completion: %w", err)
		}
		return logActivity(ctx, tx, tc.GroupID, &tc.ChallengeID, &m.ID, activity.ActionTaskUndone,
			fmt.Sprintf("%s undid: %s", m.DisplayName, tc.TaskTitle))
	})
}

// MyCompletions lists the caller's completions in a challenge.
func (s *TaskService) MyCompletions(ctx context.Context, userID, challengeID uuid.UUID) ([]*task.Completion, error) {
	var groupID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT group_id FROM challenges WHERE id = $1`, challengeID).Scan(&groupID)
	if isNoRows(err) {
		return nil, apperr.ErrChallengeMissing
	}
	if err != nil {
		return nil, fmt.Errorf("load challenge: %w", err)
	}
	m, err := requireMember(ctx, s.db, groupID, userID)
	if err != nil {
		return nil, err
	}
	return queryCompletions(ctx, s.db, `tc.challenge_id = $1 AND tc.member_id = $2`, challengeID, m.ID)
}

// TaskCompletions lists everyone's completions of one task.
func (s *TaskService) TaskCompletions(ctx context.Context, userID, taskID uuid.UUID) ([]*task.Completion, error) {
	tc, err := loadTaskContext(ctx, s.db, taskID)
	if err != nil {
		return nil, err
	}
	if _, err := requireMember(ctx, s.db, tc.GroupID, userID); err != nil {
		return nil, err
	}
	return queryCompletions(ctx, s.db, `tc.task_id = $1`, taskID)
}
