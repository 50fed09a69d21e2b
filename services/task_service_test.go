package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habitHeroAPI/internal/apperr"
	"habitHeroAPI/internal/types/task"
)

var taskContextCols = []string{"id", "challenge_id", "group_id", "day_number", "title", "title", "description", "start_date", "deadline_time"}

type taskFixture struct {
	taskID      uuid.UUID
	challengeID uuid.UUID
	groupID     uuid.UUID
	userID      uuid.UUID
}

func newTaskFixture() taskFixture {
	return taskFixture{taskID: uuid.New(), challengeID: uuid.New(), groupID: uuid.New(), userID: uuid.New()}
}

func (f taskFixture) contextRow(dayNumber int, start time.Time, deadline *string) *pgxmock.Rows {
	return pgxmock.NewRows(taskContextCols).
		AddRow(f.taskID, f.challengeID, f.groupID, dayNumber, "Day 1", "Read daily", "Read 10 pages", start, deadline)
}

type recordingEffect struct {
	mu     sync.Mutex
	events []CompletionEvent
}

func (r *recordingEffect) Name() string { return "recording" }

func (r *recordingEffect) Apply(_ context.Context, ev CompletionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func TestTaskService_CompleteRunsEffectsAfterCommit(t *testing.T) {
	mock := newMock(t)
	f := newTaskFixture()
	member := testMember(f.groupID, f.userID, "Ana")
	completionID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM tasks t\s+JOIN challenges c`).WithArgs(f.taskID).
		WillReturnRows(f.contextRow(1, testNow, nil))
	mock.ExpectQuery(`FROM group_members m WHERE m.group_id = \$1 AND m.user_id = \$2`).
		WithArgs(f.groupID, f.userID).WillReturnRows(memberRow(member))
	mock.ExpectQuery(`INSERT INTO task_completions`).
		WithArgs(f.taskID, f.challengeID, member.ID, f.userID, "", "felt good").
		WillReturnRows(pgxmock.NewRows([]string{"id", "task_id", "challenge_id", "member_id", "user_id", "proof_url", "notes", "completed_at"}).
			AddRow(completionID, f.taskID, f.challengeID, member.ID, f.userID, "", "felt good", testNow))
	mock.ExpectExec(`INSERT INTO activity_logs`).
		WithArgs(f.groupID, &f.challengeID, &member.ID, "task_completed", "Ana completed: Day 1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT\s+\(SELECT COUNT\(\*\) FROM task_completions`).
		WithArgs(f.challengeID, member.ID).
		WillReturnRows(pgxmock.NewRows([]string{"completed", "total"}).AddRow(3, 10))
	mock.ExpectCommit()

	rec := &recordingEffect{}
	runner := NewEffectRunner(rec)
	svc := NewTaskService(mock, runner)
	svc.SetClock(fixedClock(testNow))

	c, err := svc.Complete(context.Background(), f.userID, &task.CompleteRequest{
		TaskID:      f.taskID.String(),
		ChallengeID: f.challengeID.String(),
		Notes:       "felt good",
	})
	require.NoError(t, err)
	assert.Equal(t, completionID, c.ID)
	assert.Equal(t, "Ana", c.DisplayName)

	runner.Wait()
	require.Len(t, rec.events, 1)
	ev := rec.events[0]
	assert.Equal(t, 3, ev.CompletedCount)
	assert.Equal(t, 10, ev.TotalTasks)
	assert.Equal(t, 30, ev.ProgressPercent())
	assert.Equal(t, "Read daily", ev.ChallengeTitle)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskService_CompleteEligibility(t *testing.T) {
	late := "09:30"
	later := "22:00"

	tests := []struct {
		name      string
		dayNumber int
		deadline  *string
		want      error
	}{
		{name: "tomorrow's task", dayNumber: 2, want: apperr.ErrTaskNotDue},
		{name: "yesterday's task", dayNumber: 0, want: apperr.ErrTaskNotDue},
		{name: "deadline passed", dayNumber: 1, deadline: &late, want: apperr.ErrDeadlinePassed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			f := newTaskFixture()
			member := testMember(f.groupID, f.userID, "Ana")

			mock.ExpectBegin()
			mock.ExpectQuery(`FROM tasks t`).WithArgs(f.taskID).
				WillReturnRows(f.contextRow(tt.dayNumber, testNow, tt.deadline))
			mock.ExpectQuery(`FROM group_members m`).WithArgs(f.groupID, f.userID).
				WillReturnRows(memberRow(member))
			mock.ExpectRollback()

			rec := &recordingEffect{}
			runner := NewEffectRunner(rec)
			svc := NewTaskService(mock, runner)
			svc.SetClock(fixedClock(testNow))

			_, err := svc.Complete(context.Background(), f.userID, &task.CompleteRequest{
				TaskID:      f.taskID.String(),
				ChallengeID: f.challengeID.String(),
			})
			assert.ErrorIs(t, err, tt.want)
			runner.Wait()
			assert.Empty(t, rec.events)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}

	t.Run("deadline still ahead", func(t *testing.T) {
		f := newTaskFixture()
		tc := &taskContext{TaskID: f.taskID, DayNumber: 1, StartDate: testNow, Deadline: &later}
		assert.NoError(t, tc.checkEligible(testNow))
	})
}

func TestTaskService_CompleteTwiceIsRejected(t *testing.T) {
	mock := newMock(t)
	f := newTaskFixture()
	member := testMember(f.groupID, f.userID, "Ana")

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM tasks t`).WithArgs(f.taskID).WillReturnRows(f.contextRow(1, testNow, nil))
	mock.ExpectQuery(`FROM group_members m`).WithArgs(f.groupID, f.userID).WillReturnRows(memberRow(member))
	mock.ExpectQuery(`INSERT INTO task_completions .*ON CONFLICT \(task_id, member_id\) DO NOTHING`).
		WithArgs(f.taskID, f.challengeID, member.ID, f.userID, "", "").
		WillReturnRows(pgxmock.NewRows([]string{"id", "task_id", "challenge_id", "member_id", "user_id", "proof_url", "notes", "completed_at"}))
	mock.ExpectRollback()

	svc := NewTaskService(mock, nil)
	svc.SetClock(fixedClock(testNow))

	_, err := svc.Complete(context.Background(), f.userID, &task.CompleteRequest{
		TaskID:      f.taskID.String(),
		ChallengeID: f.challengeID.String(),
	})
	assert.ErrorIs(t, err, apperr.ErrAlreadyCompleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskService_CompleteRequiresMembership(t *testing.T) {
	mock := newMock(t)
	f := newTaskFixture()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM tasks t`).WithArgs(f.taskID).WillReturnRows(f.contextRow(1, testNow, nil))
	mock.ExpectQuery(`FROM group_members m`).WithArgs(f.groupID, f.userID).
		WillReturnRows(pgxmock.NewRows(memberCols))
	mock.ExpectRollback()

	svc := NewTaskService(mock, nil)
	svc.SetClock(fixedClock(testNow))

	_, err := svc.Complete(context.Background(), f.userID, &task.CompleteRequest{
		TaskID:      f.taskID.String(),
		ChallengeID: f.challengeID.String(),
	})
	assert.ErrorIs(t, err, apperr.ErrNotMember)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskService_ToggleRemovesExistingCompletion(t *testing.T) {
	mock := newMock(t)
	f := newTaskFixture()
	member := testMember(f.groupID, f.userID, "Ana")

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM tasks t`).WithArgs(f.taskID).WillReturnRows(f.contextRow(1, testNow, nil))
	mock.ExpectQuery(`FROM group_members m`).WithArgs(f.groupID, f.userID).WillReturnRows(memberRow(member))
	mock.ExpectExec(`DELETE FROM task_completions WHERE task_id = \$1 AND member_id = \$2`).
		WithArgs(f.taskID, member.ID).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`INSERT INTO activity_logs`).
		WithArgs(f.groupID, &f.challengeID, &member.ID, "task_undone", "Ana undid: Day 1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	rec := &recordingEffect{}
	runner := NewEffectRunner(rec)
	svc := NewTaskService(mock, runner)
	svc.SetClock(fixedClock(testNow))

	res, err := svc.Toggle(context.Background(), f.userID, f.taskID)
	require.NoError(t, err)
	assert.False(t, res.Completed)
	runner.Wait()
	assert.Empty(t, rec.events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskService_UndoOnlyOwnCompletion(t *testing.T) {
	mock := newMock(t)
	completionID := uuid.New()
	owner := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT task_id, user_id FROM task_completions`).WithArgs(completionID).
		WillReturnRows(pgxmock.NewRows([]string{"task_id", "user_id"}).AddRow(uuid.New(), owner))
	mock.ExpectRollback()

	svc := NewTaskService(mock, nil)
	err := svc.Undo(context.Background(), uuid.New(), completionID)

	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, 403, appErr.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
