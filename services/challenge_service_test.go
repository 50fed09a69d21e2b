package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habitHeroAPI/internal/apperr"
	"habitHeroAPI/internal/schedule"
	"habitHeroAPI/internal/types/challenge"
	"habitHeroAPI/internal/types/group"
)

var (
	challengeCols = []string{"id", "group_id", "title", "description", "category", "start_date", "duration_days",
		"deadline_time", "frequency", "custom_frequency_days", "color", "mode", "status", "created_by", "created_at", "updated_at"}
	taskCols       = []string{"id", "challenge_id", "day_number", "title", "description"}
	completionCols = []string{"id", "task_id", "challenge_id", "member_id", "user_id", "display_name", "day_number",
		"proof_url", "notes", "completed_at"}
)

type challengeFixture struct {
	id        uuid.UUID
	groupID   uuid.UUID
	createdBy uuid.UUID
	title     string
	start     time.Time
	duration  int
}

func newChallengeFixture() challengeFixture {
	return challengeFixture{
		id:        uuid.New(),
		groupID:   uuid.New(),
		createdBy: uuid.New(),
		title:     "Read daily",
		start:     time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC),
		duration:  30,
	}
}

func (f challengeFixture) row() *pgxmock.Rows {
	createdBy := f.createdBy
	return pgxmock.NewRows(challengeCols).AddRow(f.id, f.groupID, f.title, "", challenge.CategoryLearning, f.start,
		f.duration, (*string)(nil), schedule.Daily, (*int)(nil), "indigo", "solo", challenge.StatusActive, &createdBy,
		testNow, testNow)
}

// expectChallengeLoad queues the three reads loadChallenges does for one challenge.
func expectChallengeLoad(mock pgxmock.PgxPoolIface, f challengeFixture, tasks, completions *pgxmock.Rows) {
	mock.ExpectQuery(`FROM challenges c WHERE c.id = \$1`).WithArgs(f.id).WillReturnRows(f.row())
	mock.ExpectQuery(`FROM tasks WHERE challenge_id = ANY\(\$1\)`).WithArgs([]uuid.UUID{f.id}).WillReturnRows(tasks)
	mock.ExpectQuery(`FROM task_completions tc`).WithArgs([]uuid.UUID{f.id}).WillReturnRows(completions)
}

func noCompletions() *pgxmock.Rows {
	return pgxmock.NewRows(completionCols)
}

func newChallenges(mock pgxmock.PgxPoolIface) *ChallengeService {
	svc := NewChallengeService(mock)
	svc.SetClock(fixedClock(testNow))
	return svc
}

func TestChallengeService_CreateMaterializesTasksFromEndDate(t *testing.T) {
	mock := newMock(t)
	groupID, userID, challengeID := uuid.New(), uuid.New(), uuid.New()
	member := testMember(groupID, userID, "Ana")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM groups g\s+LEFT JOIN penalty_configs`).WithArgs(groupID).
		WillReturnRows(groupRow(groupID, userID, nil))
	mock.ExpectQuery(`FROM group_members m WHERE m.group_id = \$1 AND m.user_id = \$2`).WithArgs(groupID, userID).
		WillReturnRows(memberRow(member))
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO challenges AS c`).
		WithArgs(groupID, "Read", "", "LEARNING", "2024-01-01", 7, (*string)(nil), "3days", (*int)(nil), "indigo", "solo", userID).
		WillReturnRows(pgxmock.NewRows(challengeCols).AddRow(challengeID, groupID, "Read", "", challenge.CategoryLearning,
			start, 7, (*string)(nil), schedule.EveryThreeDays, (*int)(nil), "indigo", "solo", challenge.StatusActive, &userID,
			testNow, testNow))
	mock.ExpectQuery(`INSERT INTO tasks`).
		WithArgs(challengeID, []int{1, 4, 7}, []string{"Day 1", "Day 4", "Day 7"}, schedule.DefaultTaskDescription).
		WillReturnRows(pgxmock.NewRows(taskCols).
			AddRow(uuid.New(), challengeID, 1, "Day 1", schedule.DefaultTaskDescription).
			AddRow(uuid.New(), challengeID, 4, "Day 4", schedule.DefaultTaskDescription).
			AddRow(uuid.New(), challengeID, 7, "Day 7", schedule.DefaultTaskDescription))
	mock.ExpectExec(`INSERT INTO activity_logs`).
		WithArgs(groupID, &challengeID, &member.ID, "challenge_created", "Ana started a new challenge: Read").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	c, err := newChallenges(mock).CreateChallenge(context.Background(), userID, &challenge.CreateChallengeRequest{
		GroupID:   groupID.String(),
		Title:     " Read ",
		Category:  "LEARNING",
		StartDate: "2024-01-01",
		EndDate:   "2024-01-07",
		Frequency: "3days",
	})
	require.NoError(t, err)
	assert.Equal(t, 7, c.DurationDays)
	assert.Equal(t, "2024-01-01", c.StartDate)
	require.Len(t, c.Tasks, 3)

	var days, dates []any
	for _, task := range c.Tasks {
		days = append(days, task.DayNumber)
		dates = append(dates, task.Date)
	}
	assert.Equal(t, []any{1, 4, 7}, days)
	assert.Equal(t, []any{"2024-01-01", "2024-01-04", "2024-01-07"}, dates)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChallengeService_CreateRejectsBadWindow(t *testing.T) {
	every := 0
	tests := []struct {
		name string
		req  challenge.CreateChallengeRequest
		path string
	}{
		{name: "end before start", req: challenge.CreateChallengeRequest{StartDate: "2024-01-07", EndDate: "2024-01-01"}, path: "durationDays"},
		{name: "no duration or end", req: challenge.CreateChallengeRequest{StartDate: "2024-01-01"}, path: "durationDays"},
		{name: "longer than a year", req: challenge.CreateChallengeRequest{StartDate: "2024-01-01", EndDate: "2025-06-01"}, path: "durationDays"},
		{name: "bad start", req: challenge.CreateChallengeRequest{StartDate: "01/01/2024", DurationDays: 7}, path: "startDate"},
		{name: "bad end", req: challenge.CreateChallengeRequest{StartDate: "2024-01-01", EndDate: "soon"}, path: "endDate"},
		{name: "custom without interval", req: challenge.CreateChallengeRequest{StartDate: "2024-01-01", DurationDays: 7, Frequency: "custom"}, path: "customFrequencyDays"},
		{name: "custom with zero interval", req: challenge.CreateChallengeRequest{StartDate: "2024-01-01", DurationDays: 7, Frequency: "custom", CustomFrequencyDays: &every}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			groupID, userID := uuid.New(), uuid.New()
			mock.ExpectQuery(`FROM groups g`).WithArgs(groupID).WillReturnRows(groupRow(groupID, userID, nil))
			mock.ExpectQuery(`FROM group_members m WHERE`).WithArgs(groupID, userID).
				WillReturnRows(memberRow(testMember(groupID, userID, "Ana")))

			req := tt.req
			req.GroupID = groupID.String()
			req.Title = "Read"
			_, err := newChallenges(mock).CreateChallenge(context.Background(), userID, &req)

			appErr, ok := apperr.As(err)
			require.True(t, ok, "expected an AppError, got %v", err)
			assert.Equal(t, http.StatusBadRequest, appErr.Status)
			if tt.path != "" {
				require.Len(t, appErr.Details, 1)
				assert.Equal(t, tt.path, appErr.Details[0].Path)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestChallengeService_UpdateNeverTouchesTasks(t *testing.T) {
	mock := newMock(t)
	f := newChallengeFixture()
	userID := uuid.New()
	member := testMember(f.groupID, userID, "Ana")
	day1, day2 := uuid.New(), uuid.New()
	tasks := func() *pgxmock.Rows {
		return pgxmock.NewRows(taskCols).
			AddRow(day1, f.id, 1, "Day 1", schedule.DefaultTaskDescription).
			AddRow(day2, f.id, 2, "Day 2", schedule.DefaultTaskDescription)
	}

	expectChallengeLoad(mock, f, tasks(), noCompletions())
	mock.ExpectQuery(`FROM group_members m WHERE`).WithArgs(f.groupID, userID).WillReturnRows(memberRow(member))

	title := "Read more"
	mock.ExpectExec(`UPDATE challenges\s+SET title = COALESCE\(\$2, title\)`).
		WithArgs(f.id, &title, (*string)(nil), (*string)(nil), false, (*string)(nil), (*string)(nil)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	updated := f
	updated.title = title
	expectChallengeLoad(mock, updated, tasks(), noCompletions())
	mock.ExpectQuery(`FROM group_members m WHERE`).WithArgs(f.groupID, userID).WillReturnRows(memberRow(member))

	c, err := newChallenges(mock).UpdateChallenge(context.Background(), userID, f.id,
		&challenge.UpdateChallengeRequest{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, title, c.Title)
	require.Len(t, c.Tasks, 2)
	assert.Equal(t, day1, c.Tasks[0].ID)
	assert.Equal(t, day2, c.Tasks[1].ID)
	assert.Equal(t, challenge.StatusActive, c.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChallengeService_UpdateClearsDeadline(t *testing.T) {
	mock := newMock(t)
	f := newChallengeFixture()
	userID := uuid.New()
	member := testMember(f.groupID, userID, "Ana")

	expectChallengeLoad(mock, f, pgxmock.NewRows(taskCols), noCompletions())
	mock.ExpectQuery(`FROM group_members m WHERE`).WithArgs(f.groupID, userID).WillReturnRows(memberRow(member))
	mock.ExpectExec(`UPDATE challenges`).
		WithArgs(f.id, (*string)(nil), (*string)(nil), (*string)(nil), true, (*string)(nil), (*string)(nil)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	expectChallengeLoad(mock, f, pgxmock.NewRows(taskCols), noCompletions())
	mock.ExpectQuery(`FROM group_members m WHERE`).WithArgs(f.groupID, userID).WillReturnRows(memberRow(member))

	empty := ""
	_, err := newChallenges(mock).UpdateChallenge(context.Background(), userID, f.id,
		&challenge.UpdateChallengeRequest{DeadlineTime: &empty})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChallengeService_GetReportsFinishedWindow(t *testing.T) {
	mock := newMock(t)
	f := newChallengeFixture()
	f.start = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f.duration = 7
	userID := uuid.New()

	expectChallengeLoad(mock, f, pgxmock.NewRows(taskCols), noCompletions())
	mock.ExpectQuery(`FROM group_members m WHERE`).WithArgs(f.groupID, userID).
		WillReturnRows(memberRow(testMember(f.groupID, userID, "Ana")))

	c, err := newChallenges(mock).GetChallenge(context.Background(), userID, f.id)
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusFinished, c.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChallengeService_DeletePermissions(t *testing.T) {
	tests := []struct {
		name      string
		role      group.Role
		isCreator bool
		allowed   bool
	}{
		{name: "creator", role: group.RoleMember, isCreator: true, allowed: true},
		{name: "admin", role: group.RoleAdmin, allowed: true},
		{name: "other member", role: group.RoleMember, allowed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			f := newChallengeFixture()
			userID := uuid.New()
			if tt.isCreator {
				f.createdBy = userID
			}
			member := testMember(f.groupID, userID, "Ana")
			member.Role = tt.role

			expectChallengeLoad(mock, f, pgxmock.NewRows(taskCols), noCompletions())
			mock.ExpectQuery(`FROM group_members m WHERE`).WithArgs(f.groupID, userID).WillReturnRows(memberRow(member))
			if tt.allowed {
				mock.ExpectExec(`DELETE FROM challenges WHERE id = \$1`).WithArgs(f.id).
					WillReturnResult(pgxmock.NewResult("DELETE", 1))
			}

			err := newChallenges(mock).DeleteChallenge(context.Background(), userID, f.id)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				appErr, ok := apperr.As(err)
				require.True(t, ok)
				assert.Equal(t, http.StatusForbidden, appErr.Status)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
