package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"habitHeroAPI/internal/types/group"
)

var testNow = time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

var memberCols = []string{"id", "group_id", "user_id", "display_name", "avatar", "role", "strikes", "penalties_paid", "joined_at"}

func memberRow(m *group.Member) *pgxmock.Rows {
	return pgxmock.NewRows(memberCols).
		AddRow(m.ID, m.GroupID, m.UserID, m.DisplayName, m.Avatar, m.Role, m.Strikes, m.PenaltiesPaid, m.JoinedAt)
}

func testMember(groupID, userID uuid.UUID, name string) *group.Member {
	return &group.Member{
		ID:          uuid.New(),
		GroupID:     groupID,
		UserID:      userID,
		DisplayName: name,
		Role:        group.RoleMember,
		JoinedAt:    testNow.Add(-48 * time.Hour),
	}
}

// fakeMessenger records every message it is asked to send.
type fakeMessenger struct {
	mu        sync.Mutex
	messages  []sentMessage
	callbacks []string
	err       error
}

type sentMessage struct {
	ChatID int64
	Text   string
	Markup any
}

func (f *fakeMessenger) SendMessage(_ context.Context, chatID int64, text string, markup any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, sentMessage{ChatID: chatID, Text: text, Markup: markup})
	return f.err
}

func (f *fakeMessenger) AnswerCallback(_ context.Context, id, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callbacks = append(f.callbacks, id)
	return f.err
}

func (f *fakeMessenger) sent() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.messages...)
}

var groupCols = []string{"id", "name", "description", "icon", "theme", "created_by", "delete_approvals",
	"created_at", "updated_at", "threshold", "penalty_description"}

// groupRow is a group row; a nil threshold means no penalty rule.
func groupRow(id, createdBy uuid.UUID, threshold *int) *pgxmock.Rows {
	var desc *string
	if threshold != nil {
		d := "Buy the team coffee"
		desc = &d
	}
	return pgxmock.NewRows(groupCols).AddRow(id, "Morning crew", "", group.DefaultIcon, group.DefaultTheme, createdBy,
		[]uuid.UUID{}, testNow, testNow, threshold, desc)
}

func listedMemberRows(members ...*group.Member) *pgxmock.Rows {
	rows := pgxmock.NewRows(append(append([]string{}, memberCols...), "username"))
	for _, m := range members {
		rows.AddRow(m.ID, m.GroupID, m.UserID, m.DisplayName, m.Avatar, m.Role, m.Strikes, m.PenaltiesPaid, m.JoinedAt,
			strings.ToLower(m.DisplayName))
	}
	return rows
}
