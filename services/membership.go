package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"habitHeroAPI/internal/apperr"
	"habitHeroAPI/internal/database"
	"habitHeroAPI/internal/penalty"
	"habitHeroAPI/internal/schedule"
	"habitHeroAPI/internal/types/group"
)

// Clock returns the current time; services take one so tests can pin "today".
type Clock func() time.Time

const memberColumns = `m.id, m.group_id, m.user_id, m.display_name, m.avatar, m.role, m.strikes, m.penalties_paid, m.joined_at`

func scanMember(row pgx.Row) (*group.Member, error) {
	m := &group.Member{}
	err := row.Scan(&m.ID, &m.GroupID, &m.UserID, &m.DisplayName, &m.Avatar, &m.Role, &m.Strikes, &m.PenaltiesPaid, &m.JoinedAt)
	return m, err
}

// requireMember loads the caller's membership row, or ErrNotMember.
func requireMember(ctx context.Context, q database.Querier, groupID, userID uuid.UUID) (*group.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM group_members m WHERE m.group_id = $1 AND m.user_id = $2`

	m, err := scanMember(q.QueryRow(ctx, query, groupID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotMember
	}
	if err != nil {
		return nil, fmt.Errorf("load membership: %w", err)
	}
	return m, nil
}

func listMembers(ctx context.Context, q database.Querier, groupID uuid.UUID, rule *penalty.Rule) ([]*group.Member, error) {
	query := `SELECT ` + memberColumns + `, u.username
		FROM group_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.group_id = $1
		ORDER BY m.joined_at`

	rows, err := q.Query(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	members := []*group.Member{}
	for rows.Next() {
		m := &group.Member{}
		if err := rows.Scan(&m.ID, &m.GroupID, &m.UserID, &m.DisplayName, &m.Avatar, &m.Role,
			&m.Strikes, &m.PenaltiesPaid, &m.JoinedAt, &m.Username); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		if rule != nil {
			m.PendingPenalties = penalty.Pending(m.Strikes, rule.Threshold, m.PenaltiesPaid)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func logActivity(ctx context.Context, q database.Querier, groupID uuid.UUID, challengeID, memberID *uuid.UUID, action, description string) error {
	_, err := q.Exec(ctx, `
		INSERT INTO activity_logs (group_id, challenge_id, member_id, action, description)
		VALUES ($1, $2, $3, $4, $5)`,
		groupID, challengeID, memberID, action, description)
	if err != nil {
		return fmt.Errorf("write activity log: %w", err)
	}
	return nil
}

func memberJoinedText(name string) string {
	return fmt.Sprintf("%s joined the group", name)
}

func dateString(t time.Time) string {
	return t.Format(schedule.DateLayout)
}
