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
	"habitHeroAPI/internal/consensus"
	"habitHeroAPI/internal/database"
	"habitHeroAPI/internal/penalty"
	"habitHeroAPI/internal/types/activity"
	"habitHeroAPI/internal/types/challenge"
	"habitHeroAPI/internal/types/group"
)

type GroupService struct {
	db  database.DB
	now Clock
}

func NewGroupService(db database.DB) *GroupService {
	return &GroupService{db: db, now: time.Now}
}

func (s *GroupService) SetClock(now Clock) {
	s.now = now
}

const groupColumns = `g.id, g.name, g.description, g.icon, g.theme, g.created_by, g.delete_approvals, g.created_at, g.updated_at,
	pc.threshold, pc.description`

func scanGroup(row pgx.Row, g *group.Group) error {
	var (
		threshold *int
		ruleDesc  *string
	)
	err := row.Scan(&g.ID, &g.Name, &g.Description, &g.Icon, &g.Theme, &g.CreatedBy, &g.DeleteApprovals,
		&g.CreatedAt, &g.UpdatedAt, &threshold, &ruleDesc)
	if err != nil {
		return err
	}
	if threshold != nil {
		g.PenaltyConfig = &penalty.Rule{Threshold: *threshold}
		if ruleDesc != nil {
			g.PenaltyConfig.Description = *ruleDesc
		}
	}
	if g.DeleteApprovals == nil {
		g.DeleteApprovals = []uuid.UUID{}
	}
	return nil
}

func loadGroup(ctx context.Context, q database.Querier, groupID uuid.UUID) (*group.Group, error) {
	g := &group.Group{}
	err := scanGroup(q.QueryRow(ctx, `
		SELECT `+groupColumns+`
		FROM groups g
		LEFT JOIN penalty_configs pc ON pc.group_id = g.id
		WHERE g.id = $1`, groupID), g)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load group: %w", err)
	}
	return g, nil
}

// CreateGroup inserts the group and makes the creator its admin member.
func (s *GroupService) CreateGroup(ctx context.Context, userID uuid.UUID, req *group.CreateGroupRequest) (*group.Detail, error) {
	icon := strings.TrimSpace(req.Icon)
	if icon == "" {
		icon = group.DefaultIcon
	}
	theme := req.Theme
	if theme == "" {
		theme = group.DefaultTheme
	}

	var detail *group.Detail
	err := database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		var displayName, firstName, username string
		err := tx.QueryRow(ctx, `SELECT first_name, username FROM users WHERE id = $1`, userID).Scan(&firstName, &username)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("load creator: %w", err)
		}
		displayName = creatorDisplayName(firstName, username)

		var groupID uuid.UUID
		err = tx.QueryRow(ctx, `
			INSERT INTO groups (name, description, icon, theme, created_by)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			strings.TrimSpace(req.Name), req.Description, icon, theme, userID).Scan(&groupID)
		if err != nil {
			return fmt.Errorf("insert group: %w", err)
		}

		if req.PenaltyConfig != nil {
			if _, err := tx.Exec(ctx, `
				INSERT INTO penalty_configs (group_id, threshold, description) VALUES ($1, $2, $3)`,
				groupID, req.PenaltyConfig.Threshold, req.PenaltyConfig.Description); err != nil {
				return fmt.Errorf("insert penalty config: %w", err)
			}
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO group_members (group_id, user_id, display_name, role) VALUES ($1, $2, $3, $4)`,
			groupID, userID, displayName, group.RoleAdmin); err != nil {
			return fmt.Errorf("insert admin member: %w", err)
		}

		g, err := loadGroup(ctx, tx, groupID)
		if err != nil {
			return err
		}
		members, err := listMembers(ctx, tx, groupID, g.PenaltyConfig)
		if err != nil {
			return err
		}
		detail = &group.Detail{Group: *g, Members: members, Challenges: []*challenge.Challenge{}}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func creatorDisplayName(firstName, username string) string {
	name := firstName
	if name == "" {
		name = username
	}
	if name == "" {
		return "Admin"
	}
	if r := []rune(name); len(r) > 30 {
		return string(r[:30])
	}
	return name
}

func (s *GroupService) ListGroups(ctx context.Context, userID uuid.UUID) ([]*group.Summary, error) {
	query := `
		SELECT ` + groupColumns + `, m.role, m.display_name,
			(SELECT COUNT(*) FROM group_members gm WHERE gm.group_id = g.id),
			(SELECT COUNT(*) FROM challenges c WHERE c.group_id = g.id AND c.status = 'active'
				AND c.start_date + c.duration_days > CURRENT_DATE)
		FROM group_members m
		JOIN groups g ON g.id = m.group_id
		LEFT JOIN penalty_configs pc ON pc.group_id = g.id
		WHERE m.user_id = $1
		ORDER BY g.created_at DESC`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	out := []*group.Summary{}
	for rows.Next() {
		sm := &group.Summary{}
		var (
			threshold *int
			ruleDesc  *string
		)
		g := &sm.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.Icon, &g.Theme, &g.CreatedBy, &g.DeleteApprovals,
			&g.CreatedAt, &g.UpdatedAt, &threshold, &ruleDesc,
			&sm.Role, &sm.DisplayName, &sm.MemberCount, &sm.ActiveChallenges); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		if threshold != nil {
			g.PenaltyConfig = &penalty.Rule{Threshold: *threshold}
			if ruleDesc != nil {
				g.PenaltyConfig.Description = *ruleDesc
			}
		}
		if g.DeleteApprovals == nil {
			g.DeleteApprovals = []uuid.UUID{}
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}

func (s *GroupService) GetGroup(ctx context.Context, userID, groupID uuid.UUID) (*group.Detail, error) {
	g, err := loadGroup(ctx, s.db, groupID)
	if err != nil {
		return nil, err
	}
	if _, err := requireMember(ctx, s.db, groupID, userID); err != nil {
		return nil, err
	}

	members, err := listMembers(ctx, s.db, groupID, g.PenaltyConfig)
	if err != nil {
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
	return &group.Detail{Group: *g, Members: members, Challenges: challenges}, nil
}

// UpdateGroup patches settings; only admins may change them.
func (s *GroupService) UpdateGroup(ctx context.Context, userID, groupID uuid.UUID, req *group.UpdateGroupRequest) (*group.Group, error) {
	if _, err := loadGroup(ctx, s.db, groupID); err != nil {
		return nil, err
	}
	m, err := requireMember(ctx, s.db, groupID, userID)
	if err != nil {
		return nil, err
	}
	if m.Role != group.RoleAdmin {
		return nil, apperr.ErrAdminOnly
	}

	var updated *group.Group
	err = database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			UPDATE groups
			SET name = COALESCE($2, name),
			    description = COALESCE($3, description),
			    icon = COALESCE($4, icon),
			    theme = COALESCE($5, theme),
			    updated_at = NOW()
			WHERE id = $1`,
			groupID, req.Name, req.Description, req.Icon, req.Theme); err != nil {
			return fmt.Errorf("update group: %w", err)
		}

		if req.PenaltyConfig != nil {
			if _, err := tx.Exec(ctx, `
				INSERT INTO penalty_configs (group_id, threshold, description) VALUES ($1, $2, $3)
				ON CONFLICT (group_id) DO UPDATE SET threshold = EXCLUDED.threshold, description = EXCLUDED.description`,
				groupID, req.PenaltyConfig.Threshold, req.PenaltyConfig.Description); err != nil {
				return fmt.Errorf("upsert penalty config: %w", err)
			}
		}

		updated, err = loadGroup(ctx, tx, groupID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *GroupService) AddMember(ctx context.Context, userID, groupID uuid.UUID, req *group.AddMemberRequest) (*group.Member, error) {
	if _, err := loadGroup(ctx, s.db, groupID); err != nil {
		return nil, err
	}
	if _, err := requireMember(ctx, s.db, groupID, userID); err != nil {
		return nil, err
	}
	newUserID, err := uuid.Parse(req.UserID)
	if err != nil {
		return nil, apperr.BadRequest("invalid_id", "userId must be a valid UUID")
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, newUserID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if !exists {
		return nil, apperr.ErrUserNotFound
	}

	var member *group.Member
	err = database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		m, err := scanMember(tx.QueryRow(ctx, `
			INSERT INTO group_members AS m (group_id, user_id, display_name, avatar, role)
			VALUES ($1, $2, $3, $4, 'member')
			ON CONFLICT (group_id, user_id) DO NOTHING
			RETURNING `+memberColumns,
			groupID, newUserID, strings.TrimSpace(req.DisplayName), req.Avatar))
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.Conflict("already_member", "User is already a member of this group")
		}
		if err != nil {
			return fmt.Errorf("insert member: %w", err)
		}
		member = m
		return logActivity(ctx, tx, groupID, nil, &m.ID, activity.ActionMemberJoined, memberJoinedText(m.DisplayName))
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

func (s *GroupService) ListMembers(ctx context.Context, userID, groupID uuid.UUID) ([]*group.Member, error) {
	g, err := loadGroup(ctx, s.db, groupID)
	if err != nil {
		return nil, err
	}
	if _, err := requireMember(ctx, s.db, groupID, userID); err != nil {
		return nil, err
	}
	return listMembers(ctx, s.db, groupID, g.PenaltyConfig)
}

// UpdateMyProfile changes the caller's per-group display name and avatar.
func (s *GroupService) UpdateMyProfile(ctx context.Context, userID, groupID uuid.UUID, req *group.UpdateMemberProfileRequest) (*group.Member, error) {
	m, err := scanMember(s.db.QueryRow(ctx, `
		UPDATE group_members AS m SET display_name = $3, avatar = $4
		WHERE m.group_id = $1 AND m.user_id = $2
		RETURNING `+memberColumns,
		groupID, userID, strings.TrimSpace(req.DisplayName), req.Avatar))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotMember
	}
	if err != nil {
		return nil, fmt.Errorf("update member profile: %w", err)
	}
	return m, nil
}

// AdjustStrikes moves a member's strike count by +1 or -1. Any member may do
// it for any other member; the count never drops below zero.
func (s *GroupService) AdjustStrikes(ctx context.Context, userID, groupID, memberID uuid.UUID, delta int) (*group.Member, error) {
	if delta != 1 && delta != -1 {
		return nil, apperr.BadRequest("invalid_delta", "delta must be 1 or -1")
	}
	g, err := loadGroup(ctx, s.db, groupID)
	if err != nil {
		return nil, err
	}
	actor, err := requireMember(ctx, s.db, groupID, userID)
	if err != nil {
		return nil, err
	}

	var member *group.Member
	err = database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		m, err := scanMember(tx.QueryRow(ctx, `
			SELECT `+memberColumns+` FROM group_members m
			WHERE m.id = $1 AND m.group_id = $2
			FOR UPDATE`, memberID, groupID))
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("Member not found")
		}
		if err != nil {
			return fmt.Errorf("load member: %w", err)
		}

		m.Strikes = penalty.AdjustStrikes(m.Strikes, delta)
		if _, err := tx.Exec(ctx, `UPDATE group_members SET strikes = $2 WHERE id = $1`, m.ID, m.Strikes); err != nil {
			return fmt.Errorf("adjust strikes: %w", err)
		}
		if g.PenaltyConfig != nil {
			m.PendingPenalties = penalty.Pending(m.Strikes, g.PenaltyConfig.Threshold, m.PenaltiesPaid)
		}
		member = m

		verb := "added a strike to"
		if delta < 0 {
			verb = "removed a strike from"
		}
		return logActivity(ctx, tx, groupID, nil, &m.ID, activity.ActionStrikeChanged,
			fmt.Sprintf("%s %s %s (%d total)", actor.DisplayName, verb, m.DisplayName, m.Strikes))
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

// PayPenalty records one paid penalty. It fails when nothing is pending.
func (s *GroupService) PayPenalty(ctx context.Context, userID, groupID, memberID uuid.UUID) (*group.Member, error) {
	g, err := loadGroup(ctx, s.db, groupID)
	if err != nil {
		return nil, err
	}
	if _, err := requireMember(ctx, s.db, groupID, userID); err != nil {
		return nil, err
	}
	if g.PenaltyConfig == nil {
		return nil, apperr.BadRequest("no_penalty_rule", "This group has no penalty rule")
	}

	var member *group.Member
	err = database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		m, err := scanMember(tx.QueryRow(ctx, `
			SELECT `+memberColumns+` FROM group_members m
			WHERE m.id = $1 AND m.group_id = $2
			FOR UPDATE`, memberID, groupID))
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("Member not found")
		}
		if err != nil {
			return fmt.Errorf("load member: %w", err)
		}

		paid, err := penalty.Pay(m.Strikes, g.PenaltyConfig.Threshold, m.PenaltiesPaid)
		if errors.Is(err, penalty.ErrNothingPending) {
			return apperr.BadRequest("no_pending_penalty", "No pending penalty to pay")
		}

		if _, err := tx.Exec(ctx, `UPDATE group_members SET penalties_paid = $2 WHERE id = $1`, m.ID, paid); err != nil {
			return fmt.Errorf("record penalty payment: %w", err)
		}
		m.PenaltiesPaid = paid
		m.PendingPenalties = penalty.Pending(m.Strikes, g.PenaltyConfig.Threshold, paid)
		member = m

		return logActivity(ctx, tx, groupID, nil, &m.ID, activity.ActionPenaltyPaid,
			fmt.Sprintf("%s paid a penalty: %s", m.DisplayName, g.PenaltyConfig.Description))
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

// VoteDelete toggles the caller's deletion vote. Once every current member has
// approved, the group and everything under it is deleted in the same
// transaction that recorded the last vote.
func (s *GroupService) VoteDelete(ctx context.Context, userID, groupID uuid.UUID) (*group.DeleteVoteResult, error) {
	var result *group.DeleteVoteResult
	err := database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		var approvals []uuid.UUID
		err := tx.QueryRow(ctx, `SELECT delete_approvals FROM groups WHERE id = $1 FOR UPDATE`, groupID).Scan(&approvals)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.ErrGroupNotFound
		}
		if err != nil {
			return fmt.Errorf("lock group: %w", err)
		}

		rows, err := tx.Query(ctx, `SELECT user_id FROM group_members WHERE group_id = $1`, groupID)
		if err != nil {
			return fmt.Errorf("list member ids: %w", err)
		}
		memberIDs, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
		if err != nil {
			return fmt.Errorf("scan member ids: %w", err)
		}

		isMember := false
		for _, id := range memberIDs {
			if id == userID {
				isMember = true
				break
			}
		}
		if !isMember {
			return apperr.ErrNotMember
		}

		next, voted := consensus.Toggle(consensus.Retain(approvals, memberIDs), userID)
		result = &group.DeleteVoteResult{Voted: voted, Approvals: next, Required: len(memberIDs)}

		if consensus.Reached(next, len(memberIDs)) {
			if _, err := tx.Exec(ctx, `DELETE FROM groups WHERE id = $1`, groupID); err != nil {
				return fmt.Errorf("delete group: %w", err)
			}
			result.Deleted = true
			return nil
		}

		if _, err := tx.Exec(ctx, `UPDATE groups SET delete_approvals = $2, updated_at = NOW() WHERE id = $1`, groupID, next); err != nil {
			return fmt.Errorf("store delete approvals: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
