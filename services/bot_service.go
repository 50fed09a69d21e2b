package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"habitHeroAPI/internal/apperr"
	"habitHeroAPI/internal/database"
	"habitHeroAPI/internal/schedule"
	"habitHeroAPI/internal/telegram"
	"habitHeroAPI/internal/types/user"
)

const callbackVerifyStart = "verify_start"

// BotService handles updates delivered to the Telegram webhook.
type BotService struct {
	db        database.DB
	auth      *AuthService
	messenger telegram.Messenger
	now       Clock
}

func NewBotService(db database.DB, auth *AuthService, messenger telegram.Messenger) *BotService {
	return &BotService{db: db, auth: auth, messenger: messenger, now: time.Now}
}

func (b *BotService) SetClock(now Clock) {
	b.now = now
}

func (b *BotService) Handle(ctx context.Context, u *telegram.Update) error {
	switch {
	case u.Message != nil && u.Message.From != nil && u.Message.Chat != nil:
		return b.handleMessage(ctx, u.Message)
	case u.Callback != nil && u.Callback.From != nil:
		return b.handleCallback(ctx, u.Callback)
	}
	return nil
}

func (b *BotService) handleMessage(ctx context.Context, m *telegram.Message) error {
	chat := m.Chat.ID
	cmd, _ := m.Command()

	switch cmd {
	case "/start":
		u, err := b.upsert(ctx, m.From, chat)
		if err != nil {
			return err
		}
		greeting := fmt.Sprintf("👋 Welcome to HabitHero, %s! Here is your login code.", html.EscapeString(u.DisplayName()))
		if err := b.messenger.SendMessage(ctx, chat, greeting, nil); err != nil {
			return err
		}
		return b.auth.IssueCode(ctx, u)

	case "/verify":
		u, err := b.upsert(ctx, m.From, chat)
		if err != nil {
			return err
		}
		if u.IsVerified {
			return b.messenger.SendMessage(ctx, chat, "✅ Your account is already verified. Send /start for a new login code.", nil)
		}
		return b.auth.IssueCode(ctx, u)

	case "/status":
		return b.sendStatus(ctx, m.From, chat)

	case "/help":
		return b.messenger.SendMessage(ctx, chat, helpText, nil)

	default:
		return b.messenger.SendMessage(ctx, chat, "I don't know that one. Try /help", nil)
	}
}

func (b *BotService) handleCallback(ctx context.Context, q *telegram.CallbackQuery) error {
	if q.Data != callbackVerifyStart || q.Message == nil || q.Message.Chat == nil {
		return b.messenger.AnswerCallback(ctx, q.ID, "")
	}

	u, err := b.upsert(ctx, q.From, q.Message.Chat.ID)
	if err != nil {
		return err
	}
	if err := b.auth.IssueCode(ctx, u); err != nil {
		return err
	}
	return b.messenger.AnswerCallback(ctx, q.ID, "Code sent")
}

func (b *BotService) upsert(ctx context.Context, from *telegram.User, chat int64) (*user.User, error) {
	return b.auth.UpsertTelegramUser(ctx, user.TelegramProfile{
		TelegramID: from.IDString(),
		ChatID:     chat,
		Username:   from.Username,
		FirstName:  from.FirstName,
		LastName:   from.LastName,
	})
}

const helpText = `<b>HabitHero bot</b>
/start - get a login code
/verify - verify your account
/status - your groups and strikes
/help - this message`

type statusLine struct {
	GroupName        string
	Role             string
	Strikes          int
	ActiveChallenges int
	JoinedAt         time.Time
}

func (b *BotService) sendStatus(ctx context.Context, from *telegram.User, chat int64) error {
	u, err := b.auth.GetUserByTelegramID(ctx, from.IDString())
	if errors.Is(err, apperr.ErrUserNotFound) {
		return b.messenger.SendMessage(ctx, chat, "You're not registered yet. Send /start first.", nil)
	}
	if err != nil {
		return err
	}

	rows, err := b.db.Query(ctx, `
		SELECT g.name, m.role, m.strikes,
		       (SELECT COUNT(*) FROM challenges c WHERE c.group_id = g.id AND c.status = 'active'),
		       m.joined_at
		FROM group_members m
		JOIN groups g ON g.id = m.group_id
		WHERE m.user_id = $1
		ORDER BY m.joined_at`, u.ID)
	if err != nil {
		return fmt.Errorf("load status: %w", err)
	}
	defer rows.Close()

	var lines []statusLine
	for rows.Next() {
		var l statusLine
		if err := rows.Scan(&l.GroupName, &l.Role, &l.Strikes, &l.ActiveChallenges, &l.JoinedAt); err != nil {
			return fmt.Errorf("scan status: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	slog.Debug("Bot status requested", "user_id", u.ID, "groups", len(lines))
	return b.messenger.SendMessage(ctx, chat, statusText(u, lines, b.now()), nil)
}

func statusText(u *user.User, lines []statusLine, now time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 <b>%s</b>", html.EscapeString(u.DisplayName()))
	if !u.IsVerified {
		sb.WriteString(" (not verified)")
	}
	sb.WriteString("\n")

	if len(lines) == 0 {
		sb.WriteString("You're not in any group yet.")
		return sb.String()
	}
	for _, l := range lines {
		fmt.Fprintf(&sb, "\n<b>%s</b> · %s\nStrikes: %d · Active challenges: %d · Joined %s\n",
			html.EscapeString(l.GroupName), l.Role, l.Strikes, l.ActiveChallenges, schedule.FriendlyDate(l.JoinedAt.In(now.Location()), now))
	}
	return sb.String()
}
