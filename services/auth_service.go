package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/time/rate"

	"habitHeroAPI/internal/apperr"
	"habitHeroAPI/internal/database"
	"habitHeroAPI/internal/telegram"
	"habitHeroAPI/internal/types/user"
	"habitHeroAPI/utils"
)

type AuthService struct {
	db        database.DB
	messenger telegram.Messenger
	secret    string
	codeTTL   time.Duration
	loginURL  string
	now       Clock

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewAuthService(db database.DB, messenger telegram.Messenger, secret string, codeTTL time.Duration, loginURL string) *AuthService {
	return &AuthService{
		db:        db,
		messenger: messenger,
		secret:    secret,
		codeTTL:   codeTTL,
		loginURL:  loginURL,
		now:       time.Now,
		limiters:  make(map[string]*rate.Limiter),
	}
}

// SetClock replaces the time source.
func (s *AuthService) SetClock(now Clock) {
	s.now = now
}

// errCodeDelivery marks a login code that was stored but could not be sent.
var errCodeDelivery = errors.New("send login code")

const userColumns = `id, telegram_id, chat_id, username, first_name, last_name, photo_url, email, is_verified, created_at, updated_at`

func scanUser(row pgx.Row) (*user.User, error) {
	u := &user.User{}
	err := row.Scan(&u.ID, &u.TelegramID, &u.ChatID, &u.Username, &u.FirstName, &u.LastName,
		&u.PhotoURL, &u.Email, &u.IsVerified, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (s *AuthService) GetUserByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *AuthService) GetUserByTelegramID(ctx context.Context, telegramID string) (*user.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE telegram_id = $1`, telegramID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by telegram id: %w", err)
	}
	return u, nil
}

// UpsertTelegramUser creates the user on first contact and refreshes the
// chat id and names on every later one.
func (s *AuthService) UpsertTelegramUser(ctx context.Context, p user.TelegramProfile) (*user.User, error) {
	query := `
		INSERT INTO users (telegram_id, chat_id, username, first_name, last_name)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (telegram_id) DO UPDATE
		SET chat_id = EXCLUDED.chat_id,
		    username = EXCLUDED.username,
		    first_name = EXCLUDED.first_name,
		    last_name = EXCLUDED.last_name,
		    updated_at = NOW()
		RETURNING ` + userColumns

	u, err := scanUser(s.db.QueryRow(ctx, query, p.TelegramID, p.ChatID, p.Username, p.FirstName, p.LastName))
	if err != nil {
		return nil, fmt.Errorf("upsert telegram user: %w", err)
	}
	return u, nil
}

// IssueCode stores a fresh code for u, replacing any pending one, and sends it over Telegram.
func (s *AuthService) IssueCode(ctx context.Context, u *user.User) error {
	code, err := utils.GenerateLoginCode()
	if err != nil {
		return err
	}

	_, err = s.db.Exec(ctx, `
		UPDATE users SET verification_code = $2, verification_sent_at = $3, updated_at = NOW()
		WHERE id = $1`, u.ID, code, s.now())
	if err != nil {
		return fmt.Errorf("store login code: %w", err)
	}

	if u.ChatID == nil {
		slog.Warn("Login code issued for user without chat", "user_id", u.ID)
		return nil
	}

	text := fmt.Sprintf("🔐 Your HabitHero login code: <code>%s</code>\nIt expires in %s. Never share it with anyone.",
		html.EscapeString(code), humanDuration(s.codeTTL))
	var markup any
	if s.loginURL != "" {
		markup = telegram.URLButton("Open HabitHero", s.loginURL)
	}
	if err := s.messenger.SendMessage(ctx, *u.ChatID, text, markup); err != nil {
		return fmt.Errorf("%w: %w", errCodeDelivery, err)
	}
	return nil
}

func (s *AuthService) allowCode(telegramID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.limiters[telegramID]
	if !ok {
		l = rate.NewLimiter(rate.Every(30*time.Second), 3)
		s.limiters[telegramID] = l
	}
	return l.Allow()
}

// RequestCode issues a code for a known Telegram id. Unknown ids, throttled
// requests and failed deliveries all succeed silently so the endpoint never
// reveals which ids exist.
func (s *AuthService) RequestCode(ctx context.Context, telegramID string) error {
	if !s.allowCode(telegramID) {
		slog.Info("Login code request throttled", "telegram_id", telegramID)
		return nil
	}

	u, err := s.GetUserByTelegramID(ctx, telegramID)
	if errors.Is(err, apperr.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	err = s.IssueCode(ctx, u)
	if errors.Is(err, errCodeDelivery) {
		slog.Warn("Login code delivery failed", "user_id", u.ID, "error", err)
		return nil
	}
	return err
}

// VerifyCode checks code against the pending one. Wrong and expired codes fail
// the same way. Success marks the user verified, consumes the code and
// returns a session token.
func (s *AuthService) VerifyCode(ctx context.Context, telegramID, code string) (*user.AuthResponse, error) {
	var (
		stored *string
		sentAt *time.Time
	)
	u := &user.User{}
	err := s.db.QueryRow(ctx, `SELECT `+userColumns+`, verification_code, verification_sent_at
		FROM users WHERE telegram_id = $1`, telegramID).Scan(
		&u.ID, &u.TelegramID, &u.ChatID, &u.Username, &u.FirstName, &u.LastName,
		&u.PhotoURL, &u.Email, &u.IsVerified, &u.CreatedAt, &u.UpdatedAt, &stored, &sentAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrInvalidCode
	}
	if err != nil {
		return nil, fmt.Errorf("load pending code: %w", err)
	}

	if stored == nil || sentAt == nil || !utils.CodesEqual(*stored, code) {
		return nil, apperr.ErrInvalidCode
	}
	if s.now().Sub(*sentAt) > s.codeTTL {
		return nil, apperr.ErrInvalidCode
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE users
		SET is_verified = TRUE, verification_code = NULL, verification_sent_at = NULL, updated_at = NOW()
		WHERE id = $1 AND verification_code = $2`, u.ID, code)
	if err != nil {
		return nil, fmt.Errorf("consume login code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// consumed by a concurrent verify
		return nil, apperr.ErrInvalidCode
	}
	u.IsVerified = true

	token, err := utils.GenerateSessionToken(s.secret, u.ID, u.TelegramID, s.now(), utils.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}
	return &user.AuthResponse{Token: token, User: u}, nil
}

func (s *AuthService) GetMe(ctx context.Context, userID uuid.UUID) (*user.Me, error) {
	u, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT g.id, g.name, m.role, m.display_name
		FROM group_members m
		JOIN groups g ON g.id = m.group_id
		WHERE m.user_id = $1
		ORDER BY m.joined_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	me := &user.Me{User: u, Groups: []user.Membership{}}
	for rows.Next() {
		var m user.Membership
		if err := rows.Scan(&m.GroupID, &m.Name, &m.Role, &m.DisplayName); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		me.Groups = append(me.Groups, m)
	}
	return me, rows.Err()
}

// UpdateProfile patches the fields present in req. Missing and empty fields
// keep their stored value.
func (s *AuthService) UpdateProfile(ctx context.Context, userID uuid.UUID, req *user.UpdateProfileRequest) (*user.User, error) {
	query := `
		UPDATE users
		SET email = COALESCE(NULLIF($2, ''), email),
		    first_name = COALESCE(NULLIF($3, ''), first_name),
		    last_name = COALESCE(NULLIF($4, ''), last_name),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	u, err := scanUser(s.db.QueryRow(ctx, query, userID, req.Email, req.FirstName, req.LastName))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return u, nil
}

func humanDuration(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		if d == time.Minute {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	}
	return fmt.Sprintf("%d seconds", int(d/time.Second))
}
