package user

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID         uuid.UUID `json:"id"`
	TelegramID string    `json:"telegramId"`
	ChatID     *int64    `json:"-"`
	Username   string    `json:"username"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	PhotoURL   string    `json:"photoUrl,omitempty"`
	Email      *string   `json:"email,omitempty"`
	IsVerified bool      `json:"isVerified"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// DisplayName is the name used when the user joins a group without picking one.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "":
		return u.FirstName
	case u.Username != "":
		return u.Username
	default:
		return "Admin"
	}
}

type Membership struct {
	GroupID     uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Role        string    `json:"role"`
	DisplayName string    `json:"displayName"`
}

type Me struct {
	User   *User        `json:"user"`
	Groups []Membership `json:"groups"`
}

type RequestCodeRequest struct {
	TelegramID string `json:"telegramId" validate:"required"`
}

type VerifyCodeRequest struct {
	TelegramID string `json:"telegramId" validate:"required"`
	Code       string `json:"code" validate:"required,len=6,numeric"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

type UpdateProfileRequest struct {
	Email     *string `json:"email" validate:"omitempty,email"`
	FirstName *string `json:"firstName" validate:"omitempty,max=64"`
	LastName  *string `json:"lastName" validate:"omitempty,max=64"`
}

// TelegramProfile is what the bot learns about a sender.
type TelegramProfile struct {
	TelegramID string
	ChatID     int64
	Username   string
	FirstName  string
	LastName   string
}

type SearchResult struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	FirstName string    `json:"firstName"`
	PhotoURL  string    `json:"photoUrl,omitempty"`
}
