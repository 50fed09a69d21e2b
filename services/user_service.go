package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sahilm/fuzzy"

	"habitHeroAPI/internal/database"
	"habitHeroAPI/internal/types/user"
)

const (
	searchLimit      = 20
	searchCandidates = 1000
)

type UserService struct {
	db database.DB
}

func NewUserService(db database.DB) *UserService {
	return &UserService{db: db}
}

// searchItems implements fuzzy.Source over username and first name.
type searchItems []*user.SearchResult

func (items searchItems) Len() int { return len(items) }

func (items searchItems) String(i int) string {
	return strings.ToLower(items[i].Username + " " + items[i].FirstName)
}

// Search fuzzy-matches verified users other than the caller, best match first.
func (s *UserService) Search(ctx context.Context, userID uuid.UUID, query string) ([]*user.SearchResult, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []*user.SearchResult{}, nil
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, username, first_name, photo_url
		FROM users
		WHERE is_verified = TRUE AND id <> $1
		ORDER BY updated_at DESC
		LIMIT $2`, userID, searchCandidates)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer rows.Close()

	var items searchItems
	for rows.Next() {
		r := &user.SearchResult{}
		if err := rows.Scan(&r.ID, &r.Username, &r.FirstName, &r.PhotoURL); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	matches := fuzzy.FindFrom(q, items)
	out := make([]*user.SearchResult, 0, min(len(matches), searchLimit))
	for _, m := range matches {
		if len(out) == searchLimit {
			break
		}
		out = append(out, items[m.Index])
	}
	return out, nil
}
