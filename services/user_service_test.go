package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService_SearchRanksFuzzyMatches(t *testing.T) {
	mock := newMock(t)
	caller := uuid.New()
	ana, bob := uuid.New(), uuid.New()

	mock.ExpectQuery(`FROM users\s+WHERE is_verified = TRUE AND id <> \$1`).WithArgs(caller, searchCandidates).
		WillReturnRows(pgxmock.NewRows([]string{"id", "username", "first_name", "photo_url"}).
			AddRow(bob, "bobby", "Bob", "").
			AddRow(ana, "ana_runs", "Ana", ""))

	res, err := NewUserService(mock).Search(context.Background(), caller, "  ANA ")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, ana, res[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserService_SearchEmptyQuery(t *testing.T) {
	mock := newMock(t)

	res, err := NewUserService(mock).Search(context.Background(), uuid.New(), " ")
	require.NoError(t, err)
	assert.Empty(t, res)
	assert.NoError(t, mock.ExpectationsWereMet())
}
