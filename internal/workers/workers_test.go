package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanup(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(`UPDATE users\s+SET verification_code = NULL`).WithArgs(now.Add(-5 * time.Minute)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))
	mock.ExpectExec(`DELETE FROM notification_history`).WithArgs(now.Add(-historyRetention)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	assert.NoError(t, Cleanup(context.Background(), mock, 5*time.Minute, now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCleanupStopsOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(`UPDATE users`).WithArgs(now.Add(-time.Minute)).
		WillReturnError(errors.New("connection reset"))

	assert.ErrorContains(t, Cleanup(context.Background(), mock, time.Minute, now), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}
