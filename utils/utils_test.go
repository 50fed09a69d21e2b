package utils

import (
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionTokenRoundTrip(t *testing.T) {
	userID := uuid.New()
	token, err := GenerateSessionToken("s3cret", userID, "777", time.Now(), SessionTTL)
	require.NoError(t, err)

	claims, err := ParseSessionToken("s3cret", "Bearer "+token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, "777", claims.TelegramID)
	assert.WithinDuration(t, time.Now().Add(SessionTTL), claims.ExpiresAt.Time, time.Minute)
}

func TestSessionTokenRejects(t *testing.T) {
	userID := uuid.New()

	token, err := GenerateSessionToken("s3cret", userID, "777", time.Now(), SessionTTL)
	require.NoError(t, err)
	_, err = ParseSessionToken("other", token)
	assert.Error(t, err, "wrong secret")

	expired, err := GenerateSessionToken("s3cret", userID, "777", time.Now().Add(-2*time.Hour), time.Hour)
	require.NoError(t, err)
	_, err = ParseSessionToken("s3cret", expired)
	assert.Error(t, err, "expired")

	_, err = ParseSessionToken("s3cret", "")
	assert.Error(t, err, "empty")
}

func TestGenerateLoginCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := GenerateLoginCode()
		require.NoError(t, err)
		assert.Len(t, code, LoginCodeLength)
		assert.Regexp(t, `^\d{6}$`, code)
	}
	assert.True(t, CodesEqual("012345", "012345"))
	assert.False(t, CodesEqual("012345", "012346"))
}

func TestParsePagination(t *testing.T) {
	limit, offset := ParsePagination(url.Values{})
	assert.Equal(t, 50, limit)
	assert.Equal(t, 0, offset)

	limit, offset = ParsePagination(url.Values{"limit": {"500"}, "offset": {"20"}})
	assert.Equal(t, 100, limit)
	assert.Equal(t, 20, offset)

	limit, offset = ParsePagination(url.Values{"limit": {"0"}, "offset": {"-3"}})
	assert.Equal(t, 1, limit)
	assert.Equal(t, 0, offset)
}
