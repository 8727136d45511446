package meeting

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	signer := NewLinkSigner("test-secret", "https://meet.example.com/", func() time.Time { return now })

	cid := uuid.New()
	date := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	startsAt := time.Date(2026, 3, 3, 9, 30, 0, 0, time.UTC)

	link, err := signer.Link(cid, date, "09:30", startsAt)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(link, "https://meet.example.com/interview/"))

	token := strings.TrimPrefix(link, "https://meet.example.com/interview/")
	claims, err := signer.Verify(token)
	require.NoError(t, err)

	assert.Equal(t, cid, claims.CandidateID)
	assert.Equal(t, "2026-03-03", claims.ScheduledDate)
	assert.Equal(t, "09:30", claims.ScheduledTime)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	signer := NewLinkSigner("secret-a", "https://meet.example.com", func() time.Time { return now })
	other := NewLinkSigner("secret-b", "https://meet.example.com", func() time.Time { return now })

	link, err := signer.Link(uuid.New(), now, "10:00", now.Add(24*time.Hour))
	require.NoError(t, err)

	token := strings.TrimPrefix(link, "https://meet.example.com/interview/")
	_, err = other.Verify(token)
	require.Error(t, err)
}

func TestVerifyRejectsExpired(t *testing.T) {
	issued := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	signer := NewLinkSigner("test-secret", "https://meet.example.com", func() time.Time { return issued })

	startsAt := issued.Add(2 * time.Hour)
	link, err := signer.Link(uuid.New(), issued, "12:00", startsAt)
	require.NoError(t, err)
	token := strings.TrimPrefix(link, "https://meet.example.com/interview/")

	late := NewLinkSigner("test-secret", "https://meet.example.com", func() time.Time {
		return startsAt.Add(25 * time.Hour)
	})
	_, err = late.Verify(token)
	require.Error(t, err)
}
