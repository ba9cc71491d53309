package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenSignerRoundTrip(t *testing.T) {
	signer := NewTokenSigner(testSecret)
	now := time.Now()

	token, err := signer.Sign("session-1", "account-1", now, now.Add(time.Hour))
	require.NoError(t, err)

	claims, err := signer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "session-1", claims.ID)
	assert.Equal(t, "account-1", claims.Subject)
}

func TestTokenSignerRejects(t *testing.T) {
	signer := NewTokenSigner(testSecret)
	now := time.Now()

	foreign, err := NewTokenSigner("another-secret").Sign("s", "a", now, now.Add(time.Hour))
	require.NoError(t, err)
	_, err = signer.Parse(foreign)
	assert.Error(t, err, "token signed with another secret")

	expired, err := signer.Sign("s", "a", now.Add(-2*time.Hour), now.Add(-time.Hour))
	require.NoError(t, err)
	_, err = signer.Parse(expired)
	assert.Error(t, err, "expired token")

	_, err = signer.Parse("not-a-jwt")
	assert.Error(t, err)
}
