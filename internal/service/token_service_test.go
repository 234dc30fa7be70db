package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTTokenService_GenerateAndValidate(t *testing.T) {
	svc := NewJWTTokenService("test-secret-at-least-32-bytes-long!", time.Hour, "mobile-money-core")

	token, expiresAt, err := svc.Generate("agent-1")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	agentRef, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "agent-1", agentRef)
}

func TestJWTTokenService_Validate_WrongSecret(t *testing.T) {
	svc := NewJWTTokenService("secret-one-0000000000000000000000", time.Hour, "mobile-money-core")
	other := NewJWTTokenService("secret-two-0000000000000000000000", time.Hour, "mobile-money-core")

	token, _, err := svc.Generate("agent-1")
	require.NoError(t, err)

	_, err = other.Validate(token)
	assert.Error(t, err)
}

func TestJWTTokenService_Validate_Expired(t *testing.T) {
	svc := NewJWTTokenService("test-secret-at-least-32-bytes-long!", -time.Minute, "mobile-money-core")

	token, _, err := svc.Generate("agent-1")
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.Error(t, err)
}

func TestJWTTokenService_Validate_Garbage(t *testing.T) {
	svc := NewJWTTokenService("test-secret-at-least-32-bytes-long!", time.Hour, "mobile-money-core")

	_, err := svc.Validate("not-a-token")
	assert.Error(t, err)
}
