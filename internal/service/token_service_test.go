package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cemetery-api/internal/models"
	appErrors "github.com/noah-isme/cemetery-api/pkg/errors"
)

func TestTokenServiceRoundTrip(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "secret", Issuer: "auth", Audience: "authenticated"}, nil)

	token, err := svc.Sign(models.Principal{UserID: "user-1", Email: "a@example.com", Role: "admin"}, time.Minute)
	require.NoError(t, err)

	principal, err := svc.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", principal.UserID)
	assert.Equal(t, models.RoleAdmin, principal.Role)
	assert.True(t, principal.IsAdmin())
}

func TestTokenServiceRejects(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "secret", Audience: "authenticated"}, nil)

	expired, err := svc.Sign(models.Principal{UserID: "user-1"}, -time.Minute)
	require.NoError(t, err)
	_, err = svc.Authenticate(expired)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrUnauthorized.Code))

	other := NewTokenService(TokenConfig{Secret: "other", Audience: "authenticated"}, nil)
	forged, err := other.Sign(models.Principal{UserID: "user-1"}, time.Minute)
	require.NoError(t, err)
	_, err = svc.Authenticate(forged)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrUnauthorized.Code))

	wrongAudience := NewTokenService(TokenConfig{Secret: "secret", Audience: "service"}, nil)
	token, err := wrongAudience.Sign(models.Principal{UserID: "user-1"}, time.Minute)
	require.NoError(t, err)
	_, err = svc.Authenticate(token)
	assert.Error(t, err)

	unknownRole, err := svc.Sign(models.Principal{UserID: "user-1", Role: "janitor"}, time.Minute)
	require.NoError(t, err)
	principal, err := svc.Authenticate(unknownRole)
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, principal.Role)
}
