package token

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestJWT_SessionToken_Roundtrip(t *testing.T) {
	j := NewJWT("secret")
	sessionID := uuid.New()
	accountID := uuid.New()

	tokenString, err := j.GenerateSessionToken(sessionID, accountID, time.Hour)
	require.NoError(t, err)

	gotSession, gotAccount, err := j.ParseSessionToken(tokenString)
	require.NoError(t, err)
	require.Equal(t, sessionID, gotSession)
	require.Equal(t, accountID, gotAccount)
}

func TestJWT_WrongSecret(t *testing.T) {
	j := NewJWT("secret")
	other := NewJWT("another")

	tokenString, err := j.GenerateSessionToken(uuid.New(), uuid.New(), time.Hour)
	require.NoError(t, err)

	_, _, err = other.ParseSessionToken(tokenString)
	require.Error(t, err)
}

func TestJWT_Expired(t *testing.T) {
	j := NewJWT("secret")

	tokenString, err := j.GenerateSessionToken(uuid.New(), uuid.New(), -time.Minute)
	require.NoError(t, err)

	_, _, err = j.ParseSessionToken(tokenString)
	require.Error(t, err)
}

func TestJWT_Garbage(t *testing.T) {
	j := NewJWT("secret")
	_, _, err := j.ParseSessionToken("not-a-token")
	require.Error(t, err)
}
