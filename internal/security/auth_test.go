package security

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestAuthenticatorDisabledWithoutCredentials(t *testing.T) {
	auth := NewAuthenticator(&Config{}, testLogger())
	assert.False(t, auth.Enabled())

	auth = NewAuthenticator(&Config{APIKeys: []string{"k"}}, testLogger())
	assert.True(t, auth.Enabled())

	auth = NewAuthenticator(&Config{JWTSecret: "s"}, testLogger())
	assert.True(t, auth.Enabled())
}

func TestAuthenticateAPIKey(t *testing.T) {
	auth := NewAuthenticator(&Config{APIKeys: []string{"valid-key-1", "valid-key-2"}}, testLogger())

	info, err := auth.Authenticate("valid-key-2")
	require.NoError(t, err)
	assert.Equal(t, "api_key", info.AuthType)
	assert.NotEmpty(t, info.Subject)
	assert.NotContains(t, info.Subject, "valid-key-2", "subject must not leak the key")

	_, err = auth.Authenticate("wrong-key")
	assert.Error(t, err)

	_, err = auth.Authenticate("")
	assert.Error(t, err)
}

func TestJWTRoundTrip(t *testing.T) {
	auth := NewAuthenticator(&Config{JWTSecret: "test-secret", JWTExpiry: time.Hour}, testLogger())

	token, err := auth.GenerateJWT("intake-service", map[string]string{"env": "test"})
	require.NoError(t, err)

	info, err := auth.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, "jwt", info.AuthType)
	assert.Equal(t, "intake-service", info.Subject)
	assert.Equal(t, "test", info.Metadata["env"])
}

func TestJWTRejectsWrongSecret(t *testing.T) {
	issuer := NewAuthenticator(&Config{JWTSecret: "secret-a"}, testLogger())
	verifier := NewAuthenticator(&Config{JWTSecret: "secret-b"}, testLogger())

	token, err := issuer.GenerateJWT("svc", nil)
	require.NoError(t, err)

	_, err = verifier.ValidateJWT(token)
	assert.Error(t, err)
}

func TestJWTRejectsExpiredToken(t *testing.T) {
	auth := NewAuthenticator(&Config{JWTSecret: "secret", JWTExpiry: -time.Hour}, testLogger())

	token, err := auth.GenerateJWT("svc", nil)
	require.NoError(t, err)

	_, err = auth.ValidateJWT(token)
	assert.Error(t, err)
}

func TestGenerateJWTWithoutSecret(t *testing.T) {
	auth := NewAuthenticator(&Config{APIKeys: []string{"k"}}, testLogger())
	_, err := auth.GenerateJWT("svc", nil)
	assert.Error(t, err)
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "****", maskToken("short"))
	assert.Equal(t, "abcd****", maskToken("abcdefghijkl"))
}
