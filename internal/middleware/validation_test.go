package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func newEnabledMiddleware(t *testing.T) *ValidationMiddleware {
	t.Helper()
	vm, err := NewValidationMiddleware(&ValidationConfig{
		Enabled:  true,
		SpecPath: "../../docs/openapi.yaml",
	}, testLogger())
	require.NoError(t, err)
	return vm
}

func TestValidationDisabledPassesThrough(t *testing.T) {
	vm, err := NewValidationMiddleware(&ValidationConfig{Enabled: false}, testLogger())
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/v1/route", bytes.NewBufferString("not json"))
	rec := httptest.NewRecorder()
	vm.Middleware(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestValidationMissingSpecFails(t *testing.T) {
	_, err := NewValidationMiddleware(&ValidationConfig{Enabled: true, SpecPath: "/nonexistent.yaml"}, testLogger())
	assert.Error(t, err)
}

func TestValidationRejectsBadBody(t *testing.T) {
	vm := newEnabledMiddleware(t)

	req := httptest.NewRequest("POST", "/v1/route", bytes.NewBufferString(`{"priority":"high"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	vm.Middleware(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code, "payload without required text is rejected")
}

func TestValidationAcceptsGoodBody(t *testing.T) {
	vm := newEnabledMiddleware(t)

	req := httptest.NewRequest("POST", "/v1/route", bytes.NewBufferString(`{"text":"my invoice is wrong","priority":"high"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	vm.Middleware(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestValidationUnknownRoutePassesThrough(t *testing.T) {
	vm := newEnabledMiddleware(t)

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	vm.Middleware(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
