package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealsnap/backend/internal/service"
	"github.com/mealsnap/backend/internal/types"
)

type fakeAuthService struct {
	registerErr error
	loginErr    error
}

func (f *fakeAuthService) Register(context.Context, string, string, string) (string, error) {
	if f.registerErr != nil {
		return "", f.registerErr
	}
	return "new-token", nil
}

func (f *fakeAuthService) Login(context.Context, string, string) (string, error) {
	if f.loginErr != nil {
		return "", f.loginErr
	}
	return "login-token", nil
}

func (f *fakeAuthService) ValidateToken(string) (*types.TokenClaims, error) {
	return nil, assert.AnError
}

func authRouter(svc service.IAuthService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewAuthHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func postAuth(r *gin.Engine, path string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterReturnsToken(t *testing.T) {
	r := authRouter(&fakeAuthService{})

	w := postAuth(r, "/api/v1/auth/register", `{"name":"Ana","email":"ana@example.com","password":"secret123"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "new-token", resp.Token)
}

func TestRegisterValidation(t *testing.T) {
	r := authRouter(&fakeAuthService{})

	cases := []struct {
		name string
		body string
	}{
		{"missing name", `{"email":"ana@example.com","password":"secret123"}`},
		{"bad email", `{"name":"Ana","email":"not-an-email","password":"secret123"}`},
		{"short password", `{"name":"Ana","email":"ana@example.com","password":"abc"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := postAuth(r, "/api/v1/auth/register", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestRegisterServiceFailure(t *testing.T) {
	r := authRouter(&fakeAuthService{registerErr: assert.AnError})

	w := postAuth(r, "/api/v1/auth/register", `{"name":"Ana","email":"ana@example.com","password":"secret123"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginReturnsToken(t *testing.T) {
	r := authRouter(&fakeAuthService{})

	w := postAuth(r, "/api/v1/auth/login", `{"email":"ana@example.com","password":"secret123"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "login-token", resp.Token)
}

func TestLoginInvalidCredentials(t *testing.T) {
	r := authRouter(&fakeAuthService{loginErr: service.ErrInvalidCredentials})

	w := postAuth(r, "/api/v1/auth/login", `{"email":"ana@example.com","password":"wrong-pass"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
