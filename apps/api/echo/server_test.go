package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escolarhq/escolar/core/user"
)

// fakeUserRepo holds a single known user; unneeded methods panic via the
// embedded nil interface.
type fakeUserRepo struct {
	user.Repository

	usr   user.User
	roles []user.Role
}

func (r *fakeUserRepo) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	if email != r.usr.Email {
		return user.User{}, user.ErrNotFound
	}
	return r.usr, nil
}

func (r *fakeUserRepo) UserHasRole(ctx context.Context, userID int, role user.Role) (bool, error) {
	for _, have := range r.roles {
		if have == role {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeUserRepo) SetLastLogin(ctx context.Context, userID int, at time.Time) error {
	return nil
}

func (r *fakeUserRepo) GetUserRoles(ctx context.Context, userID int) ([]user.Role, error) {
	return r.roles, nil
}

type testLogger struct{}

func (testLogger) Enable(bool)                  {}
func (testLogger) Debug(string, ...interface{}) {}
func (testLogger) Info(string, ...interface{})  {}
func (testLogger) Warn(string, ...interface{})  {}
func (testLogger) Error(string, ...interface{}) {}
func (testLogger) Fatal(string, ...interface{}) {}

func newTestServer(t *testing.T) Server {
	t.Helper()

	usr := user.User{ID: 7, Email: "alice@example.com"}
	require.NoError(t, usr.SetPassword("s3cretpass"))
	repo := &fakeUserRepo{usr: usr, roles: []user.Role{user.RoleStudent}}

	return NewServer(&Options{
		DisableReqLogs: true,
		Logger:         testLogger{},
		UserSvc:        user.NewService(repo),
	})
}

func TestServer_Home(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Welcome")
}

func TestServer_AuthRequired(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/students", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_Login(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{
			name:     "valid credentials",
			body:     `{"email": "alice@example.com", "password": "s3cretpass", "role": "student"}`,
			wantCode: http.StatusOK,
		},
		{
			name:     "wrong password",
			body:     `{"email": "alice@example.com", "password": "nope-nope", "role": "student"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown user",
			body:     `{"email": "bob@example.com", "password": "whatever1", "role": "student"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "role not granted",
			body:     `{"email": "alice@example.com", "password": "s3cretpass", "role": "admin"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "missing fields",
			body:     `{"email": "alice@example.com"}`,
			wantCode: http.StatusBadRequest,
		},
	}

	srv := newTestServer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/users/login", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)

			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode != http.StatusOK {
				return
			}

			var resp LoginResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Token)

			var cookie *http.Cookie
			for _, c := range rec.Result().Cookies() {
				if c.Name == authCookieName {
					cookie = c
				}
			}
			require.NotNil(t, cookie, "auth cookie must be set")
			assert.Equal(t, resp.Token, cookie.Value)
			assert.True(t, cookie.HttpOnly)
		})
	}
}

func TestServer_AuthenticatedRequest(t *testing.T) {
	srv := newTestServer(t)

	// log in first
	req := httptest.NewRequest(http.MethodPost, "/v1/users/login",
		strings.NewReader(`{"email": "alice@example.com", "password": "s3cretpass", "role": "student"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	// roles endpoint goes through the repo
	req = httptest.NewRequest(http.MethodGet, "/v1/users/roles", nil)
	req.AddCookie(&http.Cookie{Name: authCookieName, Value: resp.Token})
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "student")

	// verify echoes the claims back
	req = httptest.NewRequest(http.MethodGet, "/v1/users/verify", nil)
	req.AddCookie(&http.Cookie{Name: authCookieName, Value: resp.Token})
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"role":"student"`)
}

func TestServer_MalformedFilter(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/users/login",
		strings.NewReader(`{"email": "alice@example.com", "password": "s3cretpass", "role": "student"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	// unparseable filters are rejected, not silently dropped
	for _, target := range []string{
		"/v1/students?course_id=abc",
		"/v1/assistance?student_id=abc",
		"/v1/grades?subject_id=abc",
	} {
		req = httptest.NewRequest(http.MethodGet, target, nil)
		req.AddCookie(&http.Cookie{Name: authCookieName, Value: resp.Token})
		rec = httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		assert.Equalf(t, http.StatusBadRequest, rec.Code, "%s: %s", target, rec.Body.String())
	}
}
