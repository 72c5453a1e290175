package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"devshelf/internal/config"
	"devshelf/internal/middleware"
	"devshelf/internal/models"
	"devshelf/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

// MockUserRepository is a testify mock of repository.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) SetAdmin(ctx context.Context, id uint, admin bool) error {
	args := m.Called(ctx, id, admin)
	return args.Error(0)
}

func (m *MockUserRepository) SetBanned(ctx context.Context, id uint, banned bool) error {
	args := m.Called(ctx, id, banned)
	return args.Error(0)
}

func (m *MockUserRepository) ListAdmins(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockUserRepository) Stats(ctx context.Context, userID uint) (models.ProfileStats, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(models.ProfileStats), args.Error(1)
}

func postJSON(t *testing.T, app *fiber.App, path string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestSignup_WithMockRepository(t *testing.T) {
	app := fiber.New()
	mockRepo := new(MockUserRepository)

	s := &Server{
		config:   &config.Config{JWTSecret: testJWTSecret},
		userRepo: mockRepo,
	}
	app.Post("/signup", s.Signup)

	tests := []struct {
		name           string
		body           map[string]string
		mockSetup      func()
		expectedStatus int
	}{
		{
			name: "Success",
			body: map[string]string{
				"username": "gopher",
				"email":    "Gopher@Example.com ",
				"password": "Password123!",
			},
			mockSetup: func() {
				mockRepo.On("Create", mock.Anything, mock.MatchedBy(func(u *models.User) bool {
					return u.Username == "gopher" && u.Email == "gopher@example.com" && u.Password != "Password123!"
				})).Run(func(args mock.Arguments) {
					args.Get(1).(*models.User).ID = 7
				}).Return(nil).Once()
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "Duplicate User",
			body: map[string]string{
				"username": "taken",
				"email":    "taken@example.com",
				"password": "Password123!",
			},
			mockSetup: func() {
				mockRepo.On("Create", mock.Anything, mock.MatchedBy(func(u *models.User) bool {
					return u.Username == "taken"
				})).Return(models.NewConflictError("Username or email already in use")).Once()
			},
			expectedStatus: http.StatusConflict,
		},
		{
			name: "Weak Password",
			body: map[string]string{
				"username": "weakling",
				"email":    "weak@example.com",
				"password": "short",
			},
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "Invalid Username",
			body: map[string]string{
				"username": "-bad name-",
				"email":    "bad@example.com",
				"password": "Password123!",
			},
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "Missing Fields",
			body: map[string]string{
				"username": "nobody",
			},
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()
			resp := postJSON(t, app, "/signup", tt.body)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
	mockRepo.AssertExpectations(t)
}

func TestLogin_RepositoryFailureIsInternal(t *testing.T) {
	app := fiber.New()
	mockRepo := new(MockUserRepository)
	mockRepo.On("GetByEmail", mock.Anything, "alice@example.com").
		Return(nil, models.NewInternalError(errors.New("connection reset"))).Once()

	s := &Server{
		config:   &config.Config{JWTSecret: testJWTSecret},
		userRepo: mockRepo,
	}
	app.Post("/login", s.Login)

	resp := postJSON(t, app, "/login", map[string]string{"email": "alice@example.com", "password": "Password123!"})
	defer func() { _ = resp.Body.Close() }()

	var body models.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, models.CodeInternal, body.Code)
	assert.NotContains(t, body.Error, "connection reset")
	mockRepo.AssertExpectations(t)
}

func TestSignupAndLogin(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(t, http.MethodPost, "/api/auth/signup", fiber.Map{
		"username": "ada",
		"email":    "ada@example.com",
		"password": "Password123!",
	}, "")
	require.Equal(t, http.StatusCreated, status, body)
	assert.NotEmpty(t, gjson.Get(body, "token").String())
	assert.Equal(t, "ada", gjson.Get(body, "user.username").String())
	assert.False(t, gjson.Get(body, "user.password").Exists())

	t.Run("duplicate email conflicts", func(t *testing.T) {
		status, body := ts.do(t, http.MethodPost, "/api/auth/signup", fiber.Map{
			"username": "ada2",
			"email":    "ADA@example.com",
			"password": "Password123!",
		}, "")
		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, models.CodeConflict, gjson.Get(body, "code").String())
	})

	t.Run("login succeeds", func(t *testing.T) {
		status, body := ts.do(t, http.MethodPost, "/api/auth/login", fiber.Map{
			"email":    "ada@example.com",
			"password": "Password123!",
		}, "")
		require.Equal(t, http.StatusOK, status)

		token := gjson.Get(body, "token").String()
		status, body = ts.do(t, http.MethodGet, "/api/auth/me", nil, token)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "ada@example.com", gjson.Get(body, "email").String())
	})

	t.Run("wrong password", func(t *testing.T) {
		status, body := ts.do(t, http.MethodPost, "/api/auth/login", fiber.Map{
			"email":    "ada@example.com",
			"password": "Password999!",
		}, "")
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "Invalid credentials", gjson.Get(body, "error").String())
	})

	t.Run("unknown email gets the same answer", func(t *testing.T) {
		status, body := ts.do(t, http.MethodPost, "/api/auth/login", fiber.Map{
			"email":    "nobody@example.com",
			"password": "Password123!",
		}, "")
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "Invalid credentials", gjson.Get(body, "error").String())
	})

	t.Run("missing fields", func(t *testing.T) {
		status, _ := ts.do(t, http.MethodPost, "/api/auth/login", fiber.Map{"email": "ada@example.com"}, "")
		assert.Equal(t, http.StatusBadRequest, status)
	})
}

func TestLogin_BannedAccount(t *testing.T) {
	ts := newTestServer(t)
	user := testutil.CreateUser(t, ts.db, "mallory")
	require.NoError(t, ts.db.Model(user).Update("is_banned", true).Error)

	status, body := ts.do(t, http.MethodPost, "/api/auth/login", fiber.Map{
		"email":    user.Email,
		"password": testutil.DefaultPassword,
	}, "")

	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "This account has been suspended", gjson.Get(body, "error").String())
}

func TestLogout_RevokesToken(t *testing.T) {
	ts := newTestServer(t)
	user := testutil.CreateUser(t, ts.db, "alice")
	token := ts.tokenFor(t, user)

	status, _ := ts.do(t, http.MethodGet, "/api/auth/me", nil, token)
	require.Equal(t, http.StatusOK, status)

	status, _ = ts.do(t, http.MethodPost, "/api/auth/logout", nil, token)
	require.Equal(t, http.StatusOK, status)

	claims, err := middleware.ParseToken(testJWTSecret, token)
	require.NoError(t, err)
	key := middleware.BlacklistKey(claims.JTI)
	assert.True(t, ts.mr.Exists(key))
	assert.Positive(t, ts.mr.TTL(key))

	status, body := ts.do(t, http.MethodGet, "/api/auth/me", nil, token)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Token has been revoked", gjson.Get(body, "error").String())

	// A fresh session is unaffected.
	status, _ = ts.do(t, http.MethodGet, "/api/auth/me", nil, ts.tokenFor(t, user))
	assert.Equal(t, http.StatusOK, status)
}

var resetTokenRe = regexp.MustCompile(`token=([0-9a-f]+)`)

func TestPasswordResetFlow(t *testing.T) {
	ts := newTestServer(t)
	user := testutil.CreateUser(t, ts.db, "alice")

	status, body := ts.do(t, http.MethodPost, "/api/auth/forgot-password", fiber.Map{"email": "nobody@example.com"}, "")
	require.Equal(t, http.StatusOK, status)
	generic := gjson.Get(body, "message").String()
	assert.Empty(t, ts.mail.Sent())

	status, body = ts.do(t, http.MethodPost, "/api/auth/forgot-password", fiber.Map{"email": user.Email}, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, generic, gjson.Get(body, "message").String())

	sent := ts.mail.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{user.Email}, sent[0].To)
	assert.Contains(t, sent[0].Text, "http://localhost:3000/reset-password?token=")

	match := resetTokenRe.FindStringSubmatch(sent[0].Text)
	require.Len(t, match, 2)
	token := match[1]

	status, _ = ts.do(t, http.MethodPost, "/api/auth/reset-password", fiber.Map{"token": token, "password": "weak"}, "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = ts.do(t, http.MethodPost, "/api/auth/reset-password", fiber.Map{"token": token, "password": "BrandNew456!"}, "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "Password updated", gjson.Get(body, "message").String())

	status, _ = ts.do(t, http.MethodPost, "/api/auth/login", fiber.Map{"email": user.Email, "password": testutil.DefaultPassword}, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = ts.do(t, http.MethodPost, "/api/auth/login", fiber.Map{"email": user.Email, "password": "BrandNew456!"}, "")
	assert.Equal(t, http.StatusOK, status)

	status, body = ts.do(t, http.MethodPost, "/api/auth/reset-password", fiber.Map{"token": token, "password": "Another7890!"}, "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Reset link is invalid or has expired", gjson.Get(body, "error").String())
}
