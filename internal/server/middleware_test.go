package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"devshelf/internal/middleware"
	"devshelf/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestServer_AuthRequired(t *testing.T) {
	ts := newTestServer(t)
	user := testutil.CreateUser(t, ts.db, "alice")
	banned := testutil.CreateUser(t, ts.db, "mallory")
	require.NoError(t, ts.db.Model(banned).Update("is_banned", true).Error)

	ts.app.Get("/protected", ts.srv.AuthRequired(), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"userID": c.Locals("userID")})
	})

	issue := func(secret string, userID uint, now time.Time) string {
		token, _, err := middleware.IssueToken(secret, userID, now)
		require.NoError(t, err)
		return token
	}
	foreignClaims := func(issuer, audience string) string {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "1",
			"iss": issuer,
			"aud": audience,
			"exp": time.Now().Add(time.Hour).Unix(),
			"jti": "foreign-jti",
		})
		str, err := token.SignedString([]byte(testJWTSecret))
		require.NoError(t, err)
		return str
	}

	revokedToken, revokedClaims, err := middleware.IssueToken(testJWTSecret, user.ID, time.Now())
	require.NoError(t, err)
	require.NoError(t, ts.redis.Set(t.Context(), middleware.BlacklistKey(revokedClaims.JTI), "1", time.Hour).Err())

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "valid token",
			authHeader:     "Bearer " + issue(testJWTSecret, user.ID, time.Now()),
			expectedStatus: http.StatusOK,
		},
		{
			name:           "lowercase scheme",
			authHeader:     "bearer " + issue(testJWTSecret, user.ID, time.Now()),
			expectedStatus: http.StatusOK,
		},
		{
			name:           "expired token",
			authHeader:     "Bearer " + issue(testJWTSecret, user.ID, time.Now().Add(-middleware.TokenTTL-time.Minute)),
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "Invalid or expired token",
		},
		{
			name:           "wrong signing secret",
			authHeader:     "Bearer " + issue("another-secret-another-secret-another-secret", user.ID, time.Now()),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "invalid issuer",
			authHeader:     "Bearer " + foreignClaims("someone-else", middleware.TokenAudience),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "invalid audience",
			authHeader:     "Bearer " + foreignClaims(middleware.TokenIssuer, "someone-else"),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "missing header",
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "Authorization required",
		},
		{
			name:           "malformed bearer format",
			authHeader:     "Token abc",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "revoked token",
			authHeader:     "Bearer " + revokedToken,
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "Token has been revoked",
		},
		{
			name:           "deleted account",
			authHeader:     "Bearer " + issue(testJWTSecret, 9999, time.Now()),
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "Account no longer exists",
		},
		{
			name:           "banned account",
			authHeader:     "Bearer " + issue(testJWTSecret, banned.ID, time.Now()),
			expectedStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			status, body := ts.send(t, req)

			assert.Equal(t, tt.expectedStatus, status)
			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, uint64(user.ID), gjson.Get(body, "userID").Uint())
			}
			if tt.expectedError != "" {
				assert.Equal(t, tt.expectedError, gjson.Get(body, "error").String())
			}
		})
	}
}

func TestServer_AuthRequired_QueryTokenIgnored(t *testing.T) {
	ts := newTestServer(t)
	user := testutil.CreateUser(t, ts.db, "alice")

	status, _ := ts.do(t, http.MethodGet, "/api/auth/me?token="+ts.tokenFor(t, user), nil, "")

	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestServer_AdminRequired(t *testing.T) {
	ts := newTestServer(t)
	member := testutil.CreateUser(t, ts.db, "member")
	admin := testutil.CreateUser(t, ts.db, "root")
	ts.makeAdmin(t, admin)

	status, body := ts.do(t, http.MethodGet, "/api/admin/feature-flags", nil, ts.tokenFor(t, member))
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", gjson.Get(body, "code").String())

	status, body = ts.do(t, http.MethodGet, "/api/admin/feature-flags", nil, ts.tokenFor(t, admin))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "on", gjson.Get(body, "raw.ai_bio").String())
	assert.True(t, gjson.Get(body, "evaluated.ai_bio").Bool())
}
