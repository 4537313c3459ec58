package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

func newTestTokens() *TokenService {
	return NewTokenService(testSecret, "timeout-api", "timeout-app", time.Hour)
}

func TestTokenService_IssueAndParse(t *testing.T) {
	tokens := newTestTokens()

	signed, expires, err := tokens.Issue(42)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	userID, err := tokens.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, uint(42), userID)
}

func TestTokenService_RejectsBadTokens(t *testing.T) {
	tokens := newTestTokens()

	sign := func(claims jwt.MapClaims, secret string) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}
	valid := func() jwt.MapClaims {
		return jwt.MapClaims{
			"sub": strconv.Itoa(7),
			"iss": "timeout-api",
			"aud": "timeout-app",
			"exp": time.Now().Add(time.Hour).Unix(),
		}
	}

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", sign(valid(), "another-secret-another-secret-another")},
		{"expired", func() string {
			c := valid()
			c["exp"] = time.Now().Add(-time.Minute).Unix()
			return sign(c, testSecret)
		}()},
		{"missing expiry", func() string {
			c := valid()
			delete(c, "exp")
			return sign(c, testSecret)
		}()},
		{"wrong issuer", func() string {
			c := valid()
			c["iss"] = "someone-else"
			return sign(c, testSecret)
		}()},
		{"wrong audience", func() string {
			c := valid()
			c["aud"] = "other-app"
			return sign(c, testSecret)
		}()},
		{"non numeric subject", func() string {
			c := valid()
			c["sub"] = "alice"
			return sign(c, testSecret)
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tokens.Parse(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestRequiredAndOptional(t *testing.T) {
	tokens := newTestTokens()
	signed, _, err := tokens.Issue(123)
	require.NoError(t, err)

	app := fiber.New()
	echo := func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"userID": UserID(c)})
	}
	app.Get("/private", tokens.Required(), echo)
	app.Get("/public", tokens.Optional(), echo)

	tests := []struct {
		name       string
		path       string
		authHeader string
		wantStatus int
		wantUserID uint
	}{
		{"required with token", "/private", "Bearer " + signed, http.StatusOK, 123},
		{"required without header", "/private", "", http.StatusUnauthorized, 0},
		{"required with basic auth", "/private", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, 0},
		{"required with bad token", "/private", "Bearer nope", http.StatusUnauthorized, 0},
		{"optional anonymous", "/public", "", http.StatusOK, 0},
		{"optional with bad token stays anonymous", "/public", "Bearer nope", http.StatusOK, 0},
		{"optional with token", "/public", "Bearer " + signed, http.StatusOK, 123},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			if tt.wantStatus == http.StatusOK {
				var body map[string]uint
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, tt.wantUserID, body["userID"])
			}
		})
	}
}
