package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"timeout/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOrigin = "http://localhost:5173"

// middlewareApp mounts only the global middleware chain in front of a stub route.
func middlewareApp(origins string) *fiber.App {
	srv := &Server{config: &config.Config{AllowedOrigins: origins}}
	app := fiber.New()
	srv.SetupMiddleware(app)
	app.All("/stub", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	return app
}

func hit(t *testing.T, app *fiber.App, method string, headers map[string]string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, "/stub", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestSetupMiddleware_LimiterKeepsCORSHeaders(t *testing.T) {
	app := middlewareApp(testOrigin)
	origin := map[string]string{"Origin": testOrigin}

	for i := 0; i < 100; i++ {
		require.Equal(t, fiber.StatusOK, hit(t, app, http.MethodPost, origin).StatusCode, "request %d", i)
	}

	limited := hit(t, app, http.MethodPost, origin)
	assert.Equal(t, fiber.StatusTooManyRequests, limited.StatusCode)
	assert.Equal(t, testOrigin, limited.Header.Get("Access-Control-Allow-Origin"))

	preflight := hit(t, app, http.MethodOptions, map[string]string{
		"Origin":                         testOrigin,
		"Access-Control-Request-Method":  http.MethodPost,
		"Access-Control-Request-Headers": "authorization,content-type",
	})
	assert.Equal(t, fiber.StatusNoContent, preflight.StatusCode)
	assert.Equal(t, testOrigin, preflight.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, preflight.Header.Get("Access-Control-Allow-Methods"), http.MethodPost)
}

func TestSetupMiddleware_UnknownOriginGetsNoCORS(t *testing.T) {
	app := middlewareApp(testOrigin)

	resp := hit(t, app, http.MethodGet, map[string]string{"Origin": "https://evil.example"})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}
