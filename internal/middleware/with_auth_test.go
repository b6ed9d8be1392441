package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/internhub-api/internal/middleware"
)

func authApp(userID uint, role string, path string, opts middleware.AuthOptions) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if userID != 0 {
			c.Locals("user_id", userID)
			c.Locals("user_role", role)
		}
		return c.Next()
	})
	app.Get(path, middleware.WithAuth(func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	}, opts))
	return app
}

func TestWithAuthStudentRole(t *testing.T) {
	app := authApp(10, "Student", "/", middleware.AuthOptions{Role: middleware.AuthRoleStudent})

	resp := perform(t, app, "/")
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func TestWithAuthStudentRoleDenied(t *testing.T) {
	app := authApp(10, "employer", "/", middleware.AuthOptions{Role: middleware.AuthRoleStudent})

	resp := perform(t, app, "/")
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestWithAuthAdminPassesRoleCheck(t *testing.T) {
	app := authApp(1, "admin", "/", middleware.AuthOptions{Role: middleware.AuthRoleEmployer})

	resp := perform(t, app, "/")
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func TestWithAuthAnyRequiresUserByDefault(t *testing.T) {
	app := authApp(0, "", "/", middleware.AuthOptions{Role: middleware.AuthRoleAny})

	resp := perform(t, app, "/")
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestWithAuthAnyAllowsAnonymousWhenOptedIn(t *testing.T) {
	app := authApp(0, "", "/", middleware.AuthOptions{Role: middleware.AuthRoleAny, AllowAnonymous: true})

	resp := perform(t, app, "/")
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func TestWithAuthSelfParam(t *testing.T) {
	opts := middleware.AuthOptions{SelfParam: "userId"}

	resp := perform(t, authApp(5, "student", "/users/:userId", opts), "/users/5")
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp = perform(t, authApp(5, "student", "/users/:userId", opts), "/users/6")
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = perform(t, authApp(1, "admin", "/users/:userId", opts), "/users/6")
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func perform(t *testing.T, app *fiber.App, target string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}
