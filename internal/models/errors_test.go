package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", NewValidationError("bad"), fiber.StatusBadRequest},
		{"not found", NewNotFoundError("Post", 3), fiber.StatusNotFound},
		{"forbidden", NewUnauthorizedError("nope"), fiber.StatusForbidden},
		{"unauthenticated", NewUnauthenticatedError("who"), fiber.StatusUnauthorized},
		{"upstream", NewUpstreamError("identity provider", errors.New("timeout")), fiber.StatusBadGateway},
		{"wrapped", fmt.Errorf("ctx: %w", NewNotFoundError("User", "u_1")), fiber.StatusNotFound},
		{"plain", errors.New("boom"), fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StatusFor(tc.err))
		})
	}
}

func TestRespondWithError_HidesInternalDetails(t *testing.T) {
	app := fiber.New()
	app.Get("/internal", func(c *fiber.Ctx) error {
		return RespondWithError(c, fiber.StatusInternalServerError, NewInternalError(errors.New("dsn=secret")))
	})
	app.Get("/upstream", func(c *fiber.Ctx) error {
		return RespondWithError(c, fiber.StatusBadGateway, NewUpstreamError("image host", errors.New("status 503")))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/internal", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	var out ErrorResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "Internal server error", out.Error)
	assert.Equal(t, CodeInternal, out.Code)
	assert.Empty(t, out.Details)

	resp, err = app.Test(httptest.NewRequest("GET", "/upstream", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
	body, _ = io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "image host request failed", out.Error)
	assert.Equal(t, "status 503", out.Details)
}
