package server

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"unicode"

	"cookiegram/internal/middleware"
	"cookiegram/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

var errNoRealtime = errors.New("live notifications require redis")

// Pagination holds parsed limit/offset query parameters.
type Pagination struct {
	Limit  int
	Offset int
}

const (
	maxPaginationLimit = 100
)

// parsePagination extracts limit and offset query parameters with the given default limit.
func parsePagination(c *fiber.Ctx, defaultLimit int) Pagination {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}

	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	return Pagination{
		Limit:  limit,
		Offset: offset,
	}
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// parseQueryID is parseID for query parameters. A missing value is reported as not provided.
func (s *Server) parseQueryID(c *fiber.Ctx, param, label string) (uint, error) {
	raw := strings.TrimSpace(c.Query(param))
	if raw == "" {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(label+" not provided"))
		return 0, errResponseWritten
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+strings.ToLower(label)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "commentId" -> "comment ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		prefix := param[:len(param)-2]
		words := splitCamel(prefix)
		return strings.ToLower(strings.Join(words, " ")) + " ID"
	}
	return param
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	words = append(words, s[start:])
	return words
}

// respondServiceError writes err with the status its AppError code maps to.
// Untyped errors are logged and hidden behind a generic 500.
func (s *Server) respondServiceError(c *fiber.Ctx, err error) error {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		middleware.Logger.ErrorContext(c.UserContext(), "unexpected error", slog.String("error", err.Error()))
		err = models.NewInternalError(err)
	} else if appErr.Code == models.CodeInternal || appErr.Code == models.CodeUpstream {
		middleware.Logger.ErrorContext(c.UserContext(), "request failed",
			slog.String("code", appErr.Code), slog.String("error", appErr.Error()))
	}
	return models.RespondWithError(c, models.StatusFor(err), err)
}

// currentUser returns the caller loaded by AuthRequired.
func currentUser(c *fiber.Ctx) *models.User {
	u, _ := c.Locals("user").(*models.User)
	return u
}

// currentUserID returns the caller's local user ID set by AuthRequired.
func currentUserID(c *fiber.Ctx) uint {
	id, _ := c.Locals("userID").(uint)
	return id
}

// currentExternalID returns the caller's identity-provider ID set by AuthRequired.
func currentExternalID(c *fiber.Ctx) string {
	ext, _ := c.Locals("externalID").(string)
	return ext
}
