package server

import "github.com/gofiber/fiber/v2"

// GetFeatureFlags returns the configured flag values and their state for the caller.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(currentUserID(c)),
	})
}
