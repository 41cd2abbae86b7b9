package server

import (
	"io"
	"path/filepath"

	"cookiegram/internal/models"
	"cookiegram/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetUser handles GET /api/user
func (s *Server) GetUser(c *fiber.Ctx) error {
	user, err := s.userService.GetUser(c.UserContext(), currentExternalID(c))
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(user)
}

// GetCallerIdentity handles GET /api/userId
func (s *Server) GetCallerIdentity(c *fiber.Ctx) error {
	ident, err := s.userService.CallerIdentity(c.UserContext(), currentExternalID(c))
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(ident)
}

// GetLikedPosts handles GET /api/user/liked
func (s *Server) GetLikedPosts(c *fiber.Ctx) error {
	posts, err := s.userService.GetLikedPosts(c.UserContext(), currentUserID(c))
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(posts)
}

// UpdateDescription handles PUT /api/user/description
func (s *Server) UpdateDescription(c *fiber.Ctx) error {
	var req struct {
		Description string `json:"description"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.UpdateDescription(c.UserContext(), currentUserID(c), req.Description)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(user)
}

// SetName handles PUT /api/user/name
func (s *Server) SetName(c *fiber.Ctx) error {
	var req struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	ident, err := s.userService.SetName(c.UserContext(), service.SetNameInput{
		ExternalID: currentExternalID(c),
		FirstName:  req.FirstName,
		LastName:   req.LastName,
	})
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(ident)
}

// UpdateProfileImage handles PUT /api/user/image (multipart field "file")
func (s *Server) UpdateProfileImage(c *fiber.Ctx) error {
	data, filename, err := s.readUpload(c)
	if err != nil {
		return nil
	}

	ident, err := s.userService.UpdateProfileImage(c.UserContext(), currentExternalID(c), filename, data)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(ident)
}

// FollowUser handles PUT /api/users/:clerkId/follow with body {"followed": bool}
func (s *Server) FollowUser(c *fiber.Ctx) error {
	var req struct {
		Followed *bool `json:"followed"`
	}
	if err := c.BodyParser(&req); err != nil || req.Followed == nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("followed (boolean) is required"))
	}

	res, err := s.userService.FollowUser(c.UserContext(), service.FollowInput{
		Actor:            currentUser(c),
		TargetExternalID: c.Params("clerkId"),
		Followed:         *req.Followed,
	})
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(res)
}

// readUpload reads the multipart "file" field within the media size limit.
// On failure it writes a 400 response and returns errResponseWritten.
func (s *Server) readUpload(c *fiber.Ctx) ([]byte, string, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("File not provided"))
		return nil, "", errResponseWritten
	}
	if limit := s.mediaService.MaxBytes(); limit > 0 && fh.Size > limit {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("File too large"))
		return nil, "", errResponseWritten
	}

	f, err := fh.Open()
	if err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Unable to read uploaded file"))
		return nil, "", errResponseWritten
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Unable to read uploaded file"))
		return nil, "", errResponseWritten
	}
	return data, filepath.Base(fh.Filename), nil
}
