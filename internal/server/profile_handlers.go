package server

import (
	"github.com/gofiber/fiber/v2"
)

// GetProfile handles GET /api/profile?clerkId=
func (s *Server) GetProfile(c *fiber.Ctx) error {
	profile, err := s.profileService.Profile(c.UserContext(), c.Query("clerkId"))
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(profile)
}

// Search handles GET /api/search?query=&type=posts|users
// @Summary Search posts or users
// @Tags search
// @Produce json
// @Param query query string true "Search text"
// @Param type query string true "posts or users"
// @Success 200 {object} service.SearchResult
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /search [get]
func (s *Server) Search(c *fiber.Ctx) error {
	res, err := s.searchService.Search(c.UserContext(), currentExternalID(c), c.Query("query"), c.Query("type"))
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(res)
}

// UploadImage handles POST /api/uploadImage (multipart field "file")
// @Summary Upload an image
// @Tags media
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Image"
// @Success 200 {object} service.UploadResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /uploadImage [post]
func (s *Server) UploadImage(c *fiber.Ctx) error {
	data, _, err := s.readUpload(c)
	if err != nil {
		return nil
	}

	res, err := s.mediaService.Upload(c.UserContext(), currentUserID(c), data)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(res)
}
