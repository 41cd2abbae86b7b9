package server

import (
	"cookiegram/internal/models"
	"cookiegram/internal/service"

	"github.com/gofiber/fiber/v2"
)

type postRequest struct {
	ImageURL    string `json:"image_url"`
	Description string `json:"description"`
	Recipe      string `json:"recipe"`
}

// GetFeed handles GET /api/posts?sort=recency|followed&limit=&offset=
// @Summary Post feed
// @Description Posts with owner identity, newest first or followed owners first.
// @Tags posts
// @Produce json
// @Param sort query string false "recency or followed"
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {array} service.PostView
// @Failure 400 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts [get]
func (s *Server) GetFeed(c *fiber.Ctx) error {
	page := parsePagination(c, 20)

	posts, err := s.postService.Feed(c.UserContext(), service.FeedInput{
		ViewerID: currentUserID(c),
		Sort:     c.Query("sort"),
		Limit:    page.Limit,
		Offset:   page.Offset,
	})
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(posts)
}

// CreatePost handles POST /api/posts
// @Summary Create post
// @Tags posts
// @Accept json
// @Produce json
// @Param request body object{image_url=string,description=string,recipe=string} true "Post"
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req postRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	post, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		OwnerExternalID: currentExternalID(c),
		ImageURL:        req.ImageURL,
		Description:     req.Description,
		Recipe:          req.Recipe,
	})
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// GetPost handles GET /api/post?postId=
// @Summary Post detail
// @Tags posts
// @Produce json
// @Param postId query int true "Post ID"
// @Success 200 {object} object{post=service.PostView}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /post [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseQueryID(c, "postId", "Post ID")
	if err != nil {
		return nil
	}

	post, err := s.postService.PostDetail(c.UserContext(), currentExternalID(c), id)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"post": post})
}

// UpdatePost handles PUT /api/posts/:id
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req postRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	post, err := s.postService.EditPost(c.UserContext(), service.UpdatePostInput{
		ActorID:         currentUserID(c),
		ActorExternalID: currentExternalID(c),
		PostID:          postID,
		ImageURL:        req.ImageURL,
		Description:     req.Description,
		Recipe:          req.Recipe,
	})
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
func (s *Server) DeletePost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.postService.DeletePost(c.UserContext(), currentUserID(c), postID); err != nil {
		return s.respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// LikePost handles PUT /api/posts/:id/like with body {"liked": bool}
// @Summary Like or unlike a post
// @Tags posts
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body object{liked=bool} true "Like state"
// @Success 200 {object} service.LikeResult
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id}/like [put]
func (s *Server) LikePost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Liked *bool `json:"liked"`
	}
	if err := c.BodyParser(&req); err != nil || req.Liked == nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("liked (boolean) is required"))
	}

	res, err := s.postService.LikePost(c.UserContext(), service.LikeInput{
		Actor:  currentUser(c),
		PostID: postID,
		Liked:  *req.Liked,
	})
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(res)
}

// GetRecipe handles GET /api/posts/:id/recipe
func (s *Server) GetRecipe(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	recipe, err := s.postService.GetRecipe(c.UserContext(), postID)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(recipe)
}

// GetImages handles POST /api/images with body {"post_ids": [...]}
func (s *Server) GetImages(c *fiber.Ctx) error {
	var req struct {
		PostIDs []uint `json:"post_ids"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	images, err := s.postService.GetImages(c.UserContext(), req.PostIDs)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(images)
}
