package service

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"cookiegram/internal/events"
	"cookiegram/internal/featureflags"
	"cookiegram/internal/models"
	"cookiegram/internal/repository"
)

const (
	defaultFeedLimit = 20
	maxFeedLimit     = 100
	searchLimit      = 50
	maxImageBatch    = 100
)

type PostService struct {
	postRepo repository.PostRepository
	userRepo repository.UserRepository
	identity IdentityResolver
	dispatch *Dispatcher
	flags    *featureflags.Manager
}

type CreatePostInput struct {
	OwnerExternalID string
	ImageURL        string
	Description     string
	Recipe          string
}

type UpdatePostInput struct {
	ActorID         uint
	ActorExternalID string
	PostID          uint
	ImageURL    string
	Description string
	Recipe      string
}

type FeedInput struct {
	ViewerID uint
	Sort     string
	Limit    int
	Offset   int
}

type LikeInput struct {
	Actor  *models.User
	PostID uint
	Liked  bool
}

func NewPostService(
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	resolver IdentityResolver,
	dispatch *Dispatcher,
	flags *featureflags.Manager,
) *PostService {
	return &PostService{
		postRepo: postRepo,
		userRepo: userRepo,
		identity: resolver,
		dispatch: dispatch,
		flags:    flags,
	}
}

func validatePostFields(imageURL, description, recipe string) error {
	if strings.TrimSpace(imageURL) == "" {
		return models.NewValidationError("Image is required")
	}
	if tooLong(description, maxDescriptionLen) {
		return models.NewValidationError(fmt.Sprintf("Description too long (max %d characters)", maxDescriptionLen))
	}
	if tooLong(recipe, maxRecipeLen) {
		return models.NewValidationError(fmt.Sprintf("Recipe too long (max %d characters)", maxRecipeLen))
	}
	return nil
}

// CreatePost creates the owner on first sight and the post in one transaction.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if err := validatePostFields(in.ImageURL, in.Description, in.Recipe); err != nil {
		return nil, err
	}

	post := &models.Post{
		ImageURL:    strings.TrimSpace(in.ImageURL),
		Description: in.Description,
		Recipe:      in.Recipe,
	}
	if err := s.postRepo.CreateForOwner(ctx, in.OwnerExternalID, post); err != nil {
		return nil, err
	}
	post.Likes = []string{}
	post.CommentIDs = []uint{}

	s.dispatch.Emit(ctx, events.Event{
		Type:        events.PostCreated,
		AggregateID: postAggregate(post.ID),
		ActorID:     in.OwnerExternalID,
		Payload:     map[string]any{"post_id": post.ID, "clerk_id": in.OwnerExternalID},
	})
	return post, nil
}

// GetPost returns the post with its likes and comment IDs. Liked is set for viewer.
func (s *PostService) GetPost(ctx context.Context, viewer string, id uint) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.attachRelations(ctx, viewer, []*models.Post{post}); err != nil {
		return nil, err
	}
	return post, nil
}

// PostDetail returns the post with its owner's identity. An owner lookup
// failure fails the request.
func (s *PostService) PostDetail(ctx context.Context, viewer string, id uint) (*PostView, error) {
	post, err := s.GetPost(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	owner, err := s.userRepo.GetByID(ctx, post.UserID)
	if err != nil {
		return nil, err
	}
	ident, err := s.identity.Lookup(ctx, owner.ExternalID)
	if err != nil {
		return nil, identityError(owner.ExternalID, err)
	}
	return &PostView{Post: post, Author: authorOf(ident)}, nil
}

// EditPost overwrites every mutable field. Only the owner may edit.
func (s *PostService) EditPost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	if post.UserID != in.ActorID {
		return nil, models.NewUnauthorizedError("You can only edit your own posts")
	}
	if err := validatePostFields(in.ImageURL, in.Description, in.Recipe); err != nil {
		return nil, err
	}

	post.ImageURL = strings.TrimSpace(in.ImageURL)
	post.Description = in.Description
	post.Recipe = in.Recipe
	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, err
	}
	return s.GetPost(ctx, in.ActorExternalID, post.ID)
}

// DeletePost removes the post with its likes and comments. Only the owner may delete.
func (s *PostService) DeletePost(ctx context.Context, actorID, postID uint) error {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.UserID != actorID {
		return models.NewUnauthorizedError("You can only delete your own posts")
	}
	return s.postRepo.Delete(ctx, postID)
}

// LikePost sets the actor's like on the post. Repeating either direction is a no-op.
func (s *PostService) LikePost(ctx context.Context, in LikeInput) (*LikeResult, error) {
	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}

	var created bool
	if in.Liked {
		created, err = s.postRepo.Like(ctx, in.Actor.ID, post.ID)
	} else {
		_, err = s.postRepo.Unlike(ctx, in.Actor.ID, post.ID)
	}
	if err != nil {
		return nil, err
	}

	count, err := s.postRepo.CountLikes(ctx, post.ID)
	if err != nil {
		return nil, err
	}

	if created && post.UserID != in.Actor.ID {
		s.dispatch.Emit(ctx, events.Event{
			Type:        events.PostLiked,
			AggregateID: postAggregate(post.ID),
			ActorID:     in.Actor.ExternalID,
			RecipientID: post.UserID,
			Payload:     map[string]any{"post_id": post.ID, "liker_id": in.Actor.ExternalID, "likes_count": count},
		})
	}
	return &LikeResult{PostID: post.ID, Liked: in.Liked, LikesCount: count}, nil
}

// GetRecipe returns the recipe and the owner's display name.
func (s *PostService) GetRecipe(ctx context.Context, postID uint) (*RecipeView, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	owner, err := s.userRepo.GetByID(ctx, post.UserID)
	if err != nil {
		return nil, err
	}
	ident, err := s.identity.Lookup(ctx, owner.ExternalID)
	if err != nil {
		return nil, identityError(owner.ExternalID, err)
	}
	return &RecipeView{Recipe: post.Recipe, Creator: ident.DisplayName()}, nil
}

// GetImages returns image URLs for the existing posts among ids, in request order.
func (s *PostService) GetImages(ctx context.Context, ids []uint) ([]models.PostImage, error) {
	if len(ids) == 0 {
		return nil, models.NewValidationError("post_ids is required")
	}
	if len(ids) > maxImageBatch {
		return nil, models.NewValidationError(fmt.Sprintf("Too many post_ids (max %d)", maxImageBatch))
	}
	return s.postRepo.GetImages(ctx, ids)
}

// Feed returns a page of posts ordered for the viewer, each with its owner's
// identity. Any owner lookup failure fails the whole page.
func (s *PostService) Feed(ctx context.Context, in FeedInput) ([]PostView, error) {
	sort := strings.ToLower(strings.TrimSpace(in.Sort))
	switch sort {
	case "", repository.FeedSortRecency:
		sort = repository.FeedSortRecency
	case repository.FeedSortFollowed:
		if !s.flags.Enabled(featureflags.FollowedFeedSort, in.ViewerID) {
			sort = repository.FeedSortRecency
		}
	default:
		return nil, models.NewValidationError("Invalid sort (use recency or followed)")
	}

	limit := in.Limit
	if limit <= 0 {
		limit = defaultFeedLimit
	}
	limit = min(limit, maxFeedLimit)
	offset := max(in.Offset, 0)

	posts, err := s.postRepo.Feed(ctx, in.ViewerID, sort, limit, offset)
	if err != nil {
		return nil, err
	}
	// The feed query already computed Liked for the viewer.
	if err := s.attachRelations(ctx, "", posts); err != nil {
		return nil, err
	}

	owners := make([]string, 0, len(posts))
	for _, p := range posts {
		if p.User != nil {
			owners = append(owners, p.User.ExternalID)
		}
	}
	batch := s.identity.LookupMany(ctx, owners)
	if !batch.Complete() {
		return nil, models.NewUpstreamError("identity provider",
			fmt.Errorf("unresolved post owners: %s", strings.Join(batch.Failed, ", ")))
	}

	out := make([]PostView, 0, len(posts))
	for _, p := range posts {
		view := PostView{Post: p}
		if p.User != nil {
			if ident, ok := batch.Users[p.User.ExternalID]; ok {
				view.Author = authorOf(ident)
			}
		}
		out = append(out, view)
	}
	return out, nil
}

// SearchPosts matches query case-insensitively against descriptions.
func (s *PostService) SearchPosts(ctx context.Context, viewer, query string) ([]*models.Post, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.NewValidationError("Search query is required")
	}
	posts, err := s.postRepo.Search(ctx, query, searchLimit)
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	if err := s.attachRelations(ctx, viewer, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// attachRelations fills Likes and CommentIDs with non-nil slices and derives
// LikesCount from Likes. Liked is recomputed only when viewer is set.
func (s *PostService) attachRelations(ctx context.Context, viewer string, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}

	likers, err := s.postRepo.LikerExternalIDs(ctx, ids)
	if err != nil {
		return err
	}
	comments, err := s.postRepo.CommentIDs(ctx, ids)
	if err != nil {
		return err
	}

	for _, p := range posts {
		p.Likes = likers[p.ID]
		if p.Likes == nil {
			p.Likes = []string{}
		}
		p.LikesCount = int64(len(p.Likes))
		if viewer != "" {
			p.Liked = slices.Contains(p.Likes, viewer)
		}
		p.CommentIDs = comments[p.ID]
		if p.CommentIDs == nil {
			p.CommentIDs = []uint{}
		}
	}
	return nil
}

func postAggregate(id uint) string {
	return "post:" + strconv.FormatUint(uint64(id), 10)
}
