package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"cookiegram/internal/events"
	"cookiegram/internal/middleware"
	"cookiegram/internal/models"
	"cookiegram/internal/observability"
	"cookiegram/internal/repository"
)

type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	identity    IdentityResolver
	dispatch    *Dispatcher
}

type CreateCommentInput struct {
	Actor   *models.User
	PostID  uint
	Content string
}

type DeleteCommentInput struct {
	ActorID   uint
	CommentID uint
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	resolver IdentityResolver,
	dispatch *Dispatcher,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		identity:    resolver,
		dispatch:    dispatch,
	}
}

// NewComment attaches a comment to an existing post.
func (s *CommentService) NewComment(ctx context.Context, in CreateCommentInput) (*CommentView, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, models.NewValidationError("Content is required")
	}
	if tooLong(content, maxCommentLen) {
		return nil, models.NewValidationError(fmt.Sprintf("Comment too long (max %d characters)", maxCommentLen))
	}

	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{UserID: in.Actor.ID, PostID: post.ID, Content: content}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}
	comment.User = in.Actor

	view := &CommentView{Comment: comment, Author: Author{ClerkID: in.Actor.ExternalID}}
	if ident, err := s.identity.Lookup(ctx, in.Actor.ExternalID); err == nil {
		view.Author = authorOf(ident)
	}

	if post.UserID != in.Actor.ID {
		s.dispatch.Emit(ctx, events.Event{
			Type:        events.CommentCreated,
			AggregateID: postAggregate(post.ID),
			ActorID:     in.Actor.ExternalID,
			RecipientID: post.UserID,
			Payload:     map[string]any{"post_id": post.ID, "comment_id": comment.ID, "author_id": in.Actor.ExternalID},
		})
	}
	return view, nil
}

// GetComments returns the post's comments oldest first with author identities.
// A comment whose author cannot be resolved is left out and its ID reported
// in Failed; it never fails the thread.
func (s *CommentService) GetComments(ctx context.Context, postID uint) (*CommentList, error) {
	if _, err := s.postRepo.GetByID(ctx, postID); err != nil {
		return nil, err
	}
	comments, err := s.commentRepo.ListByPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	authors := make([]string, 0, len(comments))
	for _, c := range comments {
		if c.User != nil {
			authors = append(authors, c.User.ExternalID)
		}
	}
	batch := s.identity.LookupMany(ctx, authors)

	out := &CommentList{Comments: make([]CommentView, 0, len(comments)), Failed: []uint{}}
	for _, c := range comments {
		var ident Author
		ok := false
		if c.User != nil {
			if u, found := batch.Users[c.User.ExternalID]; found {
				ident, ok = authorOf(u), true
			}
		}
		if !ok {
			out.Failed = append(out.Failed, c.ID)
			continue
		}
		out.Comments = append(out.Comments, CommentView{Comment: c, Author: ident})
	}

	if len(out.Failed) > 0 {
		observability.EnrichmentDrops.WithLabelValues("comments").Add(float64(len(out.Failed)))
		middleware.Logger.WarnContext(ctx, "comments dropped from thread",
			slog.Uint64("post_id", uint64(postID)), slog.Any("comment_ids", out.Failed))
	}
	return out, nil
}

// DeleteComment removes a comment. The author and the post owner may delete.
func (s *CommentService) DeleteComment(ctx context.Context, in DeleteCommentInput) error {
	comment, err := s.commentRepo.GetByID(ctx, in.CommentID)
	if err != nil {
		return err
	}

	if comment.UserID != in.ActorID {
		post, err := s.postRepo.GetByID(ctx, comment.PostID)
		if err != nil {
			return err
		}
		if post.UserID != in.ActorID {
			return models.NewUnauthorizedError("You can only delete your own comments")
		}
	}

	return s.commentRepo.Delete(ctx, in.CommentID)
}
