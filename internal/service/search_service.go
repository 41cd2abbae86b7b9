package service

import (
	"context"
	"strings"

	"cookiegram/internal/models"
)

// Search types.
const (
	SearchTypePosts = "posts"
	SearchTypeUsers = "users"
)

type SearchService struct {
	posts *PostService
	users *UserService
}

// SearchResult holds either posts or user summaries. Failed lists external
// IDs left out of a user search because their identity could not be resolved.
type SearchResult struct {
	Results any      `json:"results"`
	Failed  []string `json:"failed,omitempty"`
}

func NewSearchService(posts *PostService, users *UserService) *SearchService {
	return &SearchService{posts: posts, users: users}
}

// Search finds posts by description or users by display name. viewer is the
// caller's external ID, used to mark posts they liked.
func (s *SearchService) Search(ctx context.Context, viewer, query, typ string) (*SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" || typ == "" {
		return nil, models.NewValidationError("Missing query or type")
	}

	switch typ {
	case SearchTypePosts:
		posts, err := s.posts.SearchPosts(ctx, viewer, query)
		if err != nil {
			return nil, err
		}
		return &SearchResult{Results: posts}, nil
	case SearchTypeUsers:
		list, err := s.users.ListUsers(ctx)
		if err != nil {
			return nil, err
		}
		needle := strings.ToLower(query)
		matches := make([]UserSummary, 0)
		for _, u := range list.Users {
			if strings.Contains(strings.ToLower(u.Name), needle) {
				matches = append(matches, u)
			}
		}
		return &SearchResult{Results: matches, Failed: list.Failed}, nil
	}
	return nil, models.NewValidationError("Invalid type")
}
