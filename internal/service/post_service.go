package service

import (
	"context"
	"strings"

	"timeout/internal/models"
	"timeout/internal/repository"
	"timeout/internal/validation"
)

// PostInput is a new post. Privacy defaults to public.
type PostInput struct {
	Content string             `json:"content" validate:"notblank,max=5000"`
	Privacy models.PostPrivacy `json:"privacy" validate:"omitempty,privacy"`
	EventID *uint              `json:"event_id"`
}

type PostService struct {
	repos repository.Repos
	graph followGraph
}

func NewPostService(d Deps) *PostService {
	return &PostService{
		repos: d.Repos,
		graph: followGraph{social: d.Repos.Social, cache: d.Cache},
	}
}

func (s *PostService) CreatePost(ctx context.Context, userID uint, in PostInput) (*models.Post, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if in.EventID != nil {
		if _, err := s.repos.Events.GetOwned(ctx, userID, *in.EventID); err != nil {
			if models.HasCode(err, models.CodeNotFound) {
				return nil, models.NewValidationError("event_id must reference one of your events")
			}
			return nil, err
		}
	}

	post := &models.Post{
		AuthorID: userID,
		Content:  strings.TrimSpace(in.Content),
		Privacy:  orDefault(in.Privacy, models.PrivacyPublic),
		EventID:  in.EventID,
	}
	if err := s.repos.Posts.Create(ctx, post); err != nil {
		return nil, err
	}
	return s.repos.Posts.GetByID(ctx, post.ID, userID)
}

// GetPost returns the post if the viewer may see it and FORBIDDEN otherwise.
func (s *PostService) GetPost(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	post, err := s.repos.Posts.GetByID(ctx, id, viewerID)
	if err != nil {
		return nil, err
	}
	ok, err := s.graph.canView(ctx, post, viewerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewForbiddenError("You cannot view this post")
	}
	return post, nil
}

// DeletePost removes a post. Only the author or staff may do so.
func (s *PostService) DeletePost(ctx context.Context, userID, id uint) error {
	post, err := s.repos.Posts.GetByID(ctx, id, userID)
	if err != nil {
		return err
	}
	staff, err := s.repos.Users.IsStaff(ctx, userID)
	if err != nil {
		return err
	}
	if !post.CanDelete(userID, staff) {
		return models.NewForbiddenError("You cannot delete this post")
	}
	return s.repos.Posts.Delete(ctx, id)
}
