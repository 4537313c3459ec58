package service

import (
	"context"
	"strconv"

	"timeout/internal/models"
	"timeout/internal/notifications"
	"timeout/internal/observability"
	"timeout/internal/repository"
)

type SocialService struct {
	repos repository.Repos
	tx    repository.Transactor
	graph followGraph
	rt    realtime
}

func NewSocialService(d Deps) *SocialService {
	return &SocialService{
		repos: d.Repos,
		tx:    d.Tx,
		graph: followGraph{social: d.Repos.Social, cache: d.Cache},
		rt:    d.realtime(),
	}
}

// toggle removes the edge if present, otherwise inserts it, in one
// transaction. A concurrent insert that loses the race counts as present.
func (s *SocialService) toggle(
	ctx context.Context,
	del func(tx repository.Repos) (int64, error),
	ins func(tx repository.Repos) (bool, error),
) (bool, error) {
	var active bool
	err := s.tx.Transaction(ctx, func(tx repository.Repos) error {
		n, err := del(tx)
		if err != nil {
			return err
		}
		if n > 0 {
			active = false
			return nil
		}
		if _, err := ins(tx); err != nil {
			return err
		}
		active = true
		return nil
	})
	return active, err
}

func (s *SocialService) visiblePost(ctx context.Context, userID, postID uint) (*models.Post, error) {
	if userID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	post, err := s.repos.Posts.GetByID(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	ok, err := s.graph.canView(ctx, post, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewForbiddenError("You cannot interact with this post")
	}
	return post, nil
}

// ToggleLike flips the user's like on a post and returns the new state.
func (s *SocialService) ToggleLike(ctx context.Context, userID, postID uint) (bool, error) {
	post, err := s.visiblePost(ctx, userID, postID)
	if err != nil {
		return false, err
	}
	liked, err := s.toggle(ctx,
		func(tx repository.Repos) (int64, error) { return tx.Social.DeleteLike(ctx, userID, postID) },
		func(tx repository.Repos) (bool, error) { return tx.Social.InsertLike(ctx, userID, postID) },
	)
	if err != nil {
		return false, err
	}

	observability.SocialToggles.WithLabelValues("like", strconv.FormatBool(liked)).Inc()
	if liked && post.AuthorID != userID {
		s.rt.send(ctx, post.AuthorID, notifications.PostLiked, map[string]uint{"post_id": postID, "user_id": userID})
	}
	return liked, nil
}

// ToggleBookmark flips the user's bookmark on a post and returns the new state.
func (s *SocialService) ToggleBookmark(ctx context.Context, userID, postID uint) (bool, error) {
	if _, err := s.visiblePost(ctx, userID, postID); err != nil {
		return false, err
	}
	saved, err := s.toggle(ctx,
		func(tx repository.Repos) (int64, error) { return tx.Social.DeleteBookmark(ctx, userID, postID) },
		func(tx repository.Repos) (bool, error) { return tx.Social.InsertBookmark(ctx, userID, postID) },
	)
	if err != nil {
		return false, err
	}
	observability.SocialToggles.WithLabelValues("bookmark", strconv.FormatBool(saved)).Inc()
	return saved, nil
}

// ToggleFollow makes actor follow or unfollow target. Following yourself is
// INVALID_OPERATION.
func (s *SocialService) ToggleFollow(ctx context.Context, actorID, targetID uint) (bool, error) {
	if actorID == 0 {
		return false, models.NewUnauthorizedError("Authentication required")
	}
	if actorID == targetID {
		return false, models.NewInvalidOperationError("You cannot follow yourself")
	}
	if _, err := s.repos.Users.GetByID(ctx, targetID); err != nil {
		return false, err
	}

	// Dropped on both sides of the write: a reader that refilled the set
	// while the transaction was open would otherwise keep the old edges.
	s.graph.invalidate(ctx, actorID)
	following, err := s.toggle(ctx,
		func(tx repository.Repos) (int64, error) { return tx.Social.DeleteFollow(ctx, actorID, targetID) },
		func(tx repository.Repos) (bool, error) { return tx.Social.InsertFollow(ctx, actorID, targetID) },
	)
	s.graph.invalidate(ctx, actorID)
	if err != nil {
		return false, err
	}

	observability.SocialToggles.WithLabelValues("follow", strconv.FormatBool(following)).Inc()
	if following {
		s.rt.send(ctx, targetID, notifications.NewFollower, map[string]uint{"user_id": actorID})
	}
	return following, nil
}

func (s *SocialService) Followers(ctx context.Context, userID uint) ([]models.User, error) {
	if _, err := s.repos.Users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.repos.Social.Followers(ctx, userID)
}

func (s *SocialService) Following(ctx context.Context, userID uint) ([]models.User, error) {
	if _, err := s.repos.Users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.repos.Social.Following(ctx, userID)
}

// IsFollowing reports whether viewer follows target.
func (s *SocialService) IsFollowing(ctx context.Context, viewerID, targetID uint) (bool, error) {
	return s.graph.follows(ctx, viewerID, targetID)
}
