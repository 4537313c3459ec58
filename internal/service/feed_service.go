package service

import (
	"context"
	"log/slog"
	"slices"

	"timeout/internal/cache"
	"timeout/internal/featureflags"
	"timeout/internal/models"
	"timeout/internal/observability"
	"timeout/internal/repository"
)

const maxFeedLimit = 100

// followGraph answers "who does this user follow" from Redis when it can.
type followGraph struct {
	social repository.SocialRepository
	cache  *cache.Store
}

func (g followGraph) followingIDs(ctx context.Context, userID uint) ([]uint, error) {
	if userID == 0 {
		return nil, nil
	}
	key := cache.FollowingKey(userID)
	if ids, ok, err := g.cache.MembersUint(ctx, key); err == nil && ok {
		observability.CacheLookups.WithLabelValues("following", "hit").Inc()
		return ids, nil
	}
	observability.CacheLookups.WithLabelValues("following", "miss").Inc()

	ids, err := g.social.FollowingIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := g.cache.StoreMembersUint(ctx, key, ids, cache.FollowingTTL); err != nil {
		slog.WarnContext(ctx, "failed to cache following set", "user_id", userID, "err", err)
	}
	return ids, nil
}

// follows reports whether viewerID follows authorID.
func (g followGraph) follows(ctx context.Context, viewerID, authorID uint) (bool, error) {
	if viewerID == 0 || viewerID == authorID {
		return false, nil
	}
	ids, err := g.followingIDs(ctx, viewerID)
	if err != nil {
		return false, err
	}
	return slices.Contains(ids, authorID), nil
}

// canView applies models.CanView with the viewer's follow edge to the author.
func (g followGraph) canView(ctx context.Context, post *models.Post, viewerID uint) (bool, error) {
	if post.Privacy == models.PrivacyPublic {
		return true, nil
	}
	following, err := g.follows(ctx, viewerID, post.AuthorID)
	if err != nil {
		return false, err
	}
	return models.CanView(post, viewerID, following), nil
}

func (g followGraph) invalidate(ctx context.Context, userID uint) {
	g.cache.Invalidate(ctx, cache.FollowingKey(userID))
}

type FeedService struct {
	posts repository.PostRepository
	users repository.UserRepository
	graph followGraph
	cache *cache.Store
	flags *featureflags.Manager
	limit int
}

func NewFeedService(d Deps) *FeedService {
	limit := d.FeedLimit
	if limit <= 0 {
		limit = DefaultFeedLimit
	}
	return &FeedService{
		posts: d.Repos.Posts,
		users: d.Repos.Users,
		graph: followGraph{social: d.Repos.Social, cache: d.Cache},
		cache: d.Cache,
		flags: d.Flags,
		limit: limit,
	}
}

func (s *FeedService) pageSize(limit int) int {
	if limit <= 0 {
		limit = s.limit
	}
	return min(limit, maxFeedLimit)
}

// Following is the viewer's own posts plus those of the accounts they follow,
// newest first. Anonymous viewers get an empty feed.
func (s *FeedService) Following(ctx context.Context, viewerID uint, limit int) ([]models.Post, error) {
	defer observability.TrackFeed("following")()
	if viewerID == 0 {
		return []models.Post{}, nil
	}

	following, err := s.graph.followingIDs(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	authors := append(slices.Clone(following), viewerID)

	posts, err := s.posts.ListByAuthors(ctx, authors, viewerID, s.pageSize(limit))
	if err != nil {
		return nil, err
	}
	return filterVisible(posts, viewerID, following), nil
}

// Discover ranks public posts by likes, comments and recency, leaving out the
// viewer's own posts and those of accounts they follow.
func (s *FeedService) Discover(ctx context.Context, viewerID uint, limit int) ([]models.Post, error) {
	defer observability.TrackFeed("discover")()
	limit = s.pageSize(limit)

	if viewerID == 0 {
		if s.flags == nil || !s.flags.Enabled(featureflags.DiscoverCache, 0) {
			return s.posts.ListDiscover(ctx, nil, 0, limit)
		}
		var posts []models.Post
		err := s.cache.CacheAside(ctx, "discover", cache.DiscoverFeedKey(limit), &posts, cache.DiscoverFeedTTL, func() error {
			var err error
			posts, err = s.posts.ListDiscover(ctx, nil, 0, limit)
			return err
		})
		return posts, err
	}

	following, err := s.graph.followingIDs(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	exclude := append(slices.Clone(following), viewerID)
	return s.posts.ListDiscover(ctx, exclude, viewerID, limit)
}

// UserPosts lists the target's posts the viewer is allowed to see.
func (s *FeedService) UserPosts(ctx context.Context, targetID, viewerID uint, limit int) ([]models.Post, error) {
	defer observability.TrackFeed("user")()
	if _, err := s.users.GetByID(ctx, targetID); err != nil {
		return nil, err
	}

	posts, err := s.posts.ListByAuthors(ctx, []uint{targetID}, viewerID, s.pageSize(limit))
	if err != nil {
		return nil, err
	}
	following, err := s.graph.followingIDs(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	return filterVisible(posts, viewerID, following), nil
}

// Bookmarked lists the viewer's bookmarks that are still visible to them.
func (s *FeedService) Bookmarked(ctx context.Context, viewerID uint, limit int) ([]models.Post, error) {
	defer observability.TrackFeed("bookmarks")()
	if viewerID == 0 {
		return []models.Post{}, nil
	}

	posts, err := s.posts.ListBookmarked(ctx, viewerID, s.pageSize(limit))
	if err != nil {
		return nil, err
	}
	following, err := s.graph.followingIDs(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	return filterVisible(posts, viewerID, following), nil
}

func filterVisible(posts []models.Post, viewerID uint, following []uint) []models.Post {
	out := make([]models.Post, 0, len(posts))
	for i := range posts {
		if models.CanView(&posts[i], viewerID, slices.Contains(following, posts[i].AuthorID)) {
			out = append(out, posts[i])
		}
	}
	return out
}
