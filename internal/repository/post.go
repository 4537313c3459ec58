package repository

import (
	"context"
	"errors"

	"timeout/internal/models"
	"timeout/internal/observability"

	"gorm.io/gorm"
)

// PostRepository defines persistence operations for posts. Read methods fill
// LikesCount, CommentsCount, Liked and Bookmarked for viewerID (0 = anonymous).
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	UpdateContent(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id uint) error
	GetByID(ctx context.Context, id, viewerID uint) (*models.Post, error)
	// GetMirror returns the post mirroring eventID, or nil, nil.
	GetMirror(ctx context.Context, eventID uint) (*models.Post, error)
	DeleteMirror(ctx context.Context, eventID uint) error
	// DetachEvent clears event_id on every remaining post linked to eventID.
	DetachEvent(ctx context.Context, eventID uint) error
	ListByAuthors(ctx context.Context, authorIDs []uint, viewerID uint, limit int) ([]models.Post, error)
	ListDiscover(ctx context.Context, excludeAuthorIDs []uint, viewerID uint, limit int) ([]models.Post, error)
	ListBookmarked(ctx context.Context, userID uint, limit int) ([]models.Post, error)
}

type postRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewPostRepository creates a new post repository.
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db, log: observability.NewRepoLogger("posts")}
}

// withDetails selects the derived counters and viewer flags in one query.
func withDetails(db *gorm.DB, viewerID uint) *gorm.DB {
	sel := "posts.*, " +
		"(SELECT COUNT(*) FROM likes WHERE likes.post_id = posts.id) AS likes_count, " +
		"(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id) AS comments_count"
	if viewerID == 0 {
		return db.Select(sel + ", false AS liked, false AS bookmarked")
	}
	return db.Select(sel+
		", EXISTS(SELECT 1 FROM likes WHERE likes.post_id = posts.id AND likes.user_id = ?) AS liked"+
		", EXISTS(SELECT 1 FROM bookmarks WHERE bookmarks.post_id = posts.id AND bookmarks.user_id = ?) AS bookmarked",
		viewerID, viewerID)
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Omit("Author", "Event").Create(post).Error; err != nil {
		if isUniqueViolation(err) {
			return models.NewConflictError("Event already has a mirror post", nil)
		}
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, map[string]interface{}{"post_id": post.ID, "author_id": post.AuthorID})
	return nil
}

func (r *postRepository) UpdateContent(ctx context.Context, post *models.Post) error {
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ?", post.ID).
		Updates(map[string]interface{}{
			"content":    post.Content,
			"privacy":    post.Privacy,
			"updated_at": post.UpdatedAt,
		}).Error
	if err != nil {
		r.log.LogError(ctx, err, "update")
		return models.NewInternalError(err)
	}
	r.log.LogUpdate(ctx, map[string]interface{}{"post_id": post.ID})
	return nil
}

func (r *postRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.Post{}, id).Error; err != nil {
		r.log.LogError(ctx, err, "delete")
		return models.NewInternalError(err)
	}
	r.log.LogDelete(ctx, map[string]interface{}{"post_id": id})
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	var post models.Post
	err := withDetails(r.db.WithContext(ctx), viewerID).
		Preload("Author").
		Where("posts.id = ?", id).
		First(&post).Error
	if err != nil {
		return nil, notFound(err, "Post", id)
	}
	return &post, nil
}

func (r *postRepository) GetMirror(ctx context.Context, eventID uint) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).
		Where("event_id = ? AND is_event_mirror = ?", eventID, true).
		First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &post, nil
}

func (r *postRepository) DeleteMirror(ctx context.Context, eventID uint) error {
	err := r.db.WithContext(ctx).
		Where("event_id = ? AND is_event_mirror = ?", eventID, true).
		Delete(&models.Post{}).Error
	if err != nil {
		r.log.LogError(ctx, err, "delete_mirror")
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) DetachEvent(ctx context.Context, eventID uint) error {
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("event_id = ?", eventID).
		Update("event_id", nil).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) ListByAuthors(ctx context.Context, authorIDs []uint, viewerID uint, limit int) ([]models.Post, error) {
	if len(authorIDs) == 0 {
		return []models.Post{}, nil
	}
	var posts []models.Post
	err := withDetails(r.db.WithContext(ctx), viewerID).
		Preload("Author").
		Where("posts.author_id IN ?", authorIDs).
		Order("posts.created_at DESC, posts.id DESC").
		Limit(clampLimit(limit, 50)).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

// ListDiscover ranks public posts by likes, then comments, then recency.
func (r *postRepository) ListDiscover(ctx context.Context, excludeAuthorIDs []uint, viewerID uint, limit int) ([]models.Post, error) {
	q := withDetails(r.db.WithContext(ctx), viewerID).
		Preload("Author").
		Where("posts.privacy = ?", models.PrivacyPublic)
	if len(excludeAuthorIDs) > 0 {
		q = q.Where("posts.author_id NOT IN ?", excludeAuthorIDs)
	}

	var posts []models.Post
	err := q.Order("likes_count DESC, comments_count DESC, posts.created_at DESC, posts.id DESC").
		Limit(clampLimit(limit, 50)).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

// ListBookmarked returns the user's bookmarked posts, newest post first.
func (r *postRepository) ListBookmarked(ctx context.Context, userID uint, limit int) ([]models.Post, error) {
	var posts []models.Post
	err := withDetails(r.db.WithContext(ctx), userID).
		Preload("Author").
		Where("posts.id IN (SELECT post_id FROM bookmarks WHERE bookmarks.user_id = ?)", userID).
		Order("posts.created_at DESC, posts.id DESC").
		Limit(clampLimit(limit, 50)).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}
