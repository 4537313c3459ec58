package repository

import (
	"context"

	"timeout/internal/models"
	"timeout/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SocialRepository covers the pure relations: likes, bookmarks and follows.
// Insert methods report false when the row already existed.
type SocialRepository interface {
	InsertLike(ctx context.Context, userID, postID uint) (bool, error)
	DeleteLike(ctx context.Context, userID, postID uint) (int64, error)
	InsertBookmark(ctx context.Context, userID, postID uint) (bool, error)
	DeleteBookmark(ctx context.Context, userID, postID uint) (int64, error)
	InsertFollow(ctx context.Context, followerID, followeeID uint) (bool, error)
	DeleteFollow(ctx context.Context, followerID, followeeID uint) (int64, error)
	IsFollowing(ctx context.Context, followerID, followeeID uint) (bool, error)
	FollowingIDs(ctx context.Context, userID uint) ([]uint, error)
	Followers(ctx context.Context, userID uint) ([]models.User, error)
	Following(ctx context.Context, userID uint) ([]models.User, error)
}

type socialRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewSocialRepository returns a gorm SocialRepository.
func NewSocialRepository(db *gorm.DB) SocialRepository {
	return &socialRepository{db: db, log: observability.NewRepoLogger("social")}
}

// insertOnce inserts row, treating a unique conflict as "already there".
func (r *socialRepository) insertOnce(ctx context.Context, row interface{}) (bool, error) {
	res := r.db.WithContext(ctx).Omit(clause.Associations).Clauses(clause.OnConflict{DoNothing: true}).Create(row)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return false, nil
		}
		r.log.LogError(ctx, res.Error, "insert")
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *socialRepository) deleteWhere(ctx context.Context, model interface{}, query string, args ...interface{}) (int64, error) {
	res := r.db.WithContext(ctx).Where(query, args...).Delete(model)
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "delete")
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}

func (r *socialRepository) InsertLike(ctx context.Context, userID, postID uint) (bool, error) {
	return r.insertOnce(ctx, &models.Like{UserID: userID, PostID: postID})
}

func (r *socialRepository) DeleteLike(ctx context.Context, userID, postID uint) (int64, error) {
	return r.deleteWhere(ctx, &models.Like{}, "user_id = ? AND post_id = ?", userID, postID)
}

func (r *socialRepository) InsertBookmark(ctx context.Context, userID, postID uint) (bool, error) {
	return r.insertOnce(ctx, &models.Bookmark{UserID: userID, PostID: postID})
}

func (r *socialRepository) DeleteBookmark(ctx context.Context, userID, postID uint) (int64, error) {
	return r.deleteWhere(ctx, &models.Bookmark{}, "user_id = ? AND post_id = ?", userID, postID)
}

func (r *socialRepository) InsertFollow(ctx context.Context, followerID, followeeID uint) (bool, error) {
	return r.insertOnce(ctx, &models.Follow{FollowerID: followerID, FolloweeID: followeeID})
}

func (r *socialRepository) DeleteFollow(ctx context.Context, followerID, followeeID uint) (int64, error) {
	return r.deleteWhere(ctx, &models.Follow{}, "follower_id = ? AND followee_id = ?", followerID, followeeID)
}

func (r *socialRepository) IsFollowing(ctx context.Context, followerID, followeeID uint) (bool, error) {
	if followerID == 0 || followeeID == 0 {
		return false, nil
	}
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Count(&n).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return n > 0, nil
}

func (r *socialRepository) FollowingIDs(ctx context.Context, userID uint) ([]uint, error) {
	ids := []uint{}
	err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ?", userID).
		Order("followee_id").
		Pluck("followee_id", &ids).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

func (r *socialRepository) Followers(ctx context.Context, userID uint) ([]models.User, error) {
	return r.usersVia(ctx, "users.id IN (SELECT follower_id FROM follows WHERE followee_id = ?)", userID)
}

func (r *socialRepository) Following(ctx context.Context, userID uint) ([]models.User, error) {
	return r.usersVia(ctx, "users.id IN (SELECT followee_id FROM follows WHERE follower_id = ?)", userID)
}

func (r *socialRepository) usersVia(ctx context.Context, query string, userID uint) ([]models.User, error) {
	users := []models.User{}
	err := r.db.WithContext(ctx).Where(query, userID).Order("users.username").Find(&users).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}
