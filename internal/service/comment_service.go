package service

import (
	"context"
	"strings"

	"timeout/internal/models"
	"timeout/internal/notifications"
	"timeout/internal/repository"
	"timeout/internal/validation"
)

// CommentInput is a new comment; ParentID makes it a reply.
type CommentInput struct {
	Content  string `json:"content" validate:"notblank,max=1000"`
	ParentID *uint  `json:"parent_id"`
}

type CommentService struct {
	comments repository.CommentRepository
	posts    repository.PostRepository
	users    repository.UserRepository
	graph    followGraph
	rt       realtime
}

func NewCommentService(d Deps) *CommentService {
	return &CommentService{
		comments: d.Repos.Comments,
		posts:    d.Repos.Posts,
		users:    d.Repos.Users,
		graph:    followGraph{social: d.Repos.Social, cache: d.Cache},
		rt:       d.realtime(),
	}
}

func (s *CommentService) viewablePost(ctx context.Context, postID, viewerID uint) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, postID, viewerID)
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

// AddComment comments on a post the author can see. A parent must belong to
// the same post.
func (s *CommentService) AddComment(ctx context.Context, userID, postID uint, in CommentInput) (*models.Comment, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	post, err := s.viewablePost(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if in.ParentID != nil {
		parent, err := s.comments.GetByID(ctx, *in.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.PostID != postID {
			return nil, models.NewValidationError("Parent comment belongs to another post")
		}
	}

	comment := &models.Comment{
		PostID:   postID,
		AuthorID: userID,
		ParentID: in.ParentID,
		Content:  strings.TrimSpace(in.Content),
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}
	created, err := s.comments.GetByID(ctx, comment.ID)
	if err != nil {
		return nil, err
	}

	if post.AuthorID != userID {
		s.rt.send(ctx, post.AuthorID, notifications.CommentAdded, created)
	}
	return created, nil
}

// ListComments returns the post's top-level comments, oldest first, with
// replies nested under their parents.
func (s *CommentService) ListComments(ctx context.Context, postID, viewerID uint) ([]models.Comment, error) {
	if _, err := s.viewablePost(ctx, postID, viewerID); err != nil {
		return nil, err
	}
	flat, err := s.comments.ListByPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	return thread(flat), nil
}

func thread(flat []models.Comment) []models.Comment {
	children := make(map[uint][]models.Comment)
	var roots []models.Comment
	for _, c := range flat {
		if c.ParentID == nil {
			roots = append(roots, c)
			continue
		}
		children[*c.ParentID] = append(children[*c.ParentID], c)
	}

	var attach func(cs []models.Comment) []models.Comment
	attach = func(cs []models.Comment) []models.Comment {
		for i := range cs {
			if replies, ok := children[cs[i].ID]; ok {
				cs[i].Replies = attach(replies)
			}
		}
		return cs
	}
	if roots == nil {
		return []models.Comment{}
	}
	return attach(roots)
}

// DeleteComment removes a comment. Only its author or staff may do so.
func (s *CommentService) DeleteComment(ctx context.Context, userID, id uint) error {
	comment, err := s.comments.GetByID(ctx, id)
	if err != nil {
		return err
	}
	staff, err := s.users.IsStaff(ctx, userID)
	if err != nil {
		return err
	}
	if !comment.CanDelete(userID, staff) {
		return models.NewForbiddenError("You cannot delete this comment")
	}
	return s.comments.Delete(ctx, id)
}
