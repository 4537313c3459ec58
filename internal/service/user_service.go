package service

import (
	"context"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"timeout/internal/models"
	"timeout/internal/repository"
	"timeout/internal/validation"
)

// TokenIssuer signs access tokens for a user.
type TokenIssuer interface {
	Issue(userID uint) (string, time.Time, error)
}

type SignupInput struct {
	Username  string `json:"username" validate:"required,username"`
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,password"`
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name" validate:"max=150"`
}

// LoginInput accepts a username or an email address as Login.
type LoginInput struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type ProfileInput struct {
	FirstName   string `json:"first_name" validate:"max=150"`
	LastName    string `json:"last_name" validate:"max=150"`
	Bio         string `json:"bio" validate:"max=500"`
	University  string `json:"university" validate:"max=200"`
	YearOfStudy int    `json:"year_of_study" validate:"min=0,max=10"`
}

// AuthResult is returned by signup and login.
type AuthResult struct {
	User      *models.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// Profile is a user page as seen by a viewer.
type Profile struct {
	User        *models.User   `json:"user"`
	IsFollowing bool           `json:"is_following"`
	IsSelf      bool           `json:"is_self"`
	Status      *ProfileStatus `json:"status,omitempty"`
}

type UserService struct {
	users  repository.UserRepository
	graph  followGraph
	tokens TokenIssuer
	status func(ctx context.Context, userID uint) (*ProfileStatus, error)
	now    Clock
}

// NewUserService creates a UserService. status supplies the headline event
// of a profile and may be nil.
func NewUserService(
	d Deps,
	tokens TokenIssuer,
	status func(ctx context.Context, userID uint) (*ProfileStatus, error),
) *UserService {
	return &UserService{
		users:  d.Repos.Users,
		graph:  followGraph{social: d.Repos.Social, cache: d.Cache},
		tokens: tokens,
		status: status,
		now:    d.clock(),
	}
}

func (s *UserService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	if existing, err := s.users.GetByUsername(ctx, in.Username); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, models.NewConflictError("Username already taken", nil)
	}
	if existing, err := s.users.GetByEmail(ctx, in.Email); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, models.NewConflictError("Email already registered", nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	user := &models.User{
		Username:  in.Username,
		Email:     in.Email,
		Password:  string(hash),
		FirstName: in.FirstName,
		LastName:  in.LastName,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return s.issue(user)
}

func (s *UserService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	login := strings.TrimSpace(in.Login)

	user, err := s.users.GetByUsername(ctx, login)
	if err != nil {
		return nil, err
	}
	if user == nil && strings.Contains(login, "@") {
		if user, err = s.users.GetByEmail(ctx, strings.ToLower(login)); err != nil {
			return nil, err
		}
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)) != nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	return s.issue(user)
}

func (s *UserService) issue(user *models.User) (*AuthResult, error) {
	token, expires, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &AuthResult{User: user, Token: token, ExpiresAt: expires}, nil
}

// Profile loads a user with follower counts, the viewer's follow state and
// the user's headline event.
func (s *UserService) Profile(ctx context.Context, targetID, viewerID uint) (*Profile, error) {
	user, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	following, err := s.graph.follows(ctx, viewerID, targetID)
	if err != nil {
		return nil, err
	}
	p := &Profile{User: user, IsFollowing: following, IsSelf: viewerID != 0 && viewerID == targetID}
	if s.status != nil {
		if p.Status, err = s.status(ctx, targetID); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID uint, in ProfileInput) (*models.User, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.FirstName = strings.TrimSpace(in.FirstName)
	user.LastName = strings.TrimSpace(in.LastName)
	user.Bio = in.Bio
	user.University = strings.TrimSpace(in.University)
	user.YearOfStudy = in.YearOfStudy
	user.UpdatedAt = s.now()
	if err := s.users.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
