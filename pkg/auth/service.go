package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gantim/nvcloud-api-and-bot/pkg/database/models"
	"github.com/gantim/nvcloud-api-and-bot/pkg/database/repositories"
)

var (
	// ErrInvalidCredentials is returned when login credentials are incorrect
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned when a requested user does not exist
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameTaken is returned when registering an already-used username
	ErrUsernameTaken = errors.New("username already registered")
	// ErrEmailTaken is returned when registering an already-used email
	ErrEmailTaken = errors.New("email already registered")
)

// Service provides authentication operations including registration, login
// and caller resolution from verified claims
type Service struct {
	userRepo   *repositories.UserRepository
	jwtManager *JWTManager
}

// NewService creates a new authentication service with the provided repository and JWT manager
func NewService(userRepo *repositories.UserRepository, jwtManager *JWTManager) *Service {
	return &Service{
		userRepo:   userRepo,
		jwtManager: jwtManager,
	}
}

// RegisterRequest represents the data required to create an account
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"full_name"`
}

// LoginRequest represents the data required for user authentication
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse contains the token returned after successful login or registration
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    uuid.UUID `json:"user_id"`
	Username  string    `json:"username"`
}

// Register creates an account and returns a token for it. Username and
// email must both be unused.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*TokenResponse, error) {
	if _, err := s.userRepo.GetByUsername(ctx, req.Username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if _, err := s.userRepo.GetByEmail(ctx, req.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user := &models.User{
		Username: req.Username,
		Email:    req.Email,
		FullName: req.FullName,
	}
	if err := user.SetPassword(req.Password); err != nil {
		return nil, err
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	return s.issueToken(user)
}

// Authenticate verifies credentials and returns a token
func (s *Service) Authenticate(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	user, err := s.userRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.CheckPassword(req.Password) {
		return nil, ErrInvalidCredentials
	}

	return s.issueToken(user)
}

// ResolveUser loads the account behind verified claims
func (s *Service) ResolveUser(ctx context.Context, claims *Claims) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// IssueLinkCode mints a fresh one-time code the user hands to the chat bot
// to bind their chat to this account. A new code invalidates any prior one.
func (s *Service) IssueLinkCode(ctx context.Context, user *models.User) (uuid.UUID, error) {
	code := uuid.New()
	user.LinkCode = &code
	if err := s.userRepo.Update(ctx, user); err != nil {
		return uuid.Nil, err
	}
	return code, nil
}

func (s *Service) issueToken(user *models.User) (*TokenResponse, error) {
	token, err := s.jwtManager.Generate(user.ID, user.Username, user.IsAdmin)
	if err != nil {
		return nil, err
	}
	return &TokenResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(s.jwtManager.tokenDuration),
		UserID:    user.ID,
		Username:  user.Username,
	}, nil
}
