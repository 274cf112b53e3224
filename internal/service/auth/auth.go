package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/streamview/backend/internal/apperrors"
	"github.com/streamview/backend/internal/logger"
	"github.com/streamview/backend/internal/models"
	"github.com/streamview/backend/internal/repository"
	"github.com/streamview/backend/internal/service/auth/tokenmanager"
)

// Interface to create or compare user password hashes
type PasswordHasher interface {
	// Generate hash from password
	Hash(password string) (string, error)

	// Compare known hashedPassword and user provided password
	// Must be protected against timing attacks
	Compare(hashedPassword string, password string) error
}

type Config struct {
	// Hasher to use during registration and login
	// BcryptHasher is used if not set
	Hasher PasswordHasher

	// Logger for internal auth events
	// Silent if not set
	Logger logger.Logger
}

// Compared against when login hits an unknown email, so the response takes
// about as long as a real password check
var dummyHash = func() string {
	hash, _ := BcryptHasher{}.Hash("!not-a-real-password!")
	return hash
}()

type AuthService struct {
	// Manager that issues and rotates token pairs
	token *tokenmanager.TokenManager

	// hasher to hash or compare user passwords
	hasher PasswordHasher

	// Long term storage for users
	storage repository.Storage

	logger logger.Logger
}

func NewService(cfg Config, token *tokenmanager.TokenManager, storage repository.Storage) (*AuthService, error) {
	if token == nil || storage == nil {
		return nil, errors.New("token manager and storage must not be nil")
	}

	hasher := cfg.Hasher
	if hasher == nil {
		hasher = BcryptHasher{}
	}

	log := cfg.Logger
	if log == nil {
		log = logger.NewNoOp()
	}

	return &AuthService{
		token:   token,
		hasher:  hasher,
		storage: storage,
		logger:  log,
	}, nil
}

// AccessTTL reports the access token lifetime, for expires_in rendering
func (s *AuthService) AccessTTL() int64 {
	return int64(s.token.AccessTTL().Seconds())
}

// Register creates a user with the default role and issues the initial token pair
// Returns apperrors.ErrUserAlreadyExists if the email is taken (case-insensitively)
func (s *AuthService) Register(ctx context.Context, email string, password string) (models.TokenPair, models.User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.TokenPair{}, models.User{}, fmt.Errorf("can't use this as password, error=%w", err)
	}

	user, err := s.storage.User().Create(ctx, repository.CreateUserParams{
		Email:        strings.ToLower(email),
		PasswordHash: hash,
		Role:         models.RoleUser,
	})
	if err != nil {
		return models.TokenPair{}, models.User{}, err
	}

	pair, err := s.token.GeneratePair(ctx, user)
	if err != nil {
		return models.TokenPair{}, models.User{}, fmt.Errorf("token could not be generated. Err: %w", err)
	}

	return pair, user, nil
}

// Login verifies credentials and issues a fresh token pair
// Unknown email, wrong password and inactive account all collapse to
// apperrors.ErrInvalidCredentials
func (s *AuthService) Login(ctx context.Context, email string, password string) (models.TokenPair, models.User, error) {
	user, err := s.storage.User().GetByEmail(ctx, email)
	if err != nil {
		// Burn a comparison anyway so the miss isn't observably faster
		_ = s.hasher.Compare(dummyHash, password)
		return models.TokenPair{}, models.User{}, apperrors.ErrInvalidCredentials
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return models.TokenPair{}, models.User{}, apperrors.ErrInvalidCredentials
	}

	if !user.IsActive {
		return models.TokenPair{}, models.User{}, apperrors.ErrInvalidCredentials
	}

	pair, err := s.token.GeneratePair(ctx, user)
	if err != nil {
		return models.TokenPair{}, models.User{}, fmt.Errorf("token could not be generated. Err: %w", err)
	}

	return pair, user, nil
}

// Refresh atomically rotates the refresh token and issues a new pair bound to
// the owner's current role. Every failure collapses to
// apperrors.ErrRefreshTokenInvalid; the specific cause is logged only
func (s *AuthService) Refresh(ctx context.Context, refresh string) (models.TokenPair, models.User, error) {
	pair, user, err := s.token.Rotate(ctx, refresh)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrRefreshTokenRevoked):
			// Reuse of a rotated token is the classic sign of a stolen chain
			s.logger.Warn("revoked refresh token presented, possible token theft")
		case errors.Is(err, apperrors.ErrRefreshTokenNotFound),
			errors.Is(err, apperrors.ErrRefreshTokenExpired),
			errors.Is(err, apperrors.ErrUserNotFound),
			errors.Is(err, apperrors.ErrUserInactive):
			s.logger.Info("refresh rejected", "reason", err.Error())
		default:
			return models.TokenPair{}, models.User{}, err
		}

		return models.TokenPair{}, models.User{}, apperrors.ErrRefreshTokenInvalid
	}

	return pair, user, nil
}

// Logout revokes the refresh token
// Idempotent: succeeds whether or not the token exists or is already revoked
func (s *AuthService) Logout(ctx context.Context, refresh string) error {
	return s.token.Revoke(ctx, refresh)
}

// UserFromRequest resolves the principal from the Authorization header
// Fails with apperrors.ErrAccessTokenInvalid unless the bearer token verifies
// and maps to an active user
func (s *AuthService) UserFromRequest(ctx context.Context, r *http.Request) (models.User, error) {
	access, err := bearerToken(r)
	if err != nil {
		return models.User{}, err
	}

	userID, _, err := s.token.ParseAccess(ctx, access)
	if err != nil {
		return models.User{}, err
	}

	user, err := s.storage.User().GetByID(ctx, userID)
	if err != nil {
		return models.User{}, fmt.Errorf("%w: %w", apperrors.ErrAccessTokenInvalid, err)
	}
	if !user.IsActive {
		return models.User{}, fmt.Errorf("%w: %w", apperrors.ErrAccessTokenInvalid, apperrors.ErrUserInactive)
	}

	return user, nil
}

func bearerToken(r *http.Request) (string, error) {
	const scheme = "Bearer "

	header := r.Header.Get("Authorization")
	if len(header) <= len(scheme) || !strings.EqualFold(header[:len(scheme)], scheme) {
		return "", fmt.Errorf("%w: no bearer token", apperrors.ErrAccessTokenInvalid)
	}

	return header[len(scheme):], nil
}
