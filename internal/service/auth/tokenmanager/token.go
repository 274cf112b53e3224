package tokenmanager

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/streamview/backend/internal/apperrors"
	"github.com/streamview/backend/internal/models"
	"github.com/streamview/backend/internal/repository"
)

const (
	defaultSigningMethod   = "HS256"
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 30 * 24 * time.Hour

	// Access tokens carry typ="access" so a refresh string can never
	// be mistaken for a bearer credential
	accessTokenType = "access"

	// 32 random bytes == 256 bits of entropy per refresh token
	refreshTokenBytes = 32

	// Attempts to insert a fresh token string before giving up.
	// The unique index makes a collision an error, not a silent overwrite
	refreshSaveAttempts = 3
)

type AccessTokenClaims struct {
	jwt.RegisteredClaims
	TokenType string      `json:"typ"`
	Role      models.Role `json:"role"`
}

// Token manager config with sensible defaults
type Config struct {
	// Secret key to sign access tokens
	// Required to be set
	SecretKey string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set the default is used
	Alg string

	// Access and refresh token lifetimes
	// If not set the defaults are used
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type TokenManager struct {
	// Secret key to sign access tokens
	key string

	// JWT MAC algorithm
	alg jwt.SigningMethod

	// Access and refresh token lifetimes
	accessTTL  time.Duration
	refreshTTL time.Duration

	// Long term storage for refresh tokens and their owners
	storage repository.Storage
}

func New(cfg Config, storage repository.Storage) (*TokenManager, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTokenTTL)

	alg := jwt.GetSigningMethod(cfg.Alg)
	if alg == nil {
		return nil, fmt.Errorf("unknown signing method: %q", cfg.Alg)
	}

	return &TokenManager{
		key:        cfg.SecretKey,
		alg:        alg,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		storage:    storage,
	}, nil
}

// AccessTTL reports the configured access token lifetime
func (m *TokenManager) AccessTTL() time.Duration {
	return m.accessTTL
}

// GeneratePair signs a new access token and persists a new refresh token for the user
func (m *TokenManager) GeneratePair(ctx context.Context, user models.User) (models.TokenPair, error) {
	var pair models.TokenPair
	now := time.Now().Truncate(time.Second)

	access, err := m.signAccess(user, now)
	if err != nil {
		return pair, err
	}

	refresh, err := m.issueRefresh(ctx, m.storage.Refresh(), user.ID, now)
	if err != nil {
		return pair, err
	}

	return models.TokenPair{
		Access:  access,
		Refresh: models.IssuedToken{Value: refresh.Token, ExpiresAt: refresh.ExpiresAt},
	}, nil
}

// Rotate exchanges a refresh token for a fresh token pair.
//
// The whole exchange runs in a single transaction: the presented token is
// locked, validated (known, not revoked, not expired, owner still active),
// revoked and replaced. Either all of that commits or none of it does, so
// there is never a moment with the old token revoked but no replacement, nor
// one where both tokens are active. Of two concurrent rotations of the same
// token exactly one wins; the loser sees the token revoked and fails.
func (m *TokenManager) Rotate(ctx context.Context, refresh string) (models.TokenPair, models.User, error) {
	var pair models.TokenPair
	var user models.User
	now := time.Now().Truncate(time.Second)

	err := m.storage.InTx(ctx, func(s repository.Storage) error {
		old, err := s.Refresh().GetForUpdate(ctx, refresh)
		if err != nil {
			return err
		}

		switch {
		case old.Revoked:
			return apperrors.ErrRefreshTokenRevoked
		case old.ExpiredAt(now):
			return apperrors.ErrRefreshTokenExpired
		}

		user, err = s.User().GetByID(ctx, old.UserID)
		if err != nil {
			return err
		}
		if !user.IsActive {
			return apperrors.ErrUserInactive
		}

		if err := s.Refresh().Revoke(ctx, old.Token); err != nil {
			return err
		}

		newToken, err := m.issueRefresh(ctx, s.Refresh(), user.ID, now)
		if err != nil {
			return err
		}

		// Access token is bound to the owner's current role, not the one
		// they had when the chain started
		access, err := m.signAccess(user, now)
		if err != nil {
			return err
		}

		pair = models.TokenPair{
			Access:  access,
			Refresh: models.IssuedToken{Value: newToken.Token, ExpiresAt: newToken.ExpiresAt},
		}
		return nil
	})
	if err != nil {
		return models.TokenPair{}, models.User{}, err
	}

	return pair, user, nil
}

// Revoke invalidates the refresh token
// Idempotent: unknown or already revoked tokens are a no-op
func (m *TokenManager) Revoke(ctx context.Context, refresh string) error {
	return m.storage.Refresh().Revoke(ctx, refresh)
}

// GetRefresh returns the stored token row whatever state it is in
func (m *TokenManager) GetRefresh(ctx context.Context, refresh string) (models.RefreshToken, error) {
	return m.storage.Refresh().Get(ctx, refresh)
}

// ParseAccess verifies the access token and returns the embedded user id and role
// Every failure (signature, expiry, missing claims, wrong typ) wraps
// apperrors.ErrAccessTokenInvalid
func (m *TokenManager) ParseAccess(ctx context.Context, access string) (int64, models.Role, error) {
	claims := &AccessTokenClaims{}

	_, err := jwt.ParseWithClaims(
		access,
		claims,
		func(t *jwt.Token) (any, error) { return []byte(m.key), nil },
		jwt.WithValidMethods([]string{m.alg.Alg()}),
	)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %w", apperrors.ErrAccessTokenInvalid, err)
	}

	if claims.TokenType != accessTokenType {
		return 0, "", fmt.Errorf("%w: unexpected token type %q", apperrors.ErrAccessTokenInvalid, claims.TokenType)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("%w: bad subject claim", apperrors.ErrAccessTokenInvalid)
	}

	return userID, claims.Role, nil
}

func (m *TokenManager) signAccess(user models.User, now time.Time) (models.IssuedToken, error) {
	expiresAt := now.Add(m.accessTTL)

	token := jwt.NewWithClaims(
		m.alg,
		AccessTokenClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				Subject:   strconv.FormatInt(user.ID, 10),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(expiresAt),
			},
			TokenType: accessTokenType,
			Role:      user.Role,
		},
	)

	signed, err := token.SignedString([]byte(m.key))
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while signing access token. Err: %w", err)
	}

	return models.IssuedToken{Value: signed, ExpiresAt: expiresAt}, nil
}

// issueRefresh persists a fresh random token string for the user
// The unique index on the token column guarantees uniqueness; on the
// astronomically unlikely collision a new string is generated and retried
func (m *TokenManager) issueRefresh(ctx context.Context, repo repository.RefreshTokenRepo, userID int64, now time.Time) (models.RefreshToken, error) {
	var lastErr error

	for range refreshSaveAttempts {
		value, err := randomTokenString()
		if err != nil {
			return models.RefreshToken{}, err
		}

		saved, err := repo.Save(ctx, models.RefreshToken{
			Token:     value,
			UserID:    userID,
			ExpiresAt: now.Add(m.refreshTTL),
			Revoked:   false,
		})
		if err == nil {
			return saved, nil
		}
		if !errors.Is(err, apperrors.ErrRefreshTokenExists) {
			return models.RefreshToken{}, fmt.Errorf("error while saving refresh token. Err: %w", err)
		}
		lastErr = err
	}

	return models.RefreshToken{}, fmt.Errorf("error while saving refresh token. Err: %w", lastErr)
}

func randomTokenString() (string, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("error while generating refresh token. Err: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
