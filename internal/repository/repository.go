package repository

import (
	"context"

	"github.com/streamview/backend/internal/models"
)

// Storage bundles repositories bound to the same querier (pool or transaction)
type Storage interface {
	User() UserRepo
	Refresh() RefreshTokenRepo

	// Run fn within a database transaction
	// Storage passed to fn is bound to that transaction; commit on nil, rollback otherwise
	InTx(ctx context.Context, fn func(s Storage) error) error
}

type CreateUserParams struct {
	Email        string
	PasswordHash string
	Role         models.Role
}

// User repository interface
type UserRepo interface {
	// Create user. Email must be stored lowercased
	// If a user with the same email exists (case-insensitively) has to return apperrors.ErrUserAlreadyExists
	Create(ctx context.Context, arg CreateUserParams) (models.User, error)

	// Get user by id or email
	// If user not found must return apperrors.ErrUserNotFound
	GetByID(ctx context.Context, id int64) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
}

// RefreshToken repository interface
type RefreshTokenRepo interface {
	// Persist token. The unique constraint on the token string is the
	// store's uniqueness guarantee; a collision surfaces as an error
	Save(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error)

	// Get token by the string itself
	// Returns the row even if it is revoked or expired
	// If absent must return apperrors.ErrRefreshTokenNotFound
	Get(ctx context.Context, tokenString string) (models.RefreshToken, error)

	// Same as Get but locks the row until the surrounding transaction ends
	// Meaningful only when called on a Storage bound to a transaction
	GetForUpdate(ctx context.Context, tokenString string) (models.RefreshToken, error)

	// Mark token revoked
	// Idempotent: revoking an absent or already revoked token is not an error
	Revoke(ctx context.Context, tokenString string) error

	// Revoke every token of the user. Hook for chain revocation on reuse detection
	RevokeUser(ctx context.Context, userID int64) error
}
