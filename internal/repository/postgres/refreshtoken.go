package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/streamview/backend/internal/apperrors"
	"github.com/streamview/backend/internal/models"
)

type RefreshTokenRepo struct {
	DB DBTX
}

const saveToken = `-- name: SaveRefreshToken
INSERT INTO refresh_tokens (token, user_id, expires_at, revoked)
VALUES ($1, $2, $3, $4)
RETURNING id, token, user_id, expires_at, revoked, created_at
`

func (r *RefreshTokenRepo) Save(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, saveToken, token.Token, token.UserID, token.ExpiresAt, token.Revoked)
	saved, err := pgx.CollectOneRow(rows, rowToRefreshToken)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return saved, apperrors.ErrRefreshTokenExists
		}

		return saved, fmt.Errorf("db error: %w", err)
	}
	return saved, nil
}

const getToken = `-- name: GetRefreshToken
SELECT id, token, user_id, expires_at, revoked, created_at
FROM refresh_tokens
WHERE token = $1
`

// Get token by the string itself
// Returns the row even if revoked or expired, callers decide what that means
func (r *RefreshTokenRepo) Get(ctx context.Context, tokenString string) (models.RefreshToken, error) {
	return r.get(ctx, getToken, tokenString)
}

const getTokenForUpdate = getToken + `FOR UPDATE
`

// GetForUpdate locks the token row until the surrounding transaction ends.
// Two concurrent rotations of the same token serialize on this lock: the
// loser re-reads the row after the winner's commit and sees it revoked.
func (r *RefreshTokenRepo) GetForUpdate(ctx context.Context, tokenString string) (models.RefreshToken, error) {
	return r.get(ctx, getTokenForUpdate, tokenString)
}

func (r *RefreshTokenRepo) get(ctx context.Context, query string, tokenString string) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, query, tokenString)
	token, err := pgx.CollectOneRow(rows, rowToRefreshToken)

	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, pgx.ErrNoRows):
		return token, apperrors.ErrRefreshTokenNotFound
	default:
		return token, fmt.Errorf("db error: %w", err)
	}
}

const revokeToken = `-- name: RevokeRefreshToken
UPDATE refresh_tokens
SET revoked = TRUE
WHERE token = $1
`

// Revoke marks the token revoked
// Idempotent: absent or already revoked tokens are a no-op, never an error
func (r *RefreshTokenRepo) Revoke(ctx context.Context, tokenString string) error {
	_, err := r.DB.Exec(ctx, revokeToken, tokenString)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const revokeUserTokens = `-- name: RevokeUserRefreshTokens
UPDATE refresh_tokens
SET revoked = TRUE
WHERE user_id = $1 AND NOT revoked
`

// RevokeUser kills every active token of the user
func (r *RefreshTokenRepo) RevokeUser(ctx context.Context, userID int64) error {
	_, err := r.DB.Exec(ctx, revokeUserTokens, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func rowToRefreshToken(row pgx.CollectableRow) (models.RefreshToken, error) {
	var t models.RefreshToken
	err := row.Scan(&t.ID, &t.Token, &t.UserID, &t.ExpiresAt, &t.Revoked, &t.CreatedAt)
	return t, err
}
