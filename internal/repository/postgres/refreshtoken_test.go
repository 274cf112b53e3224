package postgres

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamview/backend/internal/apperrors"
	"github.com/streamview/backend/internal/models"
	"github.com/streamview/backend/internal/repository"
	"github.com/streamview/backend/internal/testutil"
)

func mustParseTime(value string) time.Time {
	dt, err := time.Parse("2006-01-02 15:04:05Z07:00", value)
	if err != nil {
		panic(err)
	}
	return dt
}

func Test_RefreshTokenRepo(t *testing.T) {
	t.Parallel() // It's ok to run in parallel with other tests, but not with subtests

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	// Tokens reference users, so each subtest creates its owner first
	createUser := func(t *testing.T, tx pgx.Tx) models.User {
		t.Helper()
		user, err := (&UserRepo{DB: tx}).Create(t.Context(), repository.CreateUserParams{
			Email:        "owner@example.com",
			PasswordHash: "hash",
			Role:         models.RoleUser,
		})
		require.NoError(t, err)
		return user
	}

	token := models.RefreshToken{
		Token:     "secret-token",
		ExpiresAt: mustParseTime("2200-01-01 03:00:02Z"),
		Revoked:   false,
	}

	t.Run("save token ok", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := RefreshTokenRepo{DB: tx}
			token := token
			token.UserID = createUser(t, tx).ID

			got, err := repo.Save(t.Context(), token)

			require.NoError(t, err)
			require.NotZero(t, got.ID)
			require.Equal(t, token.UserID, got.UserID)
			require.Equal(t, token.Token, got.Token)
			require.WithinDuration(t, token.ExpiresAt, got.ExpiresAt, time.Microsecond)
			require.False(t, got.Revoked, "fresh token must not be revoked")
			require.WithinDuration(t, time.Now(), got.CreatedAt, time.Minute)
		})
	})

	t.Run("save duplicate token string", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := RefreshTokenRepo{DB: tx}
			token := token
			token.UserID = createUser(t, tx).ID

			_, err := repo.Save(t.Context(), token)
			require.NoError(t, err)

			_, err = repo.Save(t.Context(), token)

			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrRefreshTokenExists)
		})
	})

	t.Run("get token ok", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := RefreshTokenRepo{DB: tx}
			token := token
			token.UserID = createUser(t, tx).ID
			_, err := repo.Save(t.Context(), token)
			require.NoError(t, err)

			got, err := repo.Get(t.Context(), token.Token)

			require.NoError(t, err)
			require.Equal(t, token.Token, got.Token)
			require.Equal(t, token.UserID, got.UserID)
			require.WithinDuration(t, token.ExpiresAt, got.ExpiresAt, time.Microsecond)
		})
	})

	t.Run("get not existed token", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := RefreshTokenRepo{DB: tx}

			_, err := repo.Get(t.Context(), "no-such-token")

			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound)
		})
	})

	t.Run("get returns revoked and expired rows", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := RefreshTokenRepo{DB: tx}
			expired := models.RefreshToken{
				Token:     "already-expired",
				UserID:    createUser(t, tx).ID,
				ExpiresAt: mustParseTime("2000-01-01 00:00:00Z"),
				Revoked:   true,
			}
			_, err := repo.Save(t.Context(), expired)
			require.NoError(t, err)

			got, err := repo.Get(t.Context(), expired.Token)

			require.NoError(t, err, "Get must return the row whatever state it is in")
			require.True(t, got.Revoked)
			require.True(t, got.ExpiredAt(time.Now()))
		})
	})

	t.Run("revoke is idempotent", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := RefreshTokenRepo{DB: tx}
			token := token
			token.UserID = createUser(t, tx).ID
			_, err := repo.Save(t.Context(), token)
			require.NoError(t, err)

			require.NoError(t, repo.Revoke(t.Context(), token.Token))
			require.NoError(t, repo.Revoke(t.Context(), token.Token), "second revoke must not fail")

			got, err := repo.Get(t.Context(), token.Token)
			require.NoError(t, err)
			require.True(t, got.Revoked, "token must stay revoked")
		})
	})

	t.Run("revoke not existed token", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := RefreshTokenRepo{DB: tx}

			require.NoError(t, repo.Revoke(t.Context(), "no-such-token"))
		})
	})

	t.Run("revoke user kills every active token", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := RefreshTokenRepo{DB: tx}
			user := createUser(t, tx)

			for _, value := range []string{"chain-1", "chain-2", "chain-3"} {
				token := token
				token.Token = value
				token.UserID = user.ID
				_, err := repo.Save(t.Context(), token)
				require.NoError(t, err)
			}

			require.NoError(t, repo.RevokeUser(t.Context(), user.ID))

			for _, value := range []string{"chain-1", "chain-2", "chain-3"} {
				got, err := repo.Get(t.Context(), value)
				require.NoError(t, err)
				require.True(t, got.Revoked)
			}
		})
	})
}
