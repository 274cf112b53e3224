package apperrors

import (
	"errors"
)

// Specific sentinels used inside the service layer and logs.
var (
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")
	ErrUserInactive      = errors.New("user is inactive")

	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenExists   = errors.New("refresh token string already exists")
	ErrRefreshTokenRevoked  = errors.New("refresh token is revoked")
	ErrRefreshTokenExpired  = errors.New("refresh token is expired")
)

// Generic errors surfaced to API callers.
// Deliberately collapse several causes so callers can't probe which check failed.
var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrRefreshTokenInvalid = errors.New("invalid refresh token")
	ErrAccessTokenInvalid  = errors.New("invalid access token")
)
