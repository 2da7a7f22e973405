package auth

import "errors"

// Domain errors for the auth package.
var (
	ErrTokenMissing = errors.New("auth: token missing")
	ErrTokenInvalid = errors.New("auth: invalid token")
)
