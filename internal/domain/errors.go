package domain

import "errors"

// Domain errors
var (
	ErrQRCodeRequired     = errors.New("qr code is required")
	ErrLocationNotFound   = errors.New("invalid qr code")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token has expired")
	ErrLocationCompleted  = errors.New("challenge already completed")
	ErrNoChallenge        = errors.New("no challenge available for this location")
	ErrNoProgress         = errors.New("no progress found")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already in use")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrInternalError      = errors.New("internal server error")
)

// IsNotFound checks if an error is a not-found type error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrLocationNotFound) ||
		errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrNoChallenge) ||
		errors.Is(err, ErrNoProgress) ||
		errors.Is(err, ErrUserNotFound)
}

// IsForbidden checks if an error rejects an otherwise well-formed request
func IsForbidden(err error) bool {
	return errors.Is(err, ErrTokenExpired) || errors.Is(err, ErrLocationCompleted)
}

// IsValidation checks if an error is caused by missing or malformed input
func IsValidation(err error) bool {
	return errors.Is(err, ErrQRCodeRequired) ||
		errors.Is(err, ErrInvalidRequest)
}
