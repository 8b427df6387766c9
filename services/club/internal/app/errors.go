package app

import "errors"

var (
	// ErrInvalidCredentials is returned when the supplied credentials do not match.
	// This message is intended to be shown to end users and should not enable account enumeration.
	ErrInvalidCredentials = errors.New("Incorrect email address or password")

	ErrEmailAndPasswordRequired = errors.New("email and password required")
	ErrEmailAlreadyExists       = errors.New("email already exists")
	ErrPasswordTooShort         = errors.New("password must be at least 8 characters")

	// ErrForbidden is returned when a member touches another member's record.
	ErrForbidden = errors.New("forbidden")

	// ErrNotYourTurn is returned when a member edits a monthly pick outside
	// their rotation slot.
	ErrNotYourTurn = errors.New("not your month to pick")

	// ErrRecommendationsDisabled is returned when no text generator is configured.
	ErrRecommendationsDisabled = errors.New("recommendations not configured")
)
