package entities

import "errors"

// Domain errors
var (
	// User errors
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrInvalidEmail      = errors.New("invalid email")
	ErrInvalidName       = errors.New("invalid name")

	// Session errors
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionInvalidPhase = errors.New("session is not in a valid phase for this operation")
	ErrSessionAnalyzing    = errors.New("session analysis already in progress")

	// Analysis errors
	ErrJobNotFound       = errors.New("analysis job not found")
	ErrRecordNotFound    = errors.New("conversation record not found")
	ErrRecordingNotFound = errors.New("recording not found")
	ErrMissingSegments   = errors.New("no transcript segments supplied")

	// Generic errors
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidToken   = errors.New("invalid token")
	ErrInvalidRequest = errors.New("invalid request")
)
