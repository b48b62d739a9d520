package domain

import "errors"

var (
	ErrToolNotFound     = errors.New("tool not found")
	ErrToolKeyNotFound  = errors.New("tool key not found")
	ErrAttemptNotFound  = errors.New("attempt not found")
	ErrSessionNotFound  = errors.New("launch session not found")
	ErrSecretNotFound   = errors.New("secret not found")
	ErrInvalidLaunch    = errors.New("delivery does not match launch session")
	ErrToolDisabled     = errors.New("tool is not enabled")
	ErrWrongPassword    = errors.New("wrong delivery password")
	ErrNotPrivileged    = errors.New("operation requires a privileged caller")
	ErrTooManyAttempts  = errors.New("maximum number of attempts reached")
	ErrFileTooLarge     = errors.New("delivered file is too large")
	ErrInvalidFileName  = errors.New("invalid file name")
	ErrMissingFile      = errors.New("delivered file is missing")
	ErrMissingPart      = errors.New("delivery has no file part")
	ErrUnexpectedPart   = errors.New("unexpected delivery part")
	ErrReferenceBinding = errors.New("attempt reference does not match caller")
)
