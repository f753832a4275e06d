package errors

import "github.com/pkg/errors"

var (
	// configuration errors, surfaced before any collaborator I/O
	ErrInvalidConfig = errors.New("invalid configuration")

	// collaborator errors, abort the run
	ErrAuthenticationFailed = errors.New("authentication failed")
)
