package goCreds

import "errors"

var (
	// ErrConfigurationMissing is returned when a required collaborator (TOTP or
	// temporary-password generator) is invoked but was never configured.
	ErrConfigurationMissing = errors.New("configuration missing")
	// ErrDuplicateUsername is returned when a create or rename collides with an existing username.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrPersistenceFailure is returned when the user file could not be written.
	// The in-memory state already reflects the mutation when this is returned.
	ErrPersistenceFailure = errors.New("persistence failure")
	// ErrInvalidUserInput is returned when create or update input fails validation.
	ErrInvalidUserInput = errors.New("invalid user input")
	// ErrInvalidConfig is returned when configuration values fail validation.
	ErrInvalidConfig = errors.New("invalid configuration")
)
