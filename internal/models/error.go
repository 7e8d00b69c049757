package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound     = errors.New("resource not found")
	ErrConflict     = errors.New("resource already exists")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")

	// Detection errors
	ErrInvalidAlertType = errors.New("invalid alert type")
	ErrInvalidSeverity  = errors.New("invalid severity")
	ErrLeaseNotHeld     = errors.New("lease is not held by this instance")
)
