package model

import "errors"

var (
	// Identity provider errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNetwork            = errors.New("identity provider unreachable")
	ErrNotSignedIn        = errors.New("not signed in")

	// Verification errors
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrServiceUnavailable = errors.New("service unavailable")

	// Gate errors
	ErrPermissionDenied  = errors.New("permission denied")
	ErrUnknownPermission = errors.New("unknown permission")
	ErrUnknownRole       = errors.New("unknown role")

	// Authority errors
	ErrIdentityNotFound = errors.New("identity not found")
	ErrIdentityExists   = errors.New("identity already exists")
	ErrIdentityDisabled = errors.New("identity disabled")
	ErrAccountLocked    = errors.New("too many failed sign-in attempts")
	ErrAdminNotFound    = errors.New("admin not found")
	ErrTokenNotFound    = errors.New("token not found")
	ErrTokenExpired     = errors.New("token expired")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)
