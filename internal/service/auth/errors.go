// Package auth defines authentication errors.
package auth

import "errors"

var (
	ErrDomainNotAllowed   = errors.New("email must be on the corporate domain")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrUnknownUser        = errors.New("no such user")
	ErrInvalidOTP         = errors.New("invalid otp")
	ErrOTPExpired         = errors.New("otp expired")
	ErrAlreadyVerified    = errors.New("email already verified")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrNotApproved        = errors.New("account not approved by admin")
	ErrTOTPRequired       = errors.New("totp required")
	ErrInvalidTOTP        = errors.New("invalid totp")
)
