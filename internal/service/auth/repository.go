// Package auth defines the repository and collaborator contracts for
// authentication.
package auth

import "context"

// AccountRepository is the interface for DB operations.
// Must be implemented by pg.AccountRepository.
type AccountRepository interface {
	// CreateUser inserts a user. The storage layer's unique constraint on
	// email closes the concurrent-signup race: it returns ErrDuplicateEmail
	// when the email is already taken.
	CreateUser(ctx context.Context, user *User) error
	// GetUserByEmail matches case-insensitively and returns ErrUnknownUser
	// when no row exists.
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
	CreateChallenge(ctx context.Context, ch *OTPChallenge) error
	// LatestUnusedChallenge returns the most recently created unused
	// challenge with this code for the user, or ErrInvalidOTP.
	LatestUnusedChallenge(ctx context.Context, userID, code string) (*OTPChallenge, error)
	// ConsumeChallenge marks the challenge used and the user verified in a
	// single transaction.
	ConsumeChallenge(ctx context.Context, challengeID, userID string) error
	// ApproveUser flips is_approved. Driven by an administrative action
	// outside this service; login only consumes the flag.
	ApproveUser(ctx context.Context, userID string) error
	// AppendAudit inserts an audit event outside any caller transaction.
	AppendAudit(ctx context.Context, ev *AuditEvent) error
}

// Mailer delivers notification email. Failures are logged by the caller and
// never abort the primary operation.
type Mailer interface {
	Send(to, subject, body string) error
}

// FileStore persists an uploaded artifact and returns an opaque reference.
type FileStore interface {
	Store(data []byte, name string) (string, error)
}
