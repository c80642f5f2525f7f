// Package auth defines domain types for authentication.
package auth

import "time"

// Role is the closed set of user roles.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperadmin:
		return true
	}
	return false
}

// User is the identity record. Email is stored lowercase and unique.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CompanyID    string
	InviteCode   string
	Phone        string
	ProofPath    string // opaque reference returned by the file store
	IsVerified   bool   // email confirmed
	IsApproved   bool   // admin approval
	Role         Role
	TOTPSecret   string // base32; non-empty means TOTP is mandatory at login
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OTPChallenge is a single-use email verification code bound to one user.
// Rows are never deleted; expired or used ones are simply ignored.
type OTPChallenge struct {
	ID        string
	UserID    string
	Code      string
	ExpiresAt time.Time
	IsUsed    bool
	CreatedAt time.Time
}

// AuditEvent is an append-only log entry. UserID is empty when the actor is
// unknown.
type AuditEvent struct {
	ID        int64
	UserID    string
	Action    string
	Metadata  string
	CreatedAt time.Time
}

// Audit actions recorded by the orchestrator. The store accepts any string;
// call sites stick to this set.
const (
	ActionSignupRequested = "signup_requested"
	ActionOTPResent       = "otp_resent"
	ActionEmailVerified   = "email_verified"
	ActionLogin           = "login"
)

// SignupInput is the input for Signup.
type SignupInput struct {
	Name       string
	Email      string
	Password   string
	CompanyID  string
	InviteCode string
	Phone      string
	Proof      []byte // optional proof-of-employment artifact
	ProofName  string
	IPAddress  string
}

// LoginInput is the input for Login.
type LoginInput struct {
	Email    string
	Password string
	OTP      string // TOTP code, required when the user has a secret set
}

// Tokens holds the issued JWT pair.
type Tokens struct {
	AccessToken  string
	RefreshToken string
}

// Result carries the user-facing confirmation message for flows that do not
// issue tokens.
type Result struct {
	Message string
}
