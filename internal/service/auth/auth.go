// Package auth provides authentication and authorization services.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/r2r72/corpgate/internal/otp"
	"github.com/r2r72/corpgate/internal/password"
	"github.com/r2r72/corpgate/internal/token"
)

const (
	otpLength = 6
	otpTTL    = 12 * time.Minute
)

// dummyHash keeps the unknown-user login path as expensive as a real bcrypt
// compare, so response time does not reveal whether an email is registered.
var dummyHash, _ = password.Hash("corpgate-timing-pad")

// AuthService is the state machine behind signup, verification and login.
// A user moves registered -> verified -> approved; login is only reachable
// once both flags are set.
type AuthService struct {
	repo          AccountRepository
	tokens        *token.Service
	mailer        Mailer
	files         FileStore
	requireDomain string // e.g. "@co.com"; empty disables the policy
	logger        *zap.Logger
}

// NewAuthService creates a new AuthService. requireDomain, when non-empty,
// restricts signups to emails with that suffix.
func NewAuthService(repo AccountRepository, tokens *token.Service, mailer Mailer, files FileStore, requireDomain string, logger *zap.Logger) *AuthService {
	return &AuthService{
		repo:          repo,
		tokens:        tokens,
		mailer:        mailer,
		files:         files,
		requireDomain: strings.ToLower(requireDomain),
		logger:        logger,
	}
}

// Signup registers a new user and sends a verification OTP to their email.
// The confirmation message is generic: beyond ErrDuplicateEmail nothing leaks
// about pre-existing records.
func (s *AuthService) Signup(ctx context.Context, input SignupInput) (*Result, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	if s.requireDomain != "" && !strings.HasSuffix(email, s.requireDomain) {
		return nil, ErrDomainNotAllowed
	}

	// Reject duplicates before the proof artifact is written, so a rejected
	// signup leaves nothing on disk. The insert below still races on the
	// unique constraint; this check just cannot be the only line of defense.
	switch _, err := s.repo.GetUserByEmail(ctx, email); {
	case err == nil:
		return nil, ErrDuplicateEmail
	case !errors.Is(err, ErrUnknownUser):
		return nil, fmt.Errorf("check email: %w", err)
	}

	hash, err := password.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &User{
		ID:           uuid.NewString(),
		Name:         input.Name,
		Email:        email,
		PasswordHash: hash,
		CompanyID:    input.CompanyID,
		InviteCode:   input.InviteCode,
		Phone:        input.Phone,
		IsVerified:   false,
		IsApproved:   false,
		Role:         RoleUser,
	}

	if len(input.Proof) > 0 {
		ref, err := s.files.Store(input.Proof, input.ProofName)
		if err != nil {
			return nil, fmt.Errorf("store proof: %w", err)
		}
		user.ProofPath = ref
	}

	// The unique constraint on email decides the winner under concurrent
	// signups; no read-then-write check here.
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	if err := s.issueChallenge(ctx, user); err != nil {
		return nil, err
	}

	s.audit(ctx, user.ID, ActionSignupRequested, "ip="+input.IPAddress)

	return &Result{Message: "Signup request received. Check your email for OTP to verify your account."}, nil
}

// VerifyOTP consumes a pending challenge and marks the user's email
// verified. An expired challenge is left unused: the caller has to request a
// fresh code.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) (*Result, error) {
	user, err := s.repo.GetUserByEmail(ctx, strings.ToLower(email))
	if err != nil {
		return nil, err
	}

	ch, err := s.repo.LatestUnusedChallenge(ctx, user.ID, code)
	if err != nil {
		return nil, err
	}

	if time.Now().After(ch.ExpiresAt) {
		return nil, ErrOTPExpired
	}

	if err := s.repo.ConsumeChallenge(ctx, ch.ID, user.ID); err != nil {
		return nil, fmt.Errorf("consume challenge: %w", err)
	}

	s.audit(ctx, user.ID, ActionEmailVerified, "")

	return &Result{Message: "Email verified successfully. Wait for admin approval if required."}, nil
}

// ResendOTP issues a fresh verification code for an unverified user.
func (s *AuthService) ResendOTP(ctx context.Context, email string) (*Result, error) {
	user, err := s.repo.GetUserByEmail(ctx, strings.ToLower(email))
	if err != nil {
		return nil, err
	}
	if user.IsVerified {
		return nil, ErrAlreadyVerified
	}

	if err := s.issueChallenge(ctx, user); err != nil {
		return nil, err
	}

	s.audit(ctx, user.ID, ActionOTPResent, "")

	return &Result{Message: "A new OTP has been sent to your email."}, nil
}

// Login authenticates a user and issues the token pair. The check order is
// fixed: credentials, then verification, then approval, then second factor —
// each failure tells the user what to fix next.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*Tokens, error) {
	user, err := s.repo.GetUserByEmail(ctx, strings.ToLower(input.Email))
	if err != nil {
		// Always compare — same error and same cost as a wrong password,
		// so neither the message nor the timing leaks account existence.
		password.Verify(input.Password, dummyHash)
		return nil, ErrInvalidCredentials
	}

	if !password.Verify(input.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	if !user.IsVerified {
		return nil, ErrEmailNotVerified
	}
	if !user.IsApproved {
		return nil, ErrNotApproved
	}

	if user.TOTPSecret != "" {
		if input.OTP == "" {
			return nil, ErrTOTPRequired
		}
		if !otp.VerifyTOTP(user.TOTPSecret, input.OTP) {
			return nil, ErrInvalidTOTP
		}
	}

	tokens, err := s.issueTokens(user)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, user.ID, ActionLogin, "")

	return tokens, nil
}

// Refresh exchanges a valid refresh token for a new token pair. The user
// must still pass the verification and approval gates.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	claims, err := s.tokens.DecodeRefresh(refreshToken)
	if err != nil {
		return nil, err
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, token.ErrInvalidToken
	}

	user, err := s.repo.GetUserByID(ctx, sub)
	if err != nil {
		return nil, token.ErrInvalidToken
	}
	if !user.IsVerified {
		return nil, ErrEmailNotVerified
	}
	if !user.IsApproved {
		return nil, ErrNotApproved
	}

	return s.issueTokens(user)
}

// === Private helpers ===

// issueChallenge persists a fresh OTP and attempts delivery. Delivery
// failure is logged, not returned: the user can always ask for a resend.
func (s *AuthService) issueChallenge(ctx context.Context, user *User) error {
	code := otp.NumericCode(otpLength)
	ch := &OTPChallenge{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Code:      code,
		ExpiresAt: time.Now().Add(otpTTL),
	}
	if err := s.repo.CreateChallenge(ctx, ch); err != nil {
		return fmt.Errorf("create challenge: %w", err)
	}

	body := fmt.Sprintf("Your verification OTP is: %s. It expires in %d minutes.", code, int(otpTTL.Minutes()))
	if err := s.mailer.Send(user.Email, "CorpGate: Verify your email", body); err != nil {
		s.logger.Warn("otp email delivery failed", zap.String("email", user.Email), zap.Error(err))
	}
	return nil
}

func (s *AuthService) issueTokens(user *User) (*Tokens, error) {
	access, err := s.tokens.IssueAccess(user.ID, map[string]any{"role": string(user.Role)})
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.tokens.IssueRefresh(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	return &Tokens{AccessToken: access, RefreshToken: refresh}, nil
}

// audit appends an event best-effort. It runs on a context detached from the
// request so a client disconnect cannot cancel the write, and failures are
// only logged.
func (s *AuthService) audit(ctx context.Context, userID, action, metadata string) {
	ev := &AuditEvent{UserID: userID, Action: action, Metadata: metadata}
	if err := s.repo.AppendAudit(context.WithoutCancel(ctx), ev); err != nil {
		s.logger.Error("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}
