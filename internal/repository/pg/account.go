package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	auth "github.com/r2r72/corpgate/internal/service/auth"
)

// AccountRepository persists users, OTP challenges and audit events.
// Tables: users, otp_challenges, audit_events (see schema.sql).
type AccountRepository struct {
	db *pgxpool.Pool
}

func NewAccountRepository(db *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) CreateUser(ctx context.Context, u *auth.User) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO users (id, name, email, password_hash, company_id, invite_code, phone, proof_path, is_verified, is_approved, role, totp_secret)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING created_at`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.CompanyID, u.InviteCode, u.Phone,
		u.ProofPath, u.IsVerified, u.IsApproved, string(u.Role), u.TOTPSecret,
	).Scan(&u.CreatedAt)
	if isUniqueViolation(err) {
		return auth.ErrDuplicateEmail
	}
	return err
}

func (r *AccountRepository) GetUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, name, email, password_hash, company_id, invite_code, phone, proof_path,
		        is_verified, is_approved, role, totp_secret, created_at, updated_at
		 FROM users
		 WHERE email = lower($1)`,
		email)
	return scanUser(row)
}

func (r *AccountRepository) GetUserByID(ctx context.Context, id string) (*auth.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, name, email, password_hash, company_id, invite_code, phone, proof_path,
		        is_verified, is_approved, role, totp_secret, created_at, updated_at
		 FROM users
		 WHERE id = $1`,
		id)
	return scanUser(row)
}

func scanUser(row pgx.Row) (*auth.User, error) {
	var u auth.User
	var role string
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CompanyID, &u.InviteCode,
		&u.Phone, &u.ProofPath, &u.IsVerified, &u.IsApproved, &role, &u.TOTPSecret,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrUnknownUser
		}
		return nil, err
	}
	u.Role = auth.Role(role)
	if !u.Role.Valid() {
		return nil, fmt.Errorf("unexpected role %q for user %s", role, u.ID)
	}
	return &u, nil
}

func (r *AccountRepository) CreateChallenge(ctx context.Context, ch *auth.OTPChallenge) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO otp_challenges (id, user_id, otp_code, expires_at, is_used)
		 VALUES ($1, $2, $3, $4, false)
		 RETURNING created_at`,
		ch.ID, ch.UserID, ch.Code, ch.ExpiresAt,
	).Scan(&ch.CreatedAt)
}

func (r *AccountRepository) LatestUnusedChallenge(ctx context.Context, userID, code string) (*auth.OTPChallenge, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, user_id, otp_code, expires_at, is_used, created_at
		 FROM otp_challenges
		 WHERE user_id = $1 AND otp_code = $2 AND is_used = false
		 ORDER BY created_at DESC
		 LIMIT 1`,
		userID, code)

	var ch auth.OTPChallenge
	err := row.Scan(&ch.ID, &ch.UserID, &ch.Code, &ch.ExpiresAt, &ch.IsUsed, &ch.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrInvalidOTP
		}
		return nil, err
	}
	return &ch, nil
}

// ConsumeChallenge marks the challenge used and the user verified as one
// transaction, so a crash can never leave a verified user with a replayable
// code.
func (r *AccountRepository) ConsumeChallenge(ctx context.Context, challengeID, userID string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE otp_challenges SET is_used = true WHERE id = $1`, challengeID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE users SET is_verified = true, updated_at = NOW() WHERE id = $1`, userID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *AccountRepository) ApproveUser(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE users SET is_approved = true, updated_at = NOW() WHERE id = $1`, userID)
	return err
}

// AppendAudit runs on the pool directly, never inside a caller transaction:
// a failed audit insert must not roll back the operation it annotates.
func (r *AccountRepository) AppendAudit(ctx context.Context, ev *auth.AuditEvent) error {
	var userID any
	if ev.UserID != "" {
		userID = ev.UserID
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO audit_events (user_id, action, meta_info, created_at)
		 VALUES ($1, $2, $3, NOW())`,
		userID, ev.Action, ev.Metadata,
	)
	return err
}

// isUniqueViolation detects PostgreSQL unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
