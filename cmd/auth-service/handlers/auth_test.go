package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/r2r72/corpgate/internal/otp"
	"github.com/r2r72/corpgate/internal/service/auth"
	"github.com/r2r72/corpgate/internal/token"
)

// memRepo is a minimal in-memory AccountRepository for routing tests.
type memRepo struct {
	mu         sync.Mutex
	users      map[string]*auth.User
	challenges []*auth.OTPChallenge
}

func newMemRepo() *memRepo { return &memRepo{users: map[string]*auth.User{}} }

func (r *memRepo) CreateUser(ctx context.Context, u *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.users {
		if e.Email == u.Email {
			return auth.ErrDuplicateEmail
		}
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *memRepo) GetUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.ErrUnknownUser
}

func (r *memRepo) GetUserByID(ctx context.Context, id string) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, auth.ErrUnknownUser
}

func (r *memRepo) CreateChallenge(ctx context.Context, ch *auth.OTPChallenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *ch
	r.challenges = append(r.challenges, &cp)
	return nil
}

func (r *memRepo) LatestUnusedChallenge(ctx context.Context, userID, code string) (*auth.OTPChallenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.challenges) - 1; i >= 0; i-- {
		ch := r.challenges[i]
		if ch.UserID == userID && ch.Code == code && !ch.IsUsed {
			cp := *ch
			return &cp, nil
		}
	}
	return nil, auth.ErrInvalidOTP
}

func (r *memRepo) ConsumeChallenge(ctx context.Context, challengeID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range r.challenges {
		if ch.ID == challengeID {
			ch.IsUsed = true
		}
	}
	if u, ok := r.users[userID]; ok {
		u.IsVerified = true
	}
	return nil
}

func (r *memRepo) ApproveUser(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userID]; ok {
		u.IsApproved = true
	}
	return nil
}

func (r *memRepo) AppendAudit(ctx context.Context, ev *auth.AuditEvent) error { return nil }

func (r *memRepo) latestCode(email string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var userID string
	for _, u := range r.users {
		if u.Email == email {
			userID = u.ID
		}
	}
	for i := len(r.challenges) - 1; i >= 0; i-- {
		if r.challenges[i].UserID == userID && !r.challenges[i].IsUsed {
			return r.challenges[i].Code
		}
	}
	return ""
}

func (r *memRepo) setTOTPSecret(email, secret string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			u.TOTPSecret = secret
		}
	}
}

type noopMailer struct{}

func (noopMailer) Send(to, subject, body string) error { return nil }

type noopFiles struct{}

func (noopFiles) Store(data []byte, name string) (string, error) { return "uploads/" + name, nil }

func newTestRouter(t *testing.T) (chi.Router, *memRepo) {
	t.Helper()
	repo := newMemRepo()
	tokens := token.NewService([]byte("test-secret-with-at-least-32-bytes!!"), 15*time.Minute, 7*24*time.Hour)
	svc := auth.NewAuthService(repo, tokens, noopMailer{}, noopFiles{}, "", zap.NewNop())

	r := chi.NewRouter()
	RegisterAuthRoutes(r, svc, zap.NewNop())
	return r, repo
}

func doSignup(t *testing.T, r chi.Router, name, email, pass string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("name", name))
	require.NoError(t, mw.WriteField("email", email))
	require.NoError(t, mw.WriteField("password", pass))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func doJSON(t *testing.T, r chi.Router, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/auth/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestSignupEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doSignup(t, r, "Alice", "alice@co.com", "longpassword1")
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "message")

	// Duplicate email is a 400.
	w = doSignup(t, r, "Alice", "alice@co.com", "longpassword1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "error")
}

func TestSignupEndpointMissingFields(t *testing.T) {
	r, _ := newTestRouter(t)
	w := doSignup(t, r, "Alice", "", "longpassword1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSignupEndpointWithProof(t *testing.T) {
	r, repo := newTestRouter(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("name", "Alice"))
	require.NoError(t, mw.WriteField("email", "alice@co.com"))
	require.NoError(t, mw.WriteField("password", "longpassword1"))
	fw, err := mw.CreateFormFile("proof", "letter.pdf")
	require.NoError(t, err)
	_, err = fw.Write([]byte("employment letter"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	user, err := repo.GetUserByEmail(context.Background(), "alice@co.com")
	require.NoError(t, err)
	assert.Equal(t, "uploads/letter.pdf", user.ProofPath)
}

func TestVerifyEndpoint(t *testing.T) {
	r, repo := newTestRouter(t)
	doSignup(t, r, "Alice", "alice@co.com", "longpassword1")

	w := doJSON(t, r, "/api/auth/verify", VerifyRequest{Email: "alice@co.com", OTP: "999999"})
	if repo.latestCode("alice@co.com") != "999999" {
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}

	code := repo.latestCode("alice@co.com")
	w = doJSON(t, r, "/api/auth/verify", VerifyRequest{Email: "alice@co.com", OTP: code})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, "/api/auth/verify", VerifyRequest{Email: "ghost@co.com", OTP: "123456"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResendEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)
	doSignup(t, r, "Alice", "alice@co.com", "longpassword1")

	w := doJSON(t, r, "/api/auth/resend", ResendRequest{Email: "alice@co.com"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, "/api/auth/resend", ResendRequest{Email: "ghost@co.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginEndpointStatusCodes(t *testing.T) {
	r, repo := newTestRouter(t)
	doSignup(t, r, "Alice", "alice@co.com", "longpassword1")

	// Bad credentials: 401.
	w := doJSON(t, r, "/api/auth/login", LoginRequest{Email: "alice@co.com", Password: "wrongpassword"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Unverified: 403.
	w = doJSON(t, r, "/api/auth/login", LoginRequest{Email: "alice@co.com", Password: "longpassword1"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	code := repo.latestCode("alice@co.com")
	doJSON(t, r, "/api/auth/verify", VerifyRequest{Email: "alice@co.com", OTP: code})

	// Verified but unapproved: still 403.
	w = doJSON(t, r, "/api/auth/login", LoginRequest{Email: "alice@co.com", Password: "longpassword1"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	user, err := repo.GetUserByEmail(context.Background(), "alice@co.com")
	require.NoError(t, err)
	require.NoError(t, repo.ApproveUser(context.Background(), user.ID))

	w = doJSON(t, r, "/api/auth/login", LoginRequest{Email: "alice@co.com", Password: "longpassword1"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "bearer", resp.TokenType)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
}

func TestLoginEndpointTOTPRequired(t *testing.T) {
	r, repo := newTestRouter(t)
	doSignup(t, r, "Alice", "alice@co.com", "longpassword1")
	code := repo.latestCode("alice@co.com")
	doJSON(t, r, "/api/auth/verify", VerifyRequest{Email: "alice@co.com", OTP: code})
	user, err := repo.GetUserByEmail(context.Background(), "alice@co.com")
	require.NoError(t, err)
	require.NoError(t, repo.ApproveUser(context.Background(), user.ID))

	secret, _, err := otp.GenerateTOTPSecret("alice@co.com")
	require.NoError(t, err)
	repo.setTOTPSecret("alice@co.com", secret)

	// Enrolled, no code: 428.
	w := doJSON(t, r, "/api/auth/login", LoginRequest{Email: "alice@co.com", Password: "longpassword1"})
	assert.Equal(t, http.StatusPreconditionRequired, w.Code)

	// Wrong code: 401.
	w = doJSON(t, r, "/api/auth/login", LoginRequest{Email: "alice@co.com", Password: "longpassword1", OTP: "abc"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	totpCode, err := otp.CodeAt(secret, time.Now())
	require.NoError(t, err)
	w = doJSON(t, r, "/api/auth/login", LoginRequest{Email: "alice@co.com", Password: "longpassword1", OTP: totpCode})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRefreshEndpoint(t *testing.T) {
	r, repo := newTestRouter(t)
	doSignup(t, r, "Alice", "alice@co.com", "longpassword1")
	code := repo.latestCode("alice@co.com")
	doJSON(t, r, "/api/auth/verify", VerifyRequest{Email: "alice@co.com", OTP: code})
	user, err := repo.GetUserByEmail(context.Background(), "alice@co.com")
	require.NoError(t, err)
	require.NoError(t, repo.ApproveUser(context.Background(), user.ID))

	w := doJSON(t, r, "/api/auth/login", LoginRequest{Email: "alice@co.com", Password: "longpassword1"})
	require.Equal(t, http.StatusOK, w.Code)
	var loginResp TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &loginResp))

	w = doJSON(t, r, "/api/auth/refresh", RefreshRequest{RefreshToken: loginResp.RefreshToken})
	assert.Equal(t, http.StatusOK, w.Code)

	// Access token is not accepted at the refresh endpoint.
	w = doJSON(t, r, "/api/auth/refresh", RefreshRequest{RefreshToken: loginResp.AccessToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, r, "/api/auth/refresh", RefreshRequest{RefreshToken: "garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestInvalidJSONBodies(t *testing.T) {
	r, _ := newTestRouter(t)
	for _, path := range []string{"/api/auth/verify", "/api/auth/resend", "/api/auth/login", "/api/auth/refresh"} {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader("{not json"))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
}
