// Package handlers contains the HTTP handlers for authentication.
//
// Endpoints:
//
//	POST /api/auth/signup   — registration (multipart form, optional proof file)
//	POST /api/auth/verify   — email verification with OTP
//	POST /api/auth/resend   — request a fresh verification OTP
//	POST /api/auth/login    — login with password (+ TOTP when enrolled)
//	POST /api/auth/refresh  — exchange a refresh token for a new pair
//	GET  /api/auth/health   — liveness check
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/r2r72/corpgate/internal/service/auth"
	"github.com/r2r72/corpgate/internal/token"
)

const maxProofSize = 10 << 20 // 10 MiB

// RegisterAuthRoutes mounts all authentication routes under /api/auth.
func RegisterAuthRoutes(r chi.Router, svc *auth.AuthService, logger *zap.Logger) {
	r.Route("/api/auth", func(api chi.Router) {
		api.Get("/health", handleHealth)
		api.Post("/signup", withError(logger, handleSignup(svc)))
		api.Post("/verify", withError(logger, handleVerify(svc)))
		api.Post("/resend", withError(logger, handleResend(svc)))
		api.Post("/login", withError(logger, handleLogin(svc)))
		api.Post("/refresh", withError(logger, handleRefresh(svc)))
	})
}

// withError wraps a handler so unexpected failures become a plain 500
// without leaking internals.
func withError(logger *zap.Logger, h func(http.ResponseWriter, *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			logger.Error("http handler failed", zap.String("path", r.URL.Path), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// === Request and response types ===

type VerifyRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type ResendRequest struct {
	Email string `json:"email"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	OTP      string `json:"otp,omitempty"` // TOTP code when enrolled
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// === Handlers ===

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// handleSignup handles registration. Body: multipart form with name, email,
// password, companyId?, inviteCode?, phone?, proof(file)?.
// Success (201): MessageResponse. Errors: 400 (validation, domain policy,
// duplicate email), 500.
func handleSignup(svc *auth.AuthService) func(http.ResponseWriter, *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		if err := r.ParseMultipartForm(maxProofSize); err != nil {
			writeError(w, http.StatusBadRequest, "invalid form data")
			return nil
		}

		input := auth.SignupInput{
			Name:       r.FormValue("name"),
			Email:      r.FormValue("email"),
			Password:   r.FormValue("password"),
			CompanyID:  r.FormValue("companyId"),
			InviteCode: r.FormValue("inviteCode"),
			Phone:      r.FormValue("phone"),
			IPAddress:  r.RemoteAddr,
		}

		if input.Name == "" || input.Email == "" || input.Password == "" {
			writeError(w, http.StatusBadRequest, "name, email and password are required")
			return nil
		}

		if file, header, err := r.FormFile("proof"); err == nil {
			defer file.Close()
			data, err := io.ReadAll(io.LimitReader(file, maxProofSize))
			if err != nil {
				return err
			}
			input.Proof = data
			input.ProofName = header.Filename
		}

		result, err := svc.Signup(r.Context(), input)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrDomainNotAllowed),
				errors.Is(err, auth.ErrDuplicateEmail):
				writeError(w, http.StatusBadRequest, err.Error())
				return nil
			default:
				return err
			}
		}

		return writeJSON(w, http.StatusCreated, MessageResponse{Message: result.Message})
	}
}

// handleVerify consumes an emailed OTP. Body: {"email": "...", "otp": "123456"}.
func handleVerify(svc *auth.AuthService) func(http.ResponseWriter, *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		var req VerifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return nil
		}
		if req.Email == "" || req.OTP == "" {
			writeError(w, http.StatusBadRequest, "email and otp are required")
			return nil
		}

		result, err := svc.VerifyOTP(r.Context(), req.Email, req.OTP)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrUnknownUser),
				errors.Is(err, auth.ErrInvalidOTP),
				errors.Is(err, auth.ErrOTPExpired):
				writeError(w, http.StatusBadRequest, err.Error())
				return nil
			default:
				return err
			}
		}

		return writeJSON(w, http.StatusOK, MessageResponse{Message: result.Message})
	}
}

func handleResend(svc *auth.AuthService) func(http.ResponseWriter, *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		var req ResendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return nil
		}
		if req.Email == "" {
			writeError(w, http.StatusBadRequest, "email is required")
			return nil
		}

		result, err := svc.ResendOTP(r.Context(), req.Email)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrUnknownUser),
				errors.Is(err, auth.ErrAlreadyVerified):
				writeError(w, http.StatusBadRequest, err.Error())
				return nil
			default:
				return err
			}
		}

		return writeJSON(w, http.StatusOK, MessageResponse{Message: result.Message})
	}
}

// handleLogin authenticates and returns the token pair.
// 401 — bad credentials or bad TOTP; 403 — unverified or unapproved;
// 428 — TOTP enrolled but no code submitted.
func handleLogin(svc *auth.AuthService) func(http.ResponseWriter, *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return nil
		}
		if req.Email == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "email and password are required")
			return nil
		}

		tokens, err := svc.Login(r.Context(), auth.LoginInput{
			Email:    req.Email,
			Password: req.Password,
			OTP:      req.OTP,
		})
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrInvalidCredentials),
				errors.Is(err, auth.ErrInvalidTOTP):
				writeError(w, http.StatusUnauthorized, err.Error())
				return nil
			case errors.Is(err, auth.ErrEmailNotVerified),
				errors.Is(err, auth.ErrNotApproved):
				writeError(w, http.StatusForbidden, err.Error())
				return nil
			case errors.Is(err, auth.ErrTOTPRequired):
				writeError(w, http.StatusPreconditionRequired, err.Error())
				return nil
			default:
				return err
			}
		}

		return writeJSON(w, http.StatusOK, TokenResponse{
			AccessToken:  tokens.AccessToken,
			RefreshToken: tokens.RefreshToken,
			TokenType:    "bearer",
		})
	}
}

func handleRefresh(svc *auth.AuthService) func(http.ResponseWriter, *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		var req RefreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return nil
		}

		tokens, err := svc.Refresh(r.Context(), req.RefreshToken)
		if err != nil {
			switch {
			case errors.Is(err, token.ErrExpiredToken):
				writeError(w, http.StatusUnauthorized, "refresh token expired")
				return nil
			case errors.Is(err, token.ErrInvalidToken):
				writeError(w, http.StatusUnauthorized, "invalid refresh token")
				return nil
			case errors.Is(err, auth.ErrEmailNotVerified),
				errors.Is(err, auth.ErrNotApproved):
				writeError(w, http.StatusForbidden, err.Error())
				return nil
			default:
				return err
			}
		}

		return writeJSON(w, http.StatusOK, TokenResponse{
			AccessToken:  tokens.AccessToken,
			RefreshToken: tokens.RefreshToken,
			TokenType:    "bearer",
		})
	}
}
