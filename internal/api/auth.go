package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Priya8975/forge-storefront/internal/auth"
	"github.com/Priya8975/forge-storefront/internal/domain"
	"go.uber.org/zap"
)

const scopeLogin = "login"

type AuthHandler struct {
	auth   *auth.Service
	guard  Guard
	logger *zap.Logger
}

// NewAuthHandler builds the account endpoints. guard may be nil.
func NewAuthHandler(svc *auth.Service, guard Guard, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: svc, guard: guard, logger: logger}
}

type registerResponse struct {
	Message string       `json:"message"`
	User    *domain.User `json:"user"`
}

type loginResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := h.auth.Register(r.Context(), req)
	var verr *auth.ValidationError
	switch {
	case errors.As(err, &verr):
		respondError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, auth.ErrUserExists):
		respondError(w, http.StatusBadRequest, "User already exists")
	case err != nil:
		h.logger.Error("failed to register user", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to register user")
	default:
		respondJSON(w, http.StatusOK, registerResponse{Message: "User registered successfully", User: u})
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if lockedOut(w, r, h.guard, scopeLogin) {
		return
	}

	token, err := h.auth.Login(r.Context(), req)
	var verr *auth.ValidationError
	switch {
	case errors.As(err, &verr):
		respondError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, auth.ErrUserNotFound):
		h.recordFailure(r)
		respondError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, auth.ErrInvalidPassword):
		h.recordFailure(r)
		respondError(w, http.StatusUnauthorized, "Invalid password")
	case err != nil:
		h.logger.Error("failed to log in", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to log in")
	default:
		if h.guard != nil {
			h.guard.RecordSuccess(r.Context(), scopeLogin, clientIP(r))
		}
		respondJSON(w, http.StatusOK, loginResponse{Message: "Login successful", Token: token})
	}
}

func (h *AuthHandler) recordFailure(r *http.Request) {
	if h.guard != nil {
		h.guard.RecordFailure(r.Context(), scopeLogin, clientIP(r))
	}
}

func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	u, err := h.auth.Profile(r.Context(), claims.ID)
	if errors.Is(err, auth.ErrUserNotFound) {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to load profile", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	respondJSON(w, http.StatusOK, u)
}

// RequireAuth rejects requests without a valid Bearer token: 401 when the
// header is absent, 403 when the token does not verify.
func RequireAuth(tokens *auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, found := strings.CutPrefix(header, "Bearer ")
			if header == "" || !found || strings.TrimSpace(token) == "" {
				respondError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			claims, err := tokens.Parse(strings.TrimSpace(token))
			if err != nil {
				respondError(w, http.StatusForbidden, "Invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
		})
	}
}
