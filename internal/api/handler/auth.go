package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/montero-exchange/ledger/internal/api/middleware"
	"github.com/montero-exchange/ledger/internal/domain"
	"github.com/montero-exchange/ledger/internal/service"
)

type AuthHandler struct {
	portfolios *service.PortfolioService
}

func NewAuthHandler(portfolios *service.PortfolioService) *AuthHandler {
	return &AuthHandler{portfolios: portfolios}
}

// Login issues a token for an existing portfolio. Mock login by UserID; a
// real deployment fronts this with the identity provider.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		Role   string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "invalid request body")
		return
	}

	uid, err := uuid.Parse(req.UserID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-user-id", "invalid user_id")
		return
	}

	role := req.Role
	if role != domain.RoleAdmin {
		role = domain.RoleUser
		if _, err := h.portfolios.Get(r.Context(), uid); err != nil {
			RespondError(w, r, http.StatusNotFound, "resource/not-found", "portfolio not found")
			return
		}
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": uid.String(),
		"role":    role,
		"sub":     uid.String(),
		"iss":     middleware.JWTIssuer(),
		"aud":     middleware.JWTAudience(),
		"iat":     now.Unix(),
		"exp":     now.Add(24 * time.Hour).Unix(),
	})

	tokenString, err := token.SignedString(middleware.JWTSecret())
	if err != nil {
		RespondError(w, r, http.StatusInternalServerError, "auth/sign-failed", "failed to sign token")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]string{"token": tokenString})
}
