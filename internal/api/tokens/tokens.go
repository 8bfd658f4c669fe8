// Package tokens implements the bearer-authenticated token management
// endpoints: listing (masked previews only) and revocation. Issuance is not
// here on purpose; see the accounts package.
package tokens

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/launchboard/launchboard/internal/api/respond"
	"github.com/launchboard/launchboard/internal/db/models"
	"github.com/launchboard/launchboard/internal/db/repositories"
	"github.com/launchboard/launchboard/internal/middleware"
)

type Handler struct {
	tokenRepo *repositories.APITokenRepository
	logger    *slog.Logger
}

func NewHandler(tokenRepo *repositories.APITokenRepository, logger *slog.Logger) *Handler {
	return &Handler{tokenRepo: tokenRepo, logger: logger}
}

type tokenResponse struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Masked     string  `json:"masked"`
	CreatedAt  string  `json:"createdAt"`
	LastUsedAt *string `json:"lastUsedAt"`
}

func toTokenResponse(t *models.APIToken) tokenResponse {
	resp := tokenResponse{
		ID:        t.ID,
		Name:      t.Name,
		Masked:    t.MaskedToken,
		CreatedAt: t.CreatedAt.UTC().Format(time.RFC3339),
	}
	if t.LastUsedAt != nil {
		s := t.LastUsedAt.UTC().Format(time.RFC3339)
		resp.LastUsedAt = &s
	}
	return resp
}

// List returns the caller's tokens. Secrets are unrecoverable; only the masked
// preview is ever shown again.
func (h *Handler) List(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	toks, err := h.tokenRepo.ListTokensByUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list tokens", "user_id", userID, "error", err)
		respond.Error(c, respond.CodeInternalError, "Failed to list tokens")
		return
	}

	out := make([]tokenResponse, 0, len(toks))
	for _, t := range toks {
		out = append(out, toTokenResponse(t))
	}
	c.JSON(http.StatusOK, gin.H{"tokens": out})
}

// Revoke deletes one of the caller's tokens. A token belonging to another user
// is reported as not found, identically to an unknown id.
func (h *Handler) Revoke(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	tokenID := c.Param("id")

	deleted, err := h.tokenRepo.RevokeToken(c.Request.Context(), tokenID, userID)
	if err != nil {
		h.logger.Error("failed to revoke token", "user_id", userID, "error", err)
		respond.Error(c, respond.CodeInternalError, "Failed to revoke token")
		return
	}
	if !deleted {
		respond.Error(c, respond.CodeTokenNotFound, "Token not found")
		return
	}

	h.logger.Info("api token revoked", "user_id", userID, "token_id", tokenID)
	c.JSON(http.StatusOK, gin.H{"revoked": true})
}
