// Package configs implements the bearer-authenticated configuration
// endpoints: the working document, version snapshots, restore, and the
// import/export surface.
package configs

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/launchboard/launchboard/internal/api/respond"
	"github.com/launchboard/launchboard/internal/db/models"
	"github.com/launchboard/launchboard/internal/homescreen"
	"github.com/launchboard/launchboard/internal/middleware"
	"github.com/launchboard/launchboard/internal/services"
)

// defaultVersionListLimit caps a versions listing when the client does not ask
// for a specific page size.
const defaultVersionListLimit = 50

type Handler struct {
	configService *services.ConfigService
	logger        *slog.Logger
}

func NewHandler(configService *services.ConfigService, logger *slog.Logger) *Handler {
	return &Handler{configService: configService, logger: logger}
}

type configResponse struct {
	ConfigID      string          `json:"configId"`
	SchemaVersion string          `json:"schemaVersion"`
	Data          json.RawMessage `json:"data"`
	LoadedVersion *int            `json:"loadedVersion"`
	UpdatedAt     string          `json:"updatedAt"`
}

func toConfigResponse(cfg *models.Configuration) configResponse {
	return configResponse{
		ConfigID:      cfg.ConfigID,
		SchemaVersion: cfg.SchemaVersion,
		Data:          cfg.Document,
		LoadedVersion: cfg.LoadedVersion,
		UpdatedAt:     cfg.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

type versionResponse struct {
	Version   int             `json:"version"`
	Data      json.RawMessage `json:"data,omitempty"`
	CreatedAt string          `json:"createdAt"`
}

// fail maps service-layer errors onto the error-code taxonomy. Validation
// errors carry the offending field in the details.
func (h *Handler) fail(c *gin.Context, err error) {
	var verr *homescreen.ValidationError
	switch {
	case errors.As(err, &verr):
		code := respond.CodeInvalidConfigData
		switch verr.Field {
		case "configId":
			code = respond.CodeInvalidConfigID
		case "file", "schemaVersion":
			code = respond.CodeInvalidImportFile
		}
		respond.ErrorWithDetails(c, code, "Validation failed", verr.Error())
	case errors.Is(err, services.ErrConfigNotFound):
		respond.Error(c, respond.CodeConfigNotFound, "Configuration not found")
	case errors.Is(err, services.ErrVersionNotFound):
		respond.Error(c, respond.CodeVersionNotFound, "Version not found")
	case errors.Is(err, services.ErrConfigExists):
		respond.Error(c, respond.CodeConfigAlreadyExists, "Configuration already exists")
	case errors.Is(err, services.ErrStaleData):
		respond.Error(c, respond.CodeStaleData, "Configuration was modified by another session")
	default:
		h.logger.Error("configuration operation failed", "error", err)
		respond.Error(c, respond.CodeInternalError, "Operation failed")
	}
}

// List returns the caller's configurations with version counts.
func (h *Handler) List(c *gin.Context) {
	items, err := h.configService.List(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}

	type listEntry struct {
		ConfigID     string `json:"configId"`
		UpdatedAt    string `json:"updatedAt"`
		VersionCount int    `json:"versionCount"`
	}
	out := make([]listEntry, 0, len(items))
	for _, it := range items {
		out = append(out, listEntry{
			ConfigID:     it.ConfigID,
			UpdatedAt:    it.UpdatedAt.UTC().Format(time.RFC3339Nano),
			VersionCount: it.VersionCount,
		})
	}
	c.JSON(http.StatusOK, gin.H{"configs": out})
}

type createConfigRequest struct {
	ConfigID string `json:"configId"`
}

// Create registers a new named configuration.
func (h *Handler) Create(c *gin.Context) {
	var req createConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BindError(c, err, respond.CodeValidationError, "Invalid request body")
		return
	}
	if req.ConfigID == "" {
		respond.Error(c, respond.CodeMissingField, "configId is required")
		return
	}

	cfg, err := h.configService.Create(c.Request.Context(), middleware.CurrentUserID(c), req.ConfigID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toConfigResponse(cfg))
}

// Get returns the working document.
func (h *Handler) Get(c *gin.Context) {
	cfg, err := h.configService.Get(c.Request.Context(), middleware.CurrentUserID(c), c.Param("configId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toConfigResponse(cfg))
}

type saveConfigRequest struct {
	Data              json.RawMessage `json:"data"`
	ExpectedUpdatedAt *string         `json:"expectedUpdatedAt"`
}

// Save overwrites the working document. When expectedUpdatedAt is supplied it
// must match the stored timestamp exactly or the save is refused with 409.
func (h *Handler) Save(c *gin.Context) {
	var req saveConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BindError(c, err, respond.CodeValidationError, "Invalid request body")
		return
	}
	if len(req.Data) == 0 {
		respond.Error(c, respond.CodeMissingField, "data is required")
		return
	}

	var expected *time.Time
	if req.ExpectedUpdatedAt != nil {
		t, err := time.Parse(time.RFC3339Nano, *req.ExpectedUpdatedAt)
		if err != nil {
			respond.Error(c, respond.CodeValidationError, "expectedUpdatedAt must be an RFC 3339 timestamp")
			return
		}
		expected = &t
	}

	updatedAt, err := h.configService.Save(c.Request.Context(), middleware.CurrentUserID(c), c.Param("configId"), req.Data, expected)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updatedAt": updatedAt.UTC().Format(time.RFC3339Nano)})
}

// ListVersions returns snapshots newest-first. ?limit caps the page.
func (h *Handler) ListVersions(c *gin.Context) {
	limit := defaultVersionListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			respond.Error(c, respond.CodeValidationError, "limit must be between 1 and 200")
			return
		}
		limit = n
	}

	versions, err := h.configService.ListVersions(c.Request.Context(), middleware.CurrentUserID(c), c.Param("configId"), limit)
	if err != nil {
		h.fail(c, err)
		return
	}

	out := make([]versionResponse, 0, len(versions))
	for _, v := range versions {
		out = append(out, versionResponse{
			Version:   v.Version,
			CreatedAt: v.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{"versions": out})
}

// CreateVersion snapshots the working document.
func (h *Handler) CreateVersion(c *gin.Context) {
	v, err := h.configService.SaveVersion(c.Request.Context(), middleware.CurrentUserID(c), c.Param("configId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, versionResponse{
		Version:   v.Version,
		CreatedAt: v.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// GetVersion returns one snapshot including its document.
func (h *Handler) GetVersion(c *gin.Context) {
	n, ok := h.versionParam(c)
	if !ok {
		return
	}
	v, err := h.configService.GetVersion(c.Request.Context(), middleware.CurrentUserID(c), c.Param("configId"), n)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, versionResponse{
		Version:   v.Version,
		Data:      v.Document,
		CreatedAt: v.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// RestoreVersion replaces the working document with a snapshot.
func (h *Handler) RestoreVersion(c *gin.Context) {
	n, ok := h.versionParam(c)
	if !ok {
		return
	}
	cfg, err := h.configService.RestoreVersion(c.Request.Context(), middleware.CurrentUserID(c), c.Param("configId"), n)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toConfigResponse(cfg))
}

type setLoadedVersionRequest struct {
	Version *int `json:"version"`
}

// SetLoadedVersion repoints the loaded-version marker; a null version clears
// it, marking the live document as edited beyond any snapshot.
func (h *Handler) SetLoadedVersion(c *gin.Context) {
	var req setLoadedVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BindError(c, err, respond.CodeValidationError, "Invalid request body")
		return
	}
	if req.Version != nil && *req.Version < 1 {
		respond.Error(c, respond.CodeInvalidVersionNumber, "Version must be a positive integer")
		return
	}

	err := h.configService.SetLoadedVersion(c.Request.Context(), middleware.CurrentUserID(c), c.Param("configId"), req.Version)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"loadedVersion": req.Version})
}

// Export returns the portable envelope as a download.
func (h *Handler) Export(c *gin.Context) {
	env, err := h.configService.Export(c.Request.Context(), middleware.CurrentUserID(c), c.Param("configId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+env.ConfigID+`.json"`)
	c.JSON(http.StatusOK, env)
}

// Import runs an exported envelope through the migration pipeline and installs
// it as the working document.
func (h *Handler) Import(c *gin.Context) {
	var raw json.RawMessage
	if err := c.ShouldBindJSON(&raw); err != nil {
		respond.BindError(c, err, respond.CodeInvalidImportFile, "Import file is not valid JSON")
		return
	}

	result, err := h.configService.Import(c.Request.Context(), middleware.CurrentUserID(c), raw)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"configId":          result.ConfigID,
		"schemaVersion":     result.SchemaVersion,
		"updatedAt":         result.UpdatedAt.UTC().Format(time.RFC3339Nano),
		"migrated":          result.Migrated,
		"fromSchemaVersion": result.FromSchemaVersion,
	})
}

func (h *Handler) versionParam(c *gin.Context) (int, bool) {
	n, err := strconv.Atoi(c.Param("version"))
	if err != nil || n < 1 {
		respond.Error(c, respond.CodeInvalidVersionNumber, "Version must be a positive integer")
		return 0, false
	}
	return n, true
}
