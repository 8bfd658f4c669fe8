package configs

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/launchboard/launchboard/internal/api/respond"
	"github.com/launchboard/launchboard/internal/middleware"
)

// Action intents accepted by the command endpoint.
const (
	actionSave           = "save"
	actionSaveVersion    = "saveVersion"
	actionCreateConfig   = "createConfig"
	actionRestoreVersion = "restoreVersion"
	actionImport         = "import"
	actionSetLastConfig  = "setLastConfig"
)

// actionRequest is the tagged command payload. Action selects the intent;
// the remaining fields are read per intent and ignored otherwise.
type actionRequest struct {
	Action            string          `json:"action"`
	ConfigID          string          `json:"configId"`
	Data              json.RawMessage `json:"data"`
	ExpectedUpdatedAt *string         `json:"expectedUpdatedAt"`
	Version           int             `json:"version"`
	File              json.RawMessage `json:"file"`
}

// Action is the single-endpoint command surface mirroring the REST routes.
// Each intent produces the same response shape as its REST counterpart, plus
// an echo of the action name.
func (h *Handler) Action(c *gin.Context) {
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BindError(c, err, respond.CodeValidationError, "Invalid request body")
		return
	}
	if req.Action == "" {
		respond.Error(c, respond.CodeMissingField, "action is required")
		return
	}

	userID := middleware.CurrentUserID(c)
	ctx := c.Request.Context()

	switch req.Action {
	case actionSave:
		if req.ConfigID == "" {
			respond.Error(c, respond.CodeMissingField, "configId is required")
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
		updatedAt, err := h.configService.Save(ctx, userID, req.ConfigID, req.Data, expected)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"action":    req.Action,
			"updatedAt": updatedAt.UTC().Format(time.RFC3339Nano),
		})

	case actionSaveVersion:
		if req.ConfigID == "" {
			respond.Error(c, respond.CodeMissingField, "configId is required")
			return
		}
		v, err := h.configService.SaveVersion(ctx, userID, req.ConfigID)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"action":    req.Action,
			"version":   v.Version,
			"createdAt": v.CreatedAt.UTC().Format(time.RFC3339),
		})

	case actionCreateConfig:
		if req.ConfigID == "" {
			respond.Error(c, respond.CodeMissingField, "configId is required")
			return
		}
		cfg, err := h.configService.Create(ctx, userID, req.ConfigID)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"action": req.Action,
			"config": toConfigResponse(cfg),
		})

	case actionRestoreVersion:
		if req.ConfigID == "" {
			respond.Error(c, respond.CodeMissingField, "configId is required")
			return
		}
		if req.Version < 1 {
			respond.Error(c, respond.CodeInvalidVersionNumber, "Version must be a positive integer")
			return
		}
		cfg, err := h.configService.RestoreVersion(ctx, userID, req.ConfigID, req.Version)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"action": req.Action,
			"config": toConfigResponse(cfg),
		})

	case actionImport:
		if len(req.File) == 0 {
			respond.Error(c, respond.CodeMissingField, "file is required")
			return
		}
		result, err := h.configService.Import(ctx, userID, req.File)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"action":            req.Action,
			"configId":          result.ConfigID,
			"schemaVersion":     result.SchemaVersion,
			"updatedAt":         result.UpdatedAt.UTC().Format(time.RFC3339Nano),
			"migrated":          result.Migrated,
			"fromSchemaVersion": result.FromSchemaVersion,
		})

	case actionSetLastConfig:
		if req.ConfigID == "" {
			respond.Error(c, respond.CodeMissingField, "configId is required")
			return
		}
		if err := h.configService.SetLastConfig(ctx, userID, req.ConfigID); err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"action":       req.Action,
			"lastConfigId": req.ConfigID,
		})

	default:
		respond.ErrorWithDetails(c, respond.CodeValidationError, "Unknown action", req.Action)
	}
}
