package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/xiaodingfeng/contract-review/model"
	"github.com/xiaodingfeng/contract-review/pkg/logger"
	"github.com/xiaodingfeng/contract-review/service"
)

type UserHandler struct {
	store *service.Store
}

func NewUserHandler(store *service.Store) *UserHandler {
	return &UserHandler{store: store}
}

type identifyRequest struct {
	FingerprintID string `json:"fingerprintId"`
}

// Identify resolves a browser fingerprint to a user, creating the user
// on first sight. Calling it again with the same fingerprint returns the
// same user.
func (h *UserHandler) Identify(c *gin.Context) {
	var req identifyRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.FingerprintID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Fingerprint ID is required."})
		return
	}

	user, err := h.store.GetUserByFingerprint(c.Request.Context(), req.FingerprintID)
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"userId": user.ID, "isNew": false})
		return
	}
	if err != service.ErrNotFound {
		logger.Error(c.Request.Context(), "user lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to identify or create user."})
		return
	}

	user = &model.User{
		ID:            uuid.New().String(),
		FingerprintID: req.FingerprintID,
		CreatedAt:     time.Now(),
	}
	if err := h.store.CreateUser(c.Request.Context(), user); err != nil {
		logger.Error(c.Request.Context(), "user creation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to identify or create user."})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"userId": user.ID, "isNew": true})
}

// History returns the contract review history for one user, filenames
// decoded for display.
func (h *UserHandler) History(c *gin.Context) {
	userID := c.Param("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User ID is required"})
		return
	}

	contracts, err := h.store.ListContractsByUser(c.Request.Context(), userID)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to load user history", "error", err, "user_id", userID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve history."})
		return
	}

	c.JSON(http.StatusOK, contractSummaries(contracts))
}
