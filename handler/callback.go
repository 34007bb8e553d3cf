package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xiaodingfeng/contract-review/pkg/logger"
	"github.com/xiaodingfeng/contract-review/service"
)

// Editor callback status codes. 2 and 6 are the only ones that carry a
// document to persist; everything else is informational.
const (
	statusReadyForSave = 2 // user closed the document with unsaved changes
	statusMustSave     = 6 // forcesave: user hit the save button
)

type CallbackHandler struct {
	store    *service.Store
	fileSync *service.FileSync
}

func NewCallbackHandler(store *service.Store, fileSync *service.FileSync) *CallbackHandler {
	return &CallbackHandler{
		store:    store,
		fileSync: fileSync,
	}
}

// SaveCallbackRequest is the notification the external editor posts when
// a document should be saved. Other fields of the payload are ignored.
type SaveCallbackRequest struct {
	Status int    `json:"status"`
	URL    string `json:"url"`
	Key    string `json:"key"`
}

// editorAck is the only response this endpoint ever sends. The editor
// treats anything else as a fatal error and surfaces it to the user, so
// every internal failure on this path is logged and swallowed.
var editorAck = gin.H{"error": 0}

// HandleSaveCallback receives save notifications from the external
// editor, downloads the updated document and replaces the stored file.
// By protocol it always acknowledges success.
func (h *CallbackHandler) HandleSaveCallback(c *gin.Context) {
	ctx := c.Request.Context()

	var req SaveCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Error(ctx, "save callback: unreadable payload", "error", err)
		c.JSON(http.StatusOK, editorAck)
		return
	}

	logger.Info(ctx, "save callback received",
		"status", req.Status,
		"document_key", req.Key,
	)

	if req.Status != statusReadyForSave && req.Status != statusMustSave {
		c.JSON(http.StatusOK, editorAck)
		return
	}

	contract, err := h.store.GetContractByKey(ctx, req.Key)
	if err != nil {
		logger.Error(ctx, "save callback: contract lookup failed",
			"document_key", req.Key,
			"error", err,
		)
		c.JSON(http.StatusOK, editorAck)
		return
	}

	if req.URL == "" {
		logger.Warn(ctx, "save callback: no download URL provided", "document_key", req.Key)
		c.JSON(http.StatusOK, editorAck)
		return
	}

	if err := h.fileSync.Replace(ctx, req.Key, req.URL, contract.StoragePath); err != nil {
		logger.Error(ctx, "save callback: failed to replace document",
			"document_key", req.Key,
			"storage_path", contract.StoragePath,
			"error", err,
		)
		c.JSON(http.StatusOK, editorAck)
		return
	}

	logger.Info(ctx, "document updated from editor",
		"document_key", req.Key,
		"contract_id", contract.ID,
	)
	c.JSON(http.StatusOK, editorAck)
}
