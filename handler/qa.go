package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/xiaodingfeng/contract-review/llm"
	"github.com/xiaodingfeng/contract-review/model"
	"github.com/xiaodingfeng/contract-review/pkg/logger"
	"github.com/xiaodingfeng/contract-review/service"
)

type QAHandler struct {
	store    *service.Store
	provider llm.Provider
}

func NewQAHandler(store *service.Store, provider llm.Provider) *QAHandler {
	return &QAHandler{
		store:    store,
		provider: provider,
	}
}

type askRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"sessionId"`
}

// Ask records the user's question, asks the model and records its
// answer. Both turns land in the Q&A history.
func (h *QAHandler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Question == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Question is required."})
		return
	}

	ctx := c.Request.Context()

	if err := h.store.AppendQAMessage(ctx, &model.QAMessage{
		ID:        uuid.New().String(),
		SessionID: req.SessionID,
		Role:      "user",
		Content:   req.Question,
		CreatedAt: time.Now(),
	}); err != nil {
		logger.Error(ctx, "failed to record question", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process question."})
		return
	}

	answer, err := h.provider.Generate(ctx, "你是一个专业的法律合同AI助手。请回答用户的问题。\n用户问题: "+req.Question)
	if err != nil {
		logger.Error(ctx, "qa generation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process question."})
		return
	}

	if err := h.store.AppendQAMessage(ctx, &model.QAMessage{
		ID:        uuid.New().String(),
		SessionID: req.SessionID,
		Role:      "assistant",
		Content:   answer,
		CreatedAt: time.Now(),
	}); err != nil {
		logger.Error(ctx, "failed to record answer", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process question."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"answer": answer})
}

// History returns all recorded Q&A turns, oldest first.
func (h *QAHandler) History(c *gin.Context) {
	history, err := h.store.ListQAHistory(c.Request.Context())
	if err != nil {
		logger.Error(c.Request.Context(), "failed to load qa history", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve Q&A history."})
		return
	}

	c.JSON(http.StatusOK, history)
}
