package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xiaodingfeng/contract-review/pkg/logger"
	"github.com/xiaodingfeng/contract-review/service"
)

type AnalysisHandler struct {
	store  *service.Store
	review *service.ReviewService
}

func NewAnalysisHandler(store *service.Store, review *service.ReviewService) *AnalysisHandler {
	return &AnalysisHandler{
		store:  store,
		review: review,
	}
}

type preAnalyzeRequest struct {
	ContractID string `json:"contractId"`
}

// PreAnalyze runs the quick scan over a contract and returns suggested
// review framework inputs. Nothing is persisted.
func (h *AnalysisHandler) PreAnalyze(c *gin.Context) {
	var req preAnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ContractID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Contract ID is required."})
		return
	}

	contract, err := h.store.GetContract(c.Request.Context(), req.ContractID)
	if err == service.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "Contract not found."})
		return
	}
	if err != nil {
		logger.Error(c.Request.Context(), "pre-analysis: contract lookup failed", "error", err, "contract_id", req.ContractID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "预分析失败，请稍后重试。"})
		return
	}

	result, err := h.review.PreAnalyze(c.Request.Context(), contract)
	if err != nil {
		logger.Error(c.Request.Context(), "pre-analysis failed", "error", err, "contract_id", req.ContractID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "预分析失败，请稍后重试。"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// Analyze runs the deep review with the user's framework, persists the
// result and flips the contract to Reviewed.
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	var req service.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Incomplete analysis request. All parameters are required."})
		return
	}
	if req.ContractID == "" || req.ContractType == "" || req.UserPerspective == "" ||
		len(req.ReviewPoints) == 0 || len(req.CorePurposes) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Incomplete analysis request. All parameters are required."})
		return
	}

	contract, err := h.store.GetContract(c.Request.Context(), req.ContractID)
	if err == service.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "Contract not found."})
		return
	}
	if err != nil {
		logger.Error(c.Request.Context(), "analysis: contract lookup failed", "error", err, "contract_id", req.ContractID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "AI分析过程中发生未知错误。"})
		return
	}

	result, err := h.review.Analyze(c.Request.Context(), contract, &req)
	if errors.Is(err, service.ErrIncompleteFramework) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Incomplete analysis request. All parameters are required."})
		return
	}
	if err != nil {
		logger.Error(c.Request.Context(), "analysis failed", "error", err, "contract_id", req.ContractID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "AI分析过程中发生未知错误。"})
		return
	}

	c.JSON(http.StatusOK, result)
}
