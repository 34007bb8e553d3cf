package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/xiaodingfeng/contract-review/model"
	"github.com/xiaodingfeng/contract-review/pkg/logger"
	"github.com/xiaodingfeng/contract-review/service"
)

type ContractHandler struct {
	store     *service.Store
	editor    *service.EditorService
	uploadDir string
}

func NewContractHandler(store *service.Store, editor *service.EditorService, uploadDir string) *ContractHandler {
	return &ContractHandler{
		store:     store,
		editor:    editor,
		uploadDir: uploadDir,
	}
}

// Upload receives a contract document, stores it on disk, creates the
// contract record and hands back the signed editor session config so the
// client can open the document in the external editor right away.
func (h *ContractHandler) Upload(c *gin.Context) {
	userID := c.PostForm("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User ID is required for upload."})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded."})
		return
	}
	defer file.Close()

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		logger.Error(c.Request.Context(), "failed to create upload directory", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error during file upload."})
		return
	}

	// The on-disk name is sanitized to ASCII so the editor's download
	// URL stays simple; the original filename is kept on the record.
	storedName := fmt.Sprintf("%d-%s", time.Now().UnixNano(), sanitizeFilename(header.Filename))
	storagePath := filepath.Join(h.uploadDir, storedName)

	if err := c.SaveUploadedFile(header, storagePath); err != nil {
		logger.Error(c.Request.Context(), "failed to store uploaded file", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error during file upload."})
		return
	}

	contract := &model.Contract{
		ID:               uuid.New().String(),
		UserID:           userID,
		OriginalFilename: header.Filename,
		StoragePath:      storagePath,
		DocumentKey:      uuid.New().String(),
		Status:           model.StatusUploaded,
		CreatedAt:        time.Now(),
	}

	if err := h.store.CreateContract(c.Request.Context(), contract); err != nil {
		os.Remove(storagePath)
		logger.Error(c.Request.Context(), "failed to insert contract", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to insert contract into database."})
		return
	}

	editorConfig, err := h.editor.BuildConfig(contract)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to build editor config", "error", err, "contract_id", contract.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error during file upload."})
		return
	}

	logger.Info(c.Request.Context(), "contract uploaded",
		"contract_id", contract.ID,
		"document_key", contract.DocumentKey,
		"file_url", editorConfig.Document.URL,
	)

	c.JSON(http.StatusCreated, gin.H{
		"message":      "File uploaded, editor config generated.",
		"contractId":   contract.ID,
		"editorConfig": editorConfig,
	})
}

// storedFramework is the shape Get reads the persisted analyze request
// under. potential_parties is read with a snake_case name the analyze
// payload never writes; see DESIGN.md before changing it.
type storedFramework struct {
	ContractType     string   `json:"contractType"`
	PotentialParties []string `json:"potential_parties"`
	ReviewPoints     []string `json:"reviewPoints"`
	CorePurposes     []string `json:"corePurposes"`
}

// Get reconstructs the full review state of a contract: decoded
// filename, a freshly signed editor config, the persisted review output
// and the views derived from the stored review framework.
func (h *ContractHandler) Get(c *gin.Context) {
	id := c.Param("id")

	contract, err := h.store.GetContract(c.Request.Context(), id)
	if err == service.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "Contract not found"})
		return
	}
	if err != nil {
		logger.Error(c.Request.Context(), "failed to load contract", "error", err, "contract_id", id)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve contract details."})
		return
	}

	reviewData := map[string]any{}
	if contract.AnalysisResult != "" {
		if err := json.Unmarshal([]byte(contract.AnalysisResult), &reviewData); err != nil {
			logger.Warn(c.Request.Context(), "stored analysis result is not valid JSON", "contract_id", id, "error", err)
		}
	}

	var framework storedFramework
	if contract.PreAnalysisData != "" {
		if err := json.Unmarshal([]byte(contract.PreAnalysisData), &framework); err != nil {
			logger.Warn(c.Request.Context(), "stored pre-analysis data is not valid JSON", "contract_id", id, "error", err)
		}
	}

	editorConfig, err := h.editor.BuildConfig(contract)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to build editor config", "error", err, "contract_id", id)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve contract details."})
		return
	}

	contractType := framework.ContractType
	if contractType == "" {
		contractType = "未知"
	}

	customPurposes := make([]gin.H, 0, len(framework.CorePurposes))
	for _, purpose := range framework.CorePurposes {
		customPurposes = append(customPurposes, gin.H{"value": purpose})
	}

	c.JSON(http.StatusOK, gin.H{
		"contract": gin.H{
			"id":                contract.ID,
			"original_filename": model.DecodeStoredFilename(contract.OriginalFilename),
			"editorConfig":      editorConfig,
		},
		"reviewData":  reviewData,
		"perspective": contract.Perspective,
		"preAnalysisData": gin.H{
			"contract_type":           contractType,
			"potential_parties":       prependUnique(contract.Perspective, framework.PotentialParties),
			"suggested_review_points": emptyIfNil(framework.ReviewPoints),
			"suggested_core_purposes": emptyIfNil(framework.CorePurposes),
		},
		"selectedReviewPoints": emptyIfNil(framework.ReviewPoints),
		"customPurposes":       customPurposes,
	})
}

// List returns the contract history, newest first.
func (h *ContractHandler) List(c *gin.Context) {
	contracts, err := h.store.ListContracts(c.Request.Context())
	if err != nil {
		logger.Error(c.Request.Context(), "failed to list contracts", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch contract history."})
		return
	}

	c.JSON(http.StatusOK, contractSummaries(contracts))
}

// Delete removes the stored file (best effort) and the contract record.
// A file already gone from disk is not an error; the record still goes.
func (h *ContractHandler) Delete(c *gin.Context) {
	id := c.Param("id")

	contract, err := h.store.GetContract(c.Request.Context(), id)
	if err == service.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "Contract not found, cannot delete."})
		return
	}
	if err != nil {
		logger.Error(c.Request.Context(), "failed to load contract for delete", "error", err, "contract_id", id)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete contract."})
		return
	}

	if contract.StoragePath != "" {
		if err := os.Remove(contract.StoragePath); err != nil && !os.IsNotExist(err) {
			logger.Warn(c.Request.Context(), "could not delete contract file",
				"storage_path", contract.StoragePath,
				"error", err,
			)
		}
	}

	if err := h.store.DeleteContract(c.Request.Context(), id); err != nil {
		logger.Error(c.Request.Context(), "failed to delete contract record", "error", err, "contract_id", id)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete contract."})
		return
	}

	logger.Info(c.Request.Context(), "contract deleted", "contract_id", id)
	c.JSON(http.StatusOK, gin.H{"message": "Contract deleted successfully."})
}

func contractSummaries(contracts []model.Contract) []gin.H {
	result := make([]gin.H, len(contracts))
	for i, contract := range contracts {
		result[i] = gin.H{
			"id":                contract.ID,
			"original_filename": model.DecodeStoredFilename(contract.OriginalFilename),
			"status":            contract.Status,
			"created_at":        contract.CreatedAt.Format(time.RFC3339),
		}
	}
	return result
}

// prependUnique puts first at the head of list and drops duplicates and
// empty entries.
func prependUnique(first string, list []string) []string {
	result := make([]string, 0, len(list)+1)
	seen := make(map[string]bool)
	for _, v := range append([]string{first}, list...) {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		result = append(result, v)
	}
	return result
}

func emptyIfNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}

// sanitizeFilename keeps ASCII letters, digits, dots, dashes and
// underscores; everything else becomes an underscore.
func sanitizeFilename(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
