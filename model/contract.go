package model

import (
	"time"
)

// Contract represents one uploaded contract document. There is exactly
// one physical file per contract: StoragePath is overwritten in place
// whenever the editor saves, no version history is kept.
type Contract struct {
	ID     string `gorm:"primaryKey" json:"id"`
	UserID string `gorm:"index" json:"user_id"`
	// OriginalFilename holds the raw bytes the upload reported. Decode
	// with DecodeStoredFilename before showing it to anyone.
	OriginalFilename string `json:"original_filename"`
	StoragePath      string `json:"storage_path"`
	// DocumentKey correlates editor save callbacks with this contract.
	// Generated once at upload and never reused.
	DocumentKey     string    `gorm:"uniqueIndex" json:"document_key"`
	Status          string    `json:"status"` // Uploaded, Reviewed
	AnalysisResult  string    `json:"analysis_result,omitempty"`
	PreAnalysisData string    `json:"pre_analysis_data,omitempty"`
	Perspective     string    `json:"perspective,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Contract status constants. The only transition is Uploaded -> Reviewed,
// performed by a successful deep review. It never reverts.
const (
	StatusUploaded = "Uploaded"
	StatusReviewed = "Reviewed"
)

// ReviewFramework is the user-assembled setup for a deep review. All
// four fields are mandatory.
type ReviewFramework struct {
	ContractType    string   `json:"contractType"`
	UserPerspective string   `json:"userPerspective"`
	ReviewPoints    []string `json:"reviewPoints"`
	CorePurposes    []string `json:"corePurposes"`
}

// ReviewFinding is a single titled finding inside an analysis section.
type ReviewFinding struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// AnalysisResult is the structured output of the deep review. The three
// section names are part of the model prompt contract.
type AnalysisResult struct {
	DisputePoints  []ReviewFinding `json:"dispute_points"`
	MissingClauses []ReviewFinding `json:"missing_clauses"`
	PartyReview    []ReviewFinding `json:"party_review"`
}

// PreAnalysis is the quick-scan classification returned by stage one of
// the review pipeline. It is returned to the client and never persisted.
type PreAnalysis struct {
	ContractType          string   `json:"contract_type"`
	PotentialParties      []string `json:"potential_parties"`
	SuggestedReviewPoints []string `json:"suggested_review_points"`
	SuggestedCorePurposes []string `json:"suggested_core_purposes"`
}
