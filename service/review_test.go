package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/xiaodingfeng/contract-review/llm"
	"github.com/xiaodingfeng/contract-review/model"
)

// stubProvider returns fixed structured output and records prompts.
type stubProvider struct {
	structured string
	err        error
	prompts    []string
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) GenerateStructured(ctx context.Context, prompt string) (json.RawMessage, error) {
	p.prompts = append(p.prompts, prompt)
	if p.err != nil {
		return nil, p.err
	}
	return json.RawMessage(p.structured), nil
}

func (p *stubProvider) Generate(ctx context.Context, prompt string) (string, error) {
	p.prompts = append(p.prompts, prompt)
	if p.err != nil {
		return "", p.err
	}
	return p.structured, nil
}

func newTestReview(t *testing.T, provider llm.Provider) (*ReviewService, *Store) {
	t.Helper()
	store := newTestStore(t)
	review := NewReviewService(store, provider)
	review.extractText = func(path string) (string, error) {
		return "甲方与乙方签订本保密协议。", nil
	}
	return review, store
}

func validFramework() model.ReviewFramework {
	return model.ReviewFramework{
		ContractType:    "NDA",
		UserPerspective: "Disclosing Party",
		ReviewPoints:    []string{"confidentiality term"},
		CorePurposes:    []string{"limit liability"},
	}
}

func TestPreAnalyze(t *testing.T) {
	provider := &stubProvider{structured: `{
		"contract_type": "保密协议",
		"potential_parties": ["甲方", "乙方"],
		"suggested_review_points": ["保密期限", "违约责任"],
		"suggested_core_purposes": ["限制泄密风险"]
	}`}
	review, store := newTestReview(t, provider)
	contract := storeContract(t, store, "c-1", "k-1")

	result, err := review.PreAnalyze(context.Background(), contract)
	if err != nil {
		t.Fatalf("PreAnalyze failed: %v", err)
	}

	if result.ContractType != "保密协议" {
		t.Errorf("Unexpected contract type: %s", result.ContractType)
	}
	if len(result.PotentialParties) != 2 || len(result.SuggestedReviewPoints) != 2 {
		t.Errorf("Unexpected suggestion counts: %+v", result)
	}

	// The prompt must carry the extracted contract text.
	if len(provider.prompts) != 1 || !strings.Contains(provider.prompts[0], "甲方与乙方签订本保密协议。") {
		t.Error("Prompt does not contain the contract text")
	}

	// Stage one persists nothing.
	stored, _ := store.GetContract(context.Background(), "c-1")
	if stored.Status != model.StatusUploaded || stored.AnalysisResult != "" {
		t.Errorf("PreAnalyze must not persist anything: %+v", stored)
	}
}

func TestAnalyzePersistsResult(t *testing.T) {
	analysis := `{"dispute_points":[{"title":"保密期限","description":"期限过长"}],"missing_clauses":[],"party_review":[]}`
	provider := &stubProvider{structured: analysis}
	review, store := newTestReview(t, provider)
	contract := storeContract(t, store, "c-1", "k-1")

	framework := validFramework()
	result, err := review.Analyze(context.Background(), contract, &AnalyzeRequest{
		ContractID:      "c-1",
		ReviewFramework: framework,
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(result.DisputePoints) != 1 || result.DisputePoints[0].Title != "保密期限" {
		t.Errorf("Unexpected result: %+v", result)
	}

	stored, err := store.GetContract(context.Background(), "c-1")
	if err != nil {
		t.Fatalf("GetContract failed: %v", err)
	}
	if stored.Status != model.StatusReviewed {
		t.Errorf("Expected status Reviewed, got %s", stored.Status)
	}
	if stored.AnalysisResult != analysis {
		t.Errorf("Expected raw model output persisted, got %s", stored.AnalysisResult)
	}
	if stored.Perspective != "Disclosing Party" {
		t.Errorf("Expected perspective persisted, got %s", stored.Perspective)
	}

	// The persisted pre-analysis data is the full request payload.
	var replay AnalyzeRequest
	if err := json.Unmarshal([]byte(stored.PreAnalysisData), &replay); err != nil {
		t.Fatalf("Persisted request is not valid JSON: %v", err)
	}
	if replay.ContractID != "c-1" || replay.ContractType != "NDA" {
		t.Errorf("Unexpected replay record: %+v", replay)
	}
	if len(replay.ReviewPoints) != 1 || replay.ReviewPoints[0] != "confidentiality term" {
		t.Errorf("Review points not replayable: %+v", replay.ReviewPoints)
	}

	// The prompt embeds the framework verbatim.
	prompt := provider.prompts[0]
	for _, fragment := range []string{"NDA", "Disclosing Party", "confidentiality term", "limit liability"} {
		if !strings.Contains(prompt, fragment) {
			t.Errorf("Prompt missing framework fragment %q", fragment)
		}
	}
}

func TestAnalyzeTwiceStaysReviewed(t *testing.T) {
	provider := &stubProvider{structured: `{"dispute_points":[],"missing_clauses":[],"party_review":[]}`}
	review, store := newTestReview(t, provider)
	contract := storeContract(t, store, "c-1", "k-1")

	req := &AnalyzeRequest{ContractID: "c-1", ReviewFramework: validFramework()}
	if _, err := review.Analyze(context.Background(), contract, req); err != nil {
		t.Fatalf("First Analyze failed: %v", err)
	}

	provider.structured = `{"dispute_points":[{"title":"new","description":"finding"}],"missing_clauses":[],"party_review":[]}`
	if _, err := review.Analyze(context.Background(), contract, req); err != nil {
		t.Fatalf("Second Analyze failed: %v", err)
	}

	stored, _ := store.GetContract(context.Background(), "c-1")
	if stored.Status != model.StatusReviewed {
		t.Errorf("Expected status to stay Reviewed, got %s", stored.Status)
	}
	if !strings.Contains(stored.AnalysisResult, "new") {
		t.Errorf("Expected overwritten analysis, got %s", stored.AnalysisResult)
	}
}

func TestAnalyzeIncompleteFramework(t *testing.T) {
	provider := &stubProvider{structured: `{}`}
	review, store := newTestReview(t, provider)
	contract := storeContract(t, store, "c-1", "k-1")

	incomplete := []AnalyzeRequest{
		{ContractID: "c-1", ReviewFramework: model.ReviewFramework{UserPerspective: "x", ReviewPoints: []string{"a"}, CorePurposes: []string{"b"}}},
		{ContractID: "c-1", ReviewFramework: model.ReviewFramework{ContractType: "x", ReviewPoints: []string{"a"}, CorePurposes: []string{"b"}}},
		{ContractID: "c-1", ReviewFramework: model.ReviewFramework{ContractType: "x", UserPerspective: "y", CorePurposes: []string{"b"}}},
		{ContractID: "c-1", ReviewFramework: model.ReviewFramework{ContractType: "x", UserPerspective: "y", ReviewPoints: []string{"a"}}},
	}

	for i := range incomplete {
		if _, err := review.Analyze(context.Background(), contract, &incomplete[i]); !errors.Is(err, ErrIncompleteFramework) {
			t.Errorf("Case %d: expected ErrIncompleteFramework, got %v", i, err)
		}
	}

	if len(provider.prompts) != 0 {
		t.Error("Validation failures must not reach the provider")
	}
}

func TestAnalyzeProviderFailurePersistsNothing(t *testing.T) {
	provider := &stubProvider{err: &llm.Error{Provider: "stub", Op: "send request", Transient: true, Err: errors.New("boom")}}
	review, store := newTestReview(t, provider)
	contract := storeContract(t, store, "c-1", "k-1")

	req := &AnalyzeRequest{ContractID: "c-1", ReviewFramework: validFramework()}
	if _, err := review.Analyze(context.Background(), contract, req); err == nil {
		t.Fatal("Expected provider error")
	}

	stored, _ := store.GetContract(context.Background(), "c-1")
	if stored.Status != model.StatusUploaded || stored.AnalysisResult != "" || stored.PreAnalysisData != "" {
		t.Errorf("Failure must persist nothing: %+v", stored)
	}
}

func TestAnalyzeMalformedResultPersistsNothing(t *testing.T) {
	// Valid JSON but the wrong shape for the analysis sections.
	provider := &stubProvider{structured: `{"dispute_points": "not an array"}`}
	review, store := newTestReview(t, provider)
	contract := storeContract(t, store, "c-1", "k-1")

	req := &AnalyzeRequest{ContractID: "c-1", ReviewFramework: validFramework()}
	if _, err := review.Analyze(context.Background(), contract, req); err == nil {
		t.Fatal("Expected parse error")
	}

	stored, _ := store.GetContract(context.Background(), "c-1")
	if stored.Status != model.StatusUploaded {
		t.Errorf("Failure must not flip status: %s", stored.Status)
	}
}

func TestPreAnalyzeExtractionFailure(t *testing.T) {
	provider := &stubProvider{structured: `{}`}
	review, store := newTestReview(t, provider)
	review.extractText = func(path string) (string, error) {
		return "", &ExtractionError{Path: path, Err: errors.New("no such file")}
	}
	contract := storeContract(t, store, "c-1", "k-1")

	if _, err := review.PreAnalyze(context.Background(), contract); err == nil {
		t.Fatal("Expected extraction error")
	}
	if len(provider.prompts) != 0 {
		t.Error("Extraction failure must not reach the provider")
	}
}
