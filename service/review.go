package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xiaodingfeng/contract-review/llm"
	"github.com/xiaodingfeng/contract-review/model"
	"github.com/xiaodingfeng/contract-review/pkg/logger"
)

// ErrIncompleteFramework is returned when a deep-review request is
// missing any of the four mandatory framework fields.
var ErrIncompleteFramework = errors.New("incomplete review framework: contract type, perspective, review points and core purposes are all required")

// AnalyzeRequest is the full deep-review request. The whole payload is
// persisted as the contract's pre-analysis data so a later session can
// be reconstructed from it.
type AnalyzeRequest struct {
	ContractID string `json:"contractId"`
	model.ReviewFramework
}

// ReviewService runs the two-stage AI review over a contract's text.
type ReviewService struct {
	store    *Store
	provider llm.Provider

	// extractText is swappable in tests.
	extractText func(path string) (string, error)
}

func NewReviewService(store *Store, provider llm.Provider) *ReviewService {
	return &ReviewService{
		store:       store,
		provider:    provider,
		extractText: ExtractText,
	}
}

// PreAnalyze is the quick scan: classify the contract and suggest
// parties, review points and review purposes. Nothing is persisted; the
// result only seeds the review setup UI.
func (s *ReviewService) PreAnalyze(ctx context.Context, contract *model.Contract) (*model.PreAnalysis, error) {
	text, err := s.extractText(contract.StoragePath)
	if err != nil {
		return nil, err
	}

	raw, err := s.provider.GenerateStructured(ctx, buildPreAnalyzePrompt(text))
	if err != nil {
		return nil, err
	}

	var result model.PreAnalysis
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &llm.Error{Provider: s.provider.Name(), Op: "parse pre-analysis", Err: err}
	}

	return &result, nil
}

// Analyze is the deep review: a customized prompt built from the user's
// review framework, persisted together with the framework itself on
// success. On any provider or parse failure nothing is written and the
// contract status is untouched.
func (s *ReviewService) Analyze(ctx context.Context, contract *model.Contract, req *AnalyzeRequest) (*model.AnalysisResult, error) {
	if req.ContractType == "" || req.UserPerspective == "" ||
		len(req.ReviewPoints) == 0 || len(req.CorePurposes) == 0 {
		return nil, ErrIncompleteFramework
	}

	text, err := s.extractText(contract.StoragePath)
	if err != nil {
		return nil, err
	}

	raw, err := s.provider.GenerateStructured(ctx, buildAnalyzePrompt(&req.ReviewFramework, text))
	if err != nil {
		return nil, err
	}

	var result model.AnalysisResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &llm.Error{Provider: s.provider.Name(), Op: "parse analysis", Err: err}
	}

	// Persist the raw model output rather than a re-marshal of the
	// parsed struct: anything extra the model returned stays available
	// for reconstruction.
	requestJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal analyze request: %w", err)
	}

	if err := s.store.SaveAnalysis(ctx, contract.ID, string(raw), string(requestJSON), req.UserPerspective); err != nil {
		return nil, fmt.Errorf("persist analysis: %w", err)
	}

	logger.Info(ctx, "deep review completed",
		"contract_type", req.ContractType,
		"perspective", req.UserPerspective,
		"review_points", len(req.ReviewPoints),
	)

	return &result, nil
}

func buildPreAnalyzePrompt(contractText string) string {
	var sb strings.Builder
	sb.WriteString(`你是一个专业的法务助理AI。请快速阅读以下合同文本，并严格按照下面的JSON格式返回你的分析结果，不要有任何多余的解释。
{
  "contract_type": "...",
  "potential_parties": ["...", "..."],
  "suggested_review_points": ["...", "..."],
  "suggested_core_purposes": ["...", "..."]
}

"contract_type": 识别合同的核心类型，例如 "劳动合同", "房屋租赁合同", "软件开发合同"。
"potential_parties": 列出合同中可能的当事方角色，例如 "甲方", "乙方", "用人单位", "劳动者", "出租方", "承租方"。
"suggested_review_points": 根据合同类型，推荐10-15个最关键、最常见的审查要点。
"suggested_core_purposes": 根据合同类型和内容，设身处地地推荐10-15个用户最可能希望达成的核心审查目的。

合同原文如下：
---
`)
	sb.WriteString(contractText)
	sb.WriteString("\n---\n")
	return sb.String()
}

func buildAnalyzePrompt(fw *model.ReviewFramework, contractText string) string {
	var sb strings.Builder
	sb.WriteString("你是一名资深法务专家，你的任务是根据用户提供的审查框架，对一份合同进行深度、定制化的审查。\n\n")
	sb.WriteString("**审查框架:**\n")
	fmt.Fprintf(&sb, "1. **合同类型:** %s\n", fw.ContractType)
	fmt.Fprintf(&sb, "2. **我的立场:** %s\n", fw.UserPerspective)
	sb.WriteString("3. **我重点关注的审查点:**\n")
	for _, point := range fw.ReviewPoints {
		fmt.Fprintf(&sb, "   - %s\n", point)
	}
	sb.WriteString("4. **我希望达成的核心审查目的:**\n")
	for _, purpose := range fw.CorePurposes {
		fmt.Fprintf(&sb, "   - %s\n", purpose)
	}
	sb.WriteString(`
**你的任务:**
请严格围绕上述框架，对以下合同文本进行全面分析。你的分析报告需要清晰、专业，并直接回应我关注的每一个审查点和核心目的。请将你的分析结果，严格按照下面的JSON格式返回，不需要任何额外的解释或开场白。

**输出格式 (JSON):**
{
  "dispute_points": [
    {
      "title": "审查点标题",
      "description": "针对该审查点的详细分析、发现的风险、以及基于我方立场的具体建议。"
    }
  ],
  "missing_clauses": [
    {
      "title": "建议补充的条款标题",
      "description": "说明为什么需要补充这个条款，以及它如何帮助实现我的核心审查目的。"
    }
  ],
  "party_review": [
    {
      "title": "主体相关审查发现",
      "description": "关于合同主体的审查结论，例如名称是否准确、权利义务是否清晰等。"
    }
  ]
}

**合同原文:**
---
`)
	sb.WriteString(contractText)
	sb.WriteString("\n---\n")
	return sb.String()
}
