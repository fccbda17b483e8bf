package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/PabloGalante/prepwise-api/internal/domain"
)

var mockCategories = []string{
	"Communication Skills",
	"Technical Knowledge",
	"Problem Solving",
	"Cultural & Role Fit",
	"Confidence & Clarity",
}

// MockLLM answers with canned, well-formed payloads. Useful for local dev.
type MockLLM struct{}

func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

func (m *MockLLM) Generate(_ context.Context, req domain.GenerationRequest) (string, error) {
	switch req.Purpose {
	case domain.PurposeQuestions:
		return `["Tell me about a project you are proud of.", "How do you approach debugging a production issue?", "Describe a time you disagreed with a teammate."]`, nil

	case domain.PurposeFeedback:
		scores := make([]domain.CategoryScore, 0, len(mockCategories))
		for _, c := range mockCategories {
			scores = append(scores, domain.CategoryScore{Name: c, Score: 70, Comment: "Solid, with room to grow."})
		}
		out, err := json.Marshal(map[string]any{
			"totalScore":          70,
			"categoryScores":      scores,
			"strengths":           []string{"Clear communication"},
			"areasForImprovement": []string{"Go deeper on trade-offs"},
			"finalAssessment":     "A good mock interview overall.",
		})
		if err != nil {
			return "", err
		}
		return string(out), nil

	default:
		return "", fmt.Errorf("mock llm: unsupported purpose %q", req.Purpose)
	}
}
