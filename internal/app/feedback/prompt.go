package feedback

import (
	"fmt"
	"strings"

	"github.com/PabloGalante/prepwise-api/internal/domain"
)

// Categories are scored in this order.
var Categories = []string{
	"Communication Skills",
	"Technical Knowledge",
	"Problem Solving",
	"Cultural & Role Fit",
	"Confidence & Clarity",
}

const feedbackSystemPrompt = `You are a professional interviewer analyzing a mock interview.
Your task is to evaluate the candidate based on structured categories.
Be thorough and detailed. Don't be lenient with the candidate.
If there are mistakes or areas for improvement, point them out.`

const feedbackPrompt = `You are an AI interviewer analyzing a mock interview.
Transcript:
%s

Score the candidate from 0 to 100 in each of these areas, do not add categories other than the ones provided:
%s

Respond with a JSON object with exactly these fields:
{
  "totalScore": number,
  "categoryScores": [{"name": string, "score": number, "comment": string}],
  "strengths": [string],
  "areasForImprovement": [string],
  "finalAssessment": string
}`

func buildFeedbackPrompt(transcript []domain.TranscriptMessage) domain.GenerationRequest {
	var cats strings.Builder
	for _, c := range Categories {
		cats.WriteString("- " + c + "\n")
	}

	return domain.GenerationRequest{
		Purpose: domain.PurposeFeedback,
		System:  feedbackSystemPrompt,
		Prompt:  fmt.Sprintf(feedbackPrompt, FormatTranscript(transcript), strings.TrimRight(cats.String(), "\n")),
		JSON:    true,
	}
}

// FormatTranscript renders one "- role: content" line per message.
func FormatTranscript(transcript []domain.TranscriptMessage) string {
	parts := make([]string, 0, len(transcript))
	for _, m := range transcript {
		parts = append(parts, "- "+string(m.Role)+": "+m.Content)
	}
	return strings.Join(parts, "\n")
}
