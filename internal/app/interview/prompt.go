package interview

import (
	"fmt"

	"github.com/PabloGalante/prepwise-api/internal/domain"
)

const questionsPrompt = `Prepare questions for a job interview.
The job role is %s.
The job experience level is %s.
The tech stack used in the job is: %s.
The focus between behavioural and technical questions should lean towards: %s.
The amount of questions required is: %s.
Please return only the questions, without any additional text.
The questions are going to be read by a voice assistant so do not use "/" or "*" or anything similar.
Return the questions formatted like this:
["Question 1", "Question 2", "Question 3"]

Thank you! <3`

func buildQuestionsPrompt(in GenerateInput) domain.GenerationRequest {
	return domain.GenerationRequest{
		Purpose: domain.PurposeQuestions,
		Prompt:  fmt.Sprintf(questionsPrompt, in.Role, in.Level, in.TechStack, in.Type, in.Amount),
		JSON:    true,
	}
}
