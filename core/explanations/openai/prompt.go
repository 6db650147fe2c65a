package openai

import (
	"fmt"
	"strings"

	"github.com/koscakluka/tutor-core/core/explanations"
)

const systemPromptTemplate = `You are a patient, engaging teacher explaining concepts to a %s student.

Rules:
- Explain in short, clear sentences a %s student can follow.
- Use concrete, everyday examples before abstract definitions.
- When a moving or drawn visual would help, insert a marker of the form
  [VISUAL: short description of the visual] at the point in the text where
  it should appear. Use at most one marker per explanation.
- Answer in %s.
- Do not use markdown formatting or bullet points; write flowing prose.`

func buildSystemPrompt(req explanations.Request) string {
	grade := req.GradeLevel
	if grade == "" {
		grade = "middle school"
	}
	language := req.Language
	if language == "" {
		language = "English"
	}
	return fmt.Sprintf(systemPromptTemplate, grade, grade, language)
}

func buildUserPrompt(req explanations.Request) string {
	var sb strings.Builder
	if req.Subject != "" {
		sb.WriteString("Subject: ")
		sb.WriteString(req.Subject)
		sb.WriteString("\n")
	}
	sb.WriteString(req.Question)
	return sb.String()
}
