package usecase

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"school-relay/internal/domain"
)

type schoolAnswerResponse struct {
	Answerable bool   `json:"answerable"`
	Answer     string `json:"answer"`
}

type promptContext struct {
	pinnedPrompt string
	knowledge    string
}

func buildPromptMessages(ctx promptContext, question string) []domain.ChatMessage {
	return []domain.ChatMessage{
		{Role: "system", Content: buildPolicyPrompt()},
		{Role: "system", Content: buildSchoolContextPrompt(ctx)},
		{Role: "user", Content: question},
	}
}

func buildPolicyPrompt() string {
	return strings.Join([]string{
		"Role:",
		"You are a friendly and professional assistant for a health & safety certification school.",
		"",
		"Task:",
		"Answer the student's question using ONLY the school information provided in this request.",
		"",
		"Behavior Rules:",
		behaviorRules(),
		"",
		"Output Contract:",
		outputContract(),
	}, "\n")
}

// buildSchoolContextPrompt keeps the school information verbatim. Course
// tables and schedules lose meaning if their line breaks are collapsed.
func buildSchoolContextPrompt(ctx promptContext) string {
	var b strings.Builder
	if p := strings.TrimSpace(ctx.pinnedPrompt); p != "" {
		b.WriteString(p)
		b.WriteString("\n\n")
	}
	b.WriteString("--- SCHOOL INFORMATION ---\n")
	b.WriteString(strings.TrimSpace(ctx.knowledge))
	b.WriteString("\n--- END SCHOOL INFORMATION ---")
	return b.String()
}

func behaviorRules() string {
	return strings.Join([]string{
		"1) Answer only the current student question.",
		"2) Be concise and helpful.",
		"3) Do NOT make up information.",
		"4) Do NOT answer questions unrelated to the school.",
		"5) If the answer is not in the school information, the question is not answerable.",
	}, "\n")
}

func outputContract() string {
	return "Return JSON only with keys answerable (boolean) and answer (string). " +
		"If the school information does not answer the question, return answerable=false and answer=\"\". " +
		"Otherwise return answerable=true and the final student-facing reply in answer."
}

func parseSchoolAnswer(raw string) (schoolAnswerResponse, error) {
	var out schoolAnswerResponse
	dec := json.NewDecoder(bytes.NewBufferString(strings.TrimSpace(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return schoolAnswerResponse{}, fmt.Errorf("usecase: decode school answer: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return schoolAnswerResponse{}, errors.New("usecase: decode school answer: multiple JSON values")
		}
		return schoolAnswerResponse{}, fmt.Errorf("usecase: decode school answer trailing data: %w", err)
	}
	if out.Answerable && strings.TrimSpace(out.Answer) == "" {
		return schoolAnswerResponse{}, errors.New("usecase: school answer missing text for answerable question")
	}
	return out, nil
}
