package usecase

import (
	"strings"

	"mystery-message/internal/domain"
)

func buildSuggestionMessages(systemPrompt, hint string) []domain.ChatMessage {
	user := "Suggest three messages."
	if hint != "" {
		user = "Suggest three messages about: " + hint
	}
	return []domain.ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: user},
	}
}

func defaultSuggestionPrompt() string {
	return strings.Join([]string{
		"Role:",
		"You write opening messages for an anonymous social messaging platform.",
		"",
		"Task:",
		"Create three open-ended, friendly questions a visitor could send to someone they do not know.",
		"",
		"Rules:",
		"1) Avoid personal or sensitive topics.",
		"2) Keep each question to a single sentence.",
		"3) Prefer universal themes that encourage a positive reply.",
		"",
		"Output Contract:",
		"Return the three questions as one line of plain text, separated by '||'.",
		"Do not number them, quote them or add any other text.",
		"Example: What's a hobby you've recently started?||If you could have dinner with any historical figure, who would it be?||What's a simple thing that makes you happy?",
	}, "\n")
}
