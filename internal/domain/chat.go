package domain

// ChatMessage is the provider-agnostic prompt message shape passed from the
// suggestion usecase to the LLM integration.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
