package domain

// Message is a single anonymous message persisted for a recipient.
type Message struct {
	PK        string
	SK        string
	ID        string
	Username  string
	Content   string
	CreatedAt string
}

// Recipient is the profile record a message is addressed to.
type Recipient struct {
	Username          string
	AcceptingMessages bool
}

// APIResponse is the JSON envelope returned by the send endpoint and by every
// error response.
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// SendMessageRequest is the body accepted by the send endpoint.
type SendMessageRequest struct {
	Content  string `json:"content"`
	Username string `json:"username"`
}

// SuggestRequest is the body accepted by the suggestion endpoint.
type SuggestRequest struct {
	Prompt string `json:"prompt"`
}
