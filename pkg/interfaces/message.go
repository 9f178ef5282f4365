package interfaces

// MessageRole represents the role of a message sender
type MessageRole string

const (
	// MessageRoleUser represents a user message
	MessageRoleUser MessageRole = "user"
	// MessageRoleAssistant represents an agent message
	MessageRoleAssistant MessageRole = "assistant"
)
