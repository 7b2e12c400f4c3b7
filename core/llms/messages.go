package llms

// Message is a single message in a prompt exchange.
type Message struct {
	Role    MessageRole
	Content string
}

// MessageRole describes who a message is from.
type MessageRole string

const (
	MessageRoleSystem    MessageRole = "system"
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)
