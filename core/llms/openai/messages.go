package openai

import "github.com/callwright/callwright/core/llms"

type message struct {
	Role    messageRole `json:"role"`
	Content string      `json:"content"`
}

type messageRole string

const (
	messageRoleSystem    messageRole = "system"
	messageRoleUser      messageRole = "user"
	messageRoleAssistant messageRole = "assistant"
)

func toMessages(instructions string, history []llms.Message) []message {
	messages := []message{}
	if instructions != "" {
		messages = append(messages, message{
			Role:    messageRoleSystem,
			Content: instructions,
		})
	}

	for _, msg := range history {
		if msg.Content == "" {
			continue
		}
		switch msg.Role {
		case llms.MessageRoleSystem:
			messages = append(messages, message{Role: messageRoleSystem, Content: msg.Content})
		case llms.MessageRoleUser:
			messages = append(messages, message{Role: messageRoleUser, Content: msg.Content})
		case llms.MessageRoleAssistant:
			messages = append(messages, message{Role: messageRoleAssistant, Content: msg.Content})
		}
	}

	return messages
}
