package refloop

import "log/slog"

// Role represents the speaker of a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a provider independent chat message. Providers convert it to
// their own wire format.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// Name is an optional participant name. OpenAI forwards it as is; other
	// providers ignore it.
	Name string `json:"name,omitempty"`
}

// SystemMessage creates a system message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage creates a user message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// LogValue implements slog.LogValuer. Content is truncated to keep log lines readable.
func (m Message) LogValue() slog.Value {
	const maxLen = 256
	content := m.Content
	if len(content) > maxLen {
		content = content[:maxLen] + "..."
	}
	attrs := []slog.Attr{
		slog.String("role", string(m.Role)),
		slog.String("content", content),
	}
	if m.Name != "" {
		attrs = append(attrs, slog.String("name", m.Name))
	}
	return slog.GroupValue(attrs...)
}

// SplitSystem separates leading system messages from the rest of the conversation.
// Providers that take the system prompt as a dedicated parameter (Claude, Gemini)
// use it to build their requests.
func SplitSystem(messages []Message) (string, []Message) {
	var system string
	rest := make([]Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
			continue
		}
		rest = append(rest, msg)
	}
	return system, rest
}
