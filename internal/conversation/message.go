package conversation

import "strings"

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Usage holds token counters reported by a model call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add returns the element-wise sum of u and other.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
		TotalTokens:  u.TotalTokens + other.TotalTokens,
	}
}

// IsZero reports whether no tokens were counted.
func (u Usage) IsZero() bool {
	return u.InputTokens == 0 && u.OutputTokens == 0 && u.TotalTokens == 0
}

// Message is a single entry of the conversation history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Usage   *Usage `json:"usage,omitempty"`
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func AssistantMessage(content string, usage *Usage) Message {
	return Message{Role: RoleAssistant, Content: content, Usage: cloneUsage(usage)}
}

func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// IsUser reports whether the message was written by the user and carries text.
func (m Message) IsUser() bool {
	return m.Role == RoleUser && strings.TrimSpace(m.Content) != ""
}

func cloneUsage(u *Usage) *Usage {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
