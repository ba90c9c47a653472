package pipeline

import (
	"sync"

	"github.com/room4-2/interactive-avatar/llm"
)

// DefaultHistoryLimit is the number of messages kept per conversation
const DefaultHistoryLimit = 10

// Conversation is the per-session chat history handed to the LLM
type Conversation struct {
	mu       sync.Mutex
	messages []llm.Message
	limit    int
}

// NewConversation creates an empty history keeping at most limit messages.
// A limit of zero or less keeps the default.
func NewConversation(limit int) *Conversation {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &Conversation{limit: limit}
}

// Messages returns a copy of the current history, oldest first
func (c *Conversation) Messages() []llm.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]llm.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Append records one exchange and trims to the most recent messages
func (c *Conversation) Append(userText, assistantText string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages,
		llm.Message{Role: llm.RoleUser, Content: userText},
		llm.Message{Role: llm.RoleAssistant, Content: assistantText},
	)
	if len(c.messages) > c.limit {
		c.messages = append([]llm.Message(nil), c.messages[len(c.messages)-c.limit:]...)
	}
}

// Len returns the number of stored messages
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}
