package pipeline

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/room4-2/interactive-avatar/llm"
)

func TestConversation_TrimsToLimit(t *testing.T) {
	c := NewConversation(4)
	for i := 0; i < 3; i++ {
		c.Append(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}

	got := c.Messages()
	assert.Len(t, got, 4)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "q1"}, got[0])
	assert.Equal(t, llm.Message{Role: llm.RoleAssistant, Content: "a2"}, got[3])
}

func TestConversation_DefaultLimit(t *testing.T) {
	c := NewConversation(0)
	for i := 0; i < 20; i++ {
		c.Append("q", "a")
	}
	assert.Equal(t, DefaultHistoryLimit, c.Len())
}

func TestConversation_MessagesIsCopy(t *testing.T) {
	c := NewConversation(10)
	c.Append("q", "a")
	got := c.Messages()
	got[0].Content = "mutated"
	assert.Equal(t, "q", c.Messages()[0].Content)
}
