package inference

import (
	"fmt"
	"strings"
)

// Message is one turn of a chat transcript.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// PromptFromMessages returns the text of the last user turn. Earlier turns
// are not replayed.
func PromptFromMessages(msgs []Message) (string, error) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if strings.EqualFold(msgs[i].Role, "user") {
			return msgs[i].Content, nil
		}
	}
	return "", fmt.Errorf("no user message in conversation")
}
