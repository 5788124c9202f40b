package models

import (
	"fmt"
	"strings"
)

// Message roles used in a Conversation.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// AskRequest is a question with optional retrieval depth and prior turns.
type AskRequest struct {
	Query   string    `json:"query"`
	TopK    int       `json:"top_k,omitempty"`
	History []Message `json:"history,omitempty"`
}

// Validate trims the query and rejects empty questions. A negative TopK is reset to 0 (use the default).
func (r *AskRequest) Validate() error {
	r.Query = strings.TrimSpace(r.Query)
	if r.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if r.TopK < 0 {
		r.TopK = 0
	}
	for i, m := range r.History {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			return fmt.Errorf("history[%d]: unknown role %q", i, m.Role)
		}
	}
	return nil
}

// SearchRequest is a keyword lookup over chunk text.
type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// Validate rejects empty queries and clamps the limit to [1, 100], defaulting to 10.
func (r *SearchRequest) Validate() error {
	r.Query = strings.TrimSpace(r.Query)
	if r.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if r.Limit <= 0 {
		r.Limit = 10
	}
	if r.Limit > 100 {
		r.Limit = 100
	}
	return nil
}

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation holds prior turns for multi-turn grounding. The zero value is an empty conversation.
// MaxTurns bounds how many messages are kept (0 means unbounded).
type Conversation struct {
	Messages []Message `json:"messages"`
	MaxTurns int       `json:"-"`
}

// NewConversation returns a conversation that keeps at most maxTurns messages.
func NewConversation(maxTurns int) *Conversation {
	return &Conversation{MaxTurns: maxTurns}
}

// Append records a message, dropping the oldest ones past MaxTurns.
func (c *Conversation) Append(role, content string) {
	c.Messages = append(c.Messages, Message{Role: role, Content: content})
	if c.MaxTurns > 0 && len(c.Messages) > c.MaxTurns {
		c.Messages = c.Messages[len(c.Messages)-c.MaxTurns:]
	}
}

// Len returns the number of stored messages; nil-safe.
func (c *Conversation) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Messages)
}
