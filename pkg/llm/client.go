// Package llm provides the chat-completion client used by the
// classification pipeline. It speaks an Anthropic-style messages API over
// HTTP and layers retry with exponential backoff on top.
package llm

import "context"

// Content is a single block within a message: text, or a base64 image.
type Content struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
}

// TextContent builds a text block.
func TextContent(text string) Content {
	return Content{Type: "text", Text: text}
}

// ImageContent builds a base64 image block.
func ImageContent(mediaType, data string) Content {
	return Content{Type: "image", MediaType: mediaType, Data: data}
}

// Message is one turn of a conversation.
type Message struct {
	Role    string
	Content []Content
}

// UserText builds a single-turn user message from plain text.
func UserText(text string) []Message {
	return []Message{{Role: "user", Content: []Content{TextContent(text)}}}
}

// Request is a chat-completion request. Model, MaxTokens, and Temperature
// fall back to the client's configured values when zero.
type Request struct {
	System      string
	Messages    []Message
	Model       string
	MaxTokens   int
	Temperature float64
}

// Client sends chat-completion requests and returns the raw reply text.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
	// Model reports the default model identifier, for result records.
	Model() string
}
