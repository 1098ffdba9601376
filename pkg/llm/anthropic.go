package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const messagesVersion = "2023-06-01"

type anthropic struct {
	http        *http.Client
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
}

// NewAnthropic builds a messages-API client from the config. The HTTP
// client reuses connections across pipeline stages.
func NewAnthropic(cfg *Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm api key required")
	}

	return &anthropic{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		http: &http.Client{
			Timeout: cfg.TimeoutDuration(),
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

type wireContent struct {
	Type   string      `json:"type"`
	Text   string      `json:"text,omitempty"`
	Source *wireSource `json:"source,omitempty"`
}

type wireSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type wireMessage struct {
	Role    string        `json:"role"`
	Content []wireContent `json:"content"`
}

type wireRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	System      string        `json:"system,omitempty"`
	Messages    []wireMessage `json:"messages"`
}

type wireResponse struct {
	ID         string `json:"id"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (a *anthropic) Model() string {
	return a.model
}

func (a *anthropic) Complete(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(a.wire(req))
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		a.baseURL+"/v1/messages",
		bytes.NewReader(body),
	)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", messagesVersion)

	resp, err := a.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("llm request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var reply wireResponse
	if err := json.Unmarshal(respBody, &reply); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}

	if len(reply.Content) == 0 {
		return "", fmt.Errorf("empty reply content")
	}

	return reply.Content[0].Text, nil
}

func (a *anthropic) wire(req Request) wireRequest {
	model := req.Model
	if model == "" {
		model = a.model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = a.maxTokens
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = a.temperature
	}

	messages := make([]wireMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		content := make([]wireContent, 0, len(m.Content))
		for _, c := range m.Content {
			switch c.Type {
			case "image":
				content = append(content, wireContent{
					Type: "image",
					Source: &wireSource{
						Type:      "base64",
						MediaType: c.MediaType,
						Data:      c.Data,
					},
				})
			default:
				content = append(content, wireContent{Type: "text", Text: c.Text})
			}
		}
		messages = append(messages, wireMessage{Role: m.Role, Content: content})
	}

	return wireRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		System:      req.System,
		Messages:    messages,
	}
}
