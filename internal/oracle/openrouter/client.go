// Package openrouter implements the decision oracle against an
// OpenAI-compatible chat-completions endpoint. One request per turn, no
// retries; the caller decides whether a failed turn is retried.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"talecraft.ai/internal/protocol"
	"talecraft.ai/internal/sim/engine"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel   = "z-ai/glm-4.6"
	DefaultTimeout = 90 * time.Second

	maxResponseBytes = 4 << 20
)

type Config struct {
	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
}

func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openrouter: empty api key")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Stream         bool            `json:"stream"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Decide runs one chat completion and decodes the model's JSON reply into a
// decision. Transport problems come back as E_TRANSPORT, malformed or
// off-schema replies as E_BAD_RESPONSE. The reply is checked against the
// wire schema before decoding so a structurally broken payload never reaches
// the executor.
func (c *Client) Decide(ctx context.Context, snap *engine.Snapshot) (protocol.Decision, error) {
	var zero protocol.Decision

	worldJSON, err := json.Marshal(snap)
	if err != nil {
		return zero, &protocol.DecisionError{Code: protocol.ErrInternal, Msg: "marshal snapshot: " + err.Error()}
	}

	req := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt()},
			{Role: "user", Content: userPrompt(snap, worldJSON)},
		},
		Stream:         false,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return zero, &protocol.DecisionError{Code: protocol.ErrInternal, Msg: "marshal request: " + err.Error()}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return zero, &protocol.DecisionError{Code: protocol.ErrInternal, Msg: "build request: " + err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return zero, &protocol.DecisionError{Code: protocol.ErrTransport, Msg: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return zero, &protocol.DecisionError{Code: protocol.ErrTransport, Msg: "read response: " + err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return zero, &protocol.DecisionError{
			Code: protocol.ErrTransport,
			Msg:  fmt.Sprintf("status %d: %s", resp.StatusCode, truncate(respBody, 512)),
		}
	}

	var chat chatResponse
	if err := json.Unmarshal(respBody, &chat); err != nil {
		return zero, &protocol.DecisionError{Code: protocol.ErrBadResponse, Msg: "unmarshal envelope: " + err.Error()}
	}
	if chat.Error != nil {
		return zero, &protocol.DecisionError{Code: protocol.ErrBadResponse, Msg: "provider error: " + chat.Error.Message}
	}
	if len(chat.Choices) == 0 {
		return zero, &protocol.DecisionError{Code: protocol.ErrBadResponse, Msg: "no choices in response"}
	}

	raw := []byte(stripFences(chat.Choices[0].Message.Content))
	if err := protocol.ValidateWire(raw); err != nil {
		return zero, &protocol.DecisionError{Code: protocol.ErrBadResponse, Msg: "off-schema reply: " + err.Error()}
	}
	d, err := protocol.DecodeDecision(raw)
	if err != nil {
		return zero, &protocol.DecisionError{Code: protocol.ErrBadResponse, Msg: err.Error()}
	}
	return d, nil
}

// stripFences removes a markdown code fence some models wrap JSON in even
// under response_format.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
