package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenAIProvider implements Provider for OpenAI-compatible chat APIs.
// The model is instructed to answer in the Completion JSON shape; the
// topic pack's system prompt carries the schema instructions.
type OpenAIProvider struct {
	apiKey  string
	apiBase string
	model   string
	client  *http.Client
}

// NewOpenAI creates an OpenAI-compatible completion provider.
func NewOpenAI(apiKey, apiBase, model string, timeout time.Duration) *OpenAIProvider {
	if apiBase == "" {
		apiBase = "https://api.openai.com/v1"
	}
	apiBase = strings.TrimRight(apiBase, "/")
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OpenAIProvider{
		apiKey:  apiKey,
		apiBase: apiBase,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiRequest struct {
	Model          string       `json:"model"`
	Messages       []oaiMessage `json:"messages"`
	ResponseFormat *oaiFormat   `json:"response_format,omitempty"`
	Temperature    float64      `json:"temperature"`
}

type oaiFormat struct {
	Type string `json:"type"`
}

type oaiResponse struct {
	Choices []struct {
		Message oaiMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (*Completion, error) {
	system := req.SystemPrompt
	if req.SessionData != "" && req.SessionData != "{}" {
		system += "\n\n[Bối cảnh khách hàng đã biết]: " + req.SessionData
	}

	messages := make([]oaiMessage, 0, len(req.History)+1)
	messages = append(messages, oaiMessage{Role: "system", Content: system})
	for _, m := range req.History {
		role := m.Role
		if role == "model" {
			role = "assistant" // stored history uses the platform's role name
		}
		messages = append(messages, oaiMessage{Role: role, Content: m.Content})
	}

	body, err := json.Marshal(oaiRequest{
		Model:          p.model,
		Messages:       messages,
		ResponseFormat: &oaiFormat{Type: "json_object"},
		Temperature:    0.7,
	})
	if err != nil {
		return nil, fmt.Errorf("openai: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiBase+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("openai: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var oaiResp oaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&oaiResp); err != nil {
		return nil, fmt.Errorf("openai: decode response: %w", err)
	}
	if oaiResp.Error != nil {
		return nil, fmt.Errorf("openai: %s", oaiResp.Error.Message)
	}
	if len(oaiResp.Choices) == 0 {
		return nil, fmt.Errorf("openai: empty choices")
	}

	return ParseCompletion(oaiResp.Choices[0].Message.Content)
}

// ParseCompletion decodes the model's JSON answer into a Completion.
// Models sometimes wrap JSON in a markdown fence; strip it before decoding.
func ParseCompletion(content string) (*Completion, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	}

	var c Completion
	if err := json.Unmarshal([]byte(content), &c); err != nil {
		return nil, fmt.Errorf("completion: parse model output: %w", err)
	}
	return &c, nil
}
