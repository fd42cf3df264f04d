package openai_provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Message represents a message in a conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options configures the client.
type Options struct {
	APIKey          string
	BaseURL         string
	CompletionModel string
	EmbeddingModel  string
	Dimensions      int
	Temperature     float64
	MaxTokens       int
	Timeout         time.Duration
	MaxRetries      int
}

// Client implements chat completion and embeddings against an
// OpenAI-compatible API.
type Client struct {
	opts       Options
	httpClient *http.Client
	backoff    time.Duration
}

// NewClient creates a new OpenAI client
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &Client{
		opts:       opts,
		httpClient: &http.Client{Timeout: opts.Timeout},
		backoff:    300 * time.Millisecond,
	}
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
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
	} `json:"choices"`
}

// Complete generates free-form text from the conversation.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	return c.chat(ctx, messages, nil)
}

// CompleteJSON asks the model for a JSON object response and unmarshals it
// into out. Models occasionally wrap JSON in code fences; those are stripped
// before parsing.
func (c *Client) CompleteJSON(ctx context.Context, messages []Message, out interface{}) error {
	raw, err := c.chat(ctx, messages, &responseFormat{Type: "json_object"})
	if err != nil {
		return err
	}
	cleaned := stripFences(raw)
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return fmt.Errorf("parse structured response: %w", err)
	}
	return nil
}

// Embed returns one vector per input text using the embeddings endpoint.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body := map[string]interface{}{
		"model": c.opts.EmbeddingModel,
		"input": texts,
	}
	if c.opts.Dimensions > 0 {
		body["dimensions"] = c.opts.Dimensions
	}
	var resp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := c.doJSON(ctx, c.opts.BaseURL+"/embeddings", body, &resp); err != nil {
		return nil, err
	}
	vecs := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vecs[i] = d.Embedding
	}
	return vecs, nil
}

func (c *Client) chat(ctx context.Context, messages []Message, format *responseFormat) (string, error) {
	req := chatRequest{
		Model:          c.opts.CompletionModel,
		Messages:       messages,
		Temperature:    c.opts.Temperature,
		MaxTokens:      c.opts.MaxTokens,
		ResponseFormat: format,
	}
	var resp chatResponse
	if err := c.doJSON(ctx, c.opts.BaseURL+"/chat/completions", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

// doJSON posts the body and decodes the response, retrying transient failures
// with exponential backoff. 4xx statuses other than 429 are not retried.
func (c *Client) doJSON(ctx context.Context, url string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	tries := c.opts.MaxRetries + 1
	for attempt := 0; attempt < tries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else {
			func() {
				defer resp.Body.Close()
				if resp.StatusCode >= 200 && resp.StatusCode < 300 {
					lastErr = json.NewDecoder(resp.Body).Decode(out)
					return
				}
				b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
				lastErr = fmt.Errorf("api status %d: %s", resp.StatusCode, string(b))
				if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
					attempt = tries // terminal, do not retry
				}
			}()
			if lastErr == nil {
				return nil
			}
			if attempt >= tries {
				return lastErr
			}
		}

		if attempt < tries-1 {
			select {
			case <-time.After(c.backoff * time.Duration(1<<attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, "```"); idx != -1 {
		s = s[idx+3:]
		s = strings.TrimPrefix(s, "json")
		if end := strings.Index(s, "```"); end != -1 {
			s = s[:end]
		}
	}
	return strings.TrimSpace(s)
}
