package answer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dkeye/Slideboard/internal/core"
	"github.com/rs/zerolog/log"
)

// Client asks an OpenAI compatible chat completions endpoint for a single
// answer. URL is the API base, e.g. https://api.openai.com/v1.
type Client struct {
	URL        string
	Model      string
	APIKey     string
	MaxTokens  int
	httpClient *http.Client
}

func NewClient(baseURL, model, apiKey string, timeout time.Duration) *Client {
	return &Client{
		URL:        strings.TrimSuffix(baseURL, "/"),
		Model:      model,
		APIKey:     apiKey,
		MaxTokens:  400,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) endpoint() string {
	return c.URL + "/chat/completions"
}

// Answer sends prompt as one user message and returns the first choice.
// Every failure is reported as core.ErrTransport.
func (c *Client) Answer(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:     c.Model,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens: c.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: answer: encode request: %v", core.ErrTransport, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: answer: build request: %v", core.ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: answer: %v", core.ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: answer: read response: %v", core.ErrTransport, err)
	}
	var out chatResponse
	decodeErr := json.Unmarshal(raw, &out)
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(raw))
		if decodeErr == nil && out.Error != nil {
			msg = out.Error.Type + ": " + out.Error.Message
		}
		return "", fmt.Errorf("%w: answer: status %d: %s", core.ErrTransport, resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("%w: answer: parse response: %v", core.ErrTransport, decodeErr)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: answer: empty completion", core.ErrTransport)
	}
	log.Debug().Str("module", "answer").Str("model", c.Model).Dur("took", time.Since(started)).Msg("completion received")
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
