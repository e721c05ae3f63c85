package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pkoukk/tiktoken-go"
)

const completionTimeout = 60 * time.Second

const systemPrompt = "You are a helpful assistant that answers questions based on the provided context. " +
	"If the context doesn't contain relevant information, say so."

// OpenAICompleter generates answers through an OpenAI-compatible
// chat-completions API.
type OpenAICompleter struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func NewOpenAICompleter(baseURL, apiKey, model string) *OpenAICompleter {
	return &OpenAICompleter{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: completionTimeout},
		logger:  slog.Default(),
	}
}

func (c *OpenAICompleter) Complete(ctx context.Context, question, docContext string, opts Options) (string, error) {
	userPrompt := fmt.Sprintf("Context: %s\n\nQuestion: %s\n\nPlease provide a detailed answer based on the context above. If the context doesn't contain relevant information, please say so.",
		docContext, question)

	if opts.MaxTokens == 0 {
		opts = DefaultOptions()
	}

	reqBody, err := json.Marshal(completionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	if count, err := CountTokens(userPrompt + systemPrompt); err == nil {
		c.logger.Debug("sending completion request", "model", c.model, "prompt_tokens", count)
	}

	ctx, cancel := context.WithTimeout(ctx, completionTimeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("completions API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var apiResp completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(apiResp.Choices) == 0 {
		return "", errors.New("completions API returned no choices")
	}

	return apiResp.Choices[0].Message.Content, nil
}

// CountTokens approximates prompt size using the gpt-3.5-turbo encoding,
// which is close enough for logging across models.
func CountTokens(text string) (int, error) {
	enc, err := tiktoken.EncodingForModel("gpt-3.5-turbo")
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}
