package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Client runs image generations against a hosted model API. Run blocks
// until the model produces output or the context is cancelled.
type Client struct {
	baseURL string
	token   string
	model   string
	http    *http.Client
}

func NewClient(baseURL, token, model string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		model:   model,
		http:    &http.Client{},
	}
}

type runRequest struct {
	Model string   `json:"model"`
	Input runInput `json:"input"`
}

type runInput struct {
	Prompt     string `json:"prompt"`
	NumOutputs int    `json:"num_outputs"`
}

type runResponse struct {
	Output []string `json:"output"`
}

func (c *Client) Run(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(runRequest{
		Model: c.model,
		Input: runInput{Prompt: prompt, NumOutputs: 1},
	})
	if err != nil {
		return "", fmt.Errorf("marshal run request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/run", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("generation provider request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("generation provider returned %d", resp.StatusCode)
	}

	var out runResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode run response: %w", err)
	}
	if len(out.Output) == 0 || out.Output[0] == "" {
		return "", errors.New("generation produced no output")
	}

	return out.Output[0], nil
}
