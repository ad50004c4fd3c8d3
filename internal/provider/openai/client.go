package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
)

var (
	ErrMissingAPIKey   = errors.New("missing OpenAI API key")
	ErrInvalidResponse = errors.New("invalid macro estimate")
)

// Estimate is the estimator's answer per 100g of product.
type Estimate struct {
	Kcal    float64 `json:"kcal"`
	Protein float64 `json:"protein"`
	Fat     float64 `json:"fat"`
	Carbs   float64 `json:"carbs"`
}

type Client struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

const promptTemplate = `You are a nutrition assistant. For the product below return the approximate calories and macronutrients per 100 g of product. The product name may be in any language. Answer strictly with a JSON object and nothing else, in the format:
{"kcal": number, "protein": number, "fat": number, "carbs": number}

Product: %q`

func (c *Client) EstimateMacros(ctx context.Context, product string) (Estimate, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return Estimate{}, ErrMissingAPIKey
	}
	baseURL := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := strings.TrimSpace(c.Model)
	if model == "" {
		model = defaultModel
	}
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 8 * time.Second}
	}

	payload, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "user", Content: fmt.Sprintf(promptTemplate, strings.TrimSpace(product))},
		},
		Temperature:    0.2,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return Estimate{}, fmt.Errorf("marshal chat completion payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return Estimate{}, fmt.Errorf("create chat completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := httpClient.Do(req)
	if err != nil {
		return Estimate{}, fmt.Errorf("execute chat completion request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Estimate{}, fmt.Errorf("read chat completion response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Estimate{}, fmt.Errorf("chat completion request failed with status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Estimate{}, fmt.Errorf("decode chat completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return Estimate{}, fmt.Errorf("%w: no choices returned", ErrInvalidResponse)
	}
	return ParseEstimate(parsed.Choices[0].Message.Content)
}

var macroFields = []string{"kcal", "protein", "fat", "carbs"}

// ParseEstimate accepts exactly the four macro fields as finite, in-range numbers.
func ParseEstimate(content string) (Estimate, error) {
	content = stripCodeFence(strings.TrimSpace(content))
	if content == "" {
		return Estimate{}, fmt.Errorf("%w: empty content", ErrInvalidResponse)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return Estimate{}, fmt.Errorf("%w: content is not a JSON object: %v", ErrInvalidResponse, err)
	}
	if len(raw) != len(macroFields) {
		return Estimate{}, fmt.Errorf("%w: expected exactly %d fields, got %d", ErrInvalidResponse, len(macroFields), len(raw))
	}

	values := make(map[string]float64, len(macroFields))
	for _, field := range macroFields {
		msg, ok := raw[field]
		if !ok {
			return Estimate{}, fmt.Errorf("%w: missing field %q", ErrInvalidResponse, field)
		}
		var p *float64
		if err := json.Unmarshal(msg, &p); err != nil || p == nil {
			return Estimate{}, fmt.Errorf("%w: field %q is not a number", ErrInvalidResponse, field)
		}
		v := *p
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return Estimate{}, fmt.Errorf("%w: field %q out of range: %v", ErrInvalidResponse, field, v)
		}
		values[field] = v
	}

	out := Estimate{
		Kcal:    values["kcal"],
		Protein: values["protein"],
		Fat:     values["fat"],
		Carbs:   values["carbs"],
	}
	// Nothing holds more than 100g of a macro or ~900 kcal per 100g.
	if out.Protein > 100 || out.Fat > 100 || out.Carbs > 100 || out.Kcal > 1000 {
		return Estimate{}, fmt.Errorf("%w: values exceed per-100g bounds: %+v", ErrInvalidResponse, out)
	}
	return out, nil
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}
