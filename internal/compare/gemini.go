package compare

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

const (
	geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"
	geminiTimeout = 20 * time.Second
)

const identifyPrompt = `Identifique o produto vendido na página abaixo.
URL: %s
Dica (trecho da URL): %s
Responda somente com JSON no formato {"title": "...", "brand": "...", "model": "..."}.
Use string vazia quando não souber um campo.`

// GeminiClient asks a Gemini model to identify the product behind a URL.
type GeminiClient struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

type geminiRequest struct {
	Contents []struct {
		Parts []geminiPart `json:"parts"`
	} `json:"contents"`
	GenerationConfig struct {
		ResponseMimeType string  `json:"responseMimeType"`
		Temperature      float64 `json:"temperature"`
	} `json:"generationConfig"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func NewGeminiClient(apiKey, model string) *GeminiClient {
	return &GeminiClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: geminiBaseURL,
		client:  &http.Client{Timeout: geminiTimeout},
	}
}

func (c *GeminiClient) Identify(ctx context.Context, productURL string) (Identity, error) {
	hint := ""
	if u, err := ValidateProductURL(productURL); err == nil {
		hint = IdentityFromURL(u).Title
	}

	var reqBody geminiRequest
	reqBody.Contents = append(reqBody.Contents, struct {
		Parts []geminiPart `json:"parts"`
	}{Parts: []geminiPart{{Text: fmt.Sprintf(identifyPrompt, productURL, hint)}}})
	reqBody.GenerationConfig.ResponseMimeType = "application/json"

	body, err := json.Marshal(reqBody)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s:generateContent", strings.TrimRight(c.baseURL, "/"), c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Identity{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBackendResponse))
	if err != nil {
		return Identity{}, fmt.Errorf("failed to read gemini response: %w", err)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Identity{}, fmt.Errorf("invalid gemini response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := ""
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return Identity{}, fmt.Errorf("gemini responded with status %d: %s", resp.StatusCode, msg)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return Identity{}, errors.New("gemini returned no candidates")
	}

	return parseIdentity(parsed.Candidates[0].Content.Parts[0].Text)
}

// parseIdentity accepts the model answer with or without a markdown fence.
func parseIdentity(text string) (Identity, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	if i, j := strings.Index(text, "{"), strings.LastIndex(text, "}"); i >= 0 && j > i {
		text = text[i : j+1]
	}

	var id Identity
	if err := json.Unmarshal([]byte(text), &id); err != nil {
		return Identity{}, fmt.Errorf("invalid identity json: %w", err)
	}
	id.Title = CleanTitle(id.Title)
	id.Brand = strings.ToLower(strings.TrimSpace(id.Brand))
	id.Model = strings.TrimSpace(id.Model)
	if id.Title == "" {
		return Identity{}, errors.New("gemini could not identify the product")
	}
	if id.Model == "" {
		id.Model = ExtractModel(id.Title)
	}
	if id.Brand == "" {
		id.Brand = ExtractBrand(id.Title)
	}
	return id, nil
}
