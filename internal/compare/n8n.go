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

const maxBackendResponse = 2 << 20

var ErrNoProduct = errors.New("backend returned no product")

// N8NClient calls the scraping workflow exposed as an n8n webhook.
type N8NClient struct {
	webhookURL string
	client     *http.Client
}

type n8nItem struct {
	Title     string `json:"title"`
	Price     Price  `json:"price"`
	Currency  string `json:"currency"`
	Image     string `json:"image"`
	Thumbnail string `json:"thumbnail"`
	Store     string `json:"store"`
	Source    string `json:"source"`
	URL       string `json:"url"`
	Link      string `json:"link"`
}

type n8nPayload struct {
	Product     *n8nItem  `json:"product"`
	Comparisons []n8nItem `json:"comparisons"`
	Results     []n8nItem `json:"results"`
}

func NewN8NClient(webhookURL string, timeout time.Duration) *N8NClient {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &N8NClient{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: timeout},
	}
}

// Fetch posts {"url": productURL} and reads the product plus its comparisons.
// The workflow may answer with an object or a single element array.
func (c *N8NClient) Fetch(ctx context.Context, productURL string) (*Product, []Offer, error) {
	body, err := json.Marshal(map[string]string{"url": productURL})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("n8n request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBackendResponse))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read n8n response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("n8n responded with status %d", resp.StatusCode)
	}

	payload, err := decodeN8N(raw)
	if err != nil {
		return nil, nil, err
	}
	if payload.Product == nil || strings.TrimSpace(payload.Product.Title) == "" {
		return nil, nil, ErrNoProduct
	}

	p := payload.Product
	product := &Product{
		Title:      strings.TrimSpace(p.Title),
		PriceCents: p.Price.Cents,
		Currency:   p.Currency,
		Image:      firstNonEmpty(p.Image, p.Thumbnail),
		Store:      firstNonEmpty(p.Store, p.Source),
		URL:        firstNonEmpty(p.URL, productURL),
	}

	items := payload.Comparisons
	if len(items) == 0 {
		items = payload.Results
	}
	offers := make([]Offer, 0, len(items))
	for _, it := range items {
		offers = append(offers, Offer{
			Title:      it.Title,
			PriceCents: it.Price.Cents,
			Currency:   firstNonEmpty(it.Currency, p.Currency),
			Store:      firstNonEmpty(it.Store, it.Source),
			URL:        firstNonEmpty(it.URL, it.Link),
			Image:      firstNonEmpty(it.Image, it.Thumbnail),
		})
	}
	return product, offers, nil
}

func decodeN8N(raw []byte) (*n8nPayload, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, ErrNoProduct
	}
	if raw[0] == '[' {
		var list []n8nPayload
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("invalid n8n response: %w", err)
		}
		if len(list) == 0 {
			return nil, ErrNoProduct
		}
		return &list[0], nil
	}
	var payload n8nPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("invalid n8n response: %w", err)
	}
	return &payload, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
