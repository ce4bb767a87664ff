package compare

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const searchAPITimeout = 20 * time.Second

// SearchAPIClient queries the google_shopping engine of SearchAPI.io. Calls
// are spaced by a gate so at most one request leaves per interval.
type SearchAPIClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	gate    *rate.Limiter
}

type searchAPIResponse struct {
	ShoppingResults []struct {
		Title          string  `json:"title"`
		Price          Price   `json:"price"`
		ExtractedPrice float64 `json:"extracted_price"`
		Currency       string  `json:"currency"`
		Seller         string  `json:"seller"`
		Source         string  `json:"source"`
		ProductLink    string  `json:"product_link"`
		Link           string  `json:"link"`
		Thumbnail      string  `json:"thumbnail"`
	} `json:"shopping_results"`
	Error string `json:"error"`
}

func NewSearchAPIClient(apiKey, baseURL string, minInterval time.Duration) *SearchAPIClient {
	if minInterval <= 0 {
		minInterval = 1100 * time.Millisecond
	}
	return &SearchAPIClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: searchAPITimeout},
		gate:    rate.NewLimiter(rate.Every(minInterval), 1),
	}
}

func (c *SearchAPIClient) Search(ctx context.Context, query string) ([]Offer, error) {
	if err := c.gate.Wait(ctx); err != nil {
		return nil, fmt.Errorf("searchapi gate: %w", err)
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid searchapi url: %w", err)
	}
	q := u.Query()
	q.Set("engine", "google_shopping")
	q.Set("q", query)
	q.Set("gl", "br")
	q.Set("hl", "pt-br")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searchapi request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBackendResponse))
	if err != nil {
		return nil, fmt.Errorf("failed to read searchapi response: %w", err)
	}

	var parsed searchAPIResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("invalid searchapi response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("searchapi responded with status %d: %s", resp.StatusCode, parsed.Error)
	}

	offers := make([]Offer, 0, len(parsed.ShoppingResults))
	for _, r := range parsed.ShoppingResults {
		cents := r.Price.Cents
		if r.ExtractedPrice > 0 {
			cents = int64(r.ExtractedPrice*100 + 0.5)
		}
		offers = append(offers, Offer{
			Title:      r.Title,
			PriceCents: cents,
			Currency:   r.Currency,
			Store:      firstNonEmpty(r.Seller, r.Source),
			URL:        firstNonEmpty(r.ProductLink, r.Link),
			Image:      r.Thumbnail,
		})
	}
	return offers, nil
}
