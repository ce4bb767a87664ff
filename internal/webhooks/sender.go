package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/freitasmatheusrn/pricecompare/pkg/signature"
)

const deliveryTimeout = 10 * time.Second

// DeliveryError carries the response code of a non-2xx answer.
type DeliveryError struct {
	StatusCode int
	Body       string
}

func (e *DeliveryError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("webhook responded with status %d", e.StatusCode)
	}
	return fmt.Sprintf("webhook responded with status %d: %s", e.StatusCode, e.Body)
}

type Sender struct {
	client *http.Client
	now    func() time.Time
}

func NewSender() *Sender {
	return &Sender{
		client: &http.Client{Timeout: deliveryTimeout},
		now:    time.Now,
	}
}

// Send POSTs the signed payload and returns the response status code.
// Any status outside 2xx is reported as a *DeliveryError.
func (s *Sender) Send(ctx context.Context, url, secret, event string, payload []byte) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}

	ts := s.now()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "PriceCompare-Webhooks/1.0")
	req.Header.Set(signature.HeaderID, envelopeID(payload))
	req.Header.Set(signature.HeaderEvent, event)
	req.Header.Set(signature.HeaderTimestamp, fmt.Sprintf("%d", ts.Unix()))
	req.Header.Set(signature.HeaderSignature, signature.Sign(secret, payload, ts))

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return resp.StatusCode, &DeliveryError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	return resp.StatusCode, nil
}

func envelopeID(payload []byte) string {
	var env struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(payload, &env); err != nil {
		return ""
	}
	return env.ID
}
