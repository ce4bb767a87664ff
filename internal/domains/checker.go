package domains

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	checkTimeout = 10 * time.Second
	maxFileBytes = 4 << 10
)

var (
	ErrTokenNotFound = errors.New("verification token not found")
	ErrTokenMismatch = errors.New("verification file does not match token")
)

// Resolver is satisfied by *net.Resolver.
type Resolver interface {
	LookupTXT(ctx context.Context, name string) ([]string, error)
}

type Checker struct {
	resolver Resolver
	client   *http.Client
	schemes  []string
}

func NewChecker(resolver Resolver) *Checker {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &Checker{
		resolver: resolver,
		client:   &http.Client{Timeout: checkTimeout},
		schemes:  []string{"https", "http"},
	}
}

// Check dispatches on method.
func (c *Checker) Check(ctx context.Context, method, domain, token string) error {
	if method == MethodFile {
		return c.CheckFile(ctx, domain, token)
	}
	return c.CheckDNS(ctx, domain, token)
}

func (c *Checker) CheckDNS(ctx context.Context, domain, token string) error {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	records, err := c.resolver.LookupTXT(ctx, domain)
	if err != nil {
		return fmt.Errorf("dns lookup failed: %w", err)
	}
	for _, r := range records {
		if strings.TrimSpace(r) == token {
			return nil
		}
	}
	return ErrTokenNotFound
}

// CheckFile fetches the well-known file, trying https before http.
func (c *Checker) CheckFile(ctx context.Context, domain, token string) error {
	var lastErr error
	for _, scheme := range c.schemes {
		body, err := c.fetch(ctx, scheme+"://"+domain+wellKnownPath)
		if err != nil {
			lastErr = err
			continue
		}
		if strings.TrimSpace(body) == token {
			return nil
		}
		lastErr = ErrTokenMismatch
	}
	return lastErr
}

func (c *Checker) fetch(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "PriceCompare-Verifier/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("request to %s returned status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFileBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", url, err)
	}
	return string(body), nil
}
