package products

import (
	"context"
	"fmt"
	"sync"

	"github.com/playwright-community/playwright-go"
)

const (
	navigationTimeoutMs = 30000
	settleTimeoutMs     = 10000
	crawlerUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// Crawler renders product pages in headless Chromium and extracts the price.
type Crawler struct {
	pw        *playwright.Playwright
	browser   playwright.Browser
	mu        sync.Mutex
	isRunning bool
}

func NewCrawler() *Crawler {
	return &Crawler{}
}

func (c *Crawler) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isRunning {
		return nil
	}

	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("could not start playwright: %w", err)
	}
	c.pw = pw

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		c.pw.Stop()
		return fmt.Errorf("could not launch browser: %w", err)
	}
	c.browser = browser
	c.isRunning = true

	return nil
}

func (c *Crawler) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isRunning {
		return nil
	}

	if c.browser != nil {
		if err := c.browser.Close(); err != nil {
			return fmt.Errorf("could not close browser: %w", err)
		}
	}

	if c.pw != nil {
		if err := c.pw.Stop(); err != nil {
			return fmt.Errorf("could not stop playwright: %w", err)
		}
	}

	c.isRunning = false
	return nil
}

func (c *Crawler) Collect(ctx context.Context, url string) (*CrawledData, error) {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil, fmt.Errorf("crawler is not running")
	}
	browser := c.browser
	c.mu.Unlock()

	page, err := browser.NewPage(playwright.BrowserNewPageOptions{
		UserAgent: playwright.String(crawlerUserAgent),
	})
	if err != nil {
		return nil, fmt.Errorf("could not create page: %w", err)
	}
	defer page.Close()

	if _, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(navigationTimeoutMs),
	}); err != nil {
		return nil, fmt.Errorf("could not navigate to %s: %w", url, err)
	}

	// Prices on most stores are rendered client side; a timeout here is fine.
	_ = page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(settleTimeoutMs),
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("could not read page content: %w", err)
	}

	data, err := ExtractProduct(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", url, err)
	}
	return data, nil
}
