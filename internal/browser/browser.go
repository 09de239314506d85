// Package browser fetches page content through a headless Chrome
// instance for the browsing agent.
package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/driftworks/agentd/internal/events"
)

const DefaultTimeout = 30 * time.Second

type Browser struct {
	Timeout   time.Duration
	UserAgent string
}

func New() *Browser {
	return &Browser{Timeout: DefaultTimeout}
}

// Fetch navigates to the URL and extracts the page title and body
// text. Failures come back as an error-flagged observation so the
// agent can react instead of the session dying.
func (b *Browser) Fetch(ctx context.Context, url string) events.BrowserOutput {
	timeout := b.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if b.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(b.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(timeoutCtx, opts...)
	defer allocCancel()

	chromeCtx, chromeCancel := chromedp.NewContext(allocCtx)
	defer chromeCancel()

	var title, text string
	err := chromedp.Run(chromeCtx,
		chromedp.Navigate(url),
		chromedp.Title(&title),
		chromedp.Text("body", &text, chromedp.ByQuery),
	)
	if err != nil {
		return events.BrowserOutput{
			URL:     url,
			Error:   true,
			Content: fmt.Sprintf("failed to load %s: %v", url, err),
		}
	}

	var sb strings.Builder
	if title != "" {
		sb.WriteString(title)
		sb.WriteString("\n\n")
	}
	sb.WriteString(strings.TrimSpace(text))
	return events.BrowserOutput{URL: url, Content: sb.String()}
}
