package tools

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
)

// ScraperTool fetches a business web page and reduces it to plain text.
type ScraperTool struct {
	UserAgent string
	MaxChars  int
	Client    *http.Client
}

func NewScraperTool() *ScraperTool {
	return &ScraperTool{
		UserAgent: "Mozilla/5.0 (compatible; digibiz-assessment/1.0)",
		MaxChars:  4000,
		Client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Fetch returns the title, excerpt and readable text of pageURL.
func (s *ScraperTool) Fetch(ctx context.Context, pageURL string) (string, error) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil || (parsedURL.Scheme != "http" && parsedURL.Scheme != "https") {
		return "", fmt.Errorf("invalid url %q", pageURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("User-Agent", s.UserAgent)

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch URL: status code %d", resp.StatusCode)
	}

	article, err := readability.FromReader(resp.Body, parsedURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse article: %v", err)
	}

	p := bluemonday.StrictPolicy()
	plain := func(v string) string { return strings.TrimSpace(html.UnescapeString(p.Sanitize(v))) }

	content := plain(article.TextContent)
	if s.MaxChars > 0 {
		if cut, ok := truncateRunes(content, s.MaxChars); ok {
			content = cut + "\n... (content truncated) ..."
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "TITLE: %s\n", plain(article.Title))
	if article.Excerpt != "" {
		fmt.Fprintf(&b, "EXCERPT: %s\n", plain(article.Excerpt))
	}
	b.WriteString("\n-- CONTENT --\n")
	b.WriteString(content)
	return b.String(), nil
}

// truncateRunes cuts s to at most n runes and reports whether it cut.
func truncateRunes(s string, n int) (string, bool) {
	count := 0
	for i := range s {
		if count == n {
			return s[:i], true
		}
		count++
	}
	return s, false
}
