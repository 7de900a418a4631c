// Package auth exchanges an API key for a short-lived bearer token.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

var ErrNoAPIKey = errors.New("api key not configured")

// Token is the credential returned by the exchange.
type Token struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// TokenSource hands out bearer tokens.
type TokenSource interface {
	Token(ctx context.Context) (Token, error)
}

// IAMTokenSource performs the IAM api-key grant and caches the token until
// shortly before it expires.
type IAMTokenSource struct {
	URL    string
	APIKey string
	Client *http.Client

	mu      sync.Mutex
	cached  Token
	expires time.Time
	now     func() time.Time
}

// refreshMargin is how long before expiry a cached token is replaced.
const refreshMargin = 60 * time.Second

func NewIAMTokenSource(iamURL, apiKey string) *IAMTokenSource {
	return &IAMTokenSource{
		URL:    iamURL,
		APIKey: apiKey,
		Client: &http.Client{Timeout: 30 * time.Second},
		now:    time.Now,
	}
}

func (s *IAMTokenSource) Token(ctx context.Context) (Token, error) {
	if s.APIKey == "" {
		return Token{}, ErrNoAPIKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached.AccessToken != "" && s.now().Before(s.expires) {
		return s.cached, nil
	}

	tok, err := s.exchange(ctx)
	if err != nil {
		return Token{}, err
	}
	s.cached = tok
	s.expires = s.now().Add(time.Duration(tok.ExpiresIn)*time.Second - refreshMargin)
	return tok, nil
}

func (s *IAMTokenSource) exchange(ctx context.Context) (Token, error) {
	form := url.Values{
		"grant_type": {"urn:ibm:params:oauth:grant-type:apikey"},
		"apikey":     {s.APIKey},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, fmt.Errorf("iam request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("iam exchange: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Token{}, fmt.Errorf("iam read: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Token{}, fmt.Errorf("iam exchange failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tok Token
	if err := json.Unmarshal(body, &tok); err != nil {
		return Token{}, fmt.Errorf("iam decode: %w", err)
	}
	if tok.AccessToken == "" {
		return Token{}, fmt.Errorf("iam exchange returned no access token")
	}
	return tok, nil
}
