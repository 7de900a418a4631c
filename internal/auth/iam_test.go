package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestIAMTokenSource_ExchangeAndCache(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm failed: %v", err)
		}
		if r.Form.Get("apikey") != "secret" {
			t.Errorf("Expected apikey secret, got %q", r.Form.Get("apikey"))
		}
		if r.Form.Get("grant_type") != "urn:ibm:params:oauth:grant-type:apikey" {
			t.Errorf("Unexpected grant type %q", r.Form.Get("grant_type"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok-1","expires_in":3600,"token_type":"Bearer"}`))
	}))
	defer srv.Close()

	src := NewIAMTokenSource(srv.URL, "secret")
	ctx := context.Background()

	tok, err := src.Token(ctx)
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if tok.AccessToken != "tok-1" || tok.TokenType != "Bearer" || tok.ExpiresIn != 3600 {
		t.Errorf("Unexpected token: %+v", tok)
	}

	if _, err := src.Token(ctx); err != nil {
		t.Fatalf("Second Token failed: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("Expected cached token to be reused, got %d exchanges", n)
	}

	// Move the clock past expiry.
	src.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := src.Token(ctx); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("Expected a refresh after expiry, got %d exchanges", n)
	}
}

func TestIAMTokenSource_Errors(t *testing.T) {
	if _, err := NewIAMTokenSource("http://unused", "").Token(context.Background()); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("Expected ErrNoAPIKey, got %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errorMessage":"bad key"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	if _, err := NewIAMTokenSource(srv.URL, "wrong").Token(context.Background()); err == nil {
		t.Error("Expected error for non-2xx exchange")
	}
}
