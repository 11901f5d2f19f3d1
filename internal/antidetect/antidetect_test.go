// internal/antidetect/antidetect_test.go
package antidetect

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestUserAgentRotator(t *testing.T) {
	agents := []string{"agent-a", "agent-b", "agent-c"}
	rotator := NewUserAgentRotator(agents)

	for round := 0; round < 2; round++ {
		for _, want := range agents {
			if got := rotator.GetNext(); got != want {
				t.Errorf("GetNext() = %q, want %q", got, want)
			}
		}
	}
}

func TestUserAgentRotatorDefaults(t *testing.T) {
	rotator := NewUserAgentRotator(nil)
	if rotator.GetNext() == "" {
		t.Error("default rotation should never yield an empty agent")
	}
}

func TestFetchPlainPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("request sent without user agent")
		}
		if r.Header.Get("Accept-Language") == "" {
			t.Error("request sent without Accept-Language")
		}
		fmt.Fprint(w, "<html>content</html>")
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	body, err := client.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if body != "<html>content</html>" {
		t.Errorf("body = %q", body)
	}
}

func TestFetchRetriesChallengeStatus(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		fmt.Fprint(w, "cleared")
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{
		Timeout:       5 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	body, err := client.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if body != "cleared" {
		t.Errorf("body = %q", body)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 requests, got %d", calls.Load())
	}
}

func TestFetchRetriesInterstitialPage(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			fmt.Fprint(w, `<html><title>Just a moment...</title><div id="cf-browser-verification"></div></html>`)
			return
		}
		fmt.Fprint(w, "real content")
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{
		Timeout:       5 * time.Second,
		RetryAttempts: 2,
		RetryDelay:    10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	body, err := client.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if body != "real content" {
		t.Errorf("body = %q", body)
	}
}

func TestFetchGivesUpAfterRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{
		Timeout:       5 * time.Second,
		RetryAttempts: 2,
		RetryDelay:    time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	if _, err := client.Fetch(context.Background(), server.URL); err == nil {
		t.Fatal("expected failure after exhausting retries")
	}
}

func TestIsChallengePage(t *testing.T) {
	tests := []struct {
		body string
		want bool
	}{
		{"<html>Just a Moment...</html>", true},
		{"<div id='cf-browser-verification'>", true},
		{"DDoS protection by FooShield", true},
		{"<html>ordinary page</html>", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isChallengePage(tt.body); got != tt.want {
			t.Errorf("isChallengePage(%q) = %v, want %v", tt.body, got, tt.want)
		}
	}
}
