// internal/browser/browser_test.go
package browser

import (
	"context"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if !cfg.Headless {
		t.Error("default config should be headless")
	}
	if cfg.Timeout != 45*time.Second {
		t.Errorf("timeout = %v, want 45s", cfg.Timeout)
	}
	if !cfg.DisableImages {
		t.Error("default config should disable images")
	}
}

func TestResolveURLRejectsBadInput(t *testing.T) {
	// No Chrome is launched until navigation, so input validation is
	// testable without a browser binary.
	m, err := NewManager(DefaultConfig())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer m.Close()

	for _, raw := range []string{"", "not a url", "ftp://host/file"} {
		if _, err := m.ResolveURL(context.Background(), raw); err == nil {
			t.Errorf("ResolveURL(%q) should fail", raw)
		}
	}
}
