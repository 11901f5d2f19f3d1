// internal/bypass/filter_test.go
package bypass

import "testing"

func TestIsPlausibleTarget(t *testing.T) {
	const source = "https://short.example/abc"

	tests := []struct {
		name      string
		candidate string
		want      bool
	}{
		{"direct file link", "http://cdn.example.com/file.zip", true},
		{"download path", "https://host.example.net/download/42", true},
		{"video extension", "https://host.example.net/v/movie.mp4", true},
		{"file host", "https://files.othersite.io/x9k2", true},
		{"mega link", "https://mega.nz/file/abcdef", true},
		{"relative path", "/download/file.zip", false},
		{"javascript scheme", "javascript:void(0)", false},
		{"ftp scheme", "ftp://host.example.net/file.zip", false},
		{"facebook share", "https://facebook.com/sharer?u=x", false},
		{"www facebook share", "https://www.facebook.com/sharer?u=x", false},
		{"twitter intent", "https://twitter.com/intent/tweet", false},
		{"youtube embed", "https://youtube.com/watch?v=abc", false},
		{"same host with download path", "https://short.example/download/next", true},
		{"same host without intent", "https://short.example/terms", false},
		{"no download intent", "https://blog.example.net/about", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPlausibleTarget(tt.candidate, source); got != tt.want {
				t.Errorf("IsPlausibleTarget(%q) = %v, want %v", tt.candidate, got, tt.want)
			}
		})
	}
}
