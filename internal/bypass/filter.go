// internal/bypass/filter.go
package bypass

import (
	"net/url"
	"strings"

	"github.com/KeerthivasanKvm/Nova-adlink-bypasser-bot/internal/utils"
)

// domainDenylist holds hosts that are never a bypass destination. Shortener
// pages are full of social and ad links; a candidate on one of these hosts
// is navigation chrome, not the payload.
var domainDenylist = map[string]bool{
	"facebook.com":  true,
	"twitter.com":   true,
	"x.com":         true,
	"instagram.com": true,
	"youtube.com":   true,
	"google.com":    true,
	"t.me":          true,
	"telegram.me":   true,
	"whatsapp.com":  true,
	"discord.gg":    true,
	"pinterest.com": true,
	"linkedin.com":  true,
}

// downloadTokens mark a URL as download-intent when they appear in the path
// or query.
var downloadTokens = []string{
	"download",
	"dl",
	"file",
	"get",
	"mirror",
	"mediafire",
	"mega.nz",
	"drive.google",
	"dropbox",
	"attachment",
}

var downloadExtensions = []string{
	".zip", ".rar", ".7z", ".tar", ".gz",
	".pdf", ".epub",
	".mp4", ".mkv", ".avi", ".mp3", ".flac",
	".apk", ".exe", ".iso", ".dmg",
}

// IsPlausibleTarget reports whether a candidate URL looks like a real bypass
// destination rather than page furniture. The candidate must be absolute
// http(s), off the denylist, and carry some download intent. Candidates on
// the source page's own host are allowed: plenty of shorteners serve the
// payload from the same domain as the interstitial.
func IsPlausibleTarget(candidate, sourceURL string) bool {
	candidate = strings.TrimSpace(candidate)
	if !utils.IsAbsoluteHTTP(candidate) {
		return false
	}

	parsed, err := url.Parse(candidate)
	if err != nil {
		return false
	}

	host := strings.ToLower(strings.TrimPrefix(parsed.Hostname(), "www."))
	if host == "" || domainDenylist[host] {
		return false
	}

	return hasDownloadIntent(parsed)
}

func hasDownloadIntent(u *url.URL) bool {
	haystack := strings.ToLower(u.Path + "?" + u.RawQuery)

	for _, ext := range downloadExtensions {
		if strings.Contains(haystack, ext) {
			return true
		}
	}
	for _, token := range downloadTokens {
		if strings.Contains(haystack, token) {
			return true
		}
	}
	// Hosts that are themselves file hosts count even with opaque paths.
	host := strings.ToLower(u.Hostname())
	for _, token := range []string{"cdn", "files", "dl.", "download", "mediafire", "mega", "drive", "storage"} {
		if strings.Contains(host, token) {
			return true
		}
	}
	return false
}
