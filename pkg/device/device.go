// Package device derives device identity hints from request headers
package device

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Info is a coarse description of the client derived from its user agent
type Info struct {
	OS         string
	Browser    string
	DeviceName string
}

// Fingerprint returns a stable SHA-256 hex digest (64 chars) of the headers
// that identify a client installation
func Fingerprint(userAgent, acceptLanguage, acceptEncoding string) string {
	sum := sha256.Sum256([]byte(userAgent + "|" + acceptLanguage + "|" + acceptEncoding))
	return hex.EncodeToString(sum[:])
}

// ParseUserAgent extracts OS, browser and device name from a user agent string.
// Unknown parts are left empty.
func ParseUserAgent(userAgent string) Info {
	ua := strings.ToLower(userAgent)
	if ua == "" {
		return Info{}
	}

	return Info{
		OS:         parseOS(ua),
		Browser:    parseBrowser(ua),
		DeviceName: parseDeviceName(ua),
	}
}

// iOS user agents also contain "mac os x", so they are checked first
func parseOS(ua string) string {
	switch {
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"):
		return "iOS"
	case strings.Contains(ua, "windows nt 10"):
		return "Windows 10"
	case strings.Contains(ua, "windows"):
		return "Windows"
	case strings.Contains(ua, "mac os x"), strings.Contains(ua, "macintosh"):
		return "macOS"
	case strings.Contains(ua, "android"):
		return "Android"
	case strings.Contains(ua, "linux"):
		return "Linux"
	}
	return ""
}

// Edge and Chrome both advertise Safari, and Edge also advertises Chrome
func parseBrowser(ua string) string {
	switch {
	case strings.Contains(ua, "edg/"), strings.Contains(ua, "edge/"):
		return "Edge"
	case strings.Contains(ua, "firefox/"):
		return "Firefox"
	case strings.Contains(ua, "chrome/"), strings.Contains(ua, "crios/"):
		return "Chrome"
	case strings.Contains(ua, "safari/"):
		return "Safari"
	}
	return ""
}

func parseDeviceName(ua string) string {
	switch {
	case strings.Contains(ua, "iphone"):
		return "iPhone"
	case strings.Contains(ua, "ipad"):
		return "iPad"
	case strings.Contains(ua, "android") && strings.Contains(ua, "mobile"):
		return "Android Phone"
	case strings.Contains(ua, "android"):
		return "Android Tablet"
	case strings.Contains(ua, "windows"), strings.Contains(ua, "macintosh"), strings.Contains(ua, "linux"):
		return "Desktop"
	}
	return ""
}
