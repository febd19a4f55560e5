// Package probe classifies the visiting device and browser. Every function
// here is pure and total: unrecognised input maps to DeviceDesktop and
// BrowserOther rather than an error.
package probe

import (
	"net/http"
	"strconv"
	"strings"

	"coachhub/onboard/models"
)

// Signals is everything the probe looks at. The shell may add display-mode
// and touch hints that are not visible in plain request headers.
type Signals struct {
	UserAgent           string
	Platform            string // Sec-CH-UA-Platform or navigator.platform
	Brands              string // Sec-CH-UA
	MaxTouchPoints      int
	DisplayMode         string // matchMedia display-mode as reported by the shell
	NavigatorStandalone bool   // iOS navigator.standalone
	Referrer            string
}

// Environment is the memoised classification for one landing.
type Environment struct {
	Device     models.DeviceClass `json:"device"`
	Browser    models.BrowserID   `json:"browser"`
	Standalone bool               `json:"standalone"`
}

func Probe(s Signals) Environment {
	return Environment{
		Device:     ClassifyDevice(s),
		Browser:    ClassifyBrowser(s),
		Standalone: IsStandalone(s),
	}
}

// FromRequest collects Signals from request headers and from the hint query
// parameters the shell appends (display_mode, standalone, touch).
func FromRequest(r *http.Request) Signals {
	q := r.URL.Query()
	s := Signals{
		UserAgent: r.UserAgent(),
		Platform:  unquote(r.Header.Get("Sec-CH-UA-Platform")),
		Brands:    r.Header.Get("Sec-CH-UA"),
		Referrer:  r.Referer(),
	}
	s.DisplayMode = q.Get("display_mode")
	if s.DisplayMode == "" {
		s.DisplayMode = r.Header.Get("X-Display-Mode")
	}
	s.NavigatorStandalone = q.Get("standalone") == "1" || q.Get("standalone") == "true"
	if n, err := strconv.Atoi(q.Get("touch")); err == nil && n > 0 {
		s.MaxTouchPoints = n
	}
	return s
}

func ClassifyDevice(s Signals) models.DeviceClass {
	ua := s.UserAgent
	platform := strings.ToLower(s.Platform)

	switch {
	case containsAny(ua, "iPhone", "iPad", "iPod"), platform == "ios":
		return models.DeviceIOS
	// iPadOS 13+ reports a desktop Mac user agent; touch support gives it away.
	case strings.Contains(ua, "Macintosh") && s.MaxTouchPoints > 1:
		return models.DeviceIOS
	case strings.Contains(ua, "Android"), platform == "android":
		return models.DeviceAndroid
	}
	return models.DeviceDesktop
}

// ClassifyBrowser checks the most specific brand tokens first: nearly every
// Chromium derivative also carries "Chrome/" and "Safari/".
func ClassifyBrowser(s Signals) models.BrowserID {
	ua := s.UserAgent
	switch {
	case strings.Contains(ua, "SamsungBrowser"):
		return models.BrowserSamsung
	case containsAny(ua, "EdgA/", "EdgiOS/", "Edg/", "Edge/"):
		return models.BrowserEdge
	case containsAny(ua, "OPR/", "OPT/", "OPiOS/", "Opera"):
		return models.BrowserOpera
	case strings.Contains(ua, "Brave"), strings.Contains(s.Brands, "Brave"):
		return models.BrowserBrave
	case containsAny(ua, "FxiOS/", "Firefox/"):
		return models.BrowserFirefox
	case strings.Contains(ua, "CriOS/"):
		return models.BrowserChromeIOS
	case containsAny(ua, "Chrome/", "Chromium/"):
		return models.BrowserChrome
	// iOS wrappers keep Safari's tokens but cannot add to the home screen.
	case containsAny(ua, "Ddg/", "DuckDuckGo/", "YaBrowser/", "GSA/"):
		return models.BrowserOther
	case strings.Contains(ua, "Safari/") && strings.Contains(ua, "Version/"):
		return models.BrowserSafari
	}
	return models.BrowserOther
}

func IsStandalone(s Signals) bool {
	switch strings.ToLower(s.DisplayMode) {
	case "standalone", "fullscreen", "minimal-ui", "window-controls-overlay":
		return true
	}
	if s.NavigatorStandalone {
		return true
	}
	// Trusted Web Activity launches carry the hosting app as referrer.
	return strings.HasPrefix(s.Referrer, "android-app://")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func unquote(v string) string {
	return strings.Trim(strings.TrimSpace(v), `"`)
}
