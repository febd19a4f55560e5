package models

import (
	"time"
)

// DeviceClass is the coarse device family a visitor is browsing from.
type DeviceClass string

const (
	DeviceIOS     DeviceClass = "ios"
	DeviceAndroid DeviceClass = "android"
	DeviceDesktop DeviceClass = "desktop"
)

// BrowserID identifies the browser engine/brand.
type BrowserID string

const (
	BrowserChrome    BrowserID = "chrome"
	BrowserChromeIOS BrowserID = "chrome-ios"
	BrowserSafari    BrowserID = "safari"
	BrowserFirefox   BrowserID = "firefox"
	BrowserEdge      BrowserID = "edge"
	BrowserSamsung   BrowserID = "samsung"
	BrowserOpera     BrowserID = "opera"
	BrowserBrave     BrowserID = "brave"
	BrowserOther     BrowserID = "other"
)

// ThrottleRecord is the per-visitor prompting history.
type ThrottleRecord struct {
	LastDismissedAt *time.Time `json:"lastDismissedAt"`
	VisitCount      int        `json:"visitCount"`
	Installed       bool       `json:"installed"`
}

// DismissedWithin is true iff a dismissal was recorded and less than d has
// elapsed since it.
func (r ThrottleRecord) DismissedWithin(now time.Time, d time.Duration) bool {
	if r.LastDismissedAt == nil {
		return false
	}
	return now.Sub(*r.LastDismissedAt) < d
}

// EntryKind distinguishes the smart-redirect landing from ordinary browsing.
type EntryKind string

const (
	EntryLanding EntryKind = "landing"
	EntryAmbient EntryKind = "ambient"
)

// EntrySource says how a landing visit arrived.
type EntrySource string

const (
	SourceQR     EntrySource = "qr"
	SourceDirect EntrySource = "direct"
)

type EntryContext struct {
	Kind   EntryKind   `json:"kind"`
	Source EntrySource `json:"source"`
}

func (e EntryContext) IsLanding() bool { return e.Kind == EntryLanding }
