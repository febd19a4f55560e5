package models

import (
	"time"
)

// Analytics sources. A scan is emitted on landing, an outcome when a guide
// session closes. Events the shell reports through POST /api/scans are
// stored as shell telemetry and never count as scans or outcomes.
const (
	ScanSourceQR      = "qr"
	ScanSourceDirect  = "direct"
	ScanSourceOutcome = "guide"
	ScanSourceShell   = "shell"
)

// ScanEvent is a single scan/outcome analytics record.
type ScanEvent struct {
	EventID          string    `json:"eventId"`
	VisitorID        string    `json:"visitorId"`
	CorrelationID    string    `json:"correlationId"`
	Device           string    `json:"device"`
	Browser          string    `json:"browser"`
	PWAInstalled     bool      `json:"pwaInstalled"`
	GuideShown       bool      `json:"guideShown"`
	GuideCompleted   bool      `json:"guideCompleted"`
	InstallTriggered bool      `json:"installTriggered"`
	Source           string    `json:"source"`
	UserAgent        string    `json:"userAgent"`
	IPAddress        string    `json:"ipAddress"`
	Timestamp        time.Time `json:"timestamp"`
}

type ScanCountByTime struct {
	Time   time.Time `json:"time"`
	Source *string   `json:"source,omitempty"`
	Count  uint64    `json:"count"`
}

type BreakdownResult struct {
	Value string `json:"value"`
	Count uint64 `json:"count"`
}

// InstallFunnel counts each stage of onboarding over a time range.
type InstallFunnel struct {
	Scans            uint64 `json:"scans"`
	GuideShown       uint64 `json:"guideShown"`
	InstallTriggered uint64 `json:"installTriggered"`
	GuideCompleted   uint64 `json:"guideCompleted"`
	AlreadyInstalled uint64 `json:"alreadyInstalled"`
}
