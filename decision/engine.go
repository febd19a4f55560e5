// Package decision picks what a visitor is shown. Decide is a pure function
// of its Input; the order of Rules is the protocol.
package decision

import (
	"time"

	"coachhub/onboard/models"
)

type Action string

const (
	Suppress            Action = "suppress"
	ShowBanner          Action = "show-banner"
	ShowGuide           Action = "show-guide"
	ShowIOSSheet        Action = "show-ios-sheet"
	RedirectImmediately Action = "redirect-immediately"
)

// Shows reports whether the action mounts any onboarding UI.
func (a Action) Shows() bool {
	return a == ShowBanner || a == ShowGuide || a == ShowIOSSheet
}

// AmbientDismissalWindow is how long a dismissed portal banner stays hidden.
// It is independent of the guide's configurable re-show interval.
const AmbientDismissalWindow = 7 * 24 * time.Hour

// Input is everything a decision depends on.
type Input struct {
	Device        models.DeviceClass
	Browser       models.BrowserID
	Standalone    bool
	HasCapability bool
	Throttle      models.ThrottleRecord
	Config        models.GuideConfiguration
	Context       models.EntryContext
	Now           time.Time
}

type Decision struct {
	Action Action `json:"action"`
	// Rule names the rule that fired.
	Rule string `json:"rule"`
	// TargetURL is where a landing visit ends up, now or once the guide
	// closes. Empty for ambient decisions.
	TargetURL string        `json:"targetUrl,omitempty"`
	Steps     []models.Step `json:"steps,omitempty"`
	Notice    string        `json:"notice,omitempty"`
}

// Rule is one guard of the decision protocol.
type Rule struct {
	Name string
	When func(Input) bool
	Then func(Input) Decision
}

// Rules is evaluated top to bottom; the first rule whose guard holds wins.
// Terminal facts (standalone, disabled, installed, desktop) precede the
// throttles, and content selection comes last.
var Rules = []Rule{
	{
		// An installed instance is never prompted.
		Name: "standalone",
		When: func(in Input) bool { return in.Standalone },
		Then: func(in Input) Decision {
			return Decision{Action: Suppress, TargetURL: landingTarget(in, in.Config.Redirect.PWARedirectURL)}
		},
	},
	{
		// Smart redirect switched off: the guide is bypassed entirely.
		Name: "redirect-disabled",
		When: func(in Input) bool { return in.Context.IsLanding() && !in.Config.Redirect.Enabled },
		Then: redirectTo(func(in Input) string { return in.Config.Redirect.NonPWARedirectURL }),
	},
	{
		Name: "installed-landing",
		When: func(in Input) bool { return in.Context.IsLanding() && in.Throttle.Installed },
		Then: redirectTo(func(in Input) string { return in.Config.Redirect.PWARedirectURL }),
	},
	{
		// Once installed, the portal never offers installation again.
		Name: "installed-ambient",
		When: func(in Input) bool { return !in.Context.IsLanding() && in.Throttle.Installed },
		Then: suppress,
	},
	{
		// Desktop has no home-screen gesture worth a guide.
		Name: "desktop-landing",
		When: func(in Input) bool { return in.Context.IsLanding() && in.Device == models.DeviceDesktop },
		Then: redirectTo(func(in Input) string { return in.Config.Redirect.DesktopRedirectURL }),
	},
	{
		Name: "landing-hidden-for-source",
		When: func(in Input) bool {
			if !in.Context.IsLanding() {
				return false
			}
			if in.Context.Source == models.SourceDirect {
				return !in.Config.Visibility.ShowOnDirectVisit
			}
			return !in.Config.Visibility.ShowOnQRScan
		},
		Then: redirectTo(func(in Input) string { return in.Config.Redirect.NonPWARedirectURL }),
	},
	{
		Name: "ambient-disabled",
		When: func(in Input) bool { return !in.Context.IsLanding() && !in.Config.Visibility.ShowToNewVisitors },
		Then: suppress,
	},
	{
		Name: "recently-dismissed",
		When: dismissalActive,
		Then: suppress,
	},
	{
		// The first portal visit never prompts.
		Name: "first-visit",
		When: func(in Input) bool { return !in.Context.IsLanding() && in.Throttle.VisitCount < 2 },
		Then: suppress,
	},
	{
		// Outside Safari, iOS cannot add a web app to the home screen at all.
		Name: "ios-not-safari",
		When: func(in Input) bool { return in.Device == models.DeviceIOS && in.Browser != models.BrowserSafari },
		Then: func(in Input) Decision {
			return Decision{
				Action:    ShowIOSSheet,
				TargetURL: landingTarget(in, in.Config.Redirect.NonPWARedirectURL),
				Notice:    in.Config.Content.SafariNotice,
			}
		},
	},
	{
		// iOS has no native prompt; Safari users get the manual steps.
		Name: "ios-safari",
		When: func(in Input) bool { return in.Device == models.DeviceIOS },
		Then: show(ShowIOSSheet),
	},
	{
		Name: "native-prompt",
		When: func(in Input) bool { return in.HasCapability },
		Then: show(ShowBanner),
	},
	{
		Name: "manual-guide",
		When: func(Input) bool { return true },
		Then: show(ShowGuide),
	},
}

// Decide runs Rules against in. The last rule always matches.
func Decide(in Input) Decision {
	if in.Now.IsZero() {
		in.Now = time.Now()
	}
	for _, r := range Rules {
		if r.When(in) {
			d := r.Then(in)
			d.Rule = r.Name
			return d
		}
	}
	// unreachable: manual-guide matches everything
	return Decision{Action: Suppress}
}

// dismissalActive applies the portal banner's fixed window or the guide's
// configured one. With re-show turned off any dismissal is permanent.
func dismissalActive(in Input) bool {
	if !in.Context.IsLanding() {
		return in.Throttle.DismissedWithin(in.Now, AmbientDismissalWindow)
	}
	if in.Throttle.LastDismissedAt == nil {
		return false
	}
	if !in.Config.Visibility.ReShowAfterDismissal {
		return true
	}
	days := in.Config.Visibility.ReShowDays
	if days <= 0 {
		days = models.DefaultReShowDays
	}
	return in.Throttle.DismissedWithin(in.Now, time.Duration(days)*24*time.Hour)
}

func suppress(in Input) Decision {
	return Decision{Action: Suppress, TargetURL: landingTarget(in, in.Config.Redirect.NonPWARedirectURL)}
}

func redirectTo(target func(Input) string) func(Input) Decision {
	return func(in Input) Decision {
		return Decision{Action: RedirectImmediately, TargetURL: orLogin(target(in))}
	}
}

func show(action Action) func(Input) Decision {
	return func(in Input) Decision {
		return Decision{
			Action:    action,
			TargetURL: landingTarget(in, in.Config.Redirect.NonPWARedirectURL),
			Steps:     stepsFor(in),
		}
	}
}

func landingTarget(in Input, url string) string {
	if !in.Context.IsLanding() {
		return ""
	}
	return orLogin(url)
}

func orLogin(url string) string {
	if url == "" {
		return models.DefaultLoginURL
	}
	return url
}
