package models

// GuideVisibility controls who is shown onboarding.
type GuideVisibility struct {
	ShowToNewVisitors    bool `json:"showToNewVisitors" yaml:"showToNewVisitors"`
	ShowOnQRScan         bool `json:"showOnQRScan" yaml:"showOnQRScan"`
	ShowOnDirectVisit    bool `json:"showOnDirectVisit" yaml:"showOnDirectVisit"`
	ReShowAfterDismissal bool `json:"reShowAfterDismissal" yaml:"reShowAfterDismissal"`
	ReShowDays           int  `json:"reShowDays" yaml:"reShowDays"`
}

type GuideContent struct {
	Heading        string   `json:"heading" yaml:"heading"`
	Subheading     string   `json:"subheading" yaml:"subheading"`
	InstallButton  string   `json:"installButton" yaml:"installButton"`
	ManualButton   string   `json:"manualButton" yaml:"manualButton"`
	SkipButton     string   `json:"skipButton" yaml:"skipButton"`
	SuccessHeading string   `json:"successHeading" yaml:"successHeading"`
	SuccessMessage string   `json:"successMessage" yaml:"successMessage"`
	SafariNotice   string   `json:"safariNotice" yaml:"safariNotice"`
	Benefits       []string `json:"benefits" yaml:"benefits"`
}

type GuideAppearance struct {
	PrimaryColor    string  `json:"primaryColor" yaml:"primaryColor"`
	BackgroundColor string  `json:"backgroundColor" yaml:"backgroundColor"`
	TextColor       string  `json:"textColor" yaml:"textColor"`
	AnimationSpeed  string  `json:"animationSpeed" yaml:"animationSpeed"`
	OverlayOpacity  float64 `json:"overlayOpacity" yaml:"overlayOpacity"`
}

// Step is one instruction of a manual install sequence.
type Step struct {
	Order       int    `json:"order" yaml:"order"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	Icon        string `json:"icon,omitempty" yaml:"icon,omitempty"`
}

type RedirectSettings struct {
	Enabled            bool   `json:"enabled" yaml:"enabled"`
	PWARedirectURL     string `json:"pwaRedirectUrl" yaml:"pwaRedirectUrl"`
	NonPWARedirectURL  string `json:"nonPwaRedirectUrl" yaml:"nonPwaRedirectUrl"`
	DesktopRedirectURL string `json:"desktopRedirectUrl" yaml:"desktopRedirectUrl"`
	// RoleTargets maps a signed-in role to its landing page.
	RoleTargets map[string]string `json:"roleTargets" yaml:"roleTargets"`
}

// GuideConfiguration is the administrator-owned onboarding snapshot. It is
// treated as immutable for the lifetime of one landing.
type GuideConfiguration struct {
	Visibility   GuideVisibility  `json:"guideVisibility" yaml:"guideVisibility"`
	Content      GuideContent     `json:"guideContent" yaml:"guideContent"`
	Appearance   GuideAppearance  `json:"guideAppearance" yaml:"guideAppearance"`
	AndroidSteps []Step           `json:"androidSteps" yaml:"androidSteps"`
	IOSSteps     []Step           `json:"iosSteps" yaml:"iosSteps"`
	Redirect     RedirectSettings `json:"redirectSettings" yaml:"redirectSettings"`
}

const (
	DefaultReShowDays   = 7
	DefaultLoginURL     = "/login"
	DefaultRoleURL      = "/dashboard"
	defaultSafariNotice = "Installing this app is only possible from Safari. Open this page in Safari, then tap Share and \"Add to Home Screen\"."
)

// DefaultGuideConfiguration returns the built-in configuration used when the
// settings endpoint is unreachable or leaves fields out.
func DefaultGuideConfiguration() GuideConfiguration {
	return GuideConfiguration{
		Visibility: GuideVisibility{
			ShowToNewVisitors:    true,
			ShowOnQRScan:         true,
			ShowOnDirectVisit:    true,
			ReShowAfterDismissal: true,
			ReShowDays:           DefaultReShowDays,
		},
		Content: GuideContent{
			Heading:        "Install our app",
			Subheading:     "Get faster access to classes, notices and results.",
			InstallButton:  "Install now",
			ManualButton:   "Show me how",
			SkipButton:     "Continue in browser",
			SuccessHeading: "All set!",
			SuccessMessage: "The app is now on your home screen.",
			SafariNotice:   defaultSafariNotice,
			Benefits: []string{
				"Opens instantly from your home screen",
				"Works on slow connections",
				"Get notified about new notices",
			},
		},
		Appearance: GuideAppearance{
			PrimaryColor:    "#2563eb",
			BackgroundColor: "#ffffff",
			TextColor:       "#111827",
			AnimationSpeed:  "normal",
			OverlayOpacity:  0.6,
		},
		Redirect: RedirectSettings{
			Enabled:            true,
			PWARedirectURL:     DefaultLoginURL,
			NonPWARedirectURL:  DefaultLoginURL,
			DesktopRedirectURL: DefaultLoginURL,
			RoleTargets: map[string]string{
				RoleAdmin:   "/admin/dashboard",
				RoleFaculty: "/faculty/dashboard",
				RoleStudent: "/student/dashboard",
			},
		},
	}
}

// Clone returns a deep copy so callers can decode over it without touching
// the original's slices and maps.
func (g GuideConfiguration) Clone() GuideConfiguration {
	out := g
	out.Content.Benefits = append([]string(nil), g.Content.Benefits...)
	out.AndroidSteps = append([]Step(nil), g.AndroidSteps...)
	out.IOSSteps = append([]Step(nil), g.IOSSteps...)
	if g.Redirect.RoleTargets != nil {
		out.Redirect.RoleTargets = make(map[string]string, len(g.Redirect.RoleTargets))
		for k, v := range g.Redirect.RoleTargets {
			out.Redirect.RoleTargets[k] = v
		}
	}
	return out
}

// Normalize fills blank fields of g from def. Booleans are left alone: an
// absent boolean keeps whatever it was decoded over.
func (g *GuideConfiguration) Normalize(def GuideConfiguration) {
	if g.Visibility.ReShowDays <= 0 {
		g.Visibility.ReShowDays = def.Visibility.ReShowDays
	}

	c, d := &g.Content, def.Content
	fill(&c.Heading, d.Heading)
	fill(&c.Subheading, d.Subheading)
	fill(&c.InstallButton, d.InstallButton)
	fill(&c.ManualButton, d.ManualButton)
	fill(&c.SkipButton, d.SkipButton)
	fill(&c.SuccessHeading, d.SuccessHeading)
	fill(&c.SuccessMessage, d.SuccessMessage)
	fill(&c.SafariNotice, d.SafariNotice)
	if len(c.Benefits) == 0 {
		c.Benefits = append([]string(nil), d.Benefits...)
	}

	a, da := &g.Appearance, def.Appearance
	fill(&a.PrimaryColor, da.PrimaryColor)
	fill(&a.BackgroundColor, da.BackgroundColor)
	fill(&a.TextColor, da.TextColor)
	fill(&a.AnimationSpeed, da.AnimationSpeed)
	if a.OverlayOpacity <= 0 || a.OverlayOpacity > 1 {
		a.OverlayOpacity = da.OverlayOpacity
	}

	r, dr := &g.Redirect, def.Redirect
	fill(&r.PWARedirectURL, dr.PWARedirectURL)
	fill(&r.NonPWARedirectURL, dr.NonPWARedirectURL)
	fill(&r.DesktopRedirectURL, dr.DesktopRedirectURL)
	if len(r.RoleTargets) == 0 && len(dr.RoleTargets) > 0 {
		r.RoleTargets = make(map[string]string, len(dr.RoleTargets))
		for k, v := range dr.RoleTargets {
			r.RoleTargets[k] = v
		}
	}
}

// RoleTarget returns where a signed-in visitor with role should land.
func (r RedirectSettings) RoleTarget(role string) string {
	if u, ok := r.RoleTargets[role]; ok && u != "" {
		return u
	}
	return DefaultRoleURL
}

func fill(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}
