package handlers

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"coachhub/onboard/decision"
	"coachhub/onboard/middleware"
	"coachhub/onboard/models"
	"coachhub/onboard/probe"
	"coachhub/onboard/redirect"
	"coachhub/onboard/utils"

	"github.com/gin-gonic/gin"
)

// DefaultShellURL is the page that renders a mounted guide when GUIDE_SHELL_URL
// is unset.
const DefaultShellURL = "/guide"

type EntryHandlers struct {
	Redirector *redirect.Redirector
	// ShellURL is where a browser navigation goes when the landing mounts a
	// guide; the session id and scan reference ride along as query params.
	ShellURL string
}

func NewEntryHandlers(r *redirect.Redirector, shellURL string) *EntryHandlers {
	if shellURL == "" {
		shellURL = DefaultShellURL
	}
	return &EntryHandlers{Redirector: r, ShellURL: shellURL}
}

// landingResponse is returned to the shell instead of a 302 when it asks
// for JSON.
type landingResponse struct {
	Action        decision.Action         `json:"action"`
	Rule          string                  `json:"rule"`
	NavigateURL   string                  `json:"navigateUrl,omitempty"`
	CorrelationID string                  `json:"correlationId,omitempty"`
	Environment   probe.Environment       `json:"environment"`
	Session       *sessionResponse        `json:"session,omitempty"`
	Content       *models.GuideContent    `json:"guideContent,omitempty"`
	Appearance    *models.GuideAppearance `json:"guideAppearance,omitempty"`
}

// Land serves GET /go, the smart-redirect landing the QR codes point at.
func (h *EntryHandlers) Land(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	v := visitFromRequest(c)
	v.CorrelationID = c.Query(utils.CorrelationParam)
	v.Source = models.SourceDirect
	if c.Query("src") == string(models.SourceQR) {
		v.Source = models.SourceQR
	}
	if claims, err := utils.ClaimsFromRequest(c.Request); err == nil {
		v.Authenticated = true
		v.Role = claims.Role
	}

	out := h.Redirector.Land(ctx, v)

	resp := landingResponse{
		Action:        out.Decision.Action,
		Rule:          out.Decision.Rule,
		NavigateURL:   out.NavigateURL,
		CorrelationID: out.CorrelationID,
		Environment:   out.Environment,
	}
	if out.Session != nil {
		resp.Session = newSessionResponse(out.Session)
		resp.Content = &out.Settings.Content
		resp.Appearance = &out.Settings.Appearance
	}

	if wantsJSON(c) {
		c.JSON(http.StatusOK, resp)
		return
	}
	if out.Session != nil {
		c.Redirect(http.StatusFound, shellLocation(h.ShellURL, out.Session.ID, out.CorrelationID))
		return
	}
	c.Redirect(http.StatusFound, out.NavigateURL)
}

// shellLocation points the browser at the guide shell for session.
func shellLocation(shellURL, sessionID, correlationID string) string {
	u, err := url.Parse(shellURL)
	if err != nil {
		log.Printf("Invalid guide shell URL %q, using %s: %v", shellURL, DefaultShellURL, err)
		u = &url.URL{Path: DefaultShellURL}
	}
	q := u.Query()
	q.Set("session", sessionID)
	if correlationID != "" {
		q.Set(utils.CorrelationParam, correlationID)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

type ambientResponse struct {
	Action      decision.Action         `json:"action"`
	Rule        string                  `json:"rule"`
	Steps       []models.Step           `json:"steps,omitempty"`
	Notice      string                  `json:"notice,omitempty"`
	Environment probe.Environment       `json:"environment"`
	Content     *models.GuideContent    `json:"guideContent,omitempty"`
	Appearance  *models.GuideAppearance `json:"guideAppearance,omitempty"`
}

// AmbientDecision serves GET /api/onboarding/decision for portal pages.
func (h *EntryHandlers) AmbientDecision(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	out := h.Redirector.Ambient(ctx, visitFromRequest(c))

	resp := ambientResponse{
		Action:      out.Decision.Action,
		Rule:        out.Decision.Rule,
		Steps:       out.Decision.Steps,
		Notice:      out.Decision.Notice,
		Environment: out.Environment,
	}
	if out.Decision.Action.Shows() {
		resp.Content = &out.Settings.Content
		resp.Appearance = &out.Settings.Appearance
	}
	c.JSON(http.StatusOK, resp)
}

// DismissBanner serves POST /api/onboarding/dismiss.
func (h *EntryHandlers) DismissBanner(c *gin.Context) {
	visitorID := middleware.VisitorID(c)
	if err := h.Redirector.DismissBanner(c.Request.Context(), visitorID); err != nil {
		log.Printf("ERROR: Failed to record banner dismissal for visitor %s: %v", visitorID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record dismissal"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Installed serves POST /api/onboarding/installed, the install-completed
// signal seen on a portal page with no guide mounted.
func (h *EntryHandlers) Installed(c *gin.Context) {
	visitorID := middleware.VisitorID(c)
	if err := h.Redirector.MarkInstalled(c.Request.Context(), visitorID); err != nil {
		log.Printf("ERROR: Failed to record install for visitor %s: %v", visitorID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record install"})
		return
	}
	c.Status(http.StatusNoContent)
}

func visitFromRequest(c *gin.Context) redirect.Visit {
	return redirect.Visit{
		VisitorID:     middleware.VisitorID(c),
		Signals:       probe.FromRequest(c.Request),
		HasCapability: c.Query("cap") == "1",
		UserAgent:     c.Request.UserAgent(),
		IPAddress:     c.ClientIP(),
	}
}

func wantsJSON(c *gin.Context) bool {
	return c.Query("format") == "json" || strings.Contains(c.GetHeader("Accept"), "application/json")
}
