package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"coachhub/onboard/capability"
	"coachhub/onboard/guide"
	"coachhub/onboard/middleware"
	"coachhub/onboard/models"

	"github.com/gin-gonic/gin"
)

// DefaultPromptTimeout bounds how long POST /install waits for the shell to
// report the native prompt's outcome.
const DefaultPromptTimeout = 60 * time.Second

type GuideHandlers struct {
	Sessions      *guide.Registry
	PromptTimeout time.Duration
}

func NewGuideHandlers(sessions *guide.Registry, promptTimeout time.Duration) *GuideHandlers {
	if promptTimeout <= 0 {
		promptTimeout = DefaultPromptTimeout
	}
	return &GuideHandlers{Sessions: sessions, PromptTimeout: promptTimeout}
}

type sessionResponse struct {
	ID string `json:"id"`
	guide.Snapshot
	// FinalURL is where the shell navigates once the guide closes.
	FinalURL string `json:"finalUrl"`
	// Content and Appearance are sent on GET only, for a shell page that
	// was redirected here from the landing.
	Content    *models.GuideContent    `json:"guideContent,omitempty"`
	Appearance *models.GuideAppearance `json:"guideAppearance,omitempty"`
}

func newSessionResponse(s *guide.Session) *sessionResponse {
	return &sessionResponse{
		ID:       s.ID,
		Snapshot: s.Presenter.Snapshot(),
		FinalURL: s.FinalURL,
	}
}

type outcomeRequest struct {
	Outcome capability.Outcome `json:"outcome" binding:"required"`
}

func (h *GuideHandlers) Get(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	resp := newSessionResponse(s)
	resp.Content = &s.Content
	resp.Appearance = &s.Appearance
	c.JSON(http.StatusOK, resp)
}

// Capability records that the shell captured and suppressed the platform's
// install prompt event.
func (h *GuideHandlers) Capability(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	tok := s.OfferCapability()
	c.JSON(http.StatusOK, gin.H{"suppressed": tok.Suppressed(), "session": newSessionResponse(s)})
}

// Install triggers the native negotiation. It blocks until the shell posts
// the prompt's outcome or PromptTimeout passes.
func (h *GuideHandlers) Install(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.PromptTimeout)
	defer cancel()

	if _, err := s.Presenter.Install(ctx); err != nil {
		h.transitionError(c, s, err)
		return
	}
	c.JSON(http.StatusOK, newSessionResponse(s))
}

func (h *GuideHandlers) Outcome(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req outcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.Outcome.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "outcome must be \"accepted\" or \"dismissed\""})
		return
	}
	if err := s.ReportOutcome(req.Outcome); err != nil {
		log.Printf("Guide session %s: outcome %q rejected: %v", s.ID, req.Outcome, err)
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *GuideHandlers) Installed(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if _, err := s.Presenter.InstallCompleted(c.Request.Context()); err != nil {
		h.transitionError(c, s, err)
		return
	}
	c.JSON(http.StatusOK, newSessionResponse(s))
}

func (h *GuideHandlers) Manual(c *gin.Context) {
	h.move(c, (*guide.Presenter).ShowManual)
}

func (h *GuideHandlers) Back(c *gin.Context) {
	h.move(c, (*guide.Presenter).Back)
}

func (h *GuideHandlers) Dismiss(c *gin.Context) {
	h.finish(c, (*guide.Presenter).Dismiss)
}

func (h *GuideHandlers) Close(c *gin.Context) {
	h.finish(c, (*guide.Presenter).Close)
}

func (h *GuideHandlers) move(c *gin.Context, step func(*guide.Presenter) (guide.View, error)) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if _, err := step(s.Presenter); err != nil {
		h.transitionError(c, s, err)
		return
	}
	c.JSON(http.StatusOK, newSessionResponse(s))
}

// finish closes the presenter and hands the shell its final URL.
func (h *GuideHandlers) finish(c *gin.Context, end func(*guide.Presenter) error) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := end(s.Presenter); err != nil {
		h.transitionError(c, s, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"navigateUrl": s.FinalURL})
}

// session looks up the session named in the path. Sessions are only visible
// to the visitor they were opened for.
func (h *GuideHandlers) session(c *gin.Context) (*guide.Session, bool) {
	s, err := h.Sessions.Get(c.Param("session"))
	if err != nil || s.VisitorID != middleware.VisitorID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": guide.ErrSessionNotFound.Error()})
		return nil, false
	}
	return s, true
}

func (h *GuideHandlers) transitionError(c *gin.Context, s *guide.Session, err error) {
	switch {
	case errors.Is(err, guide.ErrClosed):
		c.JSON(http.StatusGone, gin.H{"error": err.Error(), "navigateUrl": s.FinalURL})
	case errors.Is(err, guide.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "session": newSessionResponse(s)})
	default:
		log.Printf("ERROR: Guide session %s: %v", s.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Guide action failed"})
	}
}
