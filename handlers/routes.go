package handlers

import (
	"coachhub/onboard/middleware"

	"github.com/gin-gonic/gin"
)

// Set is every handler group the server mounts.
type Set struct {
	Entry *EntryHandlers
	Guide *GuideHandlers
	Scans *ScanHandlers
	Push  *PushHandlers
}

func RegisterRoutes(r *gin.Engine, h Set) {
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.VisitorIdentity())

	r.GET("/go", h.Entry.Land)

	api := r.Group("/api")
	{
		onboarding := api.Group("/onboarding")
		onboarding.GET("/decision", h.Entry.AmbientDecision)
		onboarding.POST("/dismiss", h.Entry.DismissBanner)
		onboarding.POST("/installed", h.Entry.Installed)

		g := api.Group("/guide/:session")
		g.GET("", h.Guide.Get)
		g.POST("/capability", h.Guide.Capability)
		g.POST("/install", h.Guide.Install)
		g.POST("/outcome", h.Guide.Outcome)
		g.POST("/installed", h.Guide.Installed)
		g.POST("/manual", h.Guide.Manual)
		g.POST("/back", h.Guide.Back)
		g.POST("/dismiss", h.Guide.Dismiss)
		g.POST("/close", h.Guide.Close)

		api.POST("/scans", h.Scans.TrackScans)

		push := api.Group("/push")
		push.GET("/public-key", h.Push.GetPublicKey)
		push.POST("/subscribe", h.Push.Subscribe)
		push.POST("/unsubscribe", h.Push.Unsubscribe)

		stats := api.Group("/stats")
		stats.Use(middleware.AuthRequired())
		{
			stats.GET("/scan-counts", h.Scans.GetScanCountsOverTime)
			stats.GET("/breakdown", h.Scans.GetBreakdown)
			stats.GET("/funnel", h.Scans.GetInstallFunnel)
		}
	}
}
