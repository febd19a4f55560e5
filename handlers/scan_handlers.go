package handlers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"coachhub/onboard/middleware"
	"coachhub/onboard/models"
	"coachhub/onboard/utils"

	"github.com/gin-gonic/gin"
)

// ScanStats answers the admin dashboard queries.
type ScanStats interface {
	GetScanCountsOverTime(ctx context.Context, interval string, start, end time.Time, sourceFilter string) ([]models.ScanCountByTime, error)
	GetBreakdown(ctx context.Context, dimension string, start, end time.Time, limit uint64) ([]models.BreakdownResult, error)
	GetInstallFunnel(ctx context.Context, start, end time.Time) (models.InstallFunnel, error)
}

type EventDispatcher interface {
	Dispatch(ev models.ScanEvent)
}

type ScanHandlers struct {
	Stats  ScanStats
	Events EventDispatcher
}

func NewScanHandlers(stats ScanStats, events EventDispatcher) *ScanHandlers {
	return &ScanHandlers{Stats: stats, Events: events}
}

const maxScansPerRequest = 50

// TrackScans serves POST /api/scans. The shell reports events it observed
// itself; they are dispatched best-effort and the response never waits on
// the analytics store. Landing scans and guide outcomes are emitted server
// side only, so everything arriving here is recorded as shell telemetry.
func (h *ScanHandlers) TrackScans(c *gin.Context) {
	var incoming []models.ScanEvent
	if err := c.ShouldBindJSON(&incoming); err != nil {
		log.Printf("Error binding incoming scan JSON: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if len(incoming) > maxScansPerRequest {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("at most %d events per request", maxScansPerRequest)})
		return
	}

	visitorID := middleware.VisitorID(c)
	for _, ev := range incoming {
		ev.Source = models.ScanSourceShell
		// server-side identity wins over whatever the client claims
		ev.EventID = ""
		ev.VisitorID = visitorID
		ev.IPAddress = c.ClientIP()
		if ev.UserAgent == "" {
			ev.UserAgent = c.Request.UserAgent()
		}
		ev.Timestamp = time.Time{}
		h.Events.Dispatch(ev)
	}

	c.JSON(http.StatusAccepted, gin.H{"accepted": len(incoming)})
}

func (h *ScanHandlers) GetScanCountsOverTime(c *gin.Context) {
	interval := c.Query("interval")
	if !utils.IsValidInterval(interval) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "interval query parameter is required (e.g., 'Day', 'Hour')"})
		return
	}
	start, end, ok := timeRange(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	results, err := h.Stats.GetScanCountsOverTime(ctx, interval, start, end, c.Query("source"))
	if err != nil {
		log.Printf("Error getting scan counts over time: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve scan statistics"})
		return
	}
	c.JSON(http.StatusOK, results)
}

func (h *ScanHandlers) GetBreakdown(c *gin.Context) {
	dimension := c.DefaultQuery("by", "device")
	if !utils.IsValidDimension(dimension) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "by must be one of device, browser, source"})
		return
	}
	start, end, ok := timeRange(c)
	if !ok {
		return
	}

	var limit uint64 = 10
	if limitParam := c.Query("limit"); limitParam != "" {
		parsed, err := strconv.ParseUint(limitParam, 10, 64)
		if err != nil || parsed == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'limit' parameter. Must be a positive integer."})
			return
		}
		limit = parsed
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	results, err := h.Stats.GetBreakdown(ctx, dimension, start, end, limit)
	if err != nil {
		log.Printf("Error getting %s breakdown: %v", dimension, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve breakdown statistics"})
		return
	}
	c.JSON(http.StatusOK, results)
}

func (h *ScanHandlers) GetInstallFunnel(c *gin.Context) {
	start, end, ok := timeRange(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	funnel, err := h.Stats.GetInstallFunnel(ctx, start, end)
	if err != nil {
		log.Printf("Error getting install funnel: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve install funnel"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"startDate": start.Format(time.RFC3339),
		"endDate":   end.Format(time.RFC3339),
		"funnel":    funnel,
	})
}

// timeRange parses the optional RFC3339 start and end parameters,
// defaulting to the last seven days. It writes the 400 itself.
func timeRange(c *gin.Context) (time.Time, time.Time, bool) {
	end := time.Now().UTC()
	start := end.Add(-7 * 24 * time.Hour)

	if p := c.Query("start"); p != "" {
		t, err := time.Parse(time.RFC3339, p)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'start' timestamp format. Use RFC3339 (e.g., 2006-01-02T15:04:05Z)"})
			return time.Time{}, time.Time{}, false
		}
		start = t
	}
	if p := c.Query("end"); p != "" {
		t, err := time.Parse(time.RFC3339, p)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'end' timestamp format. Use RFC3339 (e.g., 2006-01-02T15:04:05Z)"})
			return time.Time{}, time.Time{}, false
		}
		end = t
	}
	if end.Before(start) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "'end' must not be before 'start'"})
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}
