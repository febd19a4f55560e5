package handlers

import (
	"context"
	"log"
	"net/http"

	"coachhub/onboard/middleware"
	"coachhub/onboard/models"
	"coachhub/onboard/utils"

	"github.com/gin-gonic/gin"
)

type PushSubscriptions interface {
	SaveSubscription(ctx context.Context, sub *models.PushSubscription) error
	DeleteSubscription(ctx context.Context, endpoint string) (bool, error)
}

type PushHandlers struct {
	Store     PushSubscriptions
	PublicKey string
}

func NewPushHandlers(s PushSubscriptions, publicKey string) *PushHandlers {
	return &PushHandlers{Store: s, PublicKey: publicKey}
}

// GetPublicKey serves the VAPID application server key the shell subscribes
// with.
func (h *PushHandlers) GetPublicKey(c *gin.Context) {
	if h.PublicKey == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Push notifications are not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"publicKey": h.PublicKey})
}

func (h *PushHandlers) Subscribe(c *gin.Context) {
	var req models.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	sub := &models.PushSubscription{
		VisitorID: middleware.VisitorID(c),
		Endpoint:  req.Endpoint,
		P256dh:    req.Keys.P256dh,
		Auth:      req.Keys.Auth,
	}
	// a signed-in visitor's subscription is tied to their account
	if claims, err := utils.ClaimsFromRequest(c.Request); err == nil {
		userID := claims.UserID
		sub.UserID = &userID
	}

	if err := h.Store.SaveSubscription(c.Request.Context(), sub); err != nil {
		log.Printf("ERROR: Failed to save push subscription for visitor %s: %v", sub.VisitorID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save subscription"})
		return
	}
	c.JSON(http.StatusCreated, sub)
}

func (h *PushHandlers) Unsubscribe(c *gin.Context) {
	var req models.UnsubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	found, err := h.Store.DeleteSubscription(c.Request.Context(), req.Endpoint)
	if err != nil {
		log.Printf("ERROR: Failed to delete push subscription: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove subscription"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
		return
	}
	c.Status(http.StatusNoContent)
}
