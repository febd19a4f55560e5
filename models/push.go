package models

import (
	"time"

	"github.com/google/uuid"
)

// PushSubscription is a browser push subscription handed over by the shell.
type PushSubscription struct {
	ID        uuid.UUID `json:"id"`
	VisitorID string    `json:"visitorId"`
	UserID    *int      `json:"userId,omitempty"`
	Endpoint  string    `json:"endpoint"`
	P256dh    string    `json:"p256dh"`
	Auth      string    `json:"auth"`
	CreatedAt time.Time `json:"createdAt"`
}

type SubscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required,url"`
	Keys     struct {
		P256dh string `json:"p256dh" binding:"required"`
		Auth   string `json:"auth" binding:"required"`
	} `json:"keys"`
}

type UnsubscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}
