package utils

import (
	"crypto/rand"
	"encoding/base64"
	"log"

	"github.com/google/uuid"
)

// GenerateSessionID creates a URL-safe, unguessable guide session id.
func GenerateSessionID() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		log.Printf("ERROR: Failed to generate random bytes for session ID: %v", err)
		return uuid.NewString()
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// NewVisitorID returns the identifier that scopes a browser profile's
// persisted onboarding state.
func NewVisitorID() string {
	return uuid.NewString()
}

// IsVisitorID reports whether v looks like an id from NewVisitorID.
func IsVisitorID(v string) bool {
	_, err := uuid.Parse(v)
	return err == nil
}
