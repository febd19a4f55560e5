package middleware

import (
	"net/http"

	"coachhub/onboard/utils"

	"github.com/gin-gonic/gin"
)

const (
	VisitorCookie = "visitor_id"
	visitorKey    = "visitor_id"
	// browsers cap cookie lifetimes at 400 days
	visitorCookieMaxAge = 400 * 24 * 60 * 60
)

// VisitorIdentity makes sure every request has a visitor id, issuing a new
// cookie when the browser has none or sends a malformed one.
func VisitorIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(VisitorCookie)
		if err != nil || !utils.IsVisitorID(id) {
			id = utils.NewVisitorID()
			secure := c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https"
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(VisitorCookie, id, visitorCookieMaxAge, "/", "", secure, true)
		}
		c.Set(visitorKey, id)
		c.Next()
	}
}

// VisitorID returns the id set by VisitorIdentity.
func VisitorID(c *gin.Context) string {
	return c.GetString(visitorKey)
}
