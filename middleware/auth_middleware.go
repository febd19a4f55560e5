package middleware

import (
	"log"
	"net/http"
	"os"

	"coachhub/onboard/models"
	"coachhub/onboard/utils"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

const (
	UserIDKey   = "user_id"
	UserRoleKey = "user_role"
)

// AuthRequired guards the admin routes. An X-API-KEY matching the bcrypt
// hash in AUTH_DEFAULT_HASH passes straight through; otherwise the request
// needs a portal JWT carrying the admin role.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if key := c.GetHeader("X-API-KEY"); key != "" {
			if apiKeyValid(key) {
				c.Set(UserRoleKey, models.RoleAdmin)
				c.Next()
				return
			}
			log.Println("AuthRequired: X-API-KEY did not match")
		}

		claims, err := utils.ClaimsFromRequest(c.Request)
		if err != nil {
			log.Printf("AuthRequired: %v", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid or expired token"})
			return
		}
		if claims.Role != models.RoleAdmin {
			log.Printf("AuthRequired: user %d with role %q denied", claims.UserID, claims.Role)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden: admin role required"})
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UserRoleKey, claims.Role)
		c.Next()
	}
}

func apiKeyValid(key string) bool {
	hash := os.Getenv("AUTH_DEFAULT_HASH")
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil
}
