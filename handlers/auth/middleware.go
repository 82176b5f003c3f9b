package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hilla1/server/models"
	"github.com/hilla1/server/utils"
)

// AuthMiddleware resolves the caller from a bearer header or the token
// cookie and stores the user, id and role in the context.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""

		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			extracted, err := utils.ExtractBearerToken(authHeader)
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid authorization header format"})
				c.Abort()
				return
			}
			tokenString = extracted
		} else if cookie, err := c.Cookie("token"); err == nil {
			tokenString = cookie
		}

		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Not authorized. Login again."})
			c.Abort()
			return
		}

		userID, role, err := utils.ParseToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid token"})
			c.Abort()
			return
		}

		var user models.User
		if err := utils.DB.First(&user, userID).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "User not found"})
			c.Abort()
			return
		}

		c.Set("user", user)
		c.Set("userID", user.ID)
		c.Set("userRole", role)

		c.Next()
	}
}

// OptionalAuth resolves the caller when a token is present but lets
// anonymous requests through; consultation booking works for guests.
func OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			if extracted, err := utils.ExtractBearerToken(authHeader); err == nil {
				tokenString = extracted
			}
		} else if cookie, err := c.Cookie("token"); err == nil {
			tokenString = cookie
		}

		if tokenString != "" {
			if userID, role, err := utils.ParseToken(tokenString); err == nil {
				var user models.User
				if err := utils.DB.First(&user, userID).Error; err == nil {
					c.Set("user", user)
					c.Set("userID", user.ID)
					c.Set("userRole", role)
				}
			}
		}

		c.Next()
	}
}

// CurrentUser pulls the authenticated user out of the context.
func CurrentUser(c *gin.Context) (models.User, bool) {
	userInterface, exists := c.Get("user")
	if !exists {
		return models.User{}, false
	}
	user, ok := userInterface.(models.User)
	return user, ok
}
