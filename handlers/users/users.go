package users

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/hilla1/server/handlers/auth"
	"github.com/hilla1/server/models"
	"github.com/hilla1/server/utils"
)

func GetUserData(c *gin.Context) {
	user, ok := auth.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "User not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"userData": gin.H{
			"name":              user.Name,
			"email":             user.Email,
			"role":              user.Role,
			"avatar":            user.Avatar,
			"isAccountVerified": user.IsAccountVerified,
		},
	})
}

func UpdateProfile(c *gin.Context) {
	user, ok := auth.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized"})
		return
	}

	var input struct {
		Name   string `json:"name"`
		Avatar string `json:"avatar"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid input data"})
		return
	}

	if input.Name != "" {
		user.Name = input.Name
	}
	if input.Avatar != "" {
		user.Avatar = input.Avatar
	}

	if err := utils.DB.Save(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to update profile"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Profile updated", "user": user})
}

func ChangePassword(c *gin.Context) {
	user, ok := auth.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized"})
		return
	}

	var input struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := c.ShouldBindJSON(&input); err != nil || input.CurrentPassword == "" || input.NewPassword == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Current and new password are required"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.CurrentPassword)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Incorrect current password"})
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to hash password"})
		return
	}

	user.Password = string(hashedPassword)
	if err := utils.DB.Save(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to update password"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Password updated successfully"})
}

// GetEmailsByRole lists user emails for a role; admin only, used by the
// dashboard's handler-assignment picker.
func GetEmailsByRole(c *gin.Context) {
	role, _ := c.Get("userRole")
	if role != models.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Admin access required"})
		return
	}

	wanted := c.Query("role")
	if wanted == "" {
		wanted = models.RoleConsultant
	}

	var emails []string
	if err := utils.DB.Model(&models.User{}).Where("role = ?", wanted).Pluck("email", &emails).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to fetch emails"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "emails": emails})
}

func RegisterUserRoutes(r *gin.RouterGroup) {
	r.GET("/user/data", GetUserData)
	r.GET("/user/emails-by-role", GetEmailsByRole)
	r.PATCH("/user/update-profile", UpdateProfile)
	r.PATCH("/user/change-password", ChangePassword)
}
