package auth

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/hilla1/server/models"
	"github.com/hilla1/server/utils"
)

const (
	verifyOtpValidity = 24 * time.Hour
	resetOtpValidity  = 15 * time.Minute
)

// SendVerifyOTP emails an account-verification OTP to the logged-in user.
func SendVerifyOTP(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Not authorized"})
		return
	}

	if user.IsAccountVerified {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "Account already verified"})
		return
	}

	otp := generateOTP()
	user.VerifyOtp = otp
	user.VerifyOtpExpireAt = time.Now().Add(verifyOtpValidity).UnixMilli()

	if err := utils.DB.Save(&user).Error; err != nil {
		log.Printf("Failed to save verification OTP: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to save OTP"})
		return
	}

	if err := Mail.Send(user.Email, "Account verification OTP",
		"Your OTP is "+otp+". Verify your account using this OTP."); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to send OTP email"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Verification OTP sent on Email"})
}

// VerifyAccount checks the OTP and marks the account verified.
func VerifyAccount(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Not authorized"})
		return
	}

	var input struct {
		OTP string `json:"otp"`
	}
	if err := c.ShouldBindJSON(&input); err != nil || input.OTP == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Missing Details"})
		return
	}

	if user.VerifyOtp == "" || user.VerifyOtp != input.OTP {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid OTP"})
		return
	}

	if user.VerifyOtpExpireAt < time.Now().UnixMilli() {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Expired OTP"})
		return
	}

	user.IsAccountVerified = true
	user.VerifyOtp = ""
	user.VerifyOtpExpireAt = 0

	if err := utils.DB.Save(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to update user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Email verified successfully"})
}

// SendResetOTP emails a password-reset OTP.
func SendResetOTP(c *gin.Context) {
	var input struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&input); err != nil || input.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Email is required"})
		return
	}

	var user models.User
	if err := utils.DB.Where("email = ?", input.Email).First(&user).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "User not found"})
		return
	}

	otp := generateOTP()
	user.ResetOtp = otp
	user.ResetOtpExpireAt = time.Now().Add(resetOtpValidity).UnixMilli()

	if err := utils.DB.Save(&user).Error; err != nil {
		log.Printf("Failed to save reset OTP: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to save OTP"})
		return
	}

	if err := Mail.Send(user.Email, "Password reset OTP",
		"Your OTP for resetting your password is "+otp+". Use this OTP to proceed with resetting your password."); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to send OTP email"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "OTP sent to your Email"})
}

// ResetPassword verifies the reset OTP and sets the new password.
func ResetPassword(c *gin.Context) {
	var input struct {
		Email       string `json:"email"`
		OTP         string `json:"otp"`
		NewPassword string `json:"newPassword"`
	}
	if err := c.ShouldBindJSON(&input); err != nil || input.Email == "" || input.OTP == "" || input.NewPassword == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Email, OTP, and new password are required"})
		return
	}

	var user models.User
	if err := utils.DB.Where("email = ?", input.Email).First(&user).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "User not found"})
		return
	}

	if user.ResetOtp == "" || user.ResetOtp != input.OTP {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid OTP"})
		return
	}

	if user.ResetOtpExpireAt < time.Now().UnixMilli() {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "OTP Expired"})
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to hash password"})
		return
	}

	user.Password = string(hashedPassword)
	user.ResetOtp = ""
	user.ResetOtpExpireAt = 0

	if err := utils.DB.Save(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to update password"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Password has been reset successfully"})
}
