package auth

import "github.com/gin-gonic/gin"

func RegisterAuthRoutes(r *gin.Engine) {
	r.POST("/auth/register", Register)
	r.POST("/auth/login", Login)
	r.POST("/auth/logout", Logout)
	r.POST("/auth/send-reset-otp", SendResetOTP)
	r.POST("/auth/reset-password", ResetPassword)

	protected := r.Group("/auth")
	protected.Use(AuthMiddleware())
	{
		protected.GET("/is-auth", IsAuthenticated)
		protected.POST("/send-verify-otp", SendVerifyOTP)
		protected.POST("/verify-account", VerifyAccount)
	}
}
