package models

import "gorm.io/gorm"

const (
	RoleClient     = "client"
	RoleConsultant = "consultant"
	RoleAdmin      = "admin"
)

type User struct {
	gorm.Model
	Name              string `gorm:"not null" json:"name"`
	Email             string `gorm:"unique;not null" json:"email"`
	Password          string `json:"-"`
	Avatar            string `json:"avatar"`
	Role              string `gorm:"default:client" json:"role"`
	IsAccountVerified bool   `gorm:"default:false" json:"is_account_verified"`
	VerifyOtp         string `gorm:"default:''" json:"-"`
	VerifyOtpExpireAt int64  `gorm:"default:0" json:"-"`
	ResetOtp          string `gorm:"default:''" json:"-"`
	ResetOtpExpireAt  int64  `gorm:"default:0" json:"-"`
}
