package model

import "time"

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"mat_khau" binding:"required,min=6,max=72"`
	FullName string `json:"ho_ten" binding:"required,max=255"`
	Phone    string `json:"dien_thoai" binding:"omitempty,max=20"`
	Address  string `json:"dia_chi" binding:"omitempty,max=500"`
}

// LoginRequest accepts the password under either "password" or "mat_khau".
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	MatKhau  string `json:"mat_khau"`
}

func (r LoginRequest) Secret() string {
	if r.Password != "" {
		return r.Password
	}
	return r.MatKhau
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type UpdateProfileRequest struct {
	FullName *string `json:"ho_ten" binding:"omitempty,min=1,max=255"`
	Phone    *string `json:"dien_thoai" binding:"omitempty,max=20"`
	Address  *string `json:"dia_chi" binding:"omitempty,max=500"`
}

type UpdatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=6,max=72"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type VerifyOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
	OTP   string `json:"otp" binding:"required,len=6,numeric"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" binding:"required,email"`
	ResetToken  string `json:"resetToken" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=6,max=72"`
}

type UpdateRoleRequest struct {
	Role *Role `json:"vai_tro" binding:"required"`
}

type UpdateLockRequest struct {
	Locked *bool `json:"bi_khoa" binding:"required"`
}

// TokenPair is a freshly minted access/refresh pair.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// AuthResult is what register/login hand back to the transport layer.
type AuthResult struct {
	User   *User
	Tokens TokenPair
}
