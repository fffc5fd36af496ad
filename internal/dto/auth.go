package dto

// ── 认证模块 DTO ──

// SendOTPRequest 注册/登录发送验证码请求
type SendOTPRequest struct {
	Email    string `json:"email"    binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

// VerifyOTPRequest 校验验证码并登录
type VerifyOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
	OTP   string `json:"otp"   binding:"required,numeric,min=4,max=10"`
}

// PasswordResetRequest 申请重置密码
type PasswordResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordRequest 使用验证码重置密码
type ResetPasswordRequest struct {
	Email       string `json:"email"       binding:"required,email"`
	OTP         string `json:"otp"         binding:"required,numeric,min=4,max=10"`
	NewPassword string `json:"newPassword" binding:"required,min=6,max=72"`
}

// RefreshTokenRequest 刷新 Token 请求
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}
