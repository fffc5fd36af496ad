package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ritmofit/backend/internal/dto"
	"ritmofit/backend/internal/service"
	"ritmofit/backend/pkg/response"
)

// 认证模块错误码
const (
	codeEmailRegistered    = 11001
	codeInvalidCredentials = 11002
	codeInvalidOTP         = 11003
	codeUserNotFound       = 11004
	codeInvalidRefresh     = 11005
	codeOTPDelivery        = 11006
)

// AuthHandler 认证模块 HTTP 处理器
type AuthHandler struct {
	authSvc service.AuthService
}

// NewAuthHandler 创建 AuthHandler
func NewAuthHandler(authSvc service.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// RegisterSendOTP 注册并发送验证码
// POST /api/auth/register-send-otp
func (h *AuthHandler) RegisterSendOTP(c *gin.Context) {
	var req dto.SendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeInvalidParams, "参数校验失败")
		return
	}

	if err := h.authSvc.RegisterSendOTP(c.Request.Context(), &req); err != nil {
		h.handleAuthError(c, err)
		return
	}

	response.OK(c, dto.MessageResponse{Message: "验证码已发送"})
}

// LoginSendOTP 校验密码并发送登录验证码
// POST /api/auth/login-send-otp
func (h *AuthHandler) LoginSendOTP(c *gin.Context) {
	var req dto.SendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeInvalidParams, "参数校验失败")
		return
	}

	if err := h.authSvc.LoginSendOTP(c.Request.Context(), &req); err != nil {
		h.handleAuthError(c, err)
		return
	}

	response.OK(c, dto.MessageResponse{Message: "验证码已发送"})
}

// VerifyOTPAndLogin 校验验证码并签发 Token
// POST /api/auth/verify-otp-and-login
func (h *AuthHandler) VerifyOTPAndLogin(c *gin.Context) {
	var req dto.VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeInvalidParams, "参数校验失败")
		return
	}

	result, err := h.authSvc.VerifyOTPAndLogin(c.Request.Context(), &req)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	response.OK(c, result)
}

// RequestPasswordReset 申请重置密码
// POST /api/auth/request-password-reset
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req dto.PasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeInvalidParams, "参数校验失败")
		return
	}

	if err := h.authSvc.RequestPasswordReset(c.Request.Context(), &req); err != nil {
		h.handleAuthError(c, err)
		return
	}

	response.OK(c, dto.MessageResponse{Message: "验证码已发送"})
}

// ResetPassword 使用验证码重置密码
// POST /api/auth/reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req dto.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeInvalidParams, "参数校验失败")
		return
	}

	if err := h.authSvc.ResetPassword(c.Request.Context(), &req); err != nil {
		h.handleAuthError(c, err)
		return
	}

	response.OK(c, dto.MessageResponse{Message: "密码已重置"})
}

// Refresh 刷新 Token
// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req dto.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeInvalidParams, "参数校验失败")
		return
	}

	result, err := h.authSvc.Refresh(c.Request.Context(), &req)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	response.OK(c, result)
}

// Logout 登出，当前 Access Token 加入黑名单
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := MustGetClaims(c)
	if !ok {
		return
	}

	if err := h.authSvc.Logout(c.Request.Context(), claims); err != nil {
		h.handleAuthError(c, err)
		return
	}

	response.OK(c, nil)
}

func (h *AuthHandler) handleAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrEmailAlreadyRegistered):
		response.BadRequest(c, codeEmailRegistered, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Unauthorized(c, codeInvalidCredentials, err.Error())
	case errors.Is(err, service.ErrInvalidOTP):
		response.BadRequest(c, codeInvalidOTP, err.Error())
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, codeUserNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidRefreshToken):
		response.Unauthorized(c, codeInvalidRefresh, err.Error())
	case errors.Is(err, service.ErrOTPDelivery):
		response.Error(c, http.StatusBadGateway, codeOTPDelivery, err.Error())
	default:
		response.InternalError(c)
	}
}
