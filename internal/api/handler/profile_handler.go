package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"ritmofit/backend/internal/dto"
	"ritmofit/backend/internal/service"
	"ritmofit/backend/pkg/response"
)

// 资料模块错误码
const (
	codeProfileNotFound    = 12001
	codeProfileInvalidDate = 12002
)

// ProfileHandler 会员资料 HTTP 处理器
type ProfileHandler struct {
	profileSvc service.ProfileService
}

// NewProfileHandler 创建 ProfileHandler
func NewProfileHandler(profileSvc service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileSvc: profileSvc}
}

// GetProfile 获取会员资料
// GET /api/profile/:userId
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	userID, ok := pathParam(c, "userId", "会员ID不能为空")
	if !ok {
		return
	}
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	profile, err := h.profileSvc.Get(c.Request.Context(), userID, callerID)
	if err != nil {
		h.handleProfileError(c, err)
		return
	}

	response.OK(c, profile)
}

// UpdateProfile 更新会员资料
// PUT /api/profile/:userId
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	userID, ok := pathParam(c, "userId", "会员ID不能为空")
	if !ok {
		return
	}

	var req dto.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeInvalidParams, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	profile, err := h.profileSvc.Update(c.Request.Context(), userID, &req, callerID)
	if err != nil {
		h.handleProfileError(c, err)
		return
	}

	response.OK(c, profile)
}

func (h *ProfileHandler) handleProfileError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrForbidden):
		response.Forbidden(c, response.CodeForbidden, err.Error())
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, codeProfileNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidDate):
		response.BadRequest(c, codeProfileInvalidDate, err.Error())
	default:
		response.InternalError(c)
	}
}
