package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"ritmofit/backend/internal/dto"
	"ritmofit/backend/internal/service"
	"ritmofit/backend/pkg/response"
)

// 课程模块错误码
const (
	codeClassNotFound        = 13001
	codeClassInvalidSchedule = 13002
	codeClassInvalidTime     = 13003
	codeClassCapacityBelow   = 13004
	codeClassVersionConflict = 13005
	codeClassInvalidDate     = 13006
)

// ClassHandler 课程模块 HTTP 处理器
type ClassHandler struct {
	classSvc service.ClassService
}

// NewClassHandler 创建 ClassHandler
func NewClassHandler(classSvc service.ClassService) *ClassHandler {
	return &ClassHandler{classSvc: classSvc}
}

// ListClasses 课程列表（可按场馆、项目、日期筛选）
// GET /api/classes
func (h *ClassHandler) ListClasses(c *gin.Context) {
	var q dto.ClassListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, response.CodeInvalidParams, "参数校验失败")
		return
	}

	classes, err := h.classSvc.List(c.Request.Context(), &q)
	if err != nil {
		h.handleClassError(c, err)
		return
	}

	response.OK(c, classes)
}

// GetClass 课程详情
// GET /api/classes/:id
func (h *ClassHandler) GetClass(c *gin.Context) {
	id, ok := pathParam(c, "id", "课程ID不能为空")
	if !ok {
		return
	}

	class, err := h.classSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleClassError(c, err)
		return
	}

	response.OK(c, class)
}

// GetFilters 筛选项
// GET /api/filters
func (h *ClassHandler) GetFilters(c *gin.Context) {
	filters, err := h.classSvc.Filters(c.Request.Context())
	if err != nil {
		h.handleClassError(c, err)
		return
	}

	response.OK(c, filters)
}

// CreateClass 创建课程
// POST /api/classes
func (h *ClassHandler) CreateClass(c *gin.Context) {
	var req dto.CreateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeInvalidParams, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	class, err := h.classSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleClassError(c, err)
		return
	}

	response.Created(c, class)
}

// UpdateClass 更新课程
// PUT /api/classes/:id
func (h *ClassHandler) UpdateClass(c *gin.Context) {
	id, ok := pathParam(c, "id", "课程ID不能为空")
	if !ok {
		return
	}

	var req dto.UpdateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeInvalidParams, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	class, err := h.classSvc.Update(c.Request.Context(), id, &req, callerID)
	if err != nil {
		h.handleClassError(c, err)
		return
	}

	response.OK(c, class)
}

// DeleteClass 删除课程
// DELETE /api/classes/:id
func (h *ClassHandler) DeleteClass(c *gin.Context) {
	id, ok := pathParam(c, "id", "课程ID不能为空")
	if !ok {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.classSvc.Delete(c.Request.Context(), id, callerID); err != nil {
		h.handleClassError(c, err)
		return
	}

	response.OK(c, nil)
}

func (h *ClassHandler) handleClassError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrClassNotFound):
		response.NotFound(c, codeClassNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidSchedule):
		response.BadRequest(c, codeClassInvalidSchedule, err.Error())
	case errors.Is(err, service.ErrInvalidTimeRange):
		response.BadRequest(c, codeClassInvalidTime, err.Error())
	case errors.Is(err, service.ErrCapacityBelowBooked):
		response.BadRequest(c, codeClassCapacityBelow, err.Error())
	case errors.Is(err, service.ErrClassVersionConflict):
		response.Conflict(c, codeClassVersionConflict, err.Error())
	case errors.Is(err, service.ErrInvalidDate):
		response.BadRequest(c, codeClassInvalidDate, err.Error())
	default:
		response.InternalError(c)
	}
}
