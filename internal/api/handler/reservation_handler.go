package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"ritmofit/backend/internal/dto"
	"ritmofit/backend/internal/service"
	"ritmofit/backend/pkg/response"
)

// 预约模块错误码
const (
	codeResClassNotFound     = 14001
	codeReservationNotFound  = 14002
	codeResUserNotFound      = 14003
	codeCapacityExceeded     = 14004
	codeDuplicateReservation = 14005
	codeOverlapping          = 14006
	codeAlreadyOccurred      = 14007
	codeResInvalidSchedule   = 14008
	codeInvalidState         = 14009
	codeInvalidDateRange     = 14010
)

// ReservationHandler 预约模块 HTTP 处理器
type ReservationHandler struct {
	reservationSvc service.ReservationService
}

// NewReservationHandler 创建 ReservationHandler
func NewReservationHandler(reservationSvc service.ReservationService) *ReservationHandler {
	return &ReservationHandler{reservationSvc: reservationSvc}
}

// CreateReservation 预约课程的下一场次
// POST /api/reservations
func (h *ReservationHandler) CreateReservation(c *gin.Context) {
	var req dto.CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeInvalidParams, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	reservation, err := h.reservationSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		handleReservationError(c, err)
		return
	}

	response.Created(c, reservation)
}

// ListActive 会员的有效预约
// GET /api/reservations/:id（id 为会员ID）
func (h *ReservationHandler) ListActive(c *gin.Context) {
	userID, ok := pathParam(c, "id", "会员ID不能为空")
	if !ok {
		return
	}
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	list, err := h.reservationSvc.ListActive(c.Request.Context(), userID, callerID)
	if err != nil {
		handleReservationError(c, err)
		return
	}

	response.OK(c, list)
}

// CancelReservation 取消预约
// POST /api/reservations/cancel/:id
func (h *ReservationHandler) CancelReservation(c *gin.Context) {
	id, ok := pathParam(c, "id", "预约ID不能为空")
	if !ok {
		return
	}
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	reservation, err := h.reservationSvc.Cancel(c.Request.Context(), id, callerID)
	if err != nil {
		handleReservationError(c, err)
		return
	}

	response.OK(c, reservation)
}

// History 预约历史
// GET /api/history/:userId?startDate=&endDate=
func (h *ReservationHandler) History(c *gin.Context) {
	userID, ok := pathParam(c, "userId", "会员ID不能为空")
	if !ok {
		return
	}

	var q dto.HistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, response.CodeInvalidParams, "日期格式应为 YYYY-MM-DD")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	list, err := h.reservationSvc.History(c.Request.Context(), userID, &q, callerID)
	if err != nil {
		handleReservationError(c, err)
		return
	}

	response.OK(c, list)
}

// Attend 登记出勤（管理员）
// POST /api/reservations/:id/attend
func (h *ReservationHandler) Attend(c *gin.Context) {
	id, ok := pathParam(c, "id", "预约ID不能为空")
	if !ok {
		return
	}
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	reservation, err := h.reservationSvc.Attend(c.Request.Context(), id, callerID)
	if err != nil {
		handleReservationError(c, err)
		return
	}

	response.OK(c, reservation)
}

// handleReservationError 预约与导出共用的错误映射
func handleReservationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrForbidden):
		response.Forbidden(c, response.CodeForbidden, err.Error())
	case errors.Is(err, service.ErrClassNotFound):
		response.NotFound(c, codeResClassNotFound, err.Error())
	case errors.Is(err, service.ErrReservationNotFound):
		response.NotFound(c, codeReservationNotFound, err.Error())
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, codeResUserNotFound, err.Error())
	case errors.Is(err, service.ErrCapacityExceeded):
		response.BadRequest(c, codeCapacityExceeded, err.Error())
	case errors.Is(err, service.ErrDuplicateReservation):
		response.BadRequest(c, codeDuplicateReservation, err.Error())
	case errors.Is(err, service.ErrOverlappingReservation):
		response.BadRequest(c, codeOverlapping, err.Error())
	case errors.Is(err, service.ErrClassAlreadyOccurred):
		response.BadRequest(c, codeAlreadyOccurred, err.Error())
	case errors.Is(err, service.ErrInvalidSchedule):
		response.BadRequest(c, codeResInvalidSchedule, err.Error())
	case errors.Is(err, service.ErrInvalidState):
		response.BadRequest(c, codeInvalidState, err.Error())
	case errors.Is(err, service.ErrInvalidDateRange):
		response.BadRequest(c, codeInvalidDateRange, err.Error())
	default:
		response.InternalError(c)
	}
}
