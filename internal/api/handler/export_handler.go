package handler

import (
	"bytes"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"ritmofit/backend/internal/dto"
	"ritmofit/backend/internal/service"
	"ritmofit/backend/pkg/response"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeICS  = "text/calendar; charset=utf-8"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportHistory 导出预约历史
// GET /api/history/:userId/export?startDate=&endDate=
func (h *ExportHandler) ExportHistory(c *gin.Context) {
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

	buf, filename, err := h.exportSvc.ExportHistory(c.Request.Context(), userID, &q, callerID)
	if err != nil {
		handleReservationError(c, err)
		return
	}

	attachment(c, buf, filename, contentTypeXLSX)
}

// CalendarICS 有效预约日历订阅
// GET /api/reservations/:id/calendar.ics（id 为会员ID）
func (h *ExportHandler) CalendarICS(c *gin.Context) {
	userID, ok := pathParam(c, "id", "会员ID不能为空")
	if !ok {
		return
	}
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.CalendarICS(c.Request.Context(), userID, callerID)
	if err != nil {
		handleReservationError(c, err)
		return
	}

	attachment(c, buf, filename, contentTypeICS)
}

// attachment 设置下载响应头并写入文件内容
func attachment(c *gin.Context, buf *bytes.Buffer, filename, contentType string) {
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.QueryEscape(filename))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}
