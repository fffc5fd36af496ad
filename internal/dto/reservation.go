package dto

import "time"

// ── 预约模块 DTO ──

// CreateReservationRequest 创建预约
type CreateReservationRequest struct {
	UserID  string `json:"userId"  binding:"required,uuid"`
	ClassID string `json:"classId" binding:"required,uuid"`
}

// HistoryQuery 历史记录日期范围（闭区间，按天）
type HistoryQuery struct {
	StartDate string `form:"startDate" binding:"omitempty,datetime=2006-01-02"`
	EndDate   string `form:"endDate"   binding:"omitempty,datetime=2006-01-02"`
}

// ReservationResponse 预约信息，附带课程快照
type ReservationResponse struct {
	ID              string         `json:"id"`
	UserID          string         `json:"userId"`
	ClassID         string         `json:"classId"`
	ReservationDate time.Time      `json:"reservationDate"`
	ClassDate       time.Time      `json:"classDate"`
	Status          string         `json:"status"`
	Class           *ClassResponse `json:"class,omitempty"`
}
