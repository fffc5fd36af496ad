package handler

import "ritmofit/backend/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth        *AuthHandler
	Profile     *ProfileHandler
	Class       *ClassHandler
	Reservation *ReservationHandler
	Export      *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Auth:        NewAuthHandler(svc.Auth),
		Profile:     NewProfileHandler(svc.Profile),
		Class:       NewClassHandler(svc.Class),
		Reservation: NewReservationHandler(svc.Reservation),
		Export:      NewExportHandler(svc.Export),
	}
}
