package service

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"ritmofit/backend/config"
	"ritmofit/backend/internal/repository"
	"ritmofit/backend/pkg/jwt"
)

// Clock 当前时间来源，测试中注入固定时刻
type Clock func() time.Time

// Service 所有 Service 的聚合入口
type Service struct {
	Auth        AuthService
	Profile     ProfileService
	Class       ClassService
	Reservation ReservationService
	Export      ExportService
	Notifier    Notifier
}

// Deps 外部协作者
// Cache 与 Blacklist 在 Redis 不可用时为 nil
type Deps struct {
	Notifier  Notifier
	Cache     FilterCache
	Blacklist TokenBlacklist
	Clock     Clock
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	deps Deps,
	logger *zap.Logger,
) *Service {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	reservations := NewReservationService(repo, deps.Notifier, &cfg.Booking, clock, logger)
	return &Service{
		Auth:        NewAuthService(&cfg.Auth, repo, jwtMgr, deps.Blacklist, deps.Notifier, clock, logger),
		Profile:     NewProfileService(repo, logger),
		Class:       NewClassService(repo, deps.Cache, deps.Notifier, &cfg.Booking, clock, logger),
		Reservation: reservations,
		Export:      NewExportService(reservations, cfg.Booking.Location(), cfg.Booking.Locale, clock, logger),
		Notifier:    deps.Notifier,
	}
}

var businessErrors = []error{
	ErrClassNotFound,
	ErrReservationNotFound,
	ErrUserNotFound,
	ErrForbidden,
	ErrCapacityExceeded,
	ErrDuplicateReservation,
	ErrOverlappingReservation,
	ErrClassAlreadyOccurred,
	ErrInvalidSchedule,
	ErrInvalidState,
	ErrInvalidDateRange,
	ErrInvalidDate,
	ErrInvalidTimeRange,
	ErrCapacityBelowBooked,
	ErrClassVersionConflict,
}

// isBusinessError 是否为可直接返回给调用方的业务错误
func isBusinessError(err error) bool {
	for _, target := range businessErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
