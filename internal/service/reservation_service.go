package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"ritmofit/backend/config"
	"ritmofit/backend/internal/dto"
	"ritmofit/backend/internal/model"
	"ritmofit/backend/internal/repository"
	pkgerrors "ritmofit/backend/pkg/errors"
)

// ── 预约模块业务错误 ──

var (
	ErrClassNotFound          = errors.New("课程不存在")
	ErrReservationNotFound    = errors.New("预约不存在")
	ErrForbidden              = errors.New("无权操作该资源")
	ErrCapacityExceeded       = errors.New("课程已满员")
	ErrDuplicateReservation   = errors.New("已预约该场次")
	ErrOverlappingReservation = errors.New("与已有预约的时间冲突")
	ErrClassAlreadyOccurred   = errors.New("课程场次已结束")
	ErrInvalidSchedule        = errors.New("课程时间配置无效")
	ErrInvalidState           = errors.New("当前预约状态不允许该操作")
	ErrInvalidDateRange       = errors.New("日期范围无效")
	ErrStore                  = errors.New("数据存储失败")
)

// storeError 包装持久化错误，保留原始错误链
func storeError(err error) error {
	return fmt.Errorf("%w: %w", ErrStore, err)
}

// ReservationService 预约业务接口
// 所有会员侧操作只允许资源所属会员本人执行
type ReservationService interface {
	Create(ctx context.Context, req *dto.CreateReservationRequest, callerID string) (*dto.ReservationResponse, error)
	// ListActive 返回会员的有效预约，读取时顺带把已结束的场次标记为 expired 并释放座位
	ListActive(ctx context.Context, userID, callerID string) ([]dto.ReservationResponse, error)
	Cancel(ctx context.Context, reservationID, callerID string) (*dto.ReservationResponse, error)
	History(ctx context.Context, userID string, req *dto.HistoryQuery, callerID string) ([]dto.ReservationResponse, error)
	// Attend 管理员登记出勤
	Attend(ctx context.Context, reservationID, callerID string) (*dto.ReservationResponse, error)
}

type reservationService struct {
	repo     *repository.Repository
	notifier Notifier
	clock    Clock
	loc      *time.Location
	locale   string
	logger   *zap.Logger
}

// NewReservationService 创建 ReservationService 实例
func NewReservationService(
	repo *repository.Repository,
	notifier Notifier,
	booking *config.BookingConfig,
	clock Clock,
	logger *zap.Logger,
) ReservationService {
	return &reservationService{
		repo:     repo,
		notifier: notifier,
		clock:    clock,
		loc:      booking.Location(),
		locale:   booking.Locale,
		logger:   logger,
	}
}

func (s *reservationService) now() time.Time {
	return s.clock().In(s.loc)
}

// ────────────────────── Create ──────────────────────

func (s *reservationService) Create(ctx context.Context, req *dto.CreateReservationRequest, callerID string) (*dto.ReservationResponse, error) {
	if req.UserID != callerID {
		return nil, ErrForbidden
	}

	now := s.now()
	var (
		created *model.Reservation
		class   *model.GymClass
		member  *model.User
	)

	err := s.repo.Tx.WithinTx(ctx, func(tx *repository.Repository) error {
		// 先锁会员再锁课程，同一会员的并发预约在此串行化
		u, err := tx.User.GetByIDForUpdate(ctx, req.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		// 1. 课程存在
		c, err := tx.Class.GetByIDForUpdate(ctx, req.ClassID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrClassNotFound
			}
			return err
		}

		// 2. 容量
		if c.IsFull() {
			return ErrCapacityExceeded
		}

		// 3. 推算场次
		occ, err := ResolveOccurrence(c.Schedule, now)
		if err != nil {
			return err
		}

		// 4. 场次已结束
		if occ.End.Before(now) {
			return ErrClassAlreadyOccurred
		}

		actives, err := tx.Reservation.ListActiveByUser(ctx, req.UserID)
		if err != nil {
			return err
		}

		// 5. 重复预约同一场次
		for i := range actives {
			if actives[i].ClassID == c.ClassID && actives[i].ClassDate.Equal(occ.Start) {
				return ErrDuplicateReservation
			}
		}

		// 6. 同一星期内的时间冲突
		for i := range actives {
			other := actives[i].Class
			if other == nil || other.Schedule.Weekday != c.Schedule.Weekday {
				continue
			}
			if occ.Overlaps(OccurrenceAt(actives[i].ClassDate, other.Schedule, s.loc)) {
				return ErrOverlappingReservation
			}
		}

		// 7. 写入预约并占用座位，二者同生共死
		r := &model.Reservation{
			UserID:          req.UserID,
			ClassID:         c.ClassID,
			ReservationDate: now,
			ClassDate:       occ.Start,
			Status:          model.ReservationActive,
		}
		r.CreatedBy = &callerID
		r.UpdatedBy = &callerID
		if err := tx.Reservation.Create(ctx, r); err != nil {
			if pkgerrors.IsUniqueViolation(err) {
				return ErrDuplicateReservation
			}
			return err
		}

		reserved, err := tx.Ledger.TryReserveSeat(ctx, c.ClassID)
		if err != nil {
			return err
		}
		if !reserved {
			return ErrCapacityExceeded
		}
		c.CurrentCapacity++

		created, class, member = r, c, u
		return nil
	})
	if err != nil {
		if isBusinessError(err) {
			return nil, err
		}
		s.logger.Error("创建预约失败",
			zap.String("user_id", req.UserID),
			zap.String("class_id", req.ClassID),
			zap.Error(err),
		)
		return nil, storeError(err)
	}

	s.logger.Info("预约成功",
		zap.String("reservation_id", created.ReservationID),
		zap.String("class_id", class.ClassID),
		zap.Time("class_date", created.ClassDate),
		zap.Int("current_capacity", class.CurrentCapacity),
	)

	s.notifier.BookingConfirmed(ctx, member.Email, class, created.ClassDate.In(s.loc))

	created.Class = class
	resp := toReservationResponse(created, s.loc, s.locale)
	return &resp, nil
}

// ────────────────────── ListActive ──────────────────────

func (s *reservationService) ListActive(ctx context.Context, userID, callerID string) ([]dto.ReservationResponse, error) {
	if userID != callerID {
		return nil, ErrForbidden
	}

	actives, err := s.repo.Reservation.ListActiveByUser(ctx, userID)
	if err != nil {
		s.logger.Error("查询有效预约失败", zap.String("user_id", userID), zap.Error(err))
		return nil, storeError(err)
	}

	remaining, expired, err := s.expireDue(ctx, actives, s.now())
	if err != nil {
		return nil, err
	}
	// 有座位被释放时重新读取，保证课程快照中的座位数为最新
	if expired > 0 {
		remaining, err = s.repo.Reservation.ListActiveByUser(ctx, userID)
		if err != nil {
			s.logger.Error("重新查询有效预约失败", zap.String("user_id", userID), zap.Error(err))
			return nil, storeError(err)
		}
	}

	result := make([]dto.ReservationResponse, 0, len(remaining))
	for i := range remaining {
		result = append(result, toReservationResponse(&remaining[i], s.loc, s.locale))
	}
	return result, nil
}

// expireDue 对已结束的场次执行惰性过期，返回仍然有效的预约与本次过期的数量
// 状态迁移是条件更新，重复读取或并发读取只会释放一次座位
func (s *reservationService) expireDue(ctx context.Context, actives []model.Reservation, now time.Time) ([]model.Reservation, int, error) {
	remaining := make([]model.Reservation, 0, len(actives))
	expired := 0
	for i := range actives {
		r := &actives[i]
		status, seatDelta := ExpireIfDue(r, r.Class, now)
		if status != model.ReservationExpired {
			remaining = append(remaining, *r)
			continue
		}

		err := s.repo.Tx.WithinTx(ctx, func(tx *repository.Repository) error {
			moved, err := tx.Reservation.Transition(ctx, r.ReservationID, model.ReservationActive, model.ReservationExpired)
			if err != nil || !moved {
				return err
			}
			return tx.Ledger.ReleaseSeats(ctx, r.ClassID, -seatDelta)
		})
		if err != nil {
			s.logger.Error("预约过期处理失败",
				zap.String("reservation_id", r.ReservationID),
				zap.Error(err),
			)
			return nil, 0, storeError(err)
		}
		expired++

		s.logger.Info("预约已过期",
			zap.String("reservation_id", r.ReservationID),
			zap.String("class_id", r.ClassID),
		)
	}
	return remaining, expired, nil
}

// ────────────────────── Cancel ──────────────────────

func (s *reservationService) Cancel(ctx context.Context, reservationID, callerID string) (*dto.ReservationResponse, error) {
	now := s.now()
	var cancelled *model.Reservation

	err := s.repo.Tx.WithinTx(ctx, func(tx *repository.Repository) error {
		r, err := tx.Reservation.GetByIDForUpdate(ctx, reservationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReservationNotFound
			}
			return err
		}
		if r.UserID != callerID {
			return ErrForbidden
		}
		if r.Status != model.ReservationActive {
			return ErrInvalidState
		}
		if r.Class != nil && OccurrenceAt(r.ClassDate, r.Class.Schedule, s.loc).End.Before(now) {
			return ErrClassAlreadyOccurred
		}

		moved, err := tx.Reservation.Transition(ctx, r.ReservationID, model.ReservationActive, model.ReservationCancelled)
		if err != nil {
			return err
		}
		if !moved {
			return ErrInvalidState
		}
		if err := tx.Ledger.ReleaseSeats(ctx, r.ClassID, 1); err != nil {
			return err
		}

		r.Status = model.ReservationCancelled
		if r.Class != nil && r.Class.CurrentCapacity > 0 {
			r.Class.CurrentCapacity--
		}
		cancelled = r
		return nil
	})
	if err != nil {
		if isBusinessError(err) {
			return nil, err
		}
		s.logger.Error("取消预约失败", zap.String("reservation_id", reservationID), zap.Error(err))
		return nil, storeError(err)
	}

	s.logger.Info("预约已取消",
		zap.String("reservation_id", cancelled.ReservationID),
		zap.String("class_id", cancelled.ClassID),
	)

	if member, err := s.repo.User.GetByID(ctx, cancelled.UserID); err == nil {
		s.notifier.BookingCancelled(ctx, member.Email, cancelled.Class, cancelled.ClassDate.In(s.loc))
	} else {
		s.logger.Warn("查询会员失败，跳过取消通知", zap.String("user_id", cancelled.UserID), zap.Error(err))
	}

	resp := toReservationResponse(cancelled, s.loc, s.locale)
	return &resp, nil
}

// ────────────────────── History ──────────────────────

func (s *reservationService) History(ctx context.Context, userID string, req *dto.HistoryQuery, callerID string) ([]dto.ReservationResponse, error) {
	if userID != callerID {
		return nil, ErrForbidden
	}

	list, err := s.history(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	result := make([]dto.ReservationResponse, 0, len(list))
	for i := range list {
		result = append(result, toReservationResponse(&list[i], s.loc, s.locale))
	}
	return result, nil
}

func (s *reservationService) history(ctx context.Context, userID string, req *dto.HistoryQuery) ([]model.Reservation, error) {
	from, to, err := parseDateRange(req, s.loc)
	if err != nil {
		return nil, err
	}

	list, err := s.repo.Reservation.ListHistory(ctx, userID, from, to)
	if err != nil {
		s.logger.Error("查询预约历史失败", zap.String("user_id", userID), zap.Error(err))
		return nil, storeError(err)
	}
	return list, nil
}

// parseDateRange 解析为 [startDate 00:00:00, endDate 23:59:59.999999999]
func parseDateRange(req *dto.HistoryQuery, loc *time.Location) (from, to *time.Time, err error) {
	if req == nil {
		return nil, nil, nil
	}
	if req.StartDate != "" {
		d, err := time.ParseInLocation(dateLayout, req.StartDate, loc)
		if err != nil {
			return nil, nil, ErrInvalidDateRange
		}
		from = &d
	}
	if req.EndDate != "" {
		d, err := time.ParseInLocation(dateLayout, req.EndDate, loc)
		if err != nil {
			return nil, nil, ErrInvalidDateRange
		}
		end := d.AddDate(0, 0, 1).Add(-time.Nanosecond)
		to = &end
	}
	if from != nil && to != nil && from.After(*to) {
		return nil, nil, ErrInvalidDateRange
	}
	return from, to, nil
}

// ────────────────────── Attend ──────────────────────

func (s *reservationService) Attend(ctx context.Context, reservationID, callerID string) (*dto.ReservationResponse, error) {
	var attended *model.Reservation

	err := s.repo.Tx.WithinTx(ctx, func(tx *repository.Repository) error {
		r, err := tx.Reservation.GetByIDForUpdate(ctx, reservationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReservationNotFound
			}
			return err
		}

		moved, err := tx.Reservation.Transition(ctx, r.ReservationID, model.ReservationActive, model.ReservationAttended)
		if err != nil {
			return err
		}
		if !moved {
			return ErrInvalidState
		}
		// 出勤后不再占用有效座位
		if err := tx.Ledger.ReleaseSeats(ctx, r.ClassID, 1); err != nil {
			return err
		}

		r.Status = model.ReservationAttended
		if r.Class != nil && r.Class.CurrentCapacity > 0 {
			r.Class.CurrentCapacity--
		}
		attended = r
		return nil
	})
	if err != nil {
		if isBusinessError(err) {
			return nil, err
		}
		s.logger.Error("登记出勤失败", zap.String("reservation_id", reservationID), zap.Error(err))
		return nil, storeError(err)
	}

	s.logger.Info("已登记出勤",
		zap.String("reservation_id", attended.ReservationID),
		zap.String("operator", callerID),
	)

	resp := toReservationResponse(attended, s.loc, s.locale)
	return &resp, nil
}
