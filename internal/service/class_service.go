package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"ritmofit/backend/config"
	"ritmofit/backend/internal/dto"
	"ritmofit/backend/internal/model"
	"ritmofit/backend/internal/repository"
	pkgerrors "ritmofit/backend/pkg/errors"
)

// ── 课程模块业务错误 ──

var (
	ErrInvalidDate          = errors.New("日期格式无效，应为 YYYY-MM-DD")
	ErrInvalidTimeRange     = errors.New("结束时间必须晚于开始时间")
	ErrCapacityBelowBooked  = errors.New("最大容量不能小于已预约人数")
	ErrClassVersionConflict = errors.New("课程已被其他管理员修改，请刷新后重试")
)

const (
	filtersCacheKey = "classes:filters"
	filtersCacheTTL = 5 * time.Minute
)

// FilterCache 筛选项缓存（由 Redis 实现，可为 nil）
type FilterCache interface {
	GetJSON(ctx context.Context, key string, dst interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// ClassService 课程业务接口
type ClassService interface {
	List(ctx context.Context, q *dto.ClassListQuery) ([]dto.ClassResponse, error)
	GetByID(ctx context.Context, id string) (*dto.ClassResponse, error)
	Filters(ctx context.Context) (*dto.FiltersResponse, error)
	Create(ctx context.Context, req *dto.CreateClassRequest, callerID string) (*dto.ClassResponse, error)
	Update(ctx context.Context, id string, req *dto.UpdateClassRequest, callerID string) (*dto.ClassResponse, error)
	// Delete 软删除课程，并在同一事务内取消其全部有效预约
	Delete(ctx context.Context, id string, callerID string) error
}

type classService struct {
	repo     *repository.Repository
	cache    FilterCache
	notifier Notifier
	clock    Clock
	loc      *time.Location
	locale   string
	logger   *zap.Logger
}

// NewClassService 创建 ClassService 实例
func NewClassService(
	repo *repository.Repository,
	cache FilterCache,
	notifier Notifier,
	booking *config.BookingConfig,
	clock Clock,
	logger *zap.Logger,
) ClassService {
	return &classService{
		repo:     repo,
		cache:    cache,
		notifier: notifier,
		clock:    clock,
		loc:      booking.Location(),
		locale:   booking.Locale,
		logger:   logger,
	}
}

// ────────────────────── List ──────────────────────

func (s *classService) List(ctx context.Context, q *dto.ClassListQuery) ([]dto.ClassResponse, error) {
	filter := repository.ClassFilter{
		Location:   strings.TrimSpace(q.Location),
		Discipline: q.Discipline,
	}
	if q.Date != "" {
		d, err := time.ParseInLocation(dateLayout, q.Date, s.loc)
		if err != nil {
			return nil, ErrInvalidDate
		}
		weekday := model.Weekday(d.Weekday())
		filter.Weekday = &weekday
	}

	classes, err := s.repo.Class.List(ctx, filter)
	if err != nil {
		s.logger.Error("查询课程列表失败", zap.Error(err))
		return nil, storeError(err)
	}

	now := s.clock().In(s.loc)
	result := make([]dto.ClassResponse, 0, len(classes))
	for i := range classes {
		result = append(result, s.withClassDate(&classes[i], now))
	}
	return result, nil
}

// ────────────────────── GetByID ──────────────────────

func (s *classService) GetByID(ctx context.Context, id string) (*dto.ClassResponse, error) {
	class, err := s.repo.Class.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassNotFound
		}
		s.logger.Error("查询课程失败", zap.String("id", id), zap.Error(err))
		return nil, storeError(err)
	}

	resp := s.withClassDate(class, s.clock().In(s.loc))
	return &resp, nil
}

// withClassDate 附带下一场次日期；星期无法识别时不输出日期
func (s *classService) withClassDate(c *model.GymClass, now time.Time) dto.ClassResponse {
	date, err := NextOccurrenceDate(c.Schedule.Weekday, c.Schedule.StartTime, now)
	if err != nil {
		s.logger.Warn("课程星期无法识别", zap.String("class_id", c.ClassID))
		return toClassResponse(c, nil, s.locale)
	}
	return toClassResponse(c, &date, s.locale)
}

// ────────────────────── Filters ──────────────────────

func (s *classService) Filters(ctx context.Context) (*dto.FiltersResponse, error) {
	if s.cache != nil {
		var cached dto.FiltersResponse
		hit, err := s.cache.GetJSON(ctx, filtersCacheKey, &cached)
		if err != nil {
			s.logger.Warn("读取筛选项缓存失败", zap.Error(err))
		} else if hit {
			return &cached, nil
		}
	}

	locations, err := s.repo.Class.DistinctLocations(ctx)
	if err != nil {
		s.logger.Error("查询场馆列表失败", zap.Error(err))
		return nil, storeError(err)
	}
	disciplines, err := s.repo.Class.DistinctDisciplines(ctx)
	if err != nil {
		s.logger.Error("查询项目列表失败", zap.Error(err))
		return nil, storeError(err)
	}

	resp := &dto.FiltersResponse{Locations: locations, Disciplines: disciplines}
	if resp.Locations == nil {
		resp.Locations = []string{}
	}
	if resp.Disciplines == nil {
		resp.Disciplines = []string{}
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, filtersCacheKey, resp, filtersCacheTTL); err != nil {
			s.logger.Warn("写入筛选项缓存失败", zap.Error(err))
		}
	}
	return resp, nil
}

func (s *classService) invalidateFilters(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, filtersCacheKey); err != nil {
		s.logger.Warn("清除筛选项缓存失败", zap.Error(err))
	}
}

// ────────────────────── Create ──────────────────────

func (s *classService) Create(ctx context.Context, req *dto.CreateClassRequest, callerID string) (*dto.ClassResponse, error) {
	weekday, ok := model.ParseWeekday(req.Schedule.Weekday)
	if !ok {
		return nil, ErrInvalidSchedule
	}
	if !model.IsClock(req.Schedule.StartTime) || !model.IsClock(req.Schedule.EndTime) {
		return nil, ErrInvalidSchedule
	}
	span := model.ClockMinutes(req.Schedule.EndTime) - model.ClockMinutes(req.Schedule.StartTime)
	if span <= 0 {
		return nil, ErrInvalidTimeRange
	}

	class := &model.GymClass{
		Name:        strings.TrimSpace(req.Name),
		Discipline:  strings.TrimSpace(req.Discipline),
		Description: req.Description,
		MaxCapacity: req.MaxCapacity,
		Schedule: model.Schedule{
			Weekday:   weekday,
			StartTime: req.Schedule.StartTime,
			EndTime:   req.Schedule.EndTime,
		},
		Location:        model.ClassLocation{Name: strings.TrimSpace(req.Location.Name)},
		Professor:       strings.TrimSpace(req.Professor),
		DurationMinutes: req.DurationMinutes,
	}
	if class.Discipline == "" {
		class.Discipline = class.Name
	}
	if class.DurationMinutes == 0 {
		class.DurationMinutes = span
	}
	class.CreatedBy = &callerID
	class.UpdatedBy = &callerID
	class.Version = 1

	if err := s.repo.Class.Create(ctx, class); err != nil {
		s.logger.Error("创建课程失败", zap.Error(err))
		return nil, storeError(err)
	}

	s.invalidateFilters(ctx)
	s.logger.Info("课程已创建", zap.String("class_id", class.ClassID), zap.String("operator", callerID))

	resp := s.withClassDate(class, s.clock().In(s.loc))
	return &resp, nil
}

// ────────────────────── Update ──────────────────────

func (s *classService) Update(ctx context.Context, id string, req *dto.UpdateClassRequest, callerID string) (*dto.ClassResponse, error) {
	var updated *model.GymClass

	err := s.repo.Tx.WithinTx(ctx, func(tx *repository.Repository) error {
		// 锁定课程行，避免与并发预约交错导致容量低于已占用座位
		class, err := tx.Class.GetByIDForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrClassNotFound
			}
			return err
		}
		if class.Version != req.Version {
			return ErrClassVersionConflict
		}

		if err := applyClassUpdate(class, req); err != nil {
			return err
		}
		if class.MaxCapacity < class.CurrentCapacity {
			return ErrCapacityBelowBooked
		}
		class.UpdatedBy = &callerID

		if err := tx.Class.Update(ctx, class); err != nil {
			if errors.Is(err, pkgerrors.ErrOptimisticLock) {
				return ErrClassVersionConflict
			}
			return err
		}
		updated = class
		return nil
	})
	if err != nil {
		if isBusinessError(err) {
			return nil, err
		}
		s.logger.Error("更新课程失败", zap.String("id", id), zap.Error(err))
		return nil, storeError(err)
	}

	s.invalidateFilters(ctx)
	s.logger.Info("课程已更新",
		zap.String("class_id", id),
		zap.Int("version", updated.Version),
		zap.String("operator", callerID),
	)

	resp := s.withClassDate(updated, s.clock().In(s.loc))
	return &resp, nil
}

// applyClassUpdate 合并部分更新字段并校验时段
func applyClassUpdate(class *model.GymClass, req *dto.UpdateClassRequest) error {
	if req.Name != nil {
		class.Name = strings.TrimSpace(*req.Name)
	}
	if req.Discipline != nil {
		class.Discipline = strings.TrimSpace(*req.Discipline)
	}
	if req.Description != nil {
		class.Description = *req.Description
	}
	if req.MaxCapacity != nil {
		class.MaxCapacity = *req.MaxCapacity
	}
	if req.Location != nil {
		class.Location.Name = strings.TrimSpace(req.Location.Name)
	}
	if req.Professor != nil {
		class.Professor = strings.TrimSpace(*req.Professor)
	}
	if req.Schedule != nil {
		weekday, ok := model.ParseWeekday(req.Schedule.Weekday)
		if !ok || !model.IsClock(req.Schedule.StartTime) || !model.IsClock(req.Schedule.EndTime) {
			return ErrInvalidSchedule
		}
		class.Schedule = model.Schedule{
			Weekday:   weekday,
			StartTime: req.Schedule.StartTime,
			EndTime:   req.Schedule.EndTime,
		}
	}
	// 存量数据的星期无法识别时，必须随本次更新提交新的时段
	if !class.Schedule.Weekday.Valid() {
		return ErrInvalidSchedule
	}

	span := model.ClockMinutes(class.Schedule.EndTime) - model.ClockMinutes(class.Schedule.StartTime)
	if req.Schedule != nil && span <= 0 {
		return ErrInvalidTimeRange
	}
	if req.DurationMinutes != nil {
		class.DurationMinutes = *req.DurationMinutes
	} else if req.Schedule != nil {
		class.DurationMinutes = span
	}
	if class.Discipline == "" {
		class.Discipline = class.Name
	}
	return nil
}

// ────────────────────── Delete ──────────────────────

func (s *classService) Delete(ctx context.Context, id string, callerID string) error {
	var (
		class     *model.GymClass
		cancelled []model.Reservation
	)

	err := s.repo.Tx.WithinTx(ctx, func(tx *repository.Repository) error {
		// 冲突重试时整个函数重跑
		cancelled = nil

		c, err := tx.Class.GetByIDForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrClassNotFound
			}
			return err
		}

		actives, err := tx.Reservation.ListActiveByClass(ctx, id)
		if err != nil {
			return err
		}
		released := 0
		for i := range actives {
			moved, err := tx.Reservation.Transition(ctx, actives[i].ReservationID, model.ReservationActive, model.ReservationCancelled)
			if err != nil {
				return err
			}
			if moved {
				released++
				cancelled = append(cancelled, actives[i])
			}
		}
		if err := tx.Ledger.ReleaseSeats(ctx, id, released); err != nil {
			return err
		}

		if err := tx.Class.Delete(ctx, id, callerID); err != nil {
			return err
		}
		class = c
		return nil
	})
	if err != nil {
		if isBusinessError(err) {
			return err
		}
		s.logger.Error("删除课程失败", zap.String("id", id), zap.Error(err))
		return storeError(err)
	}

	s.invalidateFilters(ctx)
	s.logger.Info("课程已删除",
		zap.String("class_id", id),
		zap.Int("cancelled_reservations", len(cancelled)),
		zap.String("operator", callerID),
	)

	for i := range cancelled {
		if cancelled[i].User != nil {
			s.notifier.ClassRemoved(ctx, cancelled[i].User.Email, class, cancelled[i].ClassDate.In(s.loc))
		}
	}
	return nil
}
