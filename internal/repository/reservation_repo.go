package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ritmofit/backend/internal/model"
)

// ReservationRepository 预约数据访问接口
// 预约记录永不删除，状态变更只能经由 Transition
type ReservationRepository interface {
	Create(ctx context.Context, r *model.Reservation) error
	GetByID(ctx context.Context, id string) (*model.Reservation, error)
	GetByIDForUpdate(ctx context.Context, id string) (*model.Reservation, error)
	ListActiveByUser(ctx context.Context, userID string) ([]model.Reservation, error)
	ListHistory(ctx context.Context, userID string, from, to *time.Time) ([]model.Reservation, error)
	ListActiveStartingBetween(ctx context.Context, from, to time.Time) ([]model.Reservation, error)
	ListActiveByClass(ctx context.Context, classID string) ([]model.Reservation, error)
	// Transition 条件状态迁移：仅当当前状态为 from 时更新为 to，返回是否实际迁移
	Transition(ctx context.Context, id string, from, to model.ReservationStatus) (bool, error)
}

// reservationRepo ReservationRepository 的 GORM 实现
type reservationRepo struct {
	db *gorm.DB
}

// NewReservationRepo 创建 ReservationRepository 实例
func NewReservationRepo(db *gorm.DB) ReservationRepository {
	return &reservationRepo{db: db}
}

// withClass 预加载课程快照（包含已软删除的课程）
func withClass(db *gorm.DB) *gorm.DB {
	return db.Preload("Class", func(tx *gorm.DB) *gorm.DB {
		return tx.Unscoped()
	})
}

func (r *reservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	return r.db.WithContext(ctx).Omit("Class", "User").Create(res).Error
}

func (r *reservationRepo) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	var res model.Reservation
	err := withClass(r.db.WithContext(ctx)).
		Where("reservation_id = ?", id).
		First(&res).Error
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// GetByIDForUpdate 行锁读取，必须在事务内调用
func (r *reservationRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Reservation, error) {
	var res model.Reservation
	err := withClass(r.db.WithContext(ctx)).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("reservation_id = ?", id).
		First(&res).Error
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *reservationRepo) ListActiveByUser(ctx context.Context, userID string) ([]model.Reservation, error) {
	var list []model.Reservation
	err := withClass(r.db.WithContext(ctx)).
		Where("user_id = ? AND status = ?", userID, model.ReservationActive).
		Order("class_date ASC").
		Find(&list).Error
	return list, err
}

func (r *reservationRepo) ListHistory(ctx context.Context, userID string, from, to *time.Time) ([]model.Reservation, error) {
	db := withClass(r.db.WithContext(ctx)).
		Where("user_id = ? AND status IN ?", userID, model.TerminalStatuses)
	if from != nil {
		db = db.Where("class_date >= ?", *from)
	}
	if to != nil {
		db = db.Where("class_date <= ?", *to)
	}

	var list []model.Reservation
	err := db.Order("class_date DESC").Find(&list).Error
	return list, err
}

// ListActiveStartingBetween 开始时间落在 [from, to) 的 active 预约，附带会员信息（提醒任务使用）
func (r *reservationRepo) ListActiveStartingBetween(ctx context.Context, from, to time.Time) ([]model.Reservation, error) {
	var list []model.Reservation
	err := withClass(r.db.WithContext(ctx)).
		Preload("User").
		Where("status = ? AND class_date >= ? AND class_date < ?", model.ReservationActive, from, to).
		Order("class_date ASC").
		Find(&list).Error
	return list, err
}

func (r *reservationRepo) ListActiveByClass(ctx context.Context, classID string) ([]model.Reservation, error) {
	var list []model.Reservation
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("class_id = ? AND status = ?", classID, model.ReservationActive).
		Find(&list).Error
	return list, err
}

func (r *reservationRepo) Transition(ctx context.Context, id string, from, to model.ReservationStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Reservation{}).
		Where("reservation_id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": gorm.Expr("NOW()"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
