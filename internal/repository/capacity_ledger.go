package repository

import (
	"context"

	"gorm.io/gorm"

	"ritmofit/backend/internal/model"
)

// CapacityLedger 课程座位账本
// current_capacity 的所有增减都经由此处，且必须与对应的预约状态变更处于同一事务
type CapacityLedger interface {
	// TryReserveSeat 条件自增，满员时返回 false 且不修改任何数据
	TryReserveSeat(ctx context.Context, classID string) (bool, error)
	// ReleaseSeats 释放 n 个座位，下限为 0
	ReleaseSeats(ctx context.Context, classID string, n int) error
}

// capacityLedger CapacityLedger 的 GORM 实现
type capacityLedger struct {
	db *gorm.DB
}

// NewCapacityLedger 创建 CapacityLedger 实例
func NewCapacityLedger(db *gorm.DB) CapacityLedger {
	return &capacityLedger{db: db}
}

func (l *capacityLedger) TryReserveSeat(ctx context.Context, classID string) (bool, error) {
	result := l.db.WithContext(ctx).
		Model(&model.GymClass{}).
		Where("class_id = ? AND current_capacity < max_capacity", classID).
		UpdateColumn("current_capacity", gorm.Expr("current_capacity + 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (l *capacityLedger) ReleaseSeats(ctx context.Context, classID string, n int) error {
	if n <= 0 {
		return nil
	}
	// 已软删除课程上的预约也可能需要释放座位
	return l.db.WithContext(ctx).
		Unscoped().
		Model(&model.GymClass{}).
		Where("class_id = ?", classID).
		UpdateColumn("current_capacity", gorm.Expr("GREATEST(current_capacity - ?, 0)", n)).Error
}
