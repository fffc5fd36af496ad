package repository

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	pkgerrors "ritmofit/backend/pkg/errors"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	User        UserRepository
	Class       GymClassRepository
	Reservation ReservationRepository
	Ledger      CapacityLedger
	Tx          Transactor

	db *gorm.DB
}

// Transactor 事务执行器
// fn 内只能使用 txRepo 访问数据，返回错误即回滚
type Transactor interface {
	WithinTx(ctx context.Context, fn func(txRepo *Repository) error) error
}

// NewRepository 创建 Repository 聚合
// txMaxRetries 为遇到序列化失败或死锁时整个事务的最大重试次数
func NewRepository(db *gorm.DB, txMaxRetries int, logger *zap.Logger) *Repository {
	repo := newRepository(db)
	repo.Tx = &gormTransactor{db: db, maxRetries: txMaxRetries, logger: logger}
	return repo
}

func newRepository(db *gorm.DB) *Repository {
	return &Repository{
		User:        NewUserRepo(db),
		Class:       NewGymClassRepo(db),
		Reservation: NewReservationRepo(db),
		Ledger:      NewCapacityLedger(db),
		db:          db,
	}
}

// BeginTx 手动开启事务（调用方负责 Commit/Rollback）
func (r *Repository) BeginTx(ctx context.Context) (*gorm.DB, error) {
	tx := r.db.WithContext(ctx).Begin()
	return tx, tx.Error
}

// WithTx 返回绑定到指定事务的 Repository
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	txRepo := newRepository(tx)
	txRepo.Tx = &gormTransactor{db: tx}
	return txRepo
}

// ── GORM 事务实现 ──

type gormTransactor struct {
	db         *gorm.DB
	maxRetries int
	logger     *zap.Logger
}

func (t *gormTransactor) WithinTx(ctx context.Context, fn func(txRepo *Repository) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			txRepo := newRepository(tx)
			// 嵌套调用走 SAVEPOINT，不再重试
			txRepo.Tx = &gormTransactor{db: tx}
			return fn(txRepo)
		})
		if err == nil || !pkgerrors.IsRetryable(err) || attempt >= t.maxRetries {
			return err
		}

		if t.logger != nil {
			t.logger.Warn("事务冲突，准备重试",
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 20 * time.Millisecond):
		}
	}
}
