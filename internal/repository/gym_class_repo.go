package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ritmofit/backend/internal/model"
	pkgerrors "ritmofit/backend/pkg/errors"
)

// ClassFilter 课程筛选条件，零值表示不过滤
type ClassFilter struct {
	Location   string         // 场馆名称，精确匹配
	Discipline string         // 项目，大小写不敏感的子串匹配
	Weekday    *model.Weekday // 星期（读取后按规范化枚举比较）
}

// GymClassRepository 课程模板数据访问接口
type GymClassRepository interface {
	Create(ctx context.Context, class *model.GymClass) error
	GetByID(ctx context.Context, id string) (*model.GymClass, error)
	GetByIDForUpdate(ctx context.Context, id string) (*model.GymClass, error)
	List(ctx context.Context, filter ClassFilter) ([]model.GymClass, error)
	Update(ctx context.Context, class *model.GymClass) error
	Delete(ctx context.Context, id string, deletedBy string) error
	DistinctLocations(ctx context.Context) ([]string, error)
	DistinctDisciplines(ctx context.Context) ([]string, error)
}

// gymClassRepo GymClassRepository 的 GORM 实现
type gymClassRepo struct {
	db *gorm.DB
}

// NewGymClassRepo 创建 GymClassRepository 实例
func NewGymClassRepo(db *gorm.DB) GymClassRepository {
	return &gymClassRepo{db: db}
}

func (r *gymClassRepo) Create(ctx context.Context, class *model.GymClass) error {
	return r.db.WithContext(ctx).Create(class).Error
}

func (r *gymClassRepo) GetByID(ctx context.Context, id string) (*model.GymClass, error) {
	var class model.GymClass
	err := r.db.WithContext(ctx).
		Where("class_id = ?", id).
		First(&class).Error
	if err != nil {
		return nil, err
	}
	return &class, nil
}

// GetByIDForUpdate 行锁读取（SELECT ... FOR UPDATE），必须在事务内调用
func (r *gymClassRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.GymClass, error) {
	var class model.GymClass
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("class_id = ?", id).
		First(&class).Error
	if err != nil {
		return nil, err
	}
	return &class, nil
}

func (r *gymClassRepo) List(ctx context.Context, filter ClassFilter) ([]model.GymClass, error) {
	db := r.db.WithContext(ctx).Model(&model.GymClass{})
	if filter.Location != "" {
		db = db.Where("location_name = ?", filter.Location)
	}
	if d := strings.TrimSpace(filter.Discipline); d != "" {
		db = db.Where("discipline ILIKE ?", "%"+escapeLike(d)+"%")
	}

	var classes []model.GymClass
	if err := db.Order("name ASC").Find(&classes).Error; err != nil {
		return nil, err
	}

	if filter.Weekday == nil {
		return classes, nil
	}
	matched := classes[:0]
	for _, c := range classes {
		if c.Schedule.Weekday == *filter.Weekday {
			matched = append(matched, c)
		}
	}
	return matched, nil
}

// Update 管理端编辑，基于 version 的乐观锁
// 不修改 current_capacity，座位数只能经由 CapacityLedger 变更
func (r *gymClassRepo) Update(ctx context.Context, class *model.GymClass) error {
	oldVersion := class.Version
	result := r.db.WithContext(ctx).
		Model(&model.GymClass{}).
		Where("class_id = ? AND version = ?", class.ClassID, oldVersion).
		Updates(map[string]interface{}{
			"name":             class.Name,
			"discipline":       class.Discipline,
			"description":      class.Description,
			"max_capacity":     class.MaxCapacity,
			"weekday":          class.Schedule.Weekday,
			"start_time":       class.Schedule.StartTime,
			"end_time":         class.Schedule.EndTime,
			"location_name":    class.Location.Name,
			"professor":        class.Professor,
			"duration_minutes": class.DurationMinutes,
			"updated_by":       class.UpdatedBy,
			"version":          oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	class.Version = oldVersion + 1
	return nil
}

func (r *gymClassRepo) Delete(ctx context.Context, id string, deletedBy string) error {
	return r.db.WithContext(ctx).
		Model(&model.GymClass{}).
		Where("class_id = ?", id).
		Updates(map[string]interface{}{
			"deleted_by": deletedBy,
			"deleted_at": gorm.Expr("NOW()"),
		}).Error
}

func (r *gymClassRepo) DistinctLocations(ctx context.Context) ([]string, error) {
	var values []string
	err := r.db.WithContext(ctx).
		Model(&model.GymClass{}).
		Distinct("location_name").
		Order("location_name ASC").
		Pluck("location_name", &values).Error
	return values, err
}

func (r *gymClassRepo) DistinctDisciplines(ctx context.Context) ([]string, error) {
	var values []string
	err := r.db.WithContext(ctx).
		Model(&model.GymClass{}).
		Where("discipline <> ''").
		Distinct("discipline").
		Order("discipline ASC").
		Pluck("discipline", &values).Error
	return values, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike 转义 LIKE 通配符
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
