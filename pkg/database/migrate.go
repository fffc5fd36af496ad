package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// 初始课程数据所在的迁移版本
const seedClassesVersion = 2

// RunMigrations 执行数据库迁移，然后核对结果：
// 数据库版本不能落后于嵌入的最新迁移，初始课程数据已写入时记录可预约课程数
func RunMigrations(db *sql.DB, logger *zap.Logger) error {
	latest, err := latestMigrationVersion()
	if err != nil {
		return err
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("加载迁移文件失败: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("创建迁移驱动失败: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("初始化迁移实例失败: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("执行迁移失败: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("读取迁移版本失败: %w", err)
	}
	if dirty {
		return fmt.Errorf("数据库迁移处于 dirty 状态 (version=%d)，需要人工修复", version)
	}
	if version < latest {
		return fmt.Errorf("数据库版本 %d 落后于最新迁移 %d", version, latest)
	}
	if version > latest {
		// 数据库由更新的版本迁移过，本进程的模型可能缺少新列
		logger.Warn("数据库版本高于本程序携带的迁移",
			zap.Uint("db_version", version),
			zap.Uint("latest", latest),
		)
	}

	fields := []zap.Field{zap.Uint("version", version)}
	if version >= seedClassesVersion {
		var classes int64
		if err := db.QueryRow("SELECT count(*) FROM gym_classes WHERE deleted_at IS NULL").Scan(&classes); err != nil {
			return fmt.Errorf("统计课程失败: %w", err)
		}
		if classes == 0 {
			logger.Warn("课程表为空，会员暂时无法预约")
		}
		fields = append(fields, zap.Int64("active_classes", classes))
	}
	logger.Info("数据库迁移完成", fields...)

	return nil
}

// latestMigrationVersion 返回嵌入迁移文件中的最大版本号
// 文件名格式 000003_otp_attempts.up.sql
func latestMigrationVersion() (uint, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return 0, fmt.Errorf("读取迁移目录失败: %w", err)
	}
	var latest uint
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		prefix, _, ok := strings.Cut(name, "_")
		if !ok {
			return 0, fmt.Errorf("迁移文件名无效: %s", name)
		}
		v, err := strconv.ParseUint(prefix, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("迁移文件名无效: %s", name)
		}
		if uint(v) > latest {
			latest = uint(v)
		}
	}
	if latest == 0 {
		return 0, errors.New("没有可执行的迁移文件")
	}
	return latest, nil
}
