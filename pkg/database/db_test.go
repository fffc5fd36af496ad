package database

import (
	"strings"
	"testing"

	gormlogger "gorm.io/gorm/logger"
)

func TestGormLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want gormlogger.LogLevel
	}{
		{"debug", gormlogger.Info},
		{"info", gormlogger.Warn},
		{"warn", gormlogger.Warn},
		{"error", gormlogger.Error},
		{"", gormlogger.Warn},
	}
	for _, tt := range tests {
		if got := gormLogLevel(tt.in); got != tt.want {
			t.Errorf("gormLogLevel(%q): 期望 %v, 实际 %v", tt.in, tt.want, got)
		}
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("读取嵌入迁移目录失败: %v", err)
	}
	ups, downs := 0, 0
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs++
		}
	}
	if ups == 0 || ups != downs {
		t.Errorf("迁移文件不成对: up=%d, down=%d", ups, downs)
	}
}

func TestLatestMigrationVersion(t *testing.T) {
	got, err := latestMigrationVersion()
	if err != nil {
		t.Fatalf("解析迁移版本失败: %v", err)
	}
	if got != 3 {
		t.Errorf("期望最新版本 3, 实际 %d", got)
	}
	if got < seedClassesVersion {
		t.Errorf("初始课程迁移 %d 不应晚于最新版本 %d", seedClassesVersion, got)
	}

	seed, err := migrationsFS.ReadFile("migrations/000002_seed_classes.up.sql")
	if err != nil {
		t.Fatalf("初始课程迁移缺失: %v", err)
	}
	if !strings.Contains(string(seed), "INSERT INTO gym_classes") {
		t.Error("初始课程迁移应写入 gym_classes")
	}
}
