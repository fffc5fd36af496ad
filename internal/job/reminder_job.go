package job

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"ritmofit/backend/internal/repository"
	"ritmofit/backend/internal/service"
)

// reminderInterval 扫描周期，与 cron 表达式保持一致
const reminderInterval = 5 * time.Minute

// ReminderJob 课前提醒
// 只读取 active 预约并发送邮件，不修改预约状态与座位数（过期仍由读取触发）
type ReminderJob struct {
	repo     *repository.Repository
	notifier service.Notifier
	lead     time.Duration
	loc      *time.Location
	clock    service.Clock
	logger   *zap.Logger
}

// NewReminderJob 创建提醒任务
func NewReminderJob(
	repo *repository.Repository,
	notifier service.Notifier,
	lead time.Duration,
	loc *time.Location,
	clock service.Clock,
	logger *zap.Logger,
) *ReminderJob {
	if lead <= 0 {
		lead = time.Hour
	}
	return &ReminderJob{
		repo:     repo,
		notifier: notifier,
		lead:     lead,
		loc:      loc,
		clock:    clock,
		logger:   logger,
	}
}

// Run 提醒开始时间落在 [now+lead, now+lead+interval) 的场次，相邻两次扫描窗口不重叠
func (j *ReminderJob) Run(ctx context.Context) int {
	from := j.clock().Add(j.lead).Truncate(time.Minute)
	to := from.Add(reminderInterval)

	upcoming, err := j.repo.Reservation.ListActiveStartingBetween(ctx, from, to)
	if err != nil {
		j.logger.Error("查询待提醒预约失败", zap.Error(err))
		return 0
	}

	sent := 0
	for i := range upcoming {
		r := &upcoming[i]
		if r.User == nil || r.Class == nil {
			continue
		}
		j.notifier.ClassReminder(ctx, r.User.Email, r.Class, r.ClassDate.In(j.loc))
		sent++
	}

	if sent > 0 {
		j.logger.Info("课前提醒已发送", zap.Int("count", sent), zap.Time("window_start", from))
	}
	return sent
}

// NewScheduler 创建定时任务调度器并注册提醒任务（调用方负责 Start/Stop）
func NewScheduler(j *ReminderJob, logger *zap.Logger) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(j.loc))
	_, err := c.AddFunc("*/5 * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), reminderInterval)
		defer cancel()
		j.Run(ctx)
	})
	if err != nil {
		return nil, err
	}
	logger.Info("课前提醒任务已注册", zap.Duration("lead", j.lead))
	return c, nil
}
