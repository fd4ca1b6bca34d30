package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// RoundScheduler 探测轮次调度器，按固定间隔触发探测任务。
// 使用 cron 的 @every 表达式保证节拍稳定，慢探测不会累积漂移；
// 上一轮未结束时跳过本次触发，保证轮次不会并发执行。
type RoundScheduler struct {
	cron    *cron.Cron
	entryID cron.EntryID
	logger  *zap.Logger
}

// NewRoundScheduler 创建调度器
func NewRoundScheduler(logger *zap.Logger) *RoundScheduler {
	return &RoundScheduler{
		cron: cron.New(
			cron.WithSeconds(), // 支持秒级调度
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		logger: logger,
	}
}

// Start 以指定间隔启动调度
func (s *RoundScheduler) Start(interval time.Duration, job func()) error {
	seconds := int(interval / time.Second)
	if seconds <= 0 {
		seconds = 60 // 默认 60 秒
	}

	spec := fmt.Sprintf("@every %ds", seconds)
	entryID, err := s.cron.AddFunc(spec, job)
	if err != nil {
		return fmt.Errorf("添加 cron 任务失败: %w", err)
	}
	s.entryID = entryID

	s.cron.Start()
	s.logger.Info("探测调度器已启动", zap.Int("intervalSeconds", seconds))
	return nil
}

// Stop 停止调度并等待进行中的任务结束
func (s *RoundScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("探测调度器已停止")
}

// NextRunTime 下一次触发时间，未启动时返回零值
func (s *RoundScheduler) NextRunTime() time.Time {
	return s.cron.Entry(s.entryID).Next
}
