package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dushixiang/netpulse/internal/config"
	"github.com/dushixiang/netpulse/internal/models"
	"github.com/dushixiang/netpulse/internal/repo"
	"github.com/dushixiang/netpulse/internal/scheduler"
)

// commitEveryRounds 每隔多少轮周期性提交一次统计数据
const commitEveryRounds = 10

// RoundEvaluator 执行一轮探测（接口化便于测试注入假探测器）
type RoundEvaluator interface {
	EvaluateRound(ctx context.Context) models.RoundOutcome
}

// MonitorService 监控主服务，驱动 探测→状态机→统计→持久化 的完整流水线。
// 轮次之间严格串行，statsService 的修改无需加锁竞争。
type MonitorService struct {
	logger    *zap.Logger
	cfg       *config.Config
	evaluator RoundEvaluator
	tracker   *ConnectivityTracker
	stats     *StatsService
	statsRepo *repo.StatsRepo
	eventLog  *repo.EventLog
	history   *repo.HistoryRepo // 可选，打开失败时为 nil
	sched     *scheduler.RoundScheduler
	out       io.Writer // 最终统计摘要的输出位置

	stopOnce sync.Once
}

// NewMonitorService 创建监控主服务
func NewMonitorService(
	logger *zap.Logger,
	cfg *config.Config,
	evaluator RoundEvaluator,
	statsRepo *repo.StatsRepo,
	eventLog *repo.EventLog,
	history *repo.HistoryRepo,
	out io.Writer,
) *MonitorService {
	return &MonitorService{
		logger:    logger,
		cfg:       cfg,
		evaluator: evaluator,
		tracker:   NewConnectivityTracker(),
		stats:     NewStatsService(logger),
		statsRepo: statsRepo,
		eventLog:  eventLog,
		history:   history,
		sched:     scheduler.NewRoundScheduler(logger),
		out:       out,
	}
}

// Run 启动监控循环，阻塞直到 ctx 被取消。
// 取消后执行一次完整的收尾：停止调度、提交统计、输出摘要。
// 正常取消不是错误，返回 nil。
func (s *MonitorService) Run(ctx context.Context) error {
	// 载入上一次运行的统计数据，损坏或缺失时降级为全新统计
	prior, ok, err := s.statsRepo.Load()
	if err != nil {
		s.logger.Warn("读取历史统计数据失败，使用全新统计", zap.Error(err))
	} else if ok {
		s.stats.Restore(prior)
		s.logger.Info("历史统计数据已载入",
			zap.Int64("totalRounds", prior.TotalRounds),
			zap.Int("downtimeIntervals", len(prior.DowntimeIntervals)))
	}

	s.eventLog.Append(time.Now(), "START",
		fmt.Sprintf("监控启动, %d 个目标, 间隔 %d 秒", len(s.cfg.Endpoints), s.cfg.IntervalSeconds))
	s.logger.Info("监控已启动",
		zap.Int("endpoints", len(s.cfg.Endpoints)),
		zap.Int("intervalSeconds", s.cfg.IntervalSeconds),
		zap.String("reduction", s.cfg.Reduction))

	// 立即执行首轮，之后按固定间隔调度
	s.runRound(ctx)

	if err := s.sched.Start(s.cfg.GetInterval(), func() {
		s.runRound(ctx)
	}); err != nil {
		s.shutdown()
		return err
	}

	<-ctx.Done()
	s.shutdown()
	return nil
}

// Snapshot 当前统计数据快照
func (s *MonitorService) Snapshot() models.Statistics {
	return s.stats.Snapshot()
}

// Config 当前生效的配置
func (s *MonitorService) Config() *config.Config {
	return s.cfg
}

// State 当前连通性状态
func (s *MonitorService) State() models.ConnectivityState {
	return s.tracker.State()
}

// runRound 执行一轮完整的流水线。ctx 已取消时直接放弃本轮，
// 未完成的轮次不会污染任何已提交的数据。
func (s *MonitorService) runRound(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	outcome := s.evaluator.EvaluateRound(ctx)
	if ctx.Err() != nil {
		return
	}

	state, event := s.tracker.Apply(outcome)
	s.stats.Update(outcome, event)

	s.logger.Debug("探测轮次完成",
		zap.Int("good", outcome.Good),
		zap.Int("total", outcome.Total),
		zap.String("state", string(state)))

	switch event {
	case models.EventConnectionLost:
		detail := fmt.Sprintf("网络断开 - 正常目标 %d/%d%s", outcome.Good, outcome.Total, failedDetail(outcome))
		s.eventLog.Append(time.UnixMilli(outcome.Timestamp), "DOWN", detail)
		s.logger.Warn("网络断开", zap.Int("good", outcome.Good), zap.Int("total", outcome.Total))
		s.commit()
	case models.EventConnectionRestored:
		detail := fmt.Sprintf("网络恢复 - 正常目标 %d/%d%s", outcome.Good, outcome.Total, downtimeDetail(s.stats.Snapshot()))
		s.eventLog.Append(time.UnixMilli(outcome.Timestamp), "UP", detail)
		s.logger.Info("网络恢复", zap.Int("good", outcome.Good), zap.Int("total", outcome.Total))
		s.commit()
	default:
		// 周期性提交，崩溃时最多丢失 commitEveryRounds 轮的数据
		if s.stats.Snapshot().TotalRounds%commitEveryRounds == 0 {
			s.commit()
		}
	}

	if s.history != nil {
		s.history.AppendRound(outcome)
	}
}

// commit 提交当前统计数据，失败只告警，监控继续以内存状态运行
func (s *MonitorService) commit() {
	if err := s.statsRepo.Commit(s.stats.Snapshot()); err != nil {
		s.logger.Warn("提交统计数据失败，继续以内存状态运行", zap.Error(err))
	}
}

// shutdown 收尾流程，保证即使多次触发也只执行一次
func (s *MonitorService) shutdown() {
	s.stopOnce.Do(func() {
		s.sched.Stop()

		// 未结束的断网区间保持开放状态持久化，摘要中按"进行中"展示
		snapshot := s.stats.Snapshot()
		if err := s.statsRepo.Commit(snapshot); err != nil {
			s.logger.Error("提交最终统计数据失败", zap.Error(err))
		}

		s.eventLog.Append(time.Now(), "STOP", "监控停止")
		_ = s.eventLog.Close()
		if s.history != nil {
			_ = s.history.Close()
		}

		WriteSummary(s.out, snapshot, time.Now())
		s.logger.Info("监控已停止")
	})
}

// failedDetail 拼接异常目标清单
func failedDetail(outcome models.RoundOutcome) string {
	var failed string
	for _, r := range outcome.Results {
		if !r.Success {
			if failed != "" {
				failed += ", "
			}
			failed += r.Endpoint.Name()
		}
	}
	if failed == "" {
		return ""
	}
	return ", 异常: " + failed
}

// downtimeDetail 拼接刚结束的断网区间时长
func downtimeDetail(stats models.Statistics) string {
	n := len(stats.DowntimeIntervals)
	if n == 0 {
		return ""
	}
	last := stats.DowntimeIntervals[n-1]
	if last.Open() {
		return ""
	}
	return fmt.Sprintf(", 断网时长 %s", last.Duration(time.Now()).Round(time.Second))
}
