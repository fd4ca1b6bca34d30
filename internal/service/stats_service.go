package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dushixiang/netpulse/internal/models"
)

// maxLatencySamples 中位数计算使用的样本窗口上限。
// 长期运行时中位数反映最近窗口内的情况，而 min/max/avg 始终是
// 全生命周期的精确值（由运行汇总维护），避免样本无限增长。
const maxLatencySamples = 1000

// StatsService 统计聚合器，是 Statistics 的唯一持有者和修改者。
// Update 每轮严格调用一次且在状态机之后，因此轮次计数与断网区间
// 记录天然一致；锁只用于保护快照读取。
type StatsService struct {
	mu     sync.RWMutex
	stats  models.Statistics
	logger *zap.Logger
}

// NewStatsService 创建统计聚合器
func NewStatsService(logger *zap.Logger) *StatsService {
	return &StatsService{
		stats: models.Statistics{
			MonitoringStartAt: time.Now().UnixMilli(),
			Samples:           []int64{},
			DowntimeIntervals: []models.DowntimeInterval{},
		},
		logger: logger,
	}
}

// Restore 将上一次运行持久化的统计数据并入当前统计：
// 计数相加、区间追加，绝不静默覆盖
func (s *StatsService) Restore(prior models.Statistics) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.Merge(prior)
	s.trimSamples()

	// 上次运行如有遗留的未关闭区间，进程早已退出，按上次更新时间关闭
	if open := s.stats.OpenInterval(); open != nil {
		end := prior.LastUpdatedAt
		if end <= open.StartAt {
			end = open.StartAt + 1
		}
		open.EndAt = end
		s.logger.Warn("发现上次运行遗留的未关闭断网区间，已按最后更新时间关闭",
			zap.String("intervalId", open.ID))
	}
}

// Update 纳入一轮探测结果，每轮在状态机处理之后严格调用一次
func (s *StatsService) Update(outcome models.RoundOutcome, event models.TransitionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.TotalRounds++
	if outcome.Up {
		s.stats.SuccessfulRounds++
	}
	s.stats.LastUpdatedAt = outcome.Timestamp

	// 只记录探测成功目标的响应时间样本
	for _, r := range outcome.Results {
		if r.Success && r.Latency > 0 {
			s.stats.Latency.Observe(r.Latency)
			s.stats.Samples = append(s.stats.Samples, r.Latency)
		}
	}
	s.trimSamples()

	switch event {
	case models.EventConnectionLost:
		s.stats.DowntimeIntervals = append(s.stats.DowntimeIntervals, models.DowntimeInterval{
			ID:      uuid.NewString(),
			StartAt: outcome.Timestamp,
		})
	case models.EventConnectionRestored:
		if open := s.stats.OpenInterval(); open != nil {
			end := outcome.Timestamp
			if end <= open.StartAt {
				end = open.StartAt + 1
			}
			open.EndAt = end
		}
	}
}

// Snapshot 返回当前统计数据的深拷贝，可安全序列化或打印
func (s *StatsService) Snapshot() models.Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats.Clone()
}

// trimSamples 裁剪样本窗口，只保留最近的 maxLatencySamples 个
func (s *StatsService) trimSamples() {
	if n := len(s.stats.Samples); n > maxLatencySamples {
		s.stats.Samples = append([]int64{}, s.stats.Samples[n-maxLatencySamples:]...)
	}
}
