package models

import (
	"sort"
	"time"
)

// DowntimeInterval 一段连续的断网区间，EndAt 为 0 表示仍在进行中
type DowntimeInterval struct {
	ID      string `json:"id"`
	StartAt int64  `json:"startAt"` // 开始时间戳（毫秒）
	EndAt   int64  `json:"endAt"`   // 结束时间戳（毫秒），0 表示未结束
}

// Open 区间是否仍未结束
func (d DowntimeInterval) Open() bool {
	return d.EndAt == 0
}

// Duration 区间时长，进行中的区间按 now 计算
func (d DowntimeInterval) Duration(now time.Time) time.Duration {
	end := d.EndAt
	if d.Open() {
		end = now.UnixMilli()
	}
	return time.Duration(end-d.StartAt) * time.Millisecond
}

// LatencySummary 响应时间的运行汇总，保证 min/max/avg 为全生命周期精确值
type LatencySummary struct {
	Count int64 `json:"count"`
	Min   int64 `json:"min"` // 毫秒
	Max   int64 `json:"max"` // 毫秒
	Sum   int64 `json:"sum"` // 毫秒
}

// Observe 纳入一个响应时间样本
func (l *LatencySummary) Observe(latency int64) {
	if l.Count == 0 || latency < l.Min {
		l.Min = latency
	}
	if latency > l.Max {
		l.Max = latency
	}
	l.Sum += latency
	l.Count++
}

// Avg 平均响应时间(毫秒)，无样本时为 0
func (l LatencySummary) Avg() float64 {
	if l.Count == 0 {
		return 0
	}
	return float64(l.Sum) / float64(l.Count)
}

// Statistics 跨进程重启累计的监控统计数据，由 StatsService 独占持有
type Statistics struct {
	MonitoringStartAt int64              `json:"monitoringStartAt"` // 首次开始监控的时间戳（毫秒）
	LastUpdatedAt     int64              `json:"lastUpdatedAt"`     // 最后一次更新的时间戳（毫秒）
	TotalRounds       int64              `json:"totalRounds"`       // 总探测轮数
	SuccessfulRounds  int64              `json:"successfulRounds"`  // 聚合状态为 up 的轮数
	Latency           LatencySummary     `json:"latency"`
	Samples           []int64            `json:"samples"` // 最近的响应时间样本（有界窗口，用于计算中位数）
	DowntimeIntervals []DowntimeInterval `json:"downtimeIntervals"`
}

// UptimePercentage 在线率，无数据时按 100 处理
func (s Statistics) UptimePercentage() float64 {
	if s.TotalRounds == 0 {
		return 100
	}
	return float64(s.SuccessfulRounds) / float64(s.TotalRounds) * 100
}

// MedianLatency 最近样本窗口内的中位响应时间(毫秒)
func (s Statistics) MedianLatency() float64 {
	n := len(s.Samples)
	if n == 0 {
		return 0
	}
	sorted := make([]int64, n)
	copy(sorted, s.Samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	if n%2 == 1 {
		return float64(sorted[n/2])
	}
	return float64(sorted[n/2-1]+sorted[n/2]) / 2
}

// OpenInterval 返回当前未结束的断网区间，没有时返回 nil
func (s *Statistics) OpenInterval() *DowntimeInterval {
	if n := len(s.DowntimeIntervals); n > 0 && s.DowntimeIntervals[n-1].Open() {
		return &s.DowntimeIntervals[n-1]
	}
	return nil
}

// TotalDowntime 所有断网区间的累计时长，进行中的区间按 now 计算
func (s Statistics) TotalDowntime(now time.Time) time.Duration {
	var total time.Duration
	for _, d := range s.DowntimeIntervals {
		total += d.Duration(now)
	}
	return total
}

// LongestDowntime 最长的一次断网时长
func (s Statistics) LongestDowntime(now time.Time) time.Duration {
	var longest time.Duration
	for _, d := range s.DowntimeIntervals {
		if dur := d.Duration(now); dur > longest {
			longest = dur
		}
	}
	return longest
}

// Clone 深拷贝，快照读取时使用，避免与后续更新竞争
func (s Statistics) Clone() Statistics {
	out := s
	out.Samples = make([]int64, len(s.Samples))
	copy(out.Samples, s.Samples)
	out.DowntimeIntervals = make([]DowntimeInterval, len(s.DowntimeIntervals))
	copy(out.DowntimeIntervals, s.DowntimeIntervals)
	return out
}

// Merge 将历史统计并入当前统计：计数相加，区间顺序追加
func (s *Statistics) Merge(prior Statistics) {
	if prior.MonitoringStartAt != 0 &&
		(s.MonitoringStartAt == 0 || prior.MonitoringStartAt < s.MonitoringStartAt) {
		s.MonitoringStartAt = prior.MonitoringStartAt
	}
	if prior.LastUpdatedAt > s.LastUpdatedAt {
		s.LastUpdatedAt = prior.LastUpdatedAt
	}
	s.TotalRounds += prior.TotalRounds
	s.SuccessfulRounds += prior.SuccessfulRounds

	merged := prior.Latency
	if s.Latency.Count > 0 {
		if merged.Count == 0 || s.Latency.Min < merged.Min {
			merged.Min = s.Latency.Min
		}
		if s.Latency.Max > merged.Max {
			merged.Max = s.Latency.Max
		}
		merged.Sum += s.Latency.Sum
		merged.Count += s.Latency.Count
	}
	s.Latency = merged

	s.Samples = append(append([]int64{}, prior.Samples...), s.Samples...)
	s.DowntimeIntervals = append(append([]DowntimeInterval{}, prior.DowntimeIntervals...), s.DowntimeIntervals...)
}
