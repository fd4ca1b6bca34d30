package service

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/dushixiang/netpulse/internal/config"
	"github.com/dushixiang/netpulse/internal/models"
	"github.com/dushixiang/netpulse/internal/repo"
)

// scriptedEvaluator 按预设脚本依次返回轮次结果，脚本耗尽后恒为 up
type scriptedEvaluator struct {
	script []bool
	i      int
}

func (e *scriptedEvaluator) EvaluateRound(ctx context.Context) models.RoundOutcome {
	up := true
	if e.i < len(e.script) {
		up = e.script[e.i]
	}
	e.i++

	out := models.RoundOutcome{
		Timestamp: int64(e.i) * 30_000, // 模拟 30 秒间隔
		Up:        up,
		Total:     1,
	}
	if up {
		out.Good = 1
		out.Results = []models.ProbeResult{{Success: true, Latency: 20}}
	} else {
		out.Results = []models.ProbeResult{{Success: false, Error: "unreachable"}}
	}
	return out
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Endpoints:       config.DefaultEndpoints(),
		IntervalSeconds: 1,
		TimeoutSeconds:  1,
		PingCount:       1,
		ThresholdMs:     1000,
		Reduction:       "any",
	}
}

func newTestMonitor(t *testing.T, evaluator RoundEvaluator) (*MonitorService, *repo.StatsRepo, *bytes.Buffer) {
	t.Helper()

	fs := afero.NewMemMapFs()
	statsRepo := repo.NewStatsRepo(fs, "stats.json", zap.NewNop())
	eventLog := repo.NewEventLog(filepath.Join(t.TempDir(), "events.log"), zap.NewNop())

	out := &bytes.Buffer{}
	m := NewMonitorService(zap.NewNop(), testConfig(t), evaluator, statsRepo, eventLog, nil, out)
	return m, statsRepo, out
}

func TestPipelineDownThenUp(t *testing.T) {
	// up, down, down, up：应该恰好产生一个约 2 个间隔长的断网区间
	m, statsRepo, _ := newTestMonitor(t, &scriptedEvaluator{script: []bool{true, false, false, true}})

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		m.runRound(ctx)
	}

	stats := m.Snapshot()
	if stats.TotalRounds != 4 {
		t.Errorf("总轮数应该是 4，实际 %d", stats.TotalRounds)
	}
	if stats.SuccessfulRounds != 2 {
		t.Errorf("成功轮数应该是 2，实际 %d", stats.SuccessfulRounds)
	}
	if len(stats.DowntimeIntervals) != 1 {
		t.Fatalf("应该恰好有 1 个断网区间，实际 %d 个", len(stats.DowntimeIntervals))
	}

	d := stats.DowntimeIntervals[0]
	if d.Open() {
		t.Fatal("恢复之后区间应该已关闭")
	}
	if got := d.Duration(time.Now()); got != 60*time.Second {
		t.Errorf("区间时长应该约为 2 个间隔(60s)，实际 %v", got)
	}
	if m.State() != models.StateUp {
		t.Errorf("最终状态应该是 up，实际 %s", m.State())
	}

	// 状态迁移时应该已经提交过统计数据
	persisted, ok, err := statsRepo.Load()
	if err != nil || !ok {
		t.Fatalf("迁移后应该能读到已提交的统计数据: ok=%v err=%v", ok, err)
	}
	if persisted.TotalRounds != 4 {
		t.Errorf("已提交的轮数应该是 4，实际 %d", persisted.TotalRounds)
	}
}

func TestAlwaysUpScenario(t *testing.T) {
	// 任一目标始终正常：永远不会出现断网区间，在线率保持 100%
	m, _, _ := newTestMonitor(t, &scriptedEvaluator{})

	ctx := context.Background()
	for i := 0; i < 20; i++ {
		m.runRound(ctx)
	}

	stats := m.Snapshot()
	if len(stats.DowntimeIntervals) != 0 {
		t.Errorf("不应该出现断网区间，实际 %d 个", len(stats.DowntimeIntervals))
	}
	if got := stats.UptimePercentage(); got != 100 {
		t.Errorf("在线率应该是 100，实际 %v", got)
	}
}

func TestRunShutdownIdempotent(t *testing.T) {
	m, statsRepo, out := newTestMonitor(t, &scriptedEvaluator{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- m.Run(ctx)
	}()

	time.Sleep(200 * time.Millisecond)

	// 连续两次取消，收尾流程只能执行一次
	cancel()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("正常取消不应该返回错误: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run() 没有在取消后退出")
	}

	// 再次触发收尾，依然只有一份摘要
	m.shutdown()

	if got := strings.Count(out.String(), "网络连通性监控统计"); got != 1 {
		t.Errorf("最终摘要应该只输出一次，实际 %d 次", got)
	}

	if _, ok, err := statsRepo.Load(); err != nil || !ok {
		t.Errorf("退出时应该提交最终统计数据: ok=%v err=%v", ok, err)
	}
}

func TestAbandonRoundAfterCancel(t *testing.T) {
	// ctx 已取消时放弃本轮，不产生任何统计变化
	m, _, _ := newTestMonitor(t, &scriptedEvaluator{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.runRound(ctx)

	if got := m.Snapshot().TotalRounds; got != 0 {
		t.Errorf("已取消时不应该计入轮次，实际 %d", got)
	}
}
