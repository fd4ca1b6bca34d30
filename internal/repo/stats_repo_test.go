package repo

import (
	"testing"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/dushixiang/netpulse/internal/models"
)

func sampleStats() models.Statistics {
	return models.Statistics{
		MonitoringStartAt: 1000,
		LastUpdatedAt:     90_000,
		TotalRounds:       42,
		SuccessfulRounds:  40,
		Latency:           models.LatencySummary{Count: 40, Min: 8, Max: 120, Sum: 1600},
		Samples:           []int64{10, 20, 30},
		DowntimeIntervals: []models.DowntimeInterval{
			{ID: "a", StartAt: 5000, EndAt: 65_000},
			{ID: "b", StartAt: 80_000}, // 未关闭
		},
	}
}

func TestCommitLoadRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := NewStatsRepo(fs, "stats.json", zap.NewNop())

	want := sampleStats()
	if err := r.Commit(want); err != nil {
		t.Fatalf("Commit() 失败: %v", err)
	}

	got, ok, err := r.Load()
	if err != nil {
		t.Fatalf("Load() 失败: %v", err)
	}
	if !ok {
		t.Fatal("提交之后应该能读到数据")
	}

	if got.TotalRounds != want.TotalRounds || got.SuccessfulRounds != want.SuccessfulRounds {
		t.Errorf("计数不一致: %+v", got)
	}
	if got.Latency != want.Latency {
		t.Errorf("响应时间汇总不一致: %+v != %+v", got.Latency, want.Latency)
	}
	if len(got.Samples) != 3 || got.Samples[1] != 20 {
		t.Errorf("样本不一致: %v", got.Samples)
	}
	if len(got.DowntimeIntervals) != 2 {
		t.Fatalf("断网区间数量不一致: %d", len(got.DowntimeIntervals))
	}
	if !got.DowntimeIntervals[1].Open() {
		t.Error("未关闭的区间应该保持开放状态")
	}
}

func TestLoadAbsentFile(t *testing.T) {
	r := NewStatsRepo(afero.NewMemMapFs(), "stats.json", zap.NewNop())

	_, ok, err := r.Load()
	if err != nil {
		t.Fatalf("文件不存在不应该返回错误: %v", err)
	}
	if ok {
		t.Error("文件不存在时应该返回 ok=false")
	}
}

func TestLoadCorruptFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "stats.json", []byte("{broken"), 0644); err != nil {
		t.Fatalf("写入测试文件失败: %v", err)
	}

	r := NewStatsRepo(fs, "stats.json", zap.NewNop())
	_, ok, err := r.Load()
	if err == nil {
		t.Error("损坏的文件应该返回错误，由调用方降级处理")
	}
	if ok {
		t.Error("损坏的文件不应该返回 ok=true")
	}
}

func TestCommitReplacesAtomically(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := NewStatsRepo(fs, "stats.json", zap.NewNop())

	first := sampleStats()
	if err := r.Commit(first); err != nil {
		t.Fatalf("第一次 Commit() 失败: %v", err)
	}

	second := first
	second.TotalRounds = 100
	if err := r.Commit(second); err != nil {
		t.Fatalf("第二次 Commit() 失败: %v", err)
	}

	got, ok, err := r.Load()
	if err != nil || !ok {
		t.Fatalf("Load() 失败: ok=%v err=%v", ok, err)
	}
	if got.TotalRounds != 100 {
		t.Errorf("应该读到最新提交的数据，实际 TotalRounds=%d", got.TotalRounds)
	}

	// 临时文件不应该残留
	if exists, _ := afero.Exists(fs, "stats.json.tmp"); exists {
		t.Error("提交成功后临时文件应该被替换掉")
	}
}
