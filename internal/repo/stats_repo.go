package repo

import (
	"encoding/json"
	"os"
	"time"

	"github.com/jpillora/backoff"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/dushixiang/netpulse/internal/models"
)

// commitAttempts 提交统计数据的最大尝试次数，避免卡死在异常的文件系统上
const commitAttempts = 3

// StatsRepo 统计数据仓库。采用临时文件加原子替换的方式提交，
// 写入中途被打断不会破坏上一次已提交的数据。
type StatsRepo struct {
	fs     afero.Fs
	path   string
	logger *zap.Logger
}

// NewStatsRepo 创建统计数据仓库
func NewStatsRepo(fs afero.Fs, path string, logger *zap.Logger) *StatsRepo {
	return &StatsRepo{
		fs:     fs,
		path:   path,
		logger: logger,
	}
}

// Commit 提交一份完整的统计数据快照，带有限次退避重试
func (r *StatsRepo) Commit(stats models.Statistics) error {
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}

	b := &backoff.Backoff{
		Min:    100 * time.Millisecond,
		Max:    2 * time.Second,
		Factor: 2,
	}

	var lastErr error
	for i := 0; i < commitAttempts; i++ {
		if i > 0 {
			time.Sleep(b.Duration())
		}
		if lastErr = r.writeOnce(data); lastErr == nil {
			return nil
		}
		r.logger.Warn("提交统计数据失败，准备重试",
			zap.Int("attempt", i+1),
			zap.Error(lastErr))
	}
	return lastErr
}

// writeOnce 写临时文件并原子替换已提交的文件
func (r *StatsRepo) writeOnce(data []byte) error {
	tmp := r.path + ".tmp"

	f, err := r.fs.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	return r.fs.Rename(tmp, r.path)
}

// Load 读取上一次提交的统计数据。
// 文件不存在时返回 ok=false 且无错误；文件存在但无法解析时返回错误，
// 由调用方决定是否降级为全新统计。
func (r *StatsRepo) Load() (models.Statistics, bool, error) {
	var stats models.Statistics

	data, err := afero.ReadFile(r.fs, r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return stats, false, nil
		}
		return stats, false, err
	}

	if err := json.Unmarshal(data, &stats); err != nil {
		return models.Statistics{}, false, err
	}
	return stats, true, nil
}
