package repo

import (
	"encoding/binary"
	"encoding/json"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/dushixiang/netpulse/internal/models"
)

var bucketRounds = []byte("rounds")

// maxHistoryEntries 历史轮次保留上限，超出时从最旧的开始清理
const maxHistoryEntries = 50000

// RoundRecord 单轮探测的历史记录（压缩形态，不含逐目标明细）
type RoundRecord struct {
	Timestamp int64 `json:"timestamp"` // 时间戳（毫秒）
	Up        bool  `json:"up"`
	Good      int   `json:"good"`
	Total     int   `json:"total"`
	AvgMs     int64 `json:"avgMs"` // 正常目标的平均响应时间(毫秒)，无正常目标时为 0
}

// HistoryRepo 轮次历史仓库，基于 bbolt 按时间戳顺序存储。
// 与事件日志一样是尽力而为的辅助数据，写入失败不影响监控。
type HistoryRepo struct {
	db     *bbolt.DB
	logger *zap.Logger
}

// OpenHistoryRepo 打开（必要时创建）历史数据库
func OpenHistoryRepo(path string, logger *zap.Logger) (*HistoryRepo, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRounds)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &HistoryRepo{db: db, logger: logger}, nil
}

// AppendRound 追加一轮探测记录，按需清理最旧的数据
func (r *HistoryRepo) AppendRound(outcome models.RoundOutcome) {
	record := RoundRecord{
		Timestamp: outcome.Timestamp,
		Up:        outcome.Up,
		Good:      outcome.Good,
		Total:     outcome.Total,
	}

	var sum, count int64
	for _, res := range outcome.Results {
		if res.Success && res.Latency > 0 {
			sum += res.Latency
			count++
		}
	}
	if count > 0 {
		record.AvgMs = sum / count
	}

	err := r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRounds)

		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, uint64(record.Timestamp))

		value, err := json.Marshal(record)
		if err != nil {
			return err
		}
		if err := b.Put(key, value); err != nil {
			return err
		}

		// 超出保留上限时从最旧的记录开始清理
		c := b.Cursor()
		for excess := b.Stats().KeyN + 1 - maxHistoryEntries; excess > 0; excess-- {
			k, _ := c.First()
			if k == nil {
				break
			}
			if err := c.Delete(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		r.logger.Warn("写入历史记录失败", zap.Error(err))
	}
}

// List 按时间倒序返回最近的 limit 条记录
func (r *HistoryRepo) List(limit int) ([]RoundRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	records := make([]RoundRecord, 0, limit)
	err := r.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketRounds).Cursor()
		for k, v := c.Last(); k != nil && len(records) < limit; k, v = c.Prev() {
			var record RoundRecord
			if err := json.Unmarshal(v, &record); err != nil {
				continue
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Close 关闭历史数据库
func (r *HistoryRepo) Close() error {
	return r.db.Close()
}
