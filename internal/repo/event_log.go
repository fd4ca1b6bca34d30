package repo

import (
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"
)

// EventLog 追加写入的事件日志，一行一个事件。
// 写入是尽力而为：失败只记录警告，绝不中断监控循环。
type EventLog struct {
	mu     sync.Mutex
	w      io.WriteCloser
	logger *zap.Logger
}

// NewEventLog 创建事件日志，使用 lumberjack 进行日志滚动
func NewEventLog(path string, logger *zap.Logger) *EventLog {
	return &EventLog{
		w: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10, // MB
			MaxBackups: 3,
			MaxAge:     90, // 天
		},
		logger: logger,
	}
}

// newEventLogWriter 使用自定义 writer 创建事件日志（测试用）
func newEventLogWriter(w io.WriteCloser, logger *zap.Logger) *EventLog {
	return &EventLog{w: w, logger: logger}
}

// Append 追加一条事件，格式: 2006-01-02 15:04:05 - KIND: detail
func (l *EventLog) Append(t time.Time, kind, detail string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	line := fmt.Sprintf("%s - %s: %s\n", t.Format("2006-01-02 15:04:05"), kind, detail)
	if _, err := l.w.Write([]byte(line)); err != nil {
		l.logger.Warn("写入事件日志失败", zap.String("kind", kind), zap.Error(err))
	}
}

// Close 关闭事件日志
func (l *EventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Close()
}
