package service

import (
	"github.com/dushixiang/netpulse/internal/models"
)

// ConnectivityTracker 连通性状态机。
// 状态只有 unknown/up/down 三种，只依据最新一轮的探测证据迁移，
// 除断网区间记录外不保留任何抖动历史。
type ConnectivityTracker struct {
	state models.ConnectivityState
}

// NewConnectivityTracker 创建状态机，初始状态为 unknown
func NewConnectivityTracker() *ConnectivityTracker {
	return &ConnectivityTracker{state: models.StateUnknown}
}

// State 当前状态
func (t *ConnectivityTracker) State() models.ConnectivityState {
	return t.state
}

// Apply 应用一轮探测结果，返回新状态和迁移事件。
// up 轮在 unknown/down 状态下迁移到 up 并发出 connection_restored；
// down 轮在 unknown/up 状态下迁移到 down 并发出 connection_lost；
// 状态不变的轮次不发出事件。
func (t *ConnectivityTracker) Apply(outcome models.RoundOutcome) (models.ConnectivityState, models.TransitionEvent) {
	if outcome.Up {
		if t.state != models.StateUp {
			t.state = models.StateUp
			return t.state, models.EventConnectionRestored
		}
		return t.state, models.EventNone
	}

	if t.state != models.StateDown {
		t.state = models.StateDown
		return t.state, models.EventConnectionLost
	}
	return t.state, models.EventNone
}
