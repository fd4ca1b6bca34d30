package probe

import (
	"context"
	"time"

	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"github.com/dushixiang/netpulse/internal/models"
)

// roundGrace 一轮探测在单目标超时之外允许的额外等待时间
const roundGrace = 2 * time.Second

// Evaluator 对整组目标执行一轮并发探测，并按归约规则得出聚合状态
type Evaluator struct {
	prober      Prober
	endpoints   []models.Endpoint
	timeout     time.Duration
	thresholdMs int64  // 慢响应阈值，成功但超过阈值的目标按异常计
	reduction   string // any/all/majority
	logger      *zap.Logger
}

// NewEvaluator 创建评估器
func NewEvaluator(prober Prober, endpoints []models.Endpoint, timeout time.Duration, thresholdMs int64, reduction string, logger *zap.Logger) *Evaluator {
	return &Evaluator{
		prober:      prober,
		endpoints:   endpoints,
		timeout:     timeout,
		thresholdMs: thresholdMs,
		reduction:   reduction,
		logger:      logger,
	}
}

// EvaluateRound 执行一轮探测。各目标并发探测互不影响，
// 整轮受超时上限约束，超过上限未返回的目标按失败处理。
func (e *Evaluator) EvaluateRound(ctx context.Context) models.RoundOutcome {
	roundCtx, cancel := context.WithTimeout(ctx, e.timeout+roundGrace)
	defer cancel()

	results := make([]models.ProbeResult, len(e.endpoints))

	var wg conc.WaitGroup
	for i, endpoint := range e.endpoints {
		wg.Go(func() {
			results[i] = e.prober.Probe(roundCtx, endpoint, e.timeout)
		})
	}
	wg.Wait()

	outcome := models.RoundOutcome{
		Timestamp: time.Now().UnixMilli(),
		Results:   results,
		Total:     len(results),
	}

	for _, r := range results {
		if e.isGood(r) {
			outcome.Good++
		} else if r.Success {
			e.logger.Debug("目标响应过慢，按异常计",
				zap.String("endpoint", r.Endpoint.Name()),
				zap.Int64("latency", r.Latency),
				zap.Int64("threshold", e.thresholdMs))
		}
	}

	outcome.Up = Reduce(e.reduction, outcome.Good, outcome.Total)
	return outcome
}

// isGood 目标是否判定为正常：探测成功且响应时间未超过慢阈值
func (e *Evaluator) isGood(r models.ProbeResult) bool {
	if !r.Success {
		return false
	}
	if e.thresholdMs > 0 && r.Latency > e.thresholdMs {
		return false
	}
	return true
}

// Reduce 按归约规则把正常目标数量折算为聚合状态。
// any: 任一目标正常即在线（默认，避免单个 DNS 抖动误报断网）
// all: 全部目标正常才算在线
// majority: 过半目标正常才算在线
func Reduce(rule string, good, total int) bool {
	switch rule {
	case "all":
		return total > 0 && good == total
	case "majority":
		return good*2 > total
	default: // any
		return good > 0
	}
}
