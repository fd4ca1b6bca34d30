package probe

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dushixiang/netpulse/internal/models"
)

// fakeProber 按地址返回预设结果的假探测器
type fakeProber struct {
	results map[string]models.ProbeResult
}

func (p *fakeProber) Probe(ctx context.Context, endpoint models.Endpoint, timeout time.Duration) models.ProbeResult {
	r := p.results[endpoint.Address]
	r.Endpoint = endpoint
	r.CheckedAt = time.Now().UnixMilli()
	return r
}

// blockingProber 阻塞到 ctx 取消为止的假探测器，模拟卡死的底层探测
type blockingProber struct{}

func (p *blockingProber) Probe(ctx context.Context, endpoint models.Endpoint, timeout time.Duration) models.ProbeResult {
	<-ctx.Done()
	return models.ProbeResult{
		Endpoint:  endpoint,
		Success:   false,
		Error:     "probe timed out",
		CheckedAt: time.Now().UnixMilli(),
	}
}

func endpoints(addrs ...string) []models.Endpoint {
	eps := make([]models.Endpoint, 0, len(addrs))
	for _, addr := range addrs {
		eps = append(eps, models.Endpoint{Address: addr, Type: "icmp"})
	}
	return eps
}

func TestEvaluateRoundAnyOf(t *testing.T) {
	// 只要有一个目标正常，聚合状态就应该是 up
	prober := &fakeProber{results: map[string]models.ProbeResult{
		"8.8.8.8": {Success: true, Latency: 20},
		"1.1.1.1": {Success: false, Error: "unreachable"},
		"9.9.9.9": {Success: false, Error: "timeout"},
	}}

	e := NewEvaluator(prober, endpoints("8.8.8.8", "1.1.1.1", "9.9.9.9"), time.Second, 1000, "any", zap.NewNop())
	outcome := e.EvaluateRound(context.Background())

	if !outcome.Up {
		t.Error("存在正常目标时聚合状态应该是 up")
	}
	if outcome.Good != 1 || outcome.Total != 3 {
		t.Errorf("应该是 1/3 正常，实际 %d/%d", outcome.Good, outcome.Total)
	}
	if len(outcome.Results) != 3 {
		t.Errorf("结果数量应该是 3，实际 %d", len(outcome.Results))
	}
	// 结果顺序应该与目标顺序一致
	if outcome.Results[0].Endpoint.Address != "8.8.8.8" {
		t.Errorf("结果顺序与目标顺序不一致: %s", outcome.Results[0].Endpoint.Address)
	}
}

func TestEvaluateRoundAllDown(t *testing.T) {
	prober := &fakeProber{results: map[string]models.ProbeResult{
		"8.8.8.8": {Success: false, Error: "unreachable"},
		"1.1.1.1": {Success: false, Error: "unreachable"},
	}}

	e := NewEvaluator(prober, endpoints("8.8.8.8", "1.1.1.1"), time.Second, 1000, "any", zap.NewNop())
	outcome := e.EvaluateRound(context.Background())

	if outcome.Up {
		t.Error("全部目标异常时聚合状态应该是 down")
	}
	if outcome.Good != 0 {
		t.Errorf("正常目标数量应该是 0，实际 %d", outcome.Good)
	}
}

func TestEvaluateRoundSlowCountsAsFailed(t *testing.T) {
	// 成功但超过慢阈值的目标按异常计
	prober := &fakeProber{results: map[string]models.ProbeResult{
		"8.8.8.8": {Success: true, Latency: 2500},
	}}

	e := NewEvaluator(prober, endpoints("8.8.8.8"), time.Second, 1000, "any", zap.NewNop())
	outcome := e.EvaluateRound(context.Background())

	if outcome.Up {
		t.Error("唯一目标响应过慢时聚合状态应该是 down")
	}
	if outcome.Good != 0 {
		t.Errorf("正常目标数量应该是 0，实际 %d", outcome.Good)
	}
}

func TestEvaluateRoundCeiling(t *testing.T) {
	// 卡死的探测必须被整轮超时上限兜底，按失败记录而不是无限等待
	e := NewEvaluator(&blockingProber{}, endpoints("8.8.8.8"), 100*time.Millisecond, 1000, "any", zap.NewNop())

	start := time.Now()
	outcome := e.EvaluateRound(context.Background())
	elapsed := time.Since(start)

	if outcome.Up {
		t.Error("卡死的探测应该按失败处理")
	}
	if elapsed > 100*time.Millisecond+roundGrace+time.Second {
		t.Errorf("整轮耗时 %v 超过了超时上限", elapsed)
	}
}

func TestReduce(t *testing.T) {
	tests := []struct {
		name  string
		rule  string
		good  int
		total int
		want  bool
	}{
		{"any规则-有正常目标", "any", 1, 3, true},
		{"any规则-无正常目标", "any", 0, 3, false},
		{"all规则-全部正常", "all", 3, 3, true},
		{"all规则-部分正常", "all", 2, 3, false},
		{"majority规则-过半", "majority", 2, 3, true},
		{"majority规则-恰好一半", "majority", 2, 4, false},
		{"majority规则-不足半数", "majority", 1, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Reduce(tt.rule, tt.good, tt.total); got != tt.want {
				t.Errorf("Reduce(%s, %d, %d) = %v, 期望 %v", tt.rule, tt.good, tt.total, got, tt.want)
			}
		})
	}
}
