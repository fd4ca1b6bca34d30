package probe

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	probing "github.com/prometheus-community/pro-bing"

	"github.com/dushixiang/netpulse/internal/models"
)

// Prober 对单个目标执行一次探测，必须在 timeout 附近返回，
// 所有失败原因（DNS、超时、权限）统一折叠为 Success=false。
type Prober interface {
	Probe(ctx context.Context, endpoint models.Endpoint, timeout time.Duration) models.ProbeResult
}

// NetProber 基于真实网络调用的探测器，按目标类型分发到 ICMP 或 TCP
type NetProber struct {
	pingCount int // ICMP 每次探测的发包数量
}

// NewNetProber 创建网络探测器
func NewNetProber(pingCount int) *NetProber {
	if pingCount <= 0 {
		pingCount = 3
	}
	return &NetProber{pingCount: pingCount}
}

func (p *NetProber) Probe(ctx context.Context, endpoint models.Endpoint, timeout time.Duration) models.ProbeResult {
	switch strings.ToLower(endpoint.Type) {
	case "tcp":
		return p.probeTCP(ctx, endpoint, timeout)
	case "icmp", "ping", "":
		return p.probeICMP(ctx, endpoint, timeout)
	default:
		return models.ProbeResult{
			Endpoint:  endpoint,
			Success:   false,
			Error:     fmt.Sprintf("unsupported probe type: %s", endpoint.Type),
			CheckedAt: time.Now().UnixMilli(),
		}
	}
}

// probeICMP 通过 ICMP Ping 探测目标
func (p *NetProber) probeICMP(ctx context.Context, endpoint models.Endpoint, timeout time.Duration) models.ProbeResult {
	result := models.ProbeResult{
		Endpoint:  endpoint,
		CheckedAt: time.Now().UnixMilli(),
	}

	pinger, err := probing.NewPinger(endpoint.Address)
	if err != nil {
		result.Error = fmt.Sprintf("create pinger failed: %v", err)
		return result
	}

	pinger.Count = p.pingCount
	pinger.Timeout = timeout
	pinger.Interval = 100 * time.Millisecond

	// 优先尝试非特权模式（UDP），失败时回退到特权模式（需要 root 或 CAP_NET_RAW）
	pinger.SetPrivileged(false)
	err = pinger.RunWithContext(ctx)
	if err != nil {
		pinger.SetPrivileged(true)
		err = pinger.RunWithContext(ctx)
		if err != nil {
			result.Error = fmt.Sprintf("ping failed: %v", err)
			return result
		}
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv > 0 {
		result.Success = true
		result.Latency = stats.AvgRtt.Milliseconds()
	} else {
		result.Error = fmt.Sprintf("all %d ping attempts failed", p.pingCount)
	}
	return result
}

// probeTCP 通过 TCP 连接探测目标，地址缺少端口时默认 53
func (p *NetProber) probeTCP(ctx context.Context, endpoint models.Endpoint, timeout time.Duration) models.ProbeResult {
	result := models.ProbeResult{
		Endpoint:  endpoint,
		CheckedAt: time.Now().UnixMilli(),
	}

	address := endpoint.Address
	if !strings.Contains(address, ":") {
		address = net.JoinHostPort(address, "53")
	}

	dialer := &net.Dialer{Timeout: timeout}
	startTime := time.Now()
	conn, err := dialer.DialContext(ctx, "tcp", address)
	result.Latency = time.Since(startTime).Milliseconds()

	if err != nil {
		result.Latency = 0
		result.Error = fmt.Sprintf("connection failed: %v", err)
		return result
	}
	defer conn.Close()

	result.Success = true
	return result
}
