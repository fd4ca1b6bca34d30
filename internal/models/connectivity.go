package models

// ConnectivityState 聚合连通性状态
type ConnectivityState string

const (
	StateUnknown ConnectivityState = "unknown" // 初始状态，尚未完成任何一轮探测
	StateUp      ConnectivityState = "up"      // 网络可用
	StateDown    ConnectivityState = "down"    // 网络不可用
)

// TransitionEvent 状态迁移事件
type TransitionEvent string

const (
	EventNone               TransitionEvent = ""                    // 本轮未发生状态迁移
	EventConnectionLost     TransitionEvent = "connection_lost"     // 网络断开
	EventConnectionRestored TransitionEvent = "connection_restored" // 网络恢复
)

// Endpoint 探测目标，地址即身份
type Endpoint struct {
	Address string `json:"address" yaml:"address"` // 目标地址（ICMP 为主机，TCP 为 host:port）
	Label   string `json:"label" yaml:"label"`     // 展示名称（可选）
	Type    string `json:"type" yaml:"type"`       // 探测类型: icmp/ping/tcp
}

// Name 返回用于日志展示的名称
func (e Endpoint) Name() string {
	if e.Label != "" {
		return e.Label
	}
	return e.Address
}

// ProbeResult 单个目标的一次探测结果
type ProbeResult struct {
	Endpoint  Endpoint `json:"endpoint"`
	Success   bool     `json:"success"`
	Latency   int64    `json:"latency"`   // 响应时间(毫秒)，失败时为 0
	Error     string   `json:"error"`     // 失败原因（仅用于日志，不参与判定）
	CheckedAt int64    `json:"checkedAt"` // 时间戳（毫秒）
}

// RoundOutcome 一轮探测的汇总结果，生成后立即被状态机和统计器消费
type RoundOutcome struct {
	Timestamp int64         `json:"timestamp"` // 时间戳（毫秒）
	Results   []ProbeResult `json:"results"`
	Good      int           `json:"good"`  // 判定为正常的目标数量（成功且未超过慢阈值）
	Total     int           `json:"total"` // 目标总数
	Up        bool          `json:"up"`    // 按归约规则得出的聚合状态
}
