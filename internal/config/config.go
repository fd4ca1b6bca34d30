package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/dushixiang/netpulse/internal/models"
	"github.com/go-errors/errors"
	"gopkg.in/yaml.v3"
)

// 各字段缺省值，配置文件可以只覆盖其中一部分
const (
	DefaultIntervalSeconds = 30
	DefaultTimeoutSeconds  = 5
	DefaultPingCount       = 3
	DefaultThresholdMs     = 1000
	DefaultReduction       = "any"
	DefaultStatsFile       = "netpulse_stats.json"
	DefaultEventLogFile    = "netpulse_events.log"
	DefaultHistoryFile     = "netpulse_history.db"
)

// DefaultEndpoints 默认探测目标：Google、Cloudflare、OpenDNS 公共 DNS
func DefaultEndpoints() []models.Endpoint {
	return []models.Endpoint{
		{Address: "8.8.8.8", Label: "Google DNS", Type: "icmp"},
		{Address: "1.1.1.1", Label: "Cloudflare DNS", Type: "icmp"},
		{Address: "208.67.222.222", Label: "OpenDNS", Type: "icmp"},
	}
}

// LogConfig 进程日志配置
type LogConfig struct {
	Level      string `yaml:"level"`      // debug/info/warn/error
	File       string `yaml:"file"`       // 为空时输出到标准输出
	MaxSize    int    `yaml:"maxSize"`    // 单个日志文件大小上限(MB)
	MaxBackups int    `yaml:"maxBackups"` // 保留的旧日志文件数
	MaxAge     int    `yaml:"maxAge"`     // 保留天数
	Compress   bool   `yaml:"compress"`   // 是否压缩旧日志
}

// Config 监控配置
type Config struct {
	Endpoints       []models.Endpoint `yaml:"endpoints"`       // 探测目标列表
	IntervalSeconds int               `yaml:"intervalSeconds"` // 探测间隔（秒）
	TimeoutSeconds  int               `yaml:"timeoutSeconds"`  // 单个目标的探测超时（秒）
	PingCount       int               `yaml:"pingCount"`       // ICMP 每次探测发包数量
	ThresholdMs     int64             `yaml:"thresholdMs"`     // 慢响应阈值(毫秒)，超过视为该目标异常
	Reduction       string            `yaml:"reduction"`       // 归约规则: any/all/majority
	StatsFile       string            `yaml:"statsFile"`       // 统计数据文件路径
	EventLogFile    string            `yaml:"eventLogFile"`    // 事件日志文件路径
	HistoryFile     string            `yaml:"historyFile"`     // 轮次历史数据库路径
	Log             LogConfig         `yaml:"log"`

	// Path 配置文件自身的路径（不序列化，供 service 安装时引用）
	Path string `yaml:"-"`
}

// Load 加载配置文件。文件不存在时写回一份默认配置方便用户修改；
// 文件存在但无法解析时返回错误（启动期致命）。
func Load(path string) (*Config, error) {
	cfg := &Config{Path: path}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Errorf("解析配置文件 %s 失败: %v", path, err)
		}
	case os.IsNotExist(err):
		cfg.applyDefaults()
		// 写回失败不影响运行，仅丢失默认配置文件
		_ = cfg.Save(path)
		return cfg, nil
	default:
		return nil, errors.Errorf("读取配置文件 %s 失败: %v", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save 将配置写入文件
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}

// applyDefaults 为未配置的字段逐个填充默认值，允许部分配置
func (c *Config) applyDefaults() {
	if len(c.Endpoints) == 0 {
		c.Endpoints = DefaultEndpoints()
	}
	for i := range c.Endpoints {
		if c.Endpoints[i].Type == "" {
			c.Endpoints[i].Type = "icmp"
		}
	}
	if c.IntervalSeconds <= 0 {
		c.IntervalSeconds = DefaultIntervalSeconds
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if c.PingCount <= 0 {
		c.PingCount = DefaultPingCount
	}
	if c.ThresholdMs <= 0 {
		c.ThresholdMs = DefaultThresholdMs
	}
	if c.Reduction == "" {
		c.Reduction = DefaultReduction
	}
	if c.StatsFile == "" {
		c.StatsFile = DefaultStatsFile
	}
	if c.EventLogFile == "" {
		c.EventLogFile = DefaultEventLogFile
	}
	if c.HistoryFile == "" {
		c.HistoryFile = DefaultHistoryFile
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSize <= 0 {
		c.Log.MaxSize = 10
	}
	if c.Log.MaxBackups <= 0 {
		c.Log.MaxBackups = 3
	}
	if c.Log.MaxAge <= 0 {
		c.Log.MaxAge = 30
	}
}

// Validate 校验配置是否可用，不可用时启动期直接失败
func (c *Config) Validate() error {
	if len(c.Endpoints) == 0 {
		return errors.New("探测目标列表为空")
	}
	for _, ep := range c.Endpoints {
		if ep.Address == "" {
			return errors.New("存在地址为空的探测目标")
		}
		switch ep.Type {
		case "icmp", "ping", "tcp":
		default:
			return errors.Errorf("不支持的探测类型: %s", ep.Type)
		}
	}
	switch c.Reduction {
	case "any", "all", "majority":
	default:
		return errors.Errorf("不支持的归约规则: %s", c.Reduction)
	}
	return nil
}

// GetInterval 探测间隔
func (c *Config) GetInterval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// GetTimeout 单个目标的探测超时
func (c *Config) GetTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
