package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kardianos/service"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/dushixiang/netpulse/internal/config"
	"github.com/dushixiang/netpulse/internal/nlog"
	"github.com/dushixiang/netpulse/internal/probe"
	"github.com/dushixiang/netpulse/internal/repo"
	svc "github.com/dushixiang/netpulse/internal/service"
)

// BuildMonitor 按配置装配监控服务。历史数据库打开失败时降级运行，
// 只有统计数据仓库是必需的。
func BuildMonitor(cfg *config.Config, logger *zap.Logger) *svc.MonitorService {
	prober := probe.NewNetProber(cfg.PingCount)
	evaluator := probe.NewEvaluator(prober, cfg.Endpoints, cfg.GetTimeout(), cfg.ThresholdMs, cfg.Reduction, logger)

	statsRepo := repo.NewStatsRepo(afero.NewOsFs(), cfg.StatsFile, logger)
	eventLog := repo.NewEventLog(cfg.EventLogFile, logger)

	history, err := repo.OpenHistoryRepo(cfg.HistoryFile, logger)
	if err != nil {
		logger.Warn("打开历史数据库失败，本次运行不记录轮次历史", zap.Error(err))
		history = nil
	}

	return svc.NewMonitorService(logger, cfg, evaluator, statsRepo, eventLog, history, os.Stdout)
}

// program 实现 service.Interface
type program struct {
	cfg    *config.Config
	cancel context.CancelFunc
	done   chan struct{}
}

// Start 启动服务
func (p *program) Start(s service.Service) error {
	logger := nlog.New(p.cfg.Log)
	logger.Info("netpulse 服务启动中...")

	var ctx context.Context
	ctx, p.cancel = context.WithCancel(context.Background())
	p.done = make(chan struct{})

	monitor := BuildMonitor(p.cfg, logger)
	go func() {
		defer close(p.done)
		if err := monitor.Run(ctx); err != nil {
			logger.Error("监控运行出错", zap.Error(err))
		}
	}()
	return nil
}

// Stop 停止服务
func (p *program) Stop(s service.Service) error {
	if p.cancel != nil {
		p.cancel()
	}
	if p.done != nil {
		<-p.done
	}
	return nil
}

// Manager 系统服务管理器
type Manager struct {
	cfg     *config.Config
	service service.Service
}

// NewManager 创建服务管理器
func NewManager(cfg *config.Config) (*Manager, error) {
	execPath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("获取可执行文件路径失败: %w", err)
	}

	svcConfig := &service.Config{
		Name:        "netpulse",
		DisplayName: "NetPulse",
		Description: "网络连通性监控 - 探测断网事件并累计统计数据",
		Arguments:   []string{"service", "run", "--config", cfg.Path},
		Executable:  execPath,
		Option: service.KeyValue{
			// Linux systemd 配置
			"Restart":            "always",
			"RestartSec":         "10",
			"StartLimitInterval": "0",
			"KillMode":           "process",

			// Windows 配置
			"OnFailure":    "restart",
			"ResetPeriod":  86400,
			"RestartDelay": 10000,

			// 其他 Unix 系统 (upstart/launchd)
			"KeepAlive": true,
			"RunAtLoad": true,
		},
	}

	s, err := service.New(&program{cfg: cfg}, svcConfig)
	if err != nil {
		return nil, fmt.Errorf("创建服务失败: %w", err)
	}

	return &Manager{cfg: cfg, service: s}, nil
}

// Install 安装服务
func (m *Manager) Install() error {
	return m.service.Install()
}

// Uninstall 卸载服务（先停止）
func (m *Manager) Uninstall() error {
	_ = m.service.Stop()
	return m.service.Uninstall()
}

// Start 启动服务
func (m *Manager) Start() error {
	return m.service.Start()
}

// Stop 停止服务
func (m *Manager) Stop() error {
	return m.service.Stop()
}

// Status 查看服务状态
func (m *Manager) Status() (string, error) {
	status, err := m.service.Status()
	if err != nil {
		return "", err
	}

	switch status {
	case service.StatusRunning:
		return "运行中 (Running)", nil
	case service.StatusStopped:
		return "已停止 (Stopped)", nil
	default:
		return "未知 (Unknown)", nil
	}
}

// Run 运行服务。在服务管理器控制下走 service.Run，
// 交互模式下前台运行并监听中断信号。
func (m *Manager) Run() error {
	if !service.Interactive() {
		return m.service.Run()
	}

	logger := nlog.New(m.cfg.Log)
	logger.Info("配置加载成功",
		zap.Int("endpoints", len(m.cfg.Endpoints)),
		zap.Int("intervalSeconds", m.cfg.IntervalSeconds))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	monitor := BuildMonitor(m.cfg, logger)
	return monitor.Run(ctx)
}
