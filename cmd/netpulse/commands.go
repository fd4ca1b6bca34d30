package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dushixiang/netpulse/internal/config"
	"github.com/dushixiang/netpulse/internal/daemon"
	"github.com/dushixiang/netpulse/internal/nlog"
	"github.com/dushixiang/netpulse/internal/repo"
	"github.com/dushixiang/netpulse/internal/service"
)

// newRunCmd 前台运行监控循环，收到中断信号后完成收尾并正常退出
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "前台运行监控",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			logger := nlog.New(cfg.Log)
			defer func() { _ = logger.Sync() }()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			monitor := daemon.BuildMonitor(cfg, logger)
			return monitor.Run(ctx)
		},
	}
}

// newStatsCmd 打印当前持久化的统计摘要
func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "查看统计摘要",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			statsRepo := repo.NewStatsRepo(afero.NewOsFs(), cfg.StatsFile, nlog.New(cfg.Log))
			stats, ok, err := statsRepo.Load()
			if err != nil {
				return fmt.Errorf("读取统计数据失败: %w", err)
			}
			if !ok {
				fmt.Println("暂无统计数据")
				return nil
			}

			service.WriteSummary(os.Stdout, stats, time.Now())
			return nil
		},
	}
}

// newConfigCmd 打印当前生效的配置（含默认值）
func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "查看当前配置",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(data))
			return nil
		},
	}
}

// newHistoryCmd 查看最近的探测轮次历史
func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "查看最近的探测历史",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			history, err := repo.OpenHistoryRepo(cfg.HistoryFile, nlog.New(cfg.Log))
			if err != nil {
				return fmt.Errorf("打开历史数据库失败: %w", err)
			}
			defer history.Close()

			records, err := history.List(limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("暂无历史记录")
				return nil
			}

			for _, r := range records {
				status := "UP"
				if !r.Up {
					status = "DOWN"
				}
				fmt.Printf("%s  %-4s  正常 %d/%d  平均 %dms\n",
					time.UnixMilli(r.Timestamp).Format("2006-01-02 15:04:05"),
					status, r.Good, r.Total, r.AvgMs)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "显示条数")
	return cmd
}

// newServiceCmd 系统服务管理
func newServiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "系统服务管理",
	}

	newManager := func() (*daemon.Manager, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		return daemon.NewManager(cfg)
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "install",
			Short: "安装系统服务",
			RunE: func(cmd *cobra.Command, args []string) error {
				mgr, err := newManager()
				if err != nil {
					return err
				}
				if err := mgr.Install(); err != nil {
					return err
				}
				fmt.Println("服务安装成功")
				return nil
			},
		},
		&cobra.Command{
			Use:   "uninstall",
			Short: "卸载系统服务",
			RunE: func(cmd *cobra.Command, args []string) error {
				mgr, err := newManager()
				if err != nil {
					return err
				}
				if err := mgr.Uninstall(); err != nil {
					return err
				}
				fmt.Println("服务卸载成功")
				return nil
			},
		},
		&cobra.Command{
			Use:   "start",
			Short: "启动服务",
			RunE: func(cmd *cobra.Command, args []string) error {
				mgr, err := newManager()
				if err != nil {
					return err
				}
				return mgr.Start()
			},
		},
		&cobra.Command{
			Use:   "stop",
			Short: "停止服务",
			RunE: func(cmd *cobra.Command, args []string) error {
				mgr, err := newManager()
				if err != nil {
					return err
				}
				return mgr.Stop()
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "查看服务状态",
			RunE: func(cmd *cobra.Command, args []string) error {
				mgr, err := newManager()
				if err != nil {
					return err
				}
				status, err := mgr.Status()
				if err != nil {
					return err
				}
				fmt.Println(status)
				return nil
			},
		},
		&cobra.Command{
			Use:   "run",
			Short: "以服务模式运行",
			RunE: func(cmd *cobra.Command, args []string) error {
				mgr, err := newManager()
				if err != nil {
					return err
				}
				return mgr.Run()
			},
		},
	)
	return cmd
}
