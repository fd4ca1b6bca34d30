package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "netpulse",
		Short:         "网络连通性监控工具",
		Long:          "netpulse 持续探测多个网络目标，记录断网事件并累计在线率与响应时间统计。",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "netpulse.yaml", "配置文件路径")

	root.AddCommand(
		newRunCmd(),
		newStatsCmd(),
		newConfigCmd(),
		newHistoryCmd(),
		newServiceCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
