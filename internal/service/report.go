package service

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dushixiang/netpulse/internal/models"
)

// WriteSummary 输出人类可读的统计摘要，进程退出前调用一次
func WriteSummary(w io.Writer, stats models.Statistics, now time.Time) {
	line := strings.Repeat("=", 60)

	fmt.Fprintln(w, line)
	fmt.Fprintln(w, "网络连通性监控统计")
	fmt.Fprintln(w, line)

	if stats.MonitoringStartAt > 0 {
		fmt.Fprintf(w, "监控开始时间: %s\n", time.UnixMilli(stats.MonitoringStartAt).Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(w, "总探测轮数: %d\n", stats.TotalRounds)
	fmt.Fprintf(w, "在线率: %.2f%%\n", stats.UptimePercentage())

	if n := len(stats.DowntimeIntervals); n > 0 {
		fmt.Fprintf(w, "断网次数: %d\n", n)
		fmt.Fprintf(w, "累计断网时长: %s (最长 %s)\n",
			stats.TotalDowntime(now).Round(time.Second),
			stats.LongestDowntime(now).Round(time.Second))
		if open := stats.OpenInterval(); open != nil {
			fmt.Fprintf(w, "当前断网进行中, 自 %s 起\n",
				time.UnixMilli(open.StartAt).Format("2006-01-02 15:04:05"))
		}
	}

	if stats.Latency.Count > 0 {
		fmt.Fprintf(w, "平均响应时间: %.1fms (中位数 %.1fms, 范围 %dms - %dms)\n",
			stats.Latency.Avg(), stats.MedianLatency(), stats.Latency.Min, stats.Latency.Max)
	}
}
