package sysinfo

import (
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemInfo is a point-in-time snapshot of the console host, shown on
// the admin page next to the job stats. Disk numbers cover the volume
// holding the dataset directory.
type SystemInfo struct {
	CPUUsage    float64 `json:"cpu_usage"`
	RAMUsage    float64 `json:"ram_usage"`
	RAMTotal    uint64  `json:"ram_total"`
	RAMUsed     uint64  `json:"ram_used"`
	DiskUsage   float64 `json:"disk_usage"`
	DiskTotal   uint64  `json:"disk_total"`
	DiskFree    uint64  `json:"disk_free"`
	Uptime      uint64  `json:"uptime"`
	Hostname    string  `json:"hostname"`
	OS          string  `json:"os"`
	Platform    string  `json:"platform"`
	CollectedAt int64   `json:"collected_at"`
}

// Collector reads host metrics. CPU usage is measured between calls
// rather than over a sampling sleep, so requests never stall; the first
// snapshot reports zero.
type Collector struct {
	diskPath string
}

func NewCollector(diskPath string) *Collector {
	if diskPath == "" {
		diskPath = "/"
	}
	// Prime the CPU counter so the next call measures a real interval.
	_, _ = cpu.Percent(0, false)
	return &Collector{diskPath: diskPath}
}

func (c *Collector) Collect() (*SystemInfo, error) {
	info := &SystemInfo{
		CollectedAt: time.Now().Unix(),
	}

	cpuPercent, err := cpu.Percent(0, false)
	if err == nil && len(cpuPercent) > 0 {
		info.CPUUsage = cpuPercent[0]
	}

	memInfo, err := mem.VirtualMemory()
	if err == nil {
		info.RAMUsage = memInfo.UsedPercent
		info.RAMTotal = memInfo.Total
		info.RAMUsed = memInfo.Used
	}

	diskInfo, err := disk.Usage(c.diskPath)
	if err == nil {
		info.DiskUsage = diskInfo.UsedPercent
		info.DiskTotal = diskInfo.Total
		info.DiskFree = diskInfo.Free
	}

	hostInfo, err := host.Info()
	if err == nil {
		info.Uptime = hostInfo.Uptime
		info.Hostname = hostInfo.Hostname
		info.OS = hostInfo.OS
		info.Platform = hostInfo.Platform
	}

	return info, nil
}
