package health

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// Pinger is satisfied by *pgxpool.Pool
type Pinger interface {
	Ping(ctx context.Context) error
}

type PingFunc func(ctx context.Context) error

type HealthChecker struct {
	db      Pinger
	redis   PingFunc
	storage PingFunc
}

type HealthStatus struct {
	Status   string           `json:"status"`
	Database ComponentHealth  `json:"database"`
	Redis    ComponentHealth  `json:"redis"`
	Storage  *ComponentHealth `json:"storage,omitempty"`
	Host     *HostStats       `json:"host,omitempty"`
}

type ComponentHealth struct {
	Status       string `json:"status"`
	ResponseTime int64  `json:"response_time_ms"`
	Error        string `json:"error,omitempty"`
}

type HostStats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsedMB  uint64  `json:"memory_used_mb"`
	DiskPercent   float64 `json:"disk_percent"`
	DiskFreeGB    uint64  `json:"disk_free_gb"`
}

// NewHealthChecker takes optional redis and storage probes; nil means not configured
func NewHealthChecker(db Pinger, redis, storage PingFunc) *HealthChecker {
	return &HealthChecker{db: db, redis: redis, storage: storage}
}

// CheckBasic is unhealthy only when the database is down. Redis is optional
// and reports "degraded" instead.
func (h *HealthChecker) CheckBasic(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:   "healthy",
		Database: probe(ctx, h.db.Ping),
		Redis:    probe(ctx, h.redis),
	}
	if status.Redis.Status != "healthy" {
		status.Status = "degraded"
	}
	if status.Database.Status != "healthy" {
		status.Status = "unhealthy"
	}
	return status
}

func (h *HealthChecker) CheckDetailed(ctx context.Context) HealthStatus {
	status := h.CheckBasic(ctx)
	storage := probe(ctx, h.storage)
	status.Storage = &storage
	status.Host = hostStats()
	return status
}

func probe(ctx context.Context, ping PingFunc) ComponentHealth {
	if ping == nil {
		return ComponentHealth{Status: "disabled"}
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := ping(ctx)
	responseTime := time.Since(start).Milliseconds()

	if err != nil {
		return ComponentHealth{Status: "unhealthy", ResponseTime: responseTime, Error: err.Error()}
	}
	return ComponentHealth{Status: "healthy", ResponseTime: responseTime}
}

func hostStats() *HostStats {
	var stats HostStats
	if percents, err := cpu.Percent(200*time.Millisecond, false); err == nil && len(percents) > 0 {
		stats.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		stats.MemoryPercent = vm.UsedPercent
		stats.MemoryUsedMB = vm.Used / 1024 / 1024
	}
	if du, err := disk.Usage("/"); err == nil {
		stats.DiskPercent = du.UsedPercent
		stats.DiskFreeGB = du.Free / 1024 / 1024 / 1024
	}
	return &stats
}
