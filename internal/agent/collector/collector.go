// Package collector samples OS and application telemetry into heartbeat
// records. The contract is that collection never fails the caller: a metric
// that cannot be read is left nil in the heartbeat.
package collector

import (
	"context"
	"net"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"

	"storewatch/internal/monitor"
)

const (
	// connectivityProbeAddr is dialed to decide network_connected.
	connectivityProbeAddr = "8.8.8.8:53"
	connectivityTimeout   = 3 * time.Second

	bytesPerGB = 1024 * 1024 * 1024
	bytesPerMB = 1024 * 1024
)

// CameraSource reports camera health. The agent core treats cameras as
// opaque; deployments plug in their own source.
type CameraSource interface {
	Cameras(ctx context.Context) monitor.CameraStatus
}

// AppCounters tracks application-side statistics that the host application
// updates concurrently with collection.
type AppCounters struct {
	detectionsToday atomic.Int64
	lastDetection   atomic.Int64 // unix nanos, 0 = never
}

// RecordDetection bumps today's detection count.
func (c *AppCounters) RecordDetection(at time.Time) {
	c.detectionsToday.Add(1)
	c.lastDetection.Store(at.UnixNano())
}

// ResetDaily zeroes the daily counter.
func (c *AppCounters) ResetDaily() {
	c.detectionsToday.Store(0)
}

func (c *AppCounters) snapshot() (int, *time.Time) {
	count := int(c.detectionsToday.Load())
	if nanos := c.lastDetection.Load(); nanos != 0 {
		t := time.Unix(0, nanos)
		return count, &t
	}
	return count, nil
}

// Config for a Collector.
type Config struct {
	StoreID    string
	StoreName  string
	AppVersion string
	DiskPath   string // filesystem to report, default "/"
	Cameras    CameraSource
	Counters   *AppCounters
	Speed      *SpeedProber
	Clock      monitor.Clock
}

// Collector produces heartbeat snapshots on demand.
type Collector struct {
	cfg   Config
	clock monitor.Clock

	consecutiveFailures atomic.Int64
	lastSuccess         atomic.Int64 // unix nanos
}

func New(cfg Config) *Collector {
	if cfg.DiskPath == "" {
		cfg.DiskPath = "/"
	}
	clock := cfg.Clock
	if clock == nil {
		clock = monitor.RealClock{}
	}
	return &Collector{cfg: cfg, clock: clock}
}

// Speed returns the configured speed prober, if any.
func (c *Collector) Speed() *SpeedProber {
	return c.cfg.Speed
}

// RecordDeliveryResult feeds shipping outcomes back into the telemetry the
// next heartbeat reports.
func (c *Collector) RecordDeliveryResult(ok bool, at time.Time) {
	if ok {
		c.consecutiveFailures.Store(0)
		c.lastSuccess.Store(at.UnixNano())
		return
	}
	c.consecutiveFailures.Add(1)
}

// ConsecutiveFailures returns the current failed-delivery streak.
func (c *Collector) ConsecutiveFailures() int {
	return int(c.consecutiveFailures.Load())
}

// Collect samples everything and assembles a heartbeat. isStartup is owned
// by the shipper, which knows whether a delivery has succeeded yet.
func (c *Collector) Collect(ctx context.Context, isStartup bool) monitor.Heartbeat {
	now := c.clock.Now()
	hb := monitor.Heartbeat{
		StoreID:   c.cfg.StoreID,
		StoreName: c.cfg.StoreName,
		Timestamp: now,
		IsStartup: isStartup,
	}

	hb.SystemStats = c.systemStats(ctx)
	if c.cfg.Cameras != nil {
		hb.CameraStatus = c.cfg.Cameras.Cameras(ctx)
	}
	hb.ApplicationStats = c.applicationStats()
	hb.LocationInfo = locationInfo(now)
	if c.cfg.Speed != nil {
		current, history := c.cfg.Speed.Snapshot()
		hb.NetworkInfo = monitor.NetworkInfo{CurrentSpeedMbps: current, SpeedHistory: history}
		hb.SystemStats.NetworkSpeedMbps = current
	}
	return hb
}

func (c *Collector) systemStats(ctx context.Context) monitor.SystemStats {
	var s monitor.SystemStats

	if pcts, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pcts) > 0 {
		s.CPUUsage = &pcts[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		used := vm.UsedPercent
		avail := float64(vm.Available) / bytesPerGB
		s.MemoryUsage = &used
		s.MemoryAvailGB = &avail
	}
	if du, err := disk.UsageWithContext(ctx, c.cfg.DiskPath); err == nil {
		free := float64(du.Free) / bytesPerGB
		usedPct := du.UsedPercent
		s.DiskFreeGB = &free
		s.DiskUsagePercent = &usedPct
	}
	if proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if mi, err := proc.MemoryInfoWithContext(ctx); err == nil {
			rss := float64(mi.RSS) / bytesPerMB
			s.ProcessMemoryMB = &rss
		}
	}
	if up, err := host.UptimeWithContext(ctx); err == nil {
		hours := float64(up) / 3600
		s.UptimeHours = &hours
	}
	s.NetworkConnected = probeConnectivity()
	return s
}

func (c *Collector) applicationStats() monitor.ApplicationStats {
	stats := monitor.ApplicationStats{
		AppVersion:          c.cfg.AppVersion,
		RuntimeVersion:      runtime.Version(),
		ConsecutiveFailures: int(c.consecutiveFailures.Load()),
	}
	if c.cfg.Counters != nil {
		stats.TotalDetectionsToday, stats.LastDetectionTime = c.cfg.Counters.snapshot()
	}
	if nanos := c.lastSuccess.Load(); nanos != 0 {
		t := time.Unix(0, nanos)
		stats.LastSuccessfulConnection = &t
	}
	return stats
}

func locationInfo(now time.Time) monitor.LocationInfo {
	zone, _ := now.Zone()
	return monitor.LocationInfo{
		Timezone:  zone,
		LocalTime: now.Format(time.RFC3339),
	}
}

func probeConnectivity() bool {
	conn, err := net.DialTimeout("tcp", connectivityProbeAddr, connectivityTimeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
