package alert

import (
	"fmt"
	"strings"
	"time"

	"storewatch/internal/monitor"
)

// Subject and body construction for liveness notifications. Startup and
// recovery messages carry a telemetry summary; offline messages lead with
// urgency and the silence duration instead, since the latest metrics are by
// definition stale.

func buildSubject(t monitor.Transition) string {
	name := displayName(t.Store)
	switch t.Kind {
	case monitor.AlertOffline:
		if t.Repeat {
			return fmt.Sprintf("[storewatch] STILL OFFLINE: %s", name)
		}
		return fmt.Sprintf("[storewatch] OFFLINE: %s", name)
	case monitor.AlertRecovery:
		return fmt.Sprintf("[storewatch] Recovered: %s", name)
	case monitor.AlertStartup:
		return fmt.Sprintf("[storewatch] Started: %s", name)
	default:
		return fmt.Sprintf("[storewatch] %s: %s", t.Kind, name)
	}
}

func buildBody(t monitor.Transition) string {
	var b strings.Builder
	name := displayName(t.Store)

	switch t.Kind {
	case monitor.AlertOffline:
		fmt.Fprintf(&b, "Store %s is OFFLINE.\n\n", name)
		if !t.Store.LastHeartbeat.IsZero() {
			silence := t.At.Sub(t.Store.LastHeartbeat).Round(time.Second)
			fmt.Fprintf(&b, "Last heartbeat: %s (%s ago)\n", t.Store.LastHeartbeat.Format(time.RFC3339), silence)
		} else {
			b.WriteString("No heartbeat has ever been received from this store.\n")
		}
		b.WriteString("\nThe store has stopped reporting. Check power, network, and the monitoring agent on site.\n")
	case monitor.AlertRecovery:
		fmt.Fprintf(&b, "Store %s is back ONLINE after an outage.\n\n", name)
		writeTelemetrySummary(&b, t.Store.Latest)
	case monitor.AlertStartup:
		fmt.Fprintf(&b, "Store %s has started reporting.\n\n", name)
		writeTelemetrySummary(&b, t.Store.Latest)
	default:
		fmt.Fprintf(&b, "Store %s: %s alert.\n", name, t.Kind)
	}

	fmt.Fprintf(&b, "\nStore ID: %s\nEvent time: %s\n", t.Store.StoreID, t.At.Format(time.RFC3339))
	return b.String()
}

func writeTelemetrySummary(b *strings.Builder, hb *monitor.Heartbeat) {
	if hb == nil {
		return
	}
	s := hb.SystemStats
	if s.CPUUsage != nil {
		fmt.Fprintf(b, "CPU: %.1f%%\n", *s.CPUUsage)
	}
	if s.MemoryUsage != nil {
		fmt.Fprintf(b, "Memory: %.1f%%\n", *s.MemoryUsage)
	}
	if s.DiskFreeGB != nil {
		fmt.Fprintf(b, "Disk free: %.1f GB\n", *s.DiskFreeGB)
	}
	if s.UptimeHours != nil {
		fmt.Fprintf(b, "Uptime: %.1f h\n", *s.UptimeHours)
	}
	fmt.Fprintf(b, "Cameras: %d/%d active\n", hb.CameraStatus.ActiveCameras, hb.CameraStatus.TotalCameras)
	if hb.ApplicationStats.AppVersion != "" {
		fmt.Fprintf(b, "App version: %s\n", hb.ApplicationStats.AppVersion)
	}
}

func buildLogMessage(t monitor.Transition) string {
	name := displayName(t.Store)
	switch t.Kind {
	case monitor.AlertOffline:
		if !t.Store.LastHeartbeat.IsZero() {
			return fmt.Sprintf("store %s offline, last heartbeat %s",
				name, t.Store.LastHeartbeat.Format(time.RFC3339))
		}
		return fmt.Sprintf("store %s offline", name)
	case monitor.AlertRecovery:
		return fmt.Sprintf("store %s recovered from outage", name)
	case monitor.AlertStartup:
		return fmt.Sprintf("store %s started reporting", name)
	default:
		return fmt.Sprintf("store %s: %s", name, t.Kind)
	}
}

func displayName(s monitor.StoreSnapshot) string {
	if s.StoreName != "" {
		return s.StoreName
	}
	return s.StoreID
}
