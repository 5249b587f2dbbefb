package main

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"storewatch/cmd/storewatch/ui"
	"storewatch/internal/monitor"
)

func storeCmd(server, contextName *string) *cobra.Command {
	return &cobra.Command{
		Use:   "store <id>",
		Short: "Show one store's status and latest telemetry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := resolveClient(*server, *contextName)
			if err != nil {
				return err
			}

			var resp storeResponse
			if err := client.get(cmd.Context(), "/store/"+url.PathEscape(args[0]), &resp); err != nil {
				return err
			}

			fmt.Println(ui.Bold(resp.StoreName) + " " + ui.Muted("("+resp.StoreID+")"))
			fmt.Println(ui.KeyValues("  ",
				ui.KV("status", ui.Status(resp.StatusText)),
				ui.KV("last heartbeat", lastSeen(resp.LastHeartbeat)),
				ui.KV("first seen", resp.FirstSeen.Format(time.RFC3339)),
			))

			if resp.Latest != nil {
				printTelemetry(resp.Latest)
			}
			return nil
		},
	}
}

func printTelemetry(hb *monitor.Heartbeat) {
	sys := hb.SystemStats
	pairs := []ui.Pair{}
	if sys.CPUUsage != nil {
		pairs = append(pairs, ui.KV("cpu", fmt.Sprintf("%.1f%%", *sys.CPUUsage)))
	}
	if sys.MemoryUsage != nil {
		pairs = append(pairs, ui.KV("memory", fmt.Sprintf("%.1f%%", *sys.MemoryUsage)))
	}
	if sys.DiskFreeGB != nil {
		pairs = append(pairs, ui.KV("disk free", fmt.Sprintf("%.1f GB", *sys.DiskFreeGB)))
	}
	if sys.UptimeHours != nil {
		pairs = append(pairs, ui.KV("uptime", fmt.Sprintf("%.1f h", *sys.UptimeHours)))
	}
	pairs = append(pairs, ui.KV("network", ui.Bool(sys.NetworkConnected)))
	if sys.NetworkSpeedMbps != nil {
		pairs = append(pairs, ui.KV("speed", fmt.Sprintf("%.1f Mbps", *sys.NetworkSpeedMbps)))
	}
	if hb.CameraStatus.TotalCameras > 0 {
		pairs = append(pairs, ui.KV("cameras",
			fmt.Sprintf("%d/%d active", hb.CameraStatus.ActiveCameras, hb.CameraStatus.TotalCameras)))
	}
	if hb.ApplicationStats.AppVersion != "" {
		pairs = append(pairs, ui.KV("app version", hb.ApplicationStats.AppVersion))
	}

	fmt.Println(ui.Muted("latest telemetry") + " " + ui.FaintStyle.Render(hb.Timestamp.Format(time.RFC3339)))
	fmt.Print(ui.KeyValues("  ", pairs...))
}
