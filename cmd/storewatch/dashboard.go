package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"storewatch/cmd/storewatch/ui"
)

func dashboardCmd(server, contextName *string) *cobra.Command {
	return &cobra.Command{
		Use:     "dashboard",
		Short:   "Show fleet status",
		Aliases: []string{"stores", "ls"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := resolveClient(*server, *contextName)
			if err != nil {
				return err
			}

			var resp dashboardResponse
			if err := client.get(cmd.Context(), "/dashboard", &resp); err != nil {
				return err
			}

			fmt.Println(ui.KeyValues("",
				ui.KV("stores", fmt.Sprintf("%d", resp.Summary.Total)),
				ui.KV("online", ui.Success(fmt.Sprintf("%d", resp.Summary.Online))),
				ui.KV("offline", statusCount(resp.Summary.Offline)),
				ui.KV("unknown", ui.Muted(fmt.Sprintf("%d", resp.Summary.Unknown))),
			))

			if len(resp.Stores) == 0 {
				fmt.Println(ui.InfoMsg("No stores have reported yet."))
				return nil
			}

			var rows [][]string
			for _, s := range resp.Stores {
				rows = append(rows, []string{
					s.StoreID,
					s.StoreName,
					ui.Status(s.StatusText),
					lastSeen(s.LastHeartbeat),
				})
			}
			fmt.Println(ui.Table([]string{"ID", "NAME", "STATUS", "LAST HEARTBEAT"}, rows))
			return nil
		},
	}
}

func statusCount(n int) string {
	s := fmt.Sprintf("%d", n)
	if n > 0 {
		return ui.ErrorStyle.Render(s)
	}
	return s
}

// lastSeen renders a heartbeat age for humans ("42s ago"). The zero time
// means the store was hydrated from the database and has not reported since
// the daemon started.
func lastSeen(t time.Time) string {
	if t.IsZero() {
		return ui.Muted("never (hydrated)")
	}
	age := time.Since(t).Round(time.Second)
	if age < 0 {
		age = 0
	}
	return fmt.Sprintf("%s ago", age)
}
