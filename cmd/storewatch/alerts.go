package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"storewatch/cmd/storewatch/ui"
)

func alertsCmd(server, contextName *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "alerts [store-id]",
		Short: "Show recent alerts, fleet-wide or for one store",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := resolveClient(*server, *contextName)
			if err != nil {
				return err
			}

			path := "/alerts"
			if len(args) == 1 {
				path = "/alerts/" + url.PathEscape(args[0])
			}
			path += fmt.Sprintf("?limit=%d", limit)

			var resp alertsResponse
			if err := client.get(cmd.Context(), path, &resp); err != nil {
				return err
			}

			if len(resp.Alerts) == 0 {
				fmt.Println(ui.InfoMsg("No alerts recorded."))
				return nil
			}

			var rows [][]string
			for _, a := range resp.Alerts {
				name := a.StoreName
				if name == "" {
					name = a.StoreID
				}
				rows = append(rows, []string{
					a.Timestamp.Format("2006-01-02 15:04:05"),
					name,
					string(a.Kind),
					ui.Severity(string(a.Severity)),
					a.Message,
				})
			}
			fmt.Println(ui.Table([]string{"TIME", "STORE", "TYPE", "SEVERITY", "MESSAGE"}, rows))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum alerts to fetch")
	return cmd
}
