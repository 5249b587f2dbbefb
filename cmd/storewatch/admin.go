package main

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"storewatch/cmd/storewatch/ui"
)

func sweepCmd(server, contextName *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Hydrate from the database and run one health sweep now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := resolveClient(*server, *contextName)
			if err != nil {
				return err
			}

			var resp sweepResponse
			if err := client.get(cmd.Context(), "/trigger-health-check", &resp); err != nil {
				return err
			}

			fmt.Println(ui.SuccessMsg("Sweep complete: %d stores hydrated, %d transitions.",
				resp.Hydrated, resp.Transitions))
			return nil
		},
	}
}

func testEmailCmd(server, contextName *string) *cobra.Command {
	return &cobra.Command{
		Use:   "test-email <store-id>",
		Short: "Queue a test alert email for a store's recipients",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := resolveClient(*server, *contextName)
			if err != nil {
				return err
			}

			var resp struct {
				Status  string `json:"status"`
				StoreID string `json:"store_id"`
			}
			if err := client.get(cmd.Context(), "/test-email/"+url.PathEscape(args[0]), &resp); err != nil {
				return err
			}

			fmt.Println(ui.SuccessMsg("Test email queued for %s.", ui.Bold(resp.StoreID)))
			return nil
		},
	}
}

func recipientsCmd(server, contextName *string) *cobra.Command {
	var reload bool

	cmd := &cobra.Command{
		Use:   "recipients",
		Short: "Show the daemon's alert recipient mapping",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := resolveClient(*server, *contextName)
			if err != nil {
				return err
			}

			if reload {
				if err := client.post(cmd.Context(), "/config/reload", nil); err != nil {
					return err
				}
				fmt.Println(ui.SuccessMsg("Recipient config reloaded."))
			}

			var book map[string][]string
			if err := client.get(cmd.Context(), "/config/email", &book); err != nil {
				return err
			}

			if len(book) == 0 {
				fmt.Println(ui.InfoMsg("No recipients configured."))
				return nil
			}

			keys := make([]string, 0, len(book))
			for k := range book {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			var rows [][]string
			for _, k := range keys {
				rows = append(rows, []string{k, strings.Join(book[k], ", ")})
			}
			fmt.Println(ui.Table([]string{"STORE", "RECIPIENTS"}, rows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&reload, "reload", false, "Reload the recipients file before showing it")
	return cmd
}

func reloadConfigCmd(server, contextName *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reload-config",
		Short: "Reload the daemon's recipients file from disk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := resolveClient(*server, *contextName)
			if err != nil {
				return err
			}
			if err := client.post(cmd.Context(), "/config/reload", nil); err != nil {
				return err
			}
			fmt.Println(ui.SuccessMsg("Recipient config reloaded."))
			return nil
		},
	}
}

func healthCmd(server, contextName *string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show daemon health and ingestion counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := resolveClient(*server, *contextName)
			if err != nil {
				return err
			}

			var resp healthResponse
			if err := client.get(cmd.Context(), "/health", &resp); err != nil {
				return err
			}

			status := resp.Status
			if status == "ok" {
				status = ui.Success(status)
			} else {
				status = ui.ErrorStyle.Render(status)
			}

			fmt.Println(ui.KeyValues("",
				ui.KV("status", status),
				ui.KV("uptime", fmt.Sprintf("%ds", resp.UptimeSeconds)),
				ui.KV("accepted", fmt.Sprintf("%d", resp.HeartbeatsAccepted)),
				ui.KV("rejected", fmt.Sprintf("%d", resp.HeartbeatsRejected)),
				ui.KV("online", fmt.Sprintf("%d", resp.Stores["online"])),
				ui.KV("offline", statusCount(resp.Stores["offline"])),
				ui.KV("unknown", fmt.Sprintf("%d", resp.Stores["unknown"])),
			))
			return nil
		},
	}
}
