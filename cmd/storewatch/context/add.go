package contextcmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"storewatch/cmd/storewatch/ui"
	"storewatch/config"
)

func addCmd() *cobra.Command {
	var url string
	var use bool

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add or update a context",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			name := args[0]

			if url == "" {
				return fmt.Errorf("--url is required")
			}
			if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
				url = "http://" + url
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			cfg.Set(name, config.Context{URL: strings.TrimRight(url, "/")})
			if use || cfg.CurrentContext == "" {
				cfg.CurrentContext = name
			}

			if err := cfg.Save(); err != nil {
				return err
			}

			fmt.Println(ui.SuccessMsg("Context %s saved.", ui.Bold(name)))
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "Daemon base URL (e.g. http://monitor.internal:8080)")
	cmd.Flags().BoolVar(&use, "use", false, "Also switch to this context")
	return cmd
}
