package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	contextcmd "storewatch/cmd/storewatch/context"
	"storewatch/cmd/storewatch/ui"
	"storewatch/internal/logging"
)

func main() {
	var (
		debug         bool
		noInteraction bool
		server        string
		contextName   string
	)
	if err := logging.Configure(logging.LevelWarn); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	root := &cobra.Command{
		Use:           "storewatch",
		Short:         "Operator CLI for the store liveness monitor",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logging.LevelWarn
			if debug {
				level = logging.LevelDebug
			}
			if err := logging.Configure(level); err != nil {
				return err
			}
			ui.ConfigureInteraction(noInteraction)
			return nil
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().BoolVar(&noInteraction, "no-interaction", false, "Disable prompts and colors")

	// Connection flags — available to all subcommands.
	root.PersistentFlags().StringVar(&server, "server", "", "Daemon base URL, overrides contexts")
	root.PersistentFlags().StringVar(&contextName, "context", "", "Context name to use")

	root.AddCommand(dashboardCmd(&server, &contextName))
	root.AddCommand(storeCmd(&server, &contextName))
	root.AddCommand(alertsCmd(&server, &contextName))
	root.AddCommand(sweepCmd(&server, &contextName))
	root.AddCommand(testEmailCmd(&server, &contextName))
	root.AddCommand(recipientsCmd(&server, &contextName))
	root.AddCommand(reloadConfigCmd(&server, &contextName))
	root.AddCommand(healthCmd(&server, &contextName))
	root.AddCommand(contextcmd.Cmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
