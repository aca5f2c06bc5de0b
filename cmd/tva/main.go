package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"
)

type app struct {
	server  string
	timeout time.Duration
	json    bool
}

type appKey struct{}

func main() {
	root := &cobra.Command{
		Use:   "tva",
		Short: "TV Animator CLI",
	}

	var (
		server  string
		timeout time.Duration
		jsonOut bool
	)

	root.PersistentFlags().StringVarP(&server, "server", "s", "http://localhost:8080", "animator server URL")
	root.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 5*time.Second, "command timeout")
	root.PersistentFlags().BoolVarP(&jsonOut, "json", "j", false, "output json")

	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, &app{
			server:  server,
			timeout: timeout,
			json:    jsonOut,
		}))
	}

	root.AddCommand(triggerCommand())
	root.AddCommand(stopCommand())
	root.AddCommand(listCommand())
	root.AddCommand(statusCommand())
	root.AddCommand(sceneCommand())
	root.AddCommand(videoCommand())
	root.AddCommand(obsCommand())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func fromContext(cmd *cobra.Command) *app {
	val := cmd.Context().Value(appKey{})
	if val == nil {
		return nil
	}
	return val.(*app)
}
