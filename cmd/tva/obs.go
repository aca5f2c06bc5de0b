package main

import (
	"fmt"
	"net/http"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func obsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "obs",
		Short: "Manage the streaming tool link",
	}
	cmd.AddCommand(obsStatusCommand())
	cmd.AddCommand(obsConnectCommand())
	cmd.AddCommand(obsDisconnectCommand())
	return cmd
}

func obsStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the tool link state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			body, status, err := app.get("/api/obs/status")
			if err != nil {
				return err
			}
			if app.json {
				return app.printJSON(body)
			}
			if status != http.StatusOK {
				pterm.Error.Println(stringField(body, "error"))
				return fmt.Errorf("obs status failed")
			}
			rows := pterm.TableData{
				{"connected", fmt.Sprint(body["connected"])},
				{"should be connected", fmt.Sprint(body["should_be_connected"])},
				{"auto reconnect", fmt.Sprint(body["auto_reconnect_enabled"])},
				{"endpoint", fmt.Sprintf("%s:%v", stringField(body, "host"), body["port"])},
			}
			return pterm.DefaultTable.WithData(rows).Render()
		},
	}
}

func obsConnectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "connect",
		Short: "Request a connection to the tool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			body, status, err := app.post("/api/obs/connect", nil)
			if err != nil {
				return err
			}
			if app.json {
				return app.printJSON(body)
			}
			if status != http.StatusOK {
				pterm.Error.Println(stringField(body, "error"))
				return fmt.Errorf("obs connect failed")
			}
			pterm.Success.Println(stringField(body, "message"))
			return nil
		},
	}
}

func obsDisconnectCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "disconnect",
		Short: "Drop the tool link",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			body, status, err := app.post("/api/obs/disconnect", map[string]bool{"force": force})
			if err != nil {
				return err
			}
			if app.json {
				return app.printJSON(body)
			}
			if status != http.StatusOK {
				pterm.Error.Println(stringField(body, "error"))
				return fmt.Errorf("obs disconnect failed")
			}
			pterm.Success.Println(stringField(body, "message"))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "disconnect even when settings keep the link enabled")

	return cmd
}
