package main

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func sceneCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "scene <name>",
		Short: "Announce a scene change and apply its mapped media",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			conn, err := app.dialSocket()
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := conn.WriteJSON(map[string]string{"type": "scene_change", "scene_name": args[0]}); err != nil {
				return err
			}
			msg, err := app.awaitSocket(conn, "animation_changed", "info", "error")
			if err != nil {
				return err
			}
			if app.json {
				return app.printJSON(msg)
			}
			switch msg["type"] {
			case "animation_changed":
				pterm.Success.Println(stringField(msg, "message"))
			case "info":
				pterm.Info.Println(stringField(msg, "message"))
			default:
				pterm.Error.Println(stringField(msg, "message"))
				return fmt.Errorf("scene change failed")
			}
			return nil
		},
	}
}

func videoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "video <action> [value]",
		Short: "Send a playback control to displays showing a video",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			conn, err := app.dialSocket()
			if err != nil {
				return err
			}
			defer conn.Close()

			payload := map[string]any{"type": "video_control", "action": args[0]}
			if len(args) == 2 {
				if number, err := strconv.ParseFloat(args[1], 64); err == nil {
					payload["value"] = number
				} else {
					payload["value"] = args[1]
				}
			}
			if err := conn.WriteJSON(payload); err != nil {
				return err
			}
			msg, err := app.awaitSocket(conn, "video_control", "error")
			if err != nil {
				return err
			}
			if app.json {
				return app.printJSON(msg)
			}
			if msg["type"] == "error" {
				pterm.Error.Println(stringField(msg, "message"))
				return fmt.Errorf("video control failed")
			}
			pterm.Success.Printfln("sent %s to displays", args[0])
			return nil
		},
	}
}
