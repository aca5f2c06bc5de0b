package main

import (
	"fmt"
	"net/http"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func triggerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "trigger <media>",
		Short: "Show an animation or video on the display",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			body, status, err := app.post("/trigger", map[string]string{"animation": args[0]})
			if err != nil {
				return err
			}
			if app.json {
				return app.printJSON(body)
			}
			if status != http.StatusOK {
				pterm.Error.Println(stringField(body, "error"))
				if available, ok := body["available_media"].([]any); ok && len(available) > 0 {
					items := make([]pterm.BulletListItem, 0, len(available))
					for _, item := range available {
						items = append(items, pterm.BulletListItem{Level: 0, Text: fmt.Sprint(item)})
					}
					_ = pterm.DefaultBulletList.WithItems(items).Render()
				}
				return fmt.Errorf("trigger failed")
			}
			pterm.Success.Println(stringField(body, "message"))
			return nil
		},
	}
}

func stopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop all media on the display",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			body, _, err := app.post("/stop", nil)
			if err != nil {
				return err
			}
			if app.json {
				return app.printJSON(body)
			}
			pterm.Success.Println(stringField(body, "message"))
			return nil
		},
	}
}

func listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the available media",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			body, _, err := app.get("/animations")
			if err != nil {
				return err
			}
			if app.json {
				return app.printJSON(body)
			}

			current := stringField(body, "current_animation")
			rows := pterm.TableData{{"MEDIA", "KIND", ""}}
			appendRows := func(key, kind string) {
				items, _ := body[key].([]any)
				for _, item := range items {
					name := fmt.Sprint(item)
					marker := ""
					if name == current {
						marker = "current"
					}
					rows = append(rows, []string{name, kind, marker})
				}
			}
			appendRows("animations", "animation")
			appendRows("videos", "video")
			return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
		},
	}
}

func statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the display status and connection census",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			conn, err := app.dialSocket()
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := conn.WriteJSON(map[string]string{"type": "get_status"}); err != nil {
				return err
			}
			msg, err := app.awaitSocket(conn, "status")
			if err != nil {
				return err
			}
			if app.json {
				return app.printJSON(msg)
			}

			current := stringField(msg, "current_animation")
			if current == "" {
				current = "(nothing)"
			}
			rows := pterm.TableData{
				{"current", current},
				{"media type", stringField(msg, "media_type")},
				{"displays", fmt.Sprint(msg["display_connections"])},
				{"admins", fmt.Sprint(msg["admin_count"])},
				{"legacy", fmt.Sprint(msg["legacy_connections"])},
				{"total", fmt.Sprint(msg["total_connections"])},
				{"obs connected", fmt.Sprint(msg["obs_connected"])},
			}
			return pterm.DefaultTable.WithData(rows).Render()
		},
	}
}
