package main

import (
	"github.com/spf13/cobra"

	"upqueue/internal/render"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the processing queue until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup(cmd)
		if err != nil {
			return err
		}
		htmlPath, _ := cmd.Flags().GetString("html")

		client, err := newClient(cfg)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		view, err := newStatusSync(client, cfg, log, func(rows []render.Row) {
			printQueue(out, rows, true)
			if err := writeHTML(htmlPath, rows); err != nil {
				log.Error("Failed to write html view", "path", htmlPath, "error", err)
			}
		})
		if err != nil {
			return err
		}

		defer log.Info("Bye!")
		return view.Run(cmd.Context())
	},
}

func init() {
	watchCmd.Flags().Duration("poll", 0, "additional periodic pull interval, 0 to rely on push only")
	watchCmd.Flags().String("html", "", "also write the queue view as an html table to this file")
	rootCmd.AddCommand(watchCmd)
}
