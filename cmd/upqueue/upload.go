package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"upqueue/internal/render"
	"upqueue/internal/upload"
	"upqueue/internal/utils"
)

var uploadCmd = &cobra.Command{
	Use:   "upload FILE...",
	Short: "Upload files as one batch and show the processing queue",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup(cmd)
		if err != nil {
			return err
		}
		htmlPath, _ := cmd.Flags().GetString("html")
		follow, _ := cmd.Flags().GetBool("watch")

		policy, err := upload.ParseManifestPolicy(cfg.ManifestPolicy)
		if err != nil {
			return err
		}

		files, err := utils.OpenFiles(args, cfg.MaxFileSize)
		if err != nil {
			return err
		}

		client, err := newClient(cfg)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		onChange := func(rows []render.Row) {
			if follow {
				printQueue(out, rows, true)
			}
			if err := writeHTML(htmlPath, rows); err != nil {
				log.Error("Failed to write html view", "path", htmlPath, "error", err)
			}
		}
		view, err := newStatusSync(client, cfg, log, onChange)
		if err != nil {
			return err
		}

		batch := upload.NewBatch(
			upload.NewSlotRequester(client, cfg.MaxBatchSize, log),
			upload.NewDispatcher(client, cfg.UploadConcurrency, log),
			upload.NewReporter(client, policy, log),
			view,
			log,
		)

		result, submitErr := batch.Submit(cmd.Context(), statusLine{out: cmd.ErrOrStderr()}, files)
		if result != nil {
			printOutcomes(out, result.Outcomes)
		}

		if follow {
			if submitErr != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render(submitErr.Error()))
			}
			return view.Run(cmd.Context())
		}

		if err := view.RefreshNow(cmd.Context()); err == nil {
			printQueue(out, view.Rows(), false)
		}
		return submitErr
	},
}

func init() {
	uploadCmd.Flags().String("policy", "", "manifest policy: successes or all-slots")
	uploadCmd.Flags().Int("concurrency", 0, "max parallel uploads, 0 for no limit")
	uploadCmd.Flags().String("html", "", "also write the queue view as an html table to this file")
	uploadCmd.Flags().BoolP("watch", "w", false, "keep following the queue after the upload")
	rootCmd.AddCommand(uploadCmd)
}
