package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/okian/rollcall/internal/adapters/mq/queue"
	"github.com/okian/rollcall/internal/adapters/mq/worker"
	"github.com/okian/rollcall/internal/domain/model"
)

func newRecognizeCmd(st *cliState) *cobra.Command {
	var (
		images  []string
		workers int
	)
	cmd := &cobra.Command{
		Use:   "recognize [image...]",
		Short: "Recognize faces and mark attendance",
		Long: `Recognize each image against the gallery. Every match records an
attendance event in the configured store, exactly as POST /recognize does.`,
		Example: `  rollcall recognize --image frame.jpg
  rollcall recognize frames/*.png --workers 8`,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := append(append([]string{}, images...), args...)
			if len(paths) == 0 {
				return fmt.Errorf("at least one image is required")
			}
			jobs, err := readJobs(paths)
			if err != nil {
				return err
			}
			return runRecognize(cmd, st, jobs, workers)
		},
	}
	cmd.Flags().StringSliceVar(&images, "image", nil, "image file (repeatable)")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent jobs (default: one per CPU)")
	return cmd
}

func runRecognize(cmd *cobra.Command, st *cliState, jobs []queue.Job, workers int) error {
	ctx := cmd.Context()
	svc, err := buildService(ctx, st.cfg, st.log)
	if err != nil {
		return err
	}
	defer svc.Stop(context.Background())

	results, err := runBatch(ctx, jobs, workers, st.log, worker.HandlerFunc(func(ctx context.Context, j queue.Job) (any, error) {
		return svc.Recognize(ctx, j.Payload)
	}))
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tOUTCOME\tROLL\tNAME\tSCORE")
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(tw, "%s\t%s\t\t\t%v\n", r.Job.Name, model.RecognizeError, r.Err)
			continue
		}
		res, _ := r.Value.(model.RecognizeResult)
		outcome := string(res.Outcome)
		if res.AlreadyMarked {
			outcome += " (already marked)"
		}
		score := ""
		if res.Outcome == model.RecognizeMatched {
			score = fmt.Sprintf("%.4f", res.Score)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Job.Name, outcome, res.Roll, res.Name, score)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d recognitions failed", failed, len(results))
	}
	return nil
}
