package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/okian/rollcall/internal/adapters/mq/queue"
	"github.com/okian/rollcall/internal/adapters/mq/worker"
	app "github.com/okian/rollcall/internal/app"
	"github.com/okian/rollcall/internal/domain/model"
)

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true, ".webp": true,
}

func newEnrollCmd(st *cliState) *cobra.Command {
	var (
		roll, name, image, dir string
		workers                int
	)
	cmd := &cobra.Command{
		Use:   "enroll",
		Short: "Enroll faces into the gallery",
		Long: `Enroll one face with --roll, --name and --image, or every image in --dir.
Directory entries are named <roll>_<name>.<ext>; underscores in the name
become spaces, so 101_Asha_Rao.jpg enrolls roll 101 as "Asha Rao".`,
		Example: `  rollcall enroll --roll 101 --name "Asha Rao" --image asha.jpg
  rollcall enroll --dir ./class-photos --workers 4`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var jobs []queue.Job
			switch {
			case dir != "" && image != "":
				return errors.New("use either --image or --dir")
			case dir != "":
				var err error
				if jobs, err = dirJobs(dir); err != nil {
					return err
				}
			case image != "":
				data, err := os.ReadFile(image)
				if err != nil {
					return fmt.Errorf("read %s: %w", image, err)
				}
				jobs = []queue.Job{{Name: image, Roll: roll, Label: name, Payload: data}}
			default:
				return errors.New("--image or --dir is required")
			}
			return runEnroll(cmd, st, jobs, workers)
		},
	}
	cmd.Flags().StringVar(&roll, "roll", "", "roll number")
	cmd.Flags().StringVar(&name, "name", "", "student name")
	cmd.Flags().StringVar(&image, "image", "", "image file")
	cmd.Flags().StringVar(&dir, "dir", "", "directory of <roll>_<name>.<ext> images")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent jobs for --dir (default: one per CPU)")
	return cmd
}

// dirJobs lists enrollable images in dir in name order.
func dirJobs(dir string) ([]queue.Job, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	var jobs []queue.Job
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		roll, name, ok := parseEnrollName(e.Name())
		if !ok {
			return nil, fmt.Errorf("%s: expected <roll>_<name>.<ext>", e.Name())
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		jobs = append(jobs, queue.Job{Seq: len(jobs), Name: path, Roll: roll, Label: name, Payload: data})
	}
	return jobs, nil
}

// parseEnrollName splits "101_Asha_Rao.jpg" into ("101", "Asha Rao").
func parseEnrollName(file string) (roll, name string, ok bool) {
	base := strings.TrimSuffix(file, filepath.Ext(file))
	roll, rest, found := strings.Cut(base, "_")
	if !found || roll == "" || rest == "" {
		return "", "", false
	}
	return roll, strings.ReplaceAll(rest, "_", " "), true
}

func runEnroll(cmd *cobra.Command, st *cliState, jobs []queue.Job, workers int) error {
	ctx := cmd.Context()
	svc, err := buildService(ctx, st.cfg, st.log)
	if err != nil {
		return err
	}
	defer svc.Stop(context.Background())

	results, err := runBatch(ctx, jobs, workers, st.log, worker.HandlerFunc(func(ctx context.Context, j queue.Job) (any, error) {
		return svc.Enroll(ctx, app.EnrollRequest{Roll: j.Roll, Name: j.Label, Image: j.Payload})
	}))
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tROLL\tOUTCOME\tDETAIL")
	failed := 0
	for _, r := range results {
		res, _ := r.Value.(model.EnrollResult)
		if r.Err != nil {
			failed++
			fmt.Fprintf(tw, "%s\t%s\t%s\t%v\n", r.Job.Name, r.Job.Roll, model.EnrollError, r.Err)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Job.Name, r.Job.Roll, res.Outcome, res.Reason)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d enrollments failed", failed, len(results))
	}
	return nil
}
