package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"example.com/reps/internal/ingest"
	"example.com/reps/internal/observability"
	"example.com/reps/internal/rawdata"
)

func (a *app) ingestCmd() *cobra.Command {
	var (
		subjectID string
		all       bool
		workers   int
		keepGoing bool
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load raw subject recordings into the warehouse",
		Long: `Aligns accelerometer and gyroscope streams onto a 10ms grid, segments the exercise
labels of every session found for the subject and appends both to the warehouse.

Example:
  reps ingest --subject-id 001
  reps ingest --all --workers 4`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			loc, err := a.cfg.Location()
			if err != nil {
				return err
			}
			locator := rawdata.NewLocator(a.cfg.RawRoot)

			ids := []string{subjectID}
			if all {
				if ids, err = locator.Subjects(); err != nil {
					return err
				}
				if len(ids) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "No subjects found under %s\n", locator.Root())
					return nil
				}
			}

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			pub := a.publisher()
			defer pub.Close()

			ingestor := ingest.NewIngestor(locator, rawdata.NewReader(loc), store,
				ingest.WithLogger(a.logger.Named("ingest")),
				ingest.WithPublisher(pub))
			runner := ingest.NewBatchRunner(ingestor,
				ingest.WithWorkers(workers),
				ingest.WithContinueOnError(keepGoing),
				ingest.WithBatchLogger(a.logger.Named("batch")))

			a.logger.Info("ingest started", zap.String("run_id", ingestor.RunID()), zap.Int("subjects", len(ids)), zap.Int("workers", workers))
			results, runErr := runner.Run(ctx, ids)
			for _, res := range results {
				printResult(cmd, res)
			}

			if err := observability.Push(ctx, a.cfg.PushgatewayURL, "reps_ingest"); err != nil {
				a.logger.Warn("push metrics", zap.Error(err))
			}
			return runErr
		},
	}

	cmd.Flags().StringVarP(&subjectID, "subject-id", "s", "", "single participant id")
	cmd.Flags().BoolVar(&all, "all", false, "ingest every raw subject found")
	cmd.Flags().IntVar(&workers, "workers", a.cfg.Workers, "subjects ingested concurrently")
	cmd.Flags().BoolVar(&keepGoing, "keep-going", false, "continue with the remaining subjects after a failure")
	cmd.MarkFlagsMutuallyExclusive("subject-id", "all")
	cmd.MarkFlagsOneRequired("subject-id", "all")
	return cmd
}

func printResult(cmd *cobra.Command, res ingest.Result) {
	switch {
	case res.SubjectID == "":
		return
	case res.Skipped:
		fmt.Fprintf(cmd.OutOrStdout(), "[%s] no label files, skipped\n", res.SubjectID)
	default:
		for _, s := range res.Sessions {
			fmt.Fprintf(cmd.OutOrStdout(), "[%s] ingested %s: %d imu rows, %d label segments\n",
				res.SubjectID, s.Session, s.Samples, s.Segments)
		}
	}
}
