package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"example.com/reps/internal/events"
	"example.com/reps/internal/exercises"
	"example.com/reps/internal/observability"
	"example.com/reps/internal/validate"
)

func (a *app) validator(source validate.Source, pub events.Publisher) (*validate.Validator, error) {
	catalog, err := exercises.Load(a.cfg.ExerciseMapPath)
	if err != nil {
		return nil, err
	}
	limits := validate.Limits{Accel: a.cfg.AccelLimit, Gyro: a.cfg.GyroLimit}.WithDefaults()
	return validate.New(source,
		validate.WithRules(validate.DefaultRules(limits, a.cfg.RequireLabelCoverage)...),
		validate.WithNamer(catalog),
		validate.WithLogger(a.logger.Named("validate")),
		validate.WithPublisher(pub),
	), nil
}

func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Run warehouse sanity checks",
		Long: `Checks that every recording starts and ends at rest, that structured sessions end
before unstructured ones begin and that no sample exceeds the sensor limits.
Exits 1 when any check fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.EnsureSchema(ctx); err != nil {
				return err
			}
			pub := a.publisher()
			defer pub.Close()

			v, err := a.validator(store, pub)
			if err != nil {
				return err
			}

			report, err := v.Validate(ctx)
			if pushErr := observability.Push(ctx, a.cfg.PushgatewayURL, "reps_validate"); pushErr != nil {
				a.logger.Warn("push metrics", zap.Error(pushErr))
			}
			return printReport(cmd.OutOrStdout(), report, err)
		},
	}
}

// printReport writes the violations a run found before surfacing rule errors, so a rule
// that could not execute never hides what the others reported.
func printReport(out io.Writer, report validate.Report, runErr error) error {
	msgs := report.Messages()
	if len(msgs) == 0 {
		if runErr != nil {
			return runErr
		}
		fmt.Fprintln(out, "Warehouse looks clean.")
		return nil
	}
	fmt.Fprintln(out, "DATA VALIDATION FAILED")
	for _, msg := range msgs {
		fmt.Fprintln(out, msg)
	}
	return errors.Join(runErr, errValidationFailed)
}
