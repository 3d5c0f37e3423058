package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"example.com/reps/internal/exercises"
)

func (a *app) exercisesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exercises",
		Short: "List the exercise catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := exercises.Load(a.cfg.ExerciseMapPath)
			if err != nil {
				return err
			}
			list := catalog.List()
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No exercise catalog configured (set EXERCISE_MAP_PATH).")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tNAME")
			for _, ex := range list {
				fmt.Fprintf(w, "%d\t%s\n", ex.Code, ex.Name)
			}
			return w.Flush()
		},
	}
}
