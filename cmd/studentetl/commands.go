package main

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"studentetl/internal/etl"
	"studentetl/internal/ingest"
	"studentetl/internal/storage"
)

func optionalPath(args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	return ""
}

func newGradesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "grades [file]",
		Short: "Upsert grade bands from a CSV file (default: inputs.grades_path)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), "grades", func(ctx context.Context, log logrus.FieldLogger) error {
				sum, err := etl.RunGradeLoad(ctx, a.job, optionalPath(args), log)
				printSummary(a.out, "grades", sum)
				return err
			})
		},
	}
}

func newStudentsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "students [file]",
		Short: "Upsert students and marks from a CSV file (default: inputs.students_path)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), "students", func(ctx context.Context, log logrus.FieldLogger) error {
				sum, err := etl.RunStudentLoad(ctx, a.job, optionalPath(args), log)
				printSummary(a.out, "students", sum)
				if err == nil {
					fmt.Fprintf(a.out, "marks: %d loaded, %d skipped, %d failed\n",
						sum.MarksLoaded, sum.MarksSkipped, sum.MarksFailed)
				}
				return err
			})
		},
	}
}

func printSummary(w io.Writer, kind string, sum ingest.Summary) {
	fmt.Fprintf(w, "%s: %d loaded, %d skipped, %d failed\n", kind, sum.Loaded, sum.Skipped, sum.Failed)
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aggregate GPAs from the school store into the academics store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context(), "migrate", func(ctx context.Context, log logrus.FieldLogger) error {
				res, err := etl.RunMigration(ctx, a.job, log)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "migrate: %d succeeded, %d failed\n", res.Succeeded, res.Failed)
				return nil
			})
		},
	}
}

// roleArg validates the <school|academics> positional argument.
func roleArg(cmd *cobra.Command, args []string) error {
	if err := cobra.ExactArgs(1)(cmd, args); err != nil {
		return err
	}
	_, err := storage.ParseRole(args[0])
	return err
}

// roleNames are the completions for <school|academics> arguments.
var roleNames = []string{string(storage.RoleSchool), string(storage.RoleAcademics)}

func mustRole(s string) storage.Role {
	r, _ := storage.ParseRole(s)
	return r
}

func printCounts(w io.Writer, role storage.Role, verb string, counts []storage.TableCount) {
	for _, c := range counts {
		fmt.Fprintf(w, "%s.%s: %d %s\n", role, c.Table, c.Rows, verb)
	}
}

func newCleanupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "cleanup <school|academics>",
		Short:     "Delete every row of a store",
		Args:      roleArg,
		ValidArgs: roleNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			role := mustRole(args[0])
			return a.run(cmd.Context(), "cleanup", func(ctx context.Context, log logrus.FieldLogger) error {
				counts, err := etl.RunCleanup(ctx, a.job, role, log)
				printCounts(a.out, role, "deleted", counts)
				return err
			})
		},
	}
}

func newCountsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "counts <school|academics>",
		Short:     "Print the row count of every table in a store",
		Args:      roleArg,
		ValidArgs: roleNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			role := mustRole(args[0])
			return a.run(cmd.Context(), "counts", func(ctx context.Context, log logrus.FieldLogger) error {
				counts, err := etl.RunCounts(ctx, a.job, role, log)
				printCounts(a.out, role, "rows", counts)
				return err
			})
		},
	}
}

func newSchemaCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Create or drop store tables",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:       "create <school|academics>",
			Short:     "Create the store's tables when missing",
			Args:      roleArg,
			ValidArgs: roleNames,
			RunE: func(cmd *cobra.Command, args []string) error {
				role := mustRole(args[0])
				return a.run(cmd.Context(), "schema create", func(ctx context.Context, log logrus.FieldLogger) error {
					if err := etl.RunCreateSchema(ctx, a.job, role, log); err != nil {
						return err
					}
					fmt.Fprintf(a.out, "%s: schema created\n", role)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:       "drop <school|academics>",
			Short:     "Drop the store's tables",
			Args:      roleArg,
			ValidArgs: roleNames,
			RunE: func(cmd *cobra.Command, args []string) error {
				role := mustRole(args[0])
				return a.run(cmd.Context(), "schema drop", func(ctx context.Context, log logrus.FieldLogger) error {
					if err := etl.RunDropSchema(ctx, a.job, role, log); err != nil {
						return err
					}
					fmt.Fprintf(a.out, "%s: schema dropped\n", role)
					return nil
				})
			},
		},
	)
	return cmd
}

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Lint the job configuration and exit",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := a.loadJob(); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "configuration is valid: %s (school=%s, academics=%s)\n",
				displayPath(a.cfgPath), a.job.Stores.School.Kind, a.job.Stores.Academics.Kind)
			return nil
		},
	}
}
