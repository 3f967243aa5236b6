package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"studentetl/internal/config"
	"studentetl/internal/metrics"
	"studentetl/internal/metrics/datadog"
	"studentetl/internal/metrics/prompush"
	"studentetl/internal/report"
)

// app holds the global flags and the per-run state set up by run.
type app struct {
	cfgPath string
	verbose bool

	job config.Job
	out io.Writer
	// now is swapped in tests for deterministic report names.
	now func() time.Time
}

func newRootCmd() *cobra.Command {
	a := &app{now: time.Now}
	cmd := &cobra.Command{
		Use:           "studentetl",
		Short:         "Load school data and migrate GPA summaries between stores",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			a.out = cmd.OutOrStdout()
		},
	}
	cmd.PersistentFlags().StringVar(&a.cfgPath, "config", "", "job config JSON path (defaults plus environment when empty)")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug-level report lines")

	cmd.AddCommand(
		newGradesCmd(a),
		newStudentsCmd(a),
		newMigrateCmd(a),
		newCleanupCmd(a),
		newSchemaCmd(a),
		newCountsCmd(a),
		newValidateCmd(a),
	)
	return cmd
}

// loadJob reads env files and the job config and lints it. Warnings are
// printed; errors fail.
func (a *app) loadJob() error {
	if _, err := config.LoadEnv(config.EnvFiles); err != nil {
		return err
	}
	job, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	issues := config.ValidateJob(job)
	for _, iss := range issues {
		fmt.Fprintf(a.out, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return fmt.Errorf("configuration is invalid: %s", displayPath(a.cfgPath))
	}
	a.job = job
	return nil
}

func displayPath(p string) string {
	if p == "" {
		return "(defaults)"
	}
	return p
}

// run loads the job, opens the report and metrics backend, calls fn and
// tears everything down. Flush and close failures are logged, not returned.
func (a *app) run(ctx context.Context, step string, fn func(ctx context.Context, log logrus.FieldLogger) error) error {
	if err := a.loadJob(); err != nil {
		return err
	}

	rep, err := report.Open(a.job.Report.Dir, a.now(), a.job.Report.Stderr)
	if err != nil {
		return err
	}
	if a.verbose {
		rep.Log.SetLevel(logrus.DebugLevel)
	}
	log := rep.Log.WithField("command", step)
	defer func() {
		if err := rep.Close(); err != nil {
			fmt.Fprintf(a.out, "report: %v\n", err)
		}
	}()

	if flush := a.setupMetrics(log); flush != nil {
		defer flush()
	}

	start := a.now()
	log.Info("run started")
	err = fn(ctx, log)
	entry := log.WithField("elapsed", time.Since(start).Truncate(time.Millisecond).String())
	if err != nil {
		entry.WithError(err).Error("run failed")
	} else {
		entry.Info("run finished")
	}
	fmt.Fprintf(a.out, "report: %s\n", rep.Path)
	return err
}

// setupMetrics installs the configured backend and returns its flush, or
// nil when metrics are off or the backend could not start.
func (a *app) setupMetrics(log logrus.FieldLogger) func() {
	m := a.job.Metrics
	var (
		b   metrics.Backend
		err error
	)
	switch m.Backend {
	case "", config.MetricsNone:
		log.Debug("metrics disabled")
		return nil
	case "pushgateway":
		b, err = prompush.NewBackend(a.job.Job, m.PushgatewayURL)
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       m.DatadogAddr,
			Namespace:  "studentetl.",
			GlobalTags: []string{"job:" + a.job.Job},
		})
	default:
		log.Warnf("unknown metrics backend %q; metrics disabled", m.Backend)
		return nil
	}
	if err != nil {
		log.WithError(err).Warn("metrics backend unavailable; using nop")
		return nil
	}

	log.WithField("backend", m.Backend).Debug("metrics enabled")
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.WithError(err).Warn("metrics flush failed")
		}
	}
}
