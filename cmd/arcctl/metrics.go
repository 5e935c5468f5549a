package main

import (
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/joshuapare/arckit/arc"
	"github.com/joshuapare/arckit/arc/arcmetrics"
)

var metricsNamespace string

func init() {
	cmd := newMetricsCmd()
	rootCmd.AddCommand(cmd)
}

func newMetricsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Run a short stress pass and print registry metrics",
		Long: `The metrics command runs a short stress pass, keeps a handful of blocks
live, and prints the registry's Prometheus metrics in text exposition format.

Example:
  arcctl metrics
  arcctl metrics --backend arena --namespace myapp`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMetrics(args)
		},
	}

	cmd.Flags().StringVar(&metricsNamespace, "namespace", "arc", "Metric namespace")

	return cmd
}

// liveSample is the number of blocks held across the metrics scrape so the
// live gauges are non-zero.
const liveSample = 8

func runMetrics(args []string) error {
	cfg, err := configFromFlags()
	if err != nil {
		return err
	}
	reg, err := newRegistry(cfg, arc.LogReporter{Logger: newLogger()})
	if err != nil {
		return err
	}
	defer reg.Close()

	if _, err := stress(reg, stressConfig{Ops: 1000, Seed: 1, Workers: 2, Slots: 16, MaxSize: 256}); err != nil {
		return err
	}
	held := make([]arc.Ptr, 0, liveSample)
	for i := range liveSample {
		p, err := reg.Allocate(32 * (i + 1))
		if err != nil {
			return err
		}
		held = append(held, p)
	}
	defer func() {
		for _, p := range held {
			_ = reg.Release(p)
		}
	}()

	return writeMetrics(reg, metricsNamespace)
}

// writeMetrics gathers reg's collector and writes it to stdout.
func writeMetrics(reg *arc.Registry, namespace string) error {
	pr := prometheus.NewPedanticRegistry()
	if err := pr.Register(arcmetrics.NewCollector(reg, namespace, prometheus.Labels{"backend": backendName})); err != nil {
		return err
	}
	families, err := pr.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(os.Stdout, mf); err != nil {
			return err
		}
	}
	return nil
}
