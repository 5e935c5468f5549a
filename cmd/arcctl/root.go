package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshuapare/arckit/arc"
	"github.com/joshuapare/arckit/arc/alloc"
)

var (
	// Global flags
	verbose     bool
	quiet       bool
	jsonOut     bool
	backendName string
	policyName  string
)

var rootCmd = &cobra.Command{
	Use:   "arcctl",
	Short: "Exercise the arc reference-counting registry",
	Long: `arcctl drives the arc registry through its ownership scenarios, randomized
retain/release runs, and a node lifecycle demo. Every command can run on any
backend (go, offheap, arena) and under either release policy (single, faithful).`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output and allocation tracing")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&backendName, "backend", alloc.NameGoHeap,
		"Memory backend: "+strings.Join(alloc.Names(), ", "))
	rootCmd.PersistentFlags().StringVar(&policyName, "policy", arc.PolicySingle.String(),
		"Shared handle release policy: single, faithful")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// registryConfig captures the global flags a command builds its registries from.
type registryConfig struct {
	Backend string
	Policy  arc.Policy
}

// configFromFlags validates the global flags.
func configFromFlags() (registryConfig, error) {
	policy, err := arc.ParsePolicy(policyName)
	if err != nil {
		return registryConfig{}, err
	}
	if !slices.Contains(alloc.Names(), backendName) {
		return registryConfig{}, fmt.Errorf("%w: %q", alloc.ErrUnknownBackend, backendName)
	}
	return registryConfig{Backend: backendName, Policy: policy}, nil
}

// newRegistry builds a registry for cfg. Violations go to rep.
func newRegistry(cfg registryConfig, rep arc.Reporter) (*arc.Registry, error) {
	backend, err := alloc.ByName(cfg.Backend)
	if err != nil {
		return nil, err
	}
	return arc.NewRegistry(&arc.Options{
		Backend:     backend,
		Policy:      cfg.Policy,
		Reporter:    rep,
		Logger:      newLogger(),
		TraceAllocs: verbose,
	}), nil
}

// newLogger returns a stderr logger whose level follows --verbose/--quiet.
func newLogger() *slog.Logger {
	level := slog.LevelWarn
	switch {
	case quiet:
		level = slog.LevelError
	case verbose:
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...interface{}) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
