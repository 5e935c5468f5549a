package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshuapare/arckit/arc"
)

func init() {
	rootCmd.AddCommand(newScenarioCmd())
}

func newScenarioCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario <name>",
		Short: "Run a reference-counting ownership scenario",
		Long: `The scenario command walks a handle/registry interaction step by step and
prints the reference count after each step. Use "all" to run every scenario.

Scenarios:
  ` + strings.Join(scenarioNames(), "\n  ") + `

Example:
  arcctl scenario copy-chain
  arcctl scenario double-wrap --policy faithful
  arcctl scenario all --backend arena --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(args)
		},
	}
	return cmd
}

// ScenarioStep is one observed step of a scenario.
type ScenarioStep struct {
	Action   string `json:"action"`
	RefCount uint64 `json:"ref_count"`
	Live     int64  `json:"live_blocks"`
	Error    string `json:"error,omitempty"`
}

// ScenarioReport is the outcome of one scenario run.
type ScenarioReport struct {
	Name       string         `json:"name"`
	Backend    string         `json:"backend"`
	Policy     string         `json:"policy"`
	Steps      []ScenarioStep `json:"steps"`
	Violations []string       `json:"violations,omitempty"`
	Leaked     int64          `json:"leaked_blocks"`
	Expected   string         `json:"expected"`
	Passed     bool           `json:"passed"`
}

// scenarioRun is the state a scenario body records into.
type scenarioRun struct {
	reg    *arc.Registry
	report *ScenarioReport
}

// step records action with the count of p after it ran.
func (s *scenarioRun) step(action string, p arc.Ptr, err error) {
	st := ScenarioStep{
		Action:   action,
		RefCount: s.reg.RefCount(p),
		Live:     s.reg.Stats().LiveBlocks,
	}
	if err != nil {
		st.Error = err.Error()
	}
	s.report.Steps = append(s.report.Steps, st)
}

type scenario struct {
	desc string
	// run executes the body and reports whether the outcome matched what the
	// active policy predicts, along with that prediction.
	run func(s *scenarioRun) (ok bool, expected string)
}

// note is the scenario payload; it mirrors a small owned resource.
type note struct {
	Text string
}

var scenarios = map[string]scenario{
	"wrap-once": {
		desc: "make a shared object and drop the only handle",
		run: func(s *scenarioRun) (bool, string) {
			h, err := arc.MakeShared(s.reg, note{Text: "once"})
			p := h.Ptr()
			s.step("make-shared", p, err)
			err = h.Release()
			s.step("release handle", p, err)
			return s.reg.Stats().LiveBlocks == 0 && len(s.report.Violations) == 0,
				"freed exactly once"
		},
	},
	"copy-chain": {
		desc: "adopt a fresh object, clone the handle, drop both",
		run: func(s *scenarioRun) (bool, string) {
			p, err := arc.New(s.reg, note{Text: "chain"})
			s.step("new", p, err)
			h1, err := arc.Adopt[note](s.reg, p)
			s.step("adopt h1", p, err)
			h2, err := h1.Clone()
			s.step("clone h2", p, err)
			err = h2.Release()
			s.step("release h2", p, err)
			err = h1.Release()
			s.step("release h1", p, err)
			return s.reg.Stats().LiveBlocks == 0 && len(s.report.Violations) == 0,
				"freed after the last handle"
		},
	},
	"self-assign": {
		desc: "assign a handle to itself",
		run: func(s *scenarioRun) (bool, string) {
			h, err := arc.MakeShared(s.reg, note{Text: "self"})
			p := h.Ptr()
			s.step("make-shared", p, err)
			before := h.RefCount()
			err = h.Assign(&h)
			s.step("assign to self", p, err)
			unchanged := h.RefCount() == before
			err = h.Release()
			s.step("release handle", p, err)
			return unchanged && s.reg.Stats().LiveBlocks == 0, "count unchanged by self-assignment"
		},
	},
	"null-deref": {
		desc: "dereference an empty handle",
		run: func(s *scenarioRun) (bool, string) {
			h := arc.Empty[note](s.reg)
			_, err := h.Value()
			s.step("dereference empty", h.Ptr(), err)
			return errors.Is(err, arc.ErrNullDereference), "null dereference error"
		},
	},
	"direct-deallocate": {
		desc: "deallocate a block that is still referenced",
		run: func(s *scenarioRun) (bool, string) {
			p, err := arc.New(s.reg, note{Text: "held"})
			s.step("new", p, err)
			derr := s.reg.Deallocate(p)
			s.step("deallocate", p, derr)
			err = s.reg.Release(p)
			s.step("release", p, err)
			return errors.Is(derr, arc.ErrMemory) && s.reg.Stats().LiveBlocks == 0,
				"memory error, block kept until released"
		},
	},
	"double-wrap": {
		desc: "wrap the same raw pointer in two independent handles",
		run: func(s *scenarioRun) (bool, string) {
			p, err := arc.New(s.reg, note{Text: "twice"})
			s.step("new", p, err)
			h1, err := arc.NewShared[note](s.reg, p)
			s.step("wrap h1", p, err)
			h2, err := arc.NewShared[note](s.reg, p)
			s.step("wrap h2", p, err)
			err = h1.Release()
			s.step("release h1", p, err)
			err = h2.Release()
			s.step("release h2", p, err)

			if s.reg.Policy() == arc.PolicyFaithful {
				return len(s.report.Violations) > 0 && s.reg.Stats().LiveBlocks == 0,
					"freed early, then a release of a freed block is reported"
			}
			err = s.reg.Release(p)
			s.step("release creator reference", p, err)
			return len(s.report.Violations) == 0 && s.reg.Stats().LiveBlocks == 0,
				"freed once, after the creator's release"
		},
	},
}

func scenarioNames() []string {
	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func runScenario(args []string) error {
	cfg, err := configFromFlags()
	if err != nil {
		return err
	}

	names := []string{args[0]}
	if args[0] == "all" {
		names = scenarioNames()
	}

	reports := make([]ScenarioReport, 0, len(names))
	for _, name := range names {
		rep, err := playScenario(cfg, name)
		if err != nil {
			return err
		}
		reports = append(reports, rep)
	}

	if jsonOut {
		return printJSON(reports)
	}

	failed := 0
	for _, rep := range reports {
		printScenario(rep)
		if !rep.Passed {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scenarios did not behave as expected", failed, len(reports))
	}
	return nil
}

// playScenario runs one scenario on a fresh registry.
func playScenario(cfg registryConfig, name string) (ScenarioReport, error) {
	sc, ok := scenarios[name]
	if !ok {
		return ScenarioReport{}, fmt.Errorf("unknown scenario %q (have: %s)", name, strings.Join(scenarioNames(), ", "))
	}

	report := ScenarioReport{Name: name, Backend: cfg.Backend, Policy: cfg.Policy.String()}
	rep := arc.ReporterFunc(func(err *arc.Error) {
		report.Violations = append(report.Violations, err.Error())
	})
	reg, err := newRegistry(cfg, rep)
	if err != nil {
		return ScenarioReport{}, err
	}

	s := &scenarioRun{reg: reg, report: &report}
	report.Passed, report.Expected = sc.run(s)
	report.Leaked = reg.Stats().LiveBlocks
	if err := reg.Close(); err != nil {
		printVerbose("close: %v\n", err)
		report.Passed = false
	}
	return report, nil
}

func printScenario(rep ScenarioReport) {
	status := "ok"
	if !rep.Passed {
		status = "UNEXPECTED"
	}
	printInfo("\n%s [%s, %s]: %s\n", rep.Name, rep.Policy, rep.Backend, status)
	printInfo("  %s\n", scenarios[rep.Name].desc)
	for _, st := range rep.Steps {
		printInfo("  %-28s refs=%d live=%d", st.Action, st.RefCount, st.Live)
		if st.Error != "" {
			printInfo("  error: %s", st.Error)
		}
		printInfo("\n")
	}
	for _, v := range rep.Violations {
		printInfo("  violation: %s\n", v)
	}
	printVerbose("  expected: %s\n", rep.Expected)
}
