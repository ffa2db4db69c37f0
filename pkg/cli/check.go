package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/guilocator/pkg/report"
	"github.com/devicelab-dev/guilocator/pkg/suite"
	"github.com/devicelab-dev/guilocator/pkg/validator"
)

var tagFlags = []cli.Flag{
	&cli.StringSliceFlag{
		Name:  "include-tags",
		Usage: "Only check suites with these tags",
	},
	&cli.StringSliceFlag{
		Name:  "exclude-tags",
		Usage: "Skip suites with these tags",
	},
}

var checkCommand = &cli.Command{
	Name:      "check",
	Usage:     "Check locator suites",
	ArgsUsage: "<suite.yaml | dir>...",
	Description: `Check YAML locator suites. Each case names a locator and the
kind, canonical form, normalized class, error code or match count it must
produce. Directories are searched recursively. Every suite is validated
before any case runs.

Match counts come from each suite's hierarchy file, or from a live
application when --agent is given.

Examples:
  guilocator check suites/
  guilocator check --parallel 4 --report out/ suites/
  guilocator check --include-tags smoke suites/dialog.yaml
  guilocator check --agent localhost:9999 suites/live/`,
	Flags: append([]cli.Flag{
		&cli.IntFlag{
			Name:  "parallel",
			Usage: "Check this many suites at once",
			Value: 1,
		},
		&cli.StringFlag{
			Name:  "report",
			Usage: "Write report.json, report.html and allure-results/ to this directory",
		},
		&cli.StringFlag{
			Name:    "agent",
			Usage:   "Resolve match counts through the agent at `ADDR`",
			EnvVars: []string{"LOCATOR_AGENT_ADDR"},
		},
	}, tagFlags...),
	Action: runCheck,
}

var validateCommand = &cli.Command{
	Name:      "validate",
	Usage:     "Validate locator suites without checking them",
	ArgsUsage: "<suite.yaml | dir>...",
	Description: `Parse suite files, their locators and toolkits, and report
every problem with its file and line.

Examples:
  guilocator validate suites/
  guilocator validate --exclude-tags slow suites/`,
	Flags:  tagFlags,
	Action: runValidate,
}

// loadSuites validates paths and returns the suites that pass the tag
// filters. All validation errors are printed before failing.
func loadSuites(c *cli.Context, rt *runtime) ([]*suite.Suite, error) {
	v := validator.New(rt.caches, c.StringSlice("include-tags"), c.StringSlice("exclude-tags"))
	v.Live = c.String("agent") != ""
	result := v.Validate(c.Args().Slice()...)
	if !result.IsValid() {
		var w io.Writer = os.Stderr
		if c.App.ErrWriter != nil {
			w = c.App.ErrWriter
		}
		for _, err := range result.Errors {
			fmt.Fprintf(w, "  %s✗%s %v\n", color(colorRed), color(colorReset), err)
		}
		return nil, cli.Exit(fmt.Sprintf("%d validation error(s)", len(result.Errors)), 1)
	}
	if len(result.Suites) == 0 {
		return nil, fmt.Errorf("no suites to check")
	}
	return result.Suites, nil
}

func runValidate(c *cli.Context) error {
	if err := requireArgs(c, "suite file or directory"); err != nil {
		return err
	}
	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	defer rt.close()

	suites, err := loadSuites(c, rt)
	if err != nil {
		return err
	}

	cases := 0
	files := make([]string, 0, len(suites))
	for _, s := range suites {
		cases += len(s.Cases)
		files = append(files, s.SourcePath)
	}
	if rt.structured() {
		return rt.emit(map[string]any{"files": files, "cases": cases})
	}
	rt.printf("  %s✓%s %d suite(s), %d case(s) valid\n", color(colorGreen), color(colorReset), len(suites), cases)
	return nil
}

func runCheck(c *cli.Context) error {
	if err := requireArgs(c, "suite file or directory"); err != nil {
		return err
	}
	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	defer rt.close()

	suites, err := loadSuites(c, rt)
	if err != nil {
		return err
	}

	runner := &suite.Runner{
		Checker: suite.Checker{Caches: rt.caches, Toolkit: rt.toolkit},
		Workers: c.Int("parallel"),
		Lookups: rt.cacheCfg,
	}
	transport := "hierarchy"
	if addr := c.String("agent"); addr != "" {
		d, closeFn, err := openAgent(c, rt, addr)
		if err != nil {
			return err
		}
		defer closeFn()
		runner.Checker.Transport = d
		runner.Checker.Toolkit = rt.toolkit
		transport = "agent"
	}

	res, err := runner.Run(c.Context, suites)
	if err != nil {
		return err
	}

	if dir := c.String("report"); dir != "" {
		index := report.Build(res, report.BuilderConfig{
			Toolkit:       rt.toolkit.String(),
			RunnerVersion: Version,
			Workers:       runner.Workers,
			Transport:     transport,
			Caches:        rt.caches,
		})
		if err := writeReport(dir, index); err != nil {
			return err
		}
	}

	if rt.structured() {
		if err := rt.emit(res.Reports); err != nil {
			return err
		}
	} else {
		printReports(rt, res)
	}

	if !res.OK() {
		return errFailures(res.Failed, "case(s)")
	}
	return nil
}

func writeReport(dir string, index *report.Index) error {
	if err := report.Write(dir, index); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := report.GenerateHTML(dir, report.HTMLConfig{}); err != nil {
		return err
	}
	return report.GenerateAllure(dir)
}

func printReports(rt *runtime, res *suite.RunResult) {
	for _, r := range res.Reports {
		name := r.Name
		if name == "" {
			name = r.Path
		}
		rt.printf("\n  %s%s%s %s(%s, %s)%s\n", color(colorBold), name, color(colorReset),
			color(colorDim), r.Path, r.Toolkit, color(colorReset))

		for _, result := range r.Results {
			if result.Passed {
				rt.printf("    %s✓%s %s %s%s%s\n", color(colorGreen), color(colorReset), result.Name,
					color(colorDim), formatDuration(result.Duration.Milliseconds()), color(colorReset))
				continue
			}
			rt.printf("    %s✗ %s%s (line %d)\n", color(colorRed), result.Name, color(colorReset), result.Line)
			for _, f := range result.Failures {
				rt.printf("        %s\n", f)
			}
		}
	}

	rt.printf("\n%s\n", strings.Repeat("═", 48))
	if res.Passed > 0 {
		rt.printf("  %s%d passing%s\n", color(colorGreen), res.Passed, color(colorReset))
	}
	if res.Failed > 0 {
		rt.printf("  %s%d failing%s\n", color(colorRed), res.Failed, color(colorReset))
	}
	if res.Suites > 1 {
		rt.printf("  %s%d suite(s) in %s%s\n", color(colorDim), res.Suites, formatDuration(res.Duration.Milliseconds()), color(colorReset))
	}
}

func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	mins := ms / 60000
	secs := (ms % 60000) / 1000
	return fmt.Sprintf("%dm %ds", mins, secs)
}
