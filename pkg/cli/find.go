package cli

import (
	"fmt"
	"sort"

	"github.com/urfave/cli/v2"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/devicelab-dev/guilocator/pkg/cache"
	"github.com/devicelab-dev/guilocator/pkg/driver/agent"
	"github.com/devicelab-dev/guilocator/pkg/driver/mock"
	"github.com/devicelab-dev/guilocator/pkg/finder"
	"github.com/devicelab-dev/guilocator/pkg/logger"
	"github.com/devicelab-dev/guilocator/pkg/metrics"
)

var findCommand = &cli.Command{
	Name:      "find",
	Usage:     "Evaluate locators against a hierarchy dump or a live agent",
	ArgsUsage: "<locator>...",
	Description: `Print the elements each locator matches, either in a JSON
component hierarchy (--hierarchy) or in a running application through its
agent (--agent host:port). Either can also come from the config file.

Examples:
  guilocator -t swt find --hierarchy tree.json "Composite > Button"
  guilocator find --hierarchy tree.json --repeat 3 --stats "JButton:enabled"
  guilocator find --agent 127.0.0.1:5679 "name:okButton"`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "hierarchy",
			Usage:   "JSON component tree (agent element payloads with children)",
			EnvVars: []string{"LOCATOR_HIERARCHY"},
		},
		&cli.StringFlag{
			Name:    "agent",
			Usage:   "Address (host:port) of a running agent",
			EnvVars: []string{"LOCATOR_AGENT_ADDR"},
		},
		&cli.IntFlag{
			Name:  "repeat",
			Usage: "Evaluate every locator this many times",
			Value: 1,
		},
		&cli.BoolFlag{
			Name:  "stats",
			Usage: "Print cache statistics and find metrics",
		},
	},
	Action: runFind,
}

type elemView struct {
	ID        int64  `json:"id" yaml:"id"`
	ClassName string `json:"className" yaml:"className"`
	Name      string `json:"name,omitempty" yaml:"name,omitempty"`
	Text      string `json:"text,omitempty" yaml:"text,omitempty"`
	Visible   bool   `json:"visible" yaml:"visible"`
	Enabled   bool   `json:"enabled" yaml:"enabled"`
}

type metricView struct {
	Name  string  `json:"name" yaml:"name"`
	Value float64 `json:"value" yaml:"value"`
	Count uint64  `json:"count,omitempty" yaml:"count,omitempty"`
}

type statsView struct {
	Caches  cache.Snapshot `json:"caches" yaml:"caches"`
	Metrics []metricView   `json:"metrics" yaml:"metrics"`
}

type findOutput struct {
	Toolkit string        `json:"toolkit" yaml:"toolkit"`
	Results []locatorView `json:"results" yaml:"results"`
	Stats   *statsView    `json:"stats,omitempty" yaml:"stats,omitempty"`
}

func runFind(c *cli.Context) error {
	if err := requireArgs(c, "locator"); err != nil {
		return err
	}
	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	defer rt.close()

	ctx := c.Context
	transport, closeTransport, err := openTransport(c, rt)
	if err != nil {
		return err
	}
	defer closeTransport()

	opts := []finder.Option{finder.WithCaches(rt.caches)}

	var reader *sdkmetric.ManualReader
	if c.Bool("stats") {
		reader = sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		defer func() { _ = mp.Shutdown(ctx) }()

		meter := mp.Meter("github.com/devicelab-dev/guilocator")
		obs, err := metrics.ObserveCaches(meter, rt.caches)
		if err != nil {
			return err
		}
		defer func() { _ = obs.Close() }()
		rec, err := metrics.NewRecorder(meter)
		if err != nil {
			return err
		}
		opts = append(opts, finder.WithRecorder(rec))
	}
	f := finder.New(transport, rt.toolkit, opts...)

	repeat := max(c.Int("repeat"), 1)
	out := findOutput{Toolkit: rt.toolkit.String()}
	failed := 0
	for _, input := range c.Args().Slice() {
		var (
			els  []elemView
			ferr error
		)
		for i := 0; i < repeat; i++ {
			found, err := f.FindElements(ctx, input)
			if err != nil {
				ferr = err
				break
			}
			els = els[:0]
			for _, el := range found {
				els = append(els, elemView{
					ID:        el.ID,
					ClassName: el.ClassName,
					Name:      el.Name,
					Text:      el.Text,
					Visible:   el.Visible,
					Enabled:   el.Enabled,
				})
			}
		}
		if ferr != nil {
			failed++
			out.Results = append(out.Results, locatorView{Input: input, Error: newErrorView(ferr)})
			continue
		}
		n := len(els)
		out.Results = append(out.Results, locatorView{Input: input, Elements: els, Found: &n})
	}

	if reader != nil {
		stats, err := collectStats(c, rt, reader)
		if err != nil {
			return err
		}
		out.Stats = stats
	}

	if rt.structured() {
		if err := rt.emit(out); err != nil {
			return err
		}
	} else {
		printFind(rt, out)
	}

	if failed > 0 {
		return errFailures(failed, "locator(s)")
	}
	return nil
}

// openTransport picks the hierarchy dump or the agent: flags first, then
// the config file.
func openTransport(c *cli.Context, rt *runtime) (finder.Transport, func(), error) {
	hierarchy, addr := c.String("hierarchy"), c.String("agent")
	if hierarchy == "" && addr == "" {
		hierarchy, addr = rt.cfg.Hierarchy, rt.cfg.Agent.Addr
	}

	switch {
	case hierarchy != "":
		d, err := mock.LoadHierarchyFile(hierarchy, mock.Config{})
		if err != nil {
			return nil, nil, err
		}
		return d, func() {}, nil

	case addr != "":
		return openAgent(c, rt, addr)
	}
	return nil, nil, fmt.Errorf("--hierarchy or --agent is required")
}

// openAgent connects to the agent at addr. Without an explicit toolkit, the
// agent is asked for its own.
func openAgent(c *cli.Context, rt *runtime, addr string) (finder.Transport, func(), error) {
	client, err := agent.Dial(c.Context, addr, rt.cfg.Agent.Timeout)
	if err != nil {
		return nil, nil, err
	}
	d := agent.New(client)
	if rt.cfg.Toolkit == "" {
		tk, err := d.Toolkit(c.Context)
		if err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("query agent toolkit: %w", err)
		}
		rt.toolkit = tk
	}
	logger.Info("connected to agent %s (%s)", addr, rt.toolkit)
	return d, func() { _ = client.Close() }, nil
}

func collectStats(c *cli.Context, rt *runtime, reader *sdkmetric.ManualReader) (*statsView, error) {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(c.Context, &rm); err != nil {
		return nil, fmt.Errorf("collect metrics: %w", err)
	}

	totals := map[string]*metricView{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			v, ok := totals[m.Name]
			if !ok {
				v = &metricView{Name: m.Name}
				totals[m.Name] = v
			}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					v.Value += float64(dp.Value)
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					v.Value += float64(dp.Value)
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					v.Value += dp.Sum
					v.Count += dp.Count
				}
			}
		}
	}

	stats := &statsView{Caches: rt.caches.Snapshot()}
	for _, v := range totals {
		stats.Metrics = append(stats.Metrics, *v)
	}
	sort.Slice(stats.Metrics, func(i, j int) bool {
		return stats.Metrics[i].Name < stats.Metrics[j].Name
	})
	return stats, nil
}

func printFind(rt *runtime, out findOutput) {
	for _, r := range out.Results {
		if r.Error != nil {
			printLocator(rt, r)
			continue
		}
		mark, clr := "✓", colorGreen
		if *r.Found == 0 {
			mark, clr = "-", colorYellow
		}
		rt.printf("%s%s %s%s  %s(%d found)%s\n", color(clr), mark, r.Input, color(colorReset),
			color(colorDim), *r.Found, color(colorReset))
		for _, el := range r.Elements {
			rt.printf("    %-10d %-40s", el.ID, el.ClassName)
			if el.Name != "" {
				rt.printf(" name=%q", el.Name)
			}
			if el.Text != "" {
				rt.printf(" text=%q", el.Text)
			}
			if !el.Enabled {
				rt.printf(" disabled")
			}
			if !el.Visible {
				rt.printf(" hidden")
			}
			rt.printf("\n")
		}
	}

	if out.Stats == nil {
		return
	}
	s := out.Stats.Caches
	rt.printf("\n%sCaches%s\n", color(colorBold), color(colorReset))
	rt.printf("  %-10s %8s %8s %8s %8s %6s %7s\n", "Layer", "Hits", "Misses", "Evict", "Inval", "Size", "Ratio")
	for _, row := range []struct {
		name string
		st   cache.Stats
	}{
		{"parse", s.Parse},
		{"normalize", s.Normalize},
		{"element", s.Element},
		{"finder", s.Finder},
	} {
		rt.printf("  %-10s %8d %8d %8d %8d %6d %6.0f%%\n", row.name,
			row.st.Hits, row.st.Misses, row.st.Evictions, row.st.Invalidations, row.st.Size, row.st.HitRatio()*100)
	}

	rt.printf("\n%sMetrics%s\n", color(colorBold), color(colorReset))
	for _, m := range out.Stats.Metrics {
		if m.Count > 0 {
			rt.printf("  %-32s %.3f (%d samples)\n", m.Name, m.Value, m.Count)
			continue
		}
		rt.printf("  %-32s %.0f\n", m.Name, m.Value)
	}
}
