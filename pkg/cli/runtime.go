package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/guilocator/pkg/cache"
	"github.com/devicelab-dev/guilocator/pkg/config"
	"github.com/devicelab-dev/guilocator/pkg/core"
	"github.com/devicelab-dev/guilocator/pkg/logger"
)

// runtime is the state shared by a command: merged configuration, the
// cache handle and the output settings.
type runtime struct {
	cfg      *config.Config
	toolkit  core.Toolkit
	caches   *cache.Caches
	cacheCfg cache.Config
	out      io.Writer
	format   string // text, json or yaml
}

// newRuntime loads configuration, applies global flags on top of it and
// initializes logging. Callers must call close.
func newRuntime(c *cli.Context) (*runtime, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.Discover(".")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Flags win over the file and the environment.
	if v := c.String("toolkit"); v != "" {
		cfg.Toolkit = v
	}
	if v := c.String("class-map"); v != "" {
		cfg.ClassMap = v
	}
	if v := c.String("log-file"); v != "" {
		cfg.LogFile = v
	}
	if v := c.String("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch {
	case cfg.LogFile != "":
		if err := logger.Init(cfg.LogFile); err != nil {
			return nil, err
		}
	case c.Bool("verbose"):
		w := c.App.ErrWriter
		if w == nil {
			w = os.Stderr
		}
		logger.InitWriter(w)
	}
	if cfg.LogLevel != "" {
		if err := logger.SetLevel(cfg.LogLevel); err != nil {
			logger.Close()
			return nil, err
		}
	}

	cc, err := cfg.CacheConfig()
	if err != nil {
		logger.Close()
		return nil, err
	}

	rt := &runtime{
		cfg:      cfg,
		toolkit:  cfg.ToolkitOrDefault(core.ToolkitSwing),
		caches:   cache.New(cc),
		cacheCfg: cc,
		out:      c.App.Writer,
		format:   "text",
	}
	if rt.out == nil {
		rt.out = os.Stdout
	}
	switch {
	case c.Bool("json") && c.Bool("yaml"):
		logger.Close()
		return nil, fmt.Errorf("--json and --yaml are mutually exclusive")
	case c.Bool("json"):
		rt.format = "json"
	case c.Bool("yaml"):
		rt.format = "yaml"
	}

	logger.Debug("toolkit=%s config=%+v", rt.toolkit, *cfg)
	return rt, nil
}

func (rt *runtime) close() {
	logger.Close()
}

func (rt *runtime) structured() bool {
	return rt.format != "text"
}

// emit writes v in the structured format.
func (rt *runtime) emit(v any) error {
	switch rt.format {
	case "yaml":
		enc := yaml.NewEncoder(rt.out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(rt.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}

func (rt *runtime) printf(format string, args ...any) {
	fmt.Fprintf(rt.out, format, args...)
}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

// colorsEnabled determines if ANSI colors should be used
var colorsEnabled = true

func init() {
	// Respect NO_COLOR environment variable
	if os.Getenv("NO_COLOR") != "" {
		colorsEnabled = false
		return
	}
	// Check if stdout is a terminal
	if fileInfo, err := os.Stdout.Stat(); err == nil {
		if (fileInfo.Mode() & os.ModeCharDevice) == 0 {
			colorsEnabled = false
		}
	}
}

// color returns the color code if colors are enabled, empty string otherwise
func color(c string) string {
	if colorsEnabled {
		return c
	}
	return ""
}

func requireArgs(c *cli.Context, what string) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one %s is required", what)
	}
	return nil
}
