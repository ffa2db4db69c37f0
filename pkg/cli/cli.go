// Package cli provides the command-line interface for guilocator.
package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "toolkit",
		Aliases: []string{"t"},
		Usage:   "GUI toolkit to normalize for (swing, swt, rcp)",
		EnvVars: []string{"LOCATOR_TOOLKIT"},
	},
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Config file (default: guilocator.yaml in the working or home directory)",
	},
	&cli.StringFlag{
		Name:    "class-map",
		Usage:   "YAML class-name table replacing the built-in mappings",
		EnvVars: []string{"LOCATOR_CLASS_MAP"},
	},
	&cli.StringFlag{
		Name:    "log-file",
		Usage:   "Write debug logs to this file",
		EnvVars: []string{"LOCATOR_LOG_FILE"},
	},
	&cli.StringFlag{
		Name:    "log-level",
		Usage:   "Log level (debug, info, warn, error)",
		EnvVars: []string{"LOCATOR_LOG_LEVEL"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "Write logs to stderr",
	},
	&cli.BoolFlag{
		Name:  "json",
		Usage: "Print results as JSON",
	},
	&cli.BoolFlag{
		Name:  "yaml",
		Usage: "Print results as YAML",
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

// NewApp builds the application. Output goes to app.Writer.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "guilocator",
		Usage:   "Parse, normalize and evaluate GUI element locators",
		Version: Version,
		Description: `guilocator evaluates the locator query language used to find
components in Swing, SWT and Eclipse RCP applications.

Examples:
  guilocator parse "JPanel > JButton[text='OK']:enabled"
  guilocator -t swt normalize Button "#submit"
  guilocator check --parallel 4 --report out/ suites/
  guilocator -t swt find --hierarchy tree.json "Composite > Button"`,
		Flags: GlobalFlags,
		Before: func(c *cli.Context) error {
			if c.Bool("no-ansi") {
				colorsEnabled = false
			}
			return nil
		},
		Commands: []*cli.Command{
			parseCommand,
			astCommand,
			normalizeCommand,
			classesCommand,
			validateCommand,
			checkCommand,
			findCommand,
		},
	}
}

// Execute runs the CLI.
func Execute() {
	if err := NewApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
