package config

import (
	"os"
	"path/filepath"
	"sync"
)

const envHome = "GUILOCATOR_HOME"

var (
	homeOnce sync.Once
	homeDir  string
)

// GetHome returns the guilocator home directory.
//
// Resolution order:
//  1. $GUILOCATOR_HOME environment variable
//  2. Parent of the binary's directory (if binary is in <home>/bin/)
//  3. Current working directory (development fallback)
func GetHome() string {
	homeOnce.Do(func() {
		homeDir = resolveHome()
	})
	return homeDir
}

// Discover loads the first config file found in dir, then in the home
// directory. Without either, only environment overrides apply.
func Discover(dir string) (*Config, error) {
	for _, d := range []string{dir, GetHome()} {
		for _, name := range FileNames {
			if _, err := os.Stat(filepath.Join(d, name)); err == nil {
				return LoadFromDir(d)
			}
		}
	}
	return LoadFromDir(dir)
}

func resolveHome() string {
	// 1. Environment variable
	if env := os.Getenv(envHome); env != "" {
		return env
	}

	// 2. Binary-relative: if binary is at <home>/bin/guilocator, use <home>
	if execPath, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
			execPath = resolved
		}
		binDir := filepath.Dir(execPath)
		if filepath.Base(binDir) == "bin" {
			return filepath.Dir(binDir)
		}
	}

	// 3. Current working directory
	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}

	return "."
}

// ResetHome resets the cached home directory (for testing).
func ResetHome() {
	homeOnce = sync.Once{}
	homeDir = ""
}
