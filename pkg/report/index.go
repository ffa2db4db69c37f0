package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/devicelab-dev/guilocator/pkg/logger"
)

// IndexFile is the name of the report index inside a report directory.
const IndexFile = "report.json"

// Write writes index to <dir>/report.json, creating dir as needed.
func Write(dir string, index *Index) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	return atomicWriteJSON(filepath.Join(dir, IndexFile), index)
}

// ReadReport reads the index from a report directory.
func ReadReport(dir string) (*Index, error) {
	data, err := os.ReadFile(filepath.Join(dir, IndexFile))
	if err != nil {
		return nil, err
	}
	var index Index
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("parse %s: %w", IndexFile, err)
	}
	return &index, nil
}

// atomicWriteJSON writes v to a temp file next to path and renames it into
// place, so readers never see a partial file.
func atomicWriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	logger.Debug("wrote %s (%d bytes)", path, len(data))
	return nil
}
