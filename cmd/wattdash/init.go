package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nugget/wattdash/internal/defaults"
)

// runInit writes a starter config.yaml and .env into dir and creates the
// data directory. Existing files are never overwritten.
func runInit(w io.Writer, dir string) error {
	fmt.Fprintf(w, "Initializing wattdash in %s\n", dir)

	dataDir := filepath.Join(dir, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dataDir, err)
	}

	// Both files may carry broker credentials.
	files := []struct {
		name    string
		content []byte
	}{
		{"config.yaml", defaults.ConfigYAML},
		{".env", defaults.EnvFile},
	}
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := writeIfMissing(path, f.content, 0o600); err != nil {
			return err
		}
		fmt.Fprintf(w, "  ✓ %s\n", path)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Set the broker in config.yaml and credentials in .env, then run: wattdash serve")
	return nil
}

// writeIfMissing writes content to path only if the file does not
// already exist.
func writeIfMissing(path string, content []byte, perm os.FileMode) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.WriteFile(path, content, perm); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
