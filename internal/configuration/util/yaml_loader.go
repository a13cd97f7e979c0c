package util

import (
	"fmt"
	"os"
	"path/filepath"
)

// LoadAndExpandYaml reads baseDir/filename.yml and expands ${VAR}
// references before the caller parses it.
func LoadAndExpandYaml(baseDir, filename string) (string, error) {
	file := filepath.Join(baseDir, filename+".yml")

	raw, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", file, err)
	}

	return ExpandEnvStrict(string(raw))
}
