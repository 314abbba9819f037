// Package configfiles provides the embedded example configuration file
// used to initialize a fresh installation.
package configfiles

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
)

//go:embed config.example.yaml
var configFS embed.FS

// GetConfigExample returns the example configuration file content.
func GetConfigExample() ([]byte, error) {
	return configFS.ReadFile("config.example.yaml")
}

// WriteConfigExample writes the example configuration to path. It refuses
// to overwrite an existing file.
func WriteConfigExample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	data, err := GetConfigExample()
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	return os.WriteFile(path, data, 0o600)
}
