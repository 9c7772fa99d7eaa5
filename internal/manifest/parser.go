package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
)

// Parse reads a manifest file and decodes it without schema validation.
func Parse(path string) (*ExtensionManifest, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return decode(data, path)
}

// Load reads, validates and decodes a manifest. Schema violations and bad
// versions are reported together as a *ValidationError.
func Load(path string) (*ExtensionManifest, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}

	result, err := Validate(data)
	if err != nil {
		return nil, fmt.Errorf("validating %s: %w", path, err)
	}
	if !result.Valid {
		return nil, &ValidationError{Path: path, Issues: result.Issues}
	}

	m, err := decode(data, path)
	if err != nil {
		return nil, err
	}
	if issues := checkVersions(m); len(issues) > 0 {
		return nil, &ValidationError{Path: path, Issues: issues}
	}
	return m, nil
}

// LoadDir loads the manifest at the root of a source tree.
func LoadDir(dir string) (*ExtensionManifest, error) {
	return Load(filepath.Join(dir, FileName))
}

func decode(data []byte, path string) (*ExtensionManifest, error) {
	var m ExtensionManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	return &m, nil
}

// readFile reads the contents of a file at the given path.
func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}
	return data, nil
}
