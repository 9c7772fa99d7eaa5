package manifest

import (
	"fmt"
	"slices"

	"go.yaml.in/yaml/v3"
)

// FileName is the manifest file expected at the root of a source tree.
const FileName = "extension.yaml"

// TypeExtension is the only accepted value of the type discriminator.
const TypeExtension = "extension"

// defaultKey selects the fallback list at either level of an apt-get block.
const defaultKey = "default"

// ExtensionManifest describes one buildable extension.
type ExtensionManifest struct {
	Name        string            `yaml:"name" json:"name"`
	Type        string            `yaml:"type" json:"type"`
	Version     string            `yaml:"version" json:"version"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Requires    map[string]string `yaml:"requires,omitempty" json:"requires,omitempty"`
	AptGet      AptRequirements   `yaml:"apt-get" json:"apt-get"`
}

// Dependencies returns the names of required extensions in sorted order.
func (m *ExtensionManifest) Dependencies() []string {
	names := make([]string, 0, len(m.Requires))
	for name := range m.Requires {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// AptRequirements maps distro IDs (as reported by lsb_release -is) to their
// per-release package lists, with an optional top-level fallback. A nil
// Default means the key was absent; an empty one means no packages.
type AptRequirements struct {
	Default []string
	Distros map[string]DistroRequirements
}

// DistroRequirements holds the package lists for one distro.
type DistroRequirements struct {
	Default  []string
	Releases map[string][]string
}

// UnmarshalYAML decodes an apt-get block. Keys are taken verbatim, so an
// unquoted release such as 16.10 stays "16.10" rather than becoming a float.
func (a *AptRequirements) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: apt-get must be a mapping", node.Line)
	}
	*a = AptRequirements{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i].Value, node.Content[i+1]
		if key == defaultKey {
			if err := val.Decode(&a.Default); err != nil {
				return fmt.Errorf("apt-get.default: %w", err)
			}
			if a.Default == nil {
				a.Default = []string{}
			}
			continue
		}
		var d DistroRequirements
		if err := d.UnmarshalYAML(val); err != nil {
			return fmt.Errorf("apt-get.%s: %w", key, err)
		}
		if a.Distros == nil {
			a.Distros = make(map[string]DistroRequirements)
		}
		a.Distros[key] = d
	}
	return nil
}

// UnmarshalYAML decodes one distro's release table.
func (d *DistroRequirements) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping of releases", node.Line)
	}
	*d = DistroRequirements{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i].Value, node.Content[i+1]
		var pkgs []string
		if err := val.Decode(&pkgs); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if pkgs == nil {
			pkgs = []string{}
		}
		if key == defaultKey {
			d.Default = pkgs
			continue
		}
		if d.Releases == nil {
			d.Releases = make(map[string][]string)
		}
		d.Releases[key] = pkgs
	}
	return nil
}
