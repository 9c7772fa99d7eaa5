package activation

import "fmt"

// Flavor is the runtime that consumes the manifest.
type Flavor string

const (
	FlavorPHP  Flavor = "php"
	FlavorHHVM Flavor = "hhvm"
)

// ParseFlavor validates a flavor name from configuration.
func ParseFlavor(s string) (Flavor, error) {
	switch Flavor(s) {
	case FlavorPHP, FlavorHHVM:
		return Flavor(s), nil
	case "":
		return FlavorPHP, nil
	default:
		return "", fmt.Errorf("unknown flavor %q: expected php or hhvm", s)
	}
}

// Key returns the ini directive that loads one extension.
func (f Flavor) Key() string {
	if f == FlavorHHVM {
		return "extension[]"
	}
	return "extension"
}
