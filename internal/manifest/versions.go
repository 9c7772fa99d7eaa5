package manifest

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// UnsatisfiedError reports a required extension that is missing or whose
// installed version falls outside the declared constraint.
type UnsatisfiedError struct {
	Name       string
	Dependency string
	Constraint string
	Installed  string // empty when the dependency is not installed
}

func (e *UnsatisfiedError) Error() string {
	if e.Installed == "" {
		return fmt.Sprintf("%s requires %s %s, which is not installed", e.Name, e.Dependency, e.Constraint)
	}
	return fmt.Sprintf("%s requires %s %s, installed version is %s", e.Name, e.Dependency, e.Constraint, e.Installed)
}

// SemVer parses the manifest version.
func (m *ExtensionManifest) SemVer() (*semver.Version, error) {
	v, err := semver.NewVersion(m.Version)
	if err != nil {
		return nil, fmt.Errorf("version %q: %w", m.Version, err)
	}
	return v, nil
}

// Installed looks up an installed extension's recorded version. ok is false
// when the extension is not installed; an installed extension may have an
// empty version if its record predates version tracking.
type Installed func(name string) (version string, ok bool)

// CheckRequires verifies that every required extension is installed at a
// version satisfying its constraint. Dependencies without a recorded version
// are accepted.
func (m *ExtensionManifest) CheckRequires(installed Installed) error {
	for _, dep := range m.Dependencies() {
		constraint := m.Requires[dep]
		version, ok := installed(dep)
		if !ok {
			return &UnsatisfiedError{Name: m.Name, Dependency: dep, Constraint: constraint}
		}
		if version == "" {
			continue
		}

		c, err := semver.NewConstraint(constraint)
		if err != nil {
			return fmt.Errorf("%s: constraint for %s: %w", m.Name, dep, err)
		}
		v, err := semver.NewVersion(version)
		if err != nil || !c.Check(v) {
			return &UnsatisfiedError{Name: m.Name, Dependency: dep, Constraint: constraint, Installed: version}
		}
	}
	return nil
}

// checkVersions reports semantic problems the schema cannot express.
func checkVersions(m *ExtensionManifest) []ValidationIssue {
	var issues []ValidationIssue
	if _, err := semver.NewVersion(m.Version); err != nil {
		issues = append(issues, ValidationIssue{
			Path:    "/version",
			Message: fmt.Sprintf("%q is not a semantic version", m.Version),
			Keyword: "semver",
		})
	}
	for _, dep := range m.Dependencies() {
		path := "/requires/" + dep
		if dep == m.Name {
			issues = append(issues, ValidationIssue{
				Path:    path,
				Message: "an extension cannot require itself",
				Keyword: "requires",
			})
			continue
		}
		if _, err := semver.NewConstraint(m.Requires[dep]); err != nil {
			issues = append(issues, ValidationIssue{
				Path:    path,
				Message: fmt.Sprintf("%q is not a version constraint", m.Requires[dep]),
				Keyword: "semver",
			})
		}
	}
	return issues
}
