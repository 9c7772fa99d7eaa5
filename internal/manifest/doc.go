// Package manifest handles parsing and validation of extension.yaml, the
// manifest each extension source tree carries. Manifests are checked against
// an embedded JSON Schema before they are decoded, and versions and
// requirement constraints are checked as semver.
package manifest
