// Package config manages user-level settings stored at ~/.extdeb/config.yaml.
// It covers the managed extension directory, the runtime flavor, per-package
// build flags, distro detection overrides and the build timeout.
package config
