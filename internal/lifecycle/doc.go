// Package lifecycle sequences install, update and uninstall of extensions.
//
// An Orchestrator reads the extension manifest, resolves and installs distro
// packages, builds the source tree, records the result in the registry and
// regenerates the activation manifest. The registry is only touched after a
// build succeeds, so a failed build leaves no trace in packages.json.
package lifecycle
