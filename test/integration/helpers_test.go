//go:build integration

package integration_test

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/extdeb/extdeb/internal/activation"
	"github.com/extdeb/extdeb/internal/apt"
	"github.com/extdeb/extdeb/internal/builder"
	"github.com/extdeb/extdeb/internal/command"
	"github.com/extdeb/extdeb/internal/distro"
	"github.com/extdeb/extdeb/internal/lifecycle"
	"github.com/extdeb/extdeb/internal/logging"
	"github.com/extdeb/extdeb/internal/prompt"
	"github.com/extdeb/extdeb/internal/registry"
)

// testEnv holds paths to isolated test directories.
type testEnv struct {
	ExtDir  string // managed extension directory
	SrcDir  string // parent of the extension source trees
	BinDir  string // fake toolchain, first on PATH
	ToolLog string // every fake tool appends its argv here
}

// fakeTools are shell stand-ins for the host toolchain. make builds
// modules/<dir>.so unless the tree contains a FAIL marker.
var fakeTools = map[string]string{
	"sudo":   `exec "$@"`,
	"phpize": `echo "phpize $*" >> "$EXTDEB_TOOL_LOG"`,
	"apt-get": `echo "apt-get $*" >> "$EXTDEB_TOOL_LOG"
[ -n "$DEBIAN_FRONTEND" ] && echo "apt-get env $DEBIAN_FRONTEND" >> "$EXTDEB_TOOL_LOG"
exit 0`,
	"make": `echo "make $*" >> "$EXTDEB_TOOL_LOG"
if [ "$1" = "clean" ]; then rm -rf modules; exit 0; fi
if [ -f FAIL ]; then echo "error: boom" >&2; exit 2; fi
mkdir -p modules && touch "modules/$(basename "$PWD").so"`,
}

// setupTestEnv creates isolated temp directories and puts the fake
// toolchain first on PATH. The env vars are restored after the test.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		ExtDir: filepath.Join(t.TempDir(), "ext"),
		SrcDir: t.TempDir(),
		BinDir: t.TempDir(),
	}
	env.ToolLog = filepath.Join(env.BinDir, "tools.log")

	for name, body := range fakeTools {
		writeExecutable(t, filepath.Join(env.BinDir, name), body)
	}
	t.Setenv("PATH", env.BinDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	t.Setenv("EXTDEB_TOOL_LOG", env.ToolLog)
	t.Setenv("DEBIAN_FRONTEND", "")

	return env
}

// openOrchestrator wires the real runner, apt-get and phpize builder
// against env, as the CLI does, answering yes to every question.
func openOrchestrator(t *testing.T, env *testEnv) (*registry.Registry, *lifecycle.Orchestrator) {
	t.Helper()

	log := logging.Discard()
	reg, err := registry.Open(env.ExtDir, registry.WithLogger(log))
	if err != nil {
		t.Fatalf("registry.Open: %v", err)
	}
	t.Cleanup(func() { reg.Close() })

	runner := command.NewLocalRunner(log)
	gen := activation.New(reg, activation.WithFlavor(activation.FlavorPHP), activation.WithLogger(log))
	c := lifecycle.Collaborators{
		Packages: apt.New(runner, apt.WithLogger(log), apt.WithAssumeYes(true)),
		Compiler: builder.New(runner, activation.FlavorPHP, builder.WithLogger(log)),
		Prompter: prompt.New(strings.NewReader(""), io.Discard, false),
	}
	o := lifecycle.New(reg, gen, c,
		lifecycle.WithSystem(distro.Info{ID: "Ubuntu", Release: "22.04"}),
		lifecycle.WithAssumeYes(true),
		lifecycle.WithLogger(log),
	)
	return reg, o
}

// writeSource creates an extension source tree named dir with the given
// extension.yaml and an executable ./configure.
func writeSource(t *testing.T, env *testEnv, dir, manifest string) string {
	t.Helper()
	path := filepath.Join(env.SrcDir, dir)
	writeFile(t, filepath.Join(path, "extension.yaml"), manifest)
	writeExecutable(t, filepath.Join(path, "configure"), `echo "configure $*" >> "$EXTDEB_TOOL_LOG"`)
	return path
}

// writeFile creates a file at the given path with the given content.
func writeFile(t *testing.T, path, content string) {
	t.Helper()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("creating dir %s: %v", dir, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func writeExecutable(t *testing.T, path, body string) {
	t.Helper()
	writeFile(t, path, "#!/bin/sh\n"+body+"\n")
	if err := os.Chmod(path, 0755); err != nil {
		t.Fatalf("chmod %s: %v", path, err)
	}
}

// toolLog returns the lines the fake tools logged so far.
func toolLog(t *testing.T, env *testEnv) []string {
	t.Helper()
	data, err := os.ReadFile(env.ToolLog)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("reading tool log: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

// assertLogged fails the test if no tool logged line.
func assertLogged(t *testing.T, env *testEnv, line string) {
	t.Helper()
	for _, l := range toolLog(t, env) {
		if strings.TrimSpace(l) == line {
			return
		}
	}
	t.Errorf("tool log has no line %q.\nLog:\n%s", line, strings.Join(toolLog(t, env), "\n"))
}

// assertFileExists fails the test if the file does not exist.
func assertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected file to exist: %s (error: %v)", path, err)
	}
}

// assertFileNotExists fails the test if the file exists.
func assertFileNotExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("expected file NOT to exist: %s", path)
	}
}
