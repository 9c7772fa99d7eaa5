package registry

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"testing"
)

// buildArtifacts writes fake .so files into a fresh build directory and
// returns their paths.
func buildArtifacts(t *testing.T, names ...string) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, len(names))
	for i, n := range names {
		p := filepath.Join(dir, n)
		if err := os.WriteFile(p, []byte("ELF "+n), 0755); err != nil {
			t.Fatal(err)
		}
		paths[i] = p
	}
	return paths
}

func openTemp(t *testing.T) *Registry {
	t.Helper()
	r, err := Open(filepath.Join(t.TempDir(), "ext"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func mustAdd(t *testing.T, r *Registry, pkg Package, files ...string) []string {
	t.Helper()
	unneeded, err := r.AddExtension(pkg, buildArtifacts(t, files...))
	if err != nil {
		t.Fatalf("AddExtension(%s): %v", pkg.Name, err)
	}
	return unneeded
}

func TestOpenEmpty(t *testing.T) {
	r := openTemp(t)
	if got := r.Installed(); len(got) != 0 {
		t.Errorf("Installed() = %v, want empty", got)
	}
	if _, err := os.Stat(r.Path()); !os.IsNotExist(err) {
		t.Errorf("Open should not create %s before the first mutation", DocumentFile)
	}
}

func TestOpenUnsafeDirectory(t *testing.T) {
	for _, name := range []string{"my;dir", "my#dir"} {
		_, err := Open(filepath.Join(t.TempDir(), name))
		if !errors.Is(err, ErrUnsafePath) {
			t.Errorf("Open(%s) error = %v, want ErrUnsafePath", name, err)
		}
	}
}

func TestOpenMalformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "{artifacts"},
		{"unknown field", `{"packages": {}}`},
		{"trailing data", `{} {}`},
		{"empty artifact list", `{"artifacts": {"vendor/a": []}}`},
		{"path in artifact", `{"artifacts": {"vendor/a": ["../a.so"]}}`},
		{"empty owner set", `{"distroOwners": {"libfoo": []}}`},
		{"duplicate owner", `{"distroOwners": {"libfoo": ["vendor/a", "vendor/a"]}}`},
		{"wrong type", `{"artifacts": ["a.so"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, DocumentFile), []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			r, err := Open(dir)
			if err == nil {
				r.Close()
				t.Fatal("expected load error, got nil")
			}
			var le *LoadError
			if !errors.As(err, &le) {
				t.Fatalf("expected *LoadError, got %T: %v", err, err)
			}
		})
	}
}

func TestOpenHandEditedDocument(t *testing.T) {
	dir := t.TempDir()
	content := `{
  "artifacts": {"vendor/a": ["a.so"]},
  "dependencies": {"vendor/a": []},
  "distroOwners": {"libfoo": ["vendor/b", "vendor/a"]}
}`
	if err := os.WriteFile(filepath.Join(dir, DocumentFile), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	r, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	if got := r.Owners("libfoo"); !slices.Equal(got, []string{"vendor/a", "vendor/b"}) {
		t.Errorf("Owners(libfoo) = %v, want sorted owners", got)
	}
	if !r.IsInstalled("vendor/a") {
		t.Error("vendor/a should be installed")
	}
}

func TestReferenceCountingRoundTrip(t *testing.T) {
	r := openTemp(t)

	mustAdd(t, r, Package{Name: "A", DistroPackages: []string{"p", "q"}}, "a.so")
	mustAdd(t, r, Package{Name: "B", DistroPackages: []string{"q", "r"}}, "b.so")

	unneeded, err := r.RemoveExtension("A")
	if err != nil {
		t.Fatalf("RemoveExtension: %v", err)
	}

	if !slices.Equal(unneeded, []string{"p"}) {
		t.Errorf("unneeded = %v, want [p]", unneeded)
	}
	want := map[string][]string{"q": {"B"}, "r": {"B"}}
	if got := r.DistroOwners(); !reflect.DeepEqual(got, want) {
		t.Errorf("DistroOwners() = %v, want %v", got, want)
	}
	if _, err := os.Stat(filepath.Join(r.Dir(), "a.so")); !os.IsNotExist(err) {
		t.Error("a.so should be removed from the extension directory")
	}
	if r.IsInstalled("A") {
		t.Error("A should no longer be installed")
	}
	if deps := r.Dependencies("A"); deps != nil {
		t.Errorf("Dependencies(A) = %v, want nil", deps)
	}
}

func TestUpdateReassignsOwnership(t *testing.T) {
	r := openTemp(t)

	mustAdd(t, r, Package{Name: "A", Version: "1.0.0", DistroPackages: []string{"p"}}, "a.so")
	unneeded := mustAdd(t, r, Package{Name: "A", Version: "1.1.0", DistroPackages: []string{"r"}}, "a.so")

	if !slices.Equal(unneeded, []string{"p"}) {
		t.Errorf("unneeded = %v, want [p]", unneeded)
	}
	if got := r.Owners("p"); got != nil {
		t.Errorf("Owners(p) = %v, want none", got)
	}
	if got := r.Owners("r"); !slices.Equal(got, []string{"A"}) {
		t.Errorf("Owners(r) = %v, want [A]", got)
	}
	if got := r.Version("A"); got != "1.1.0" {
		t.Errorf("Version(A) = %q, want 1.1.0", got)
	}
}

func TestUpdateKeepsSharedOwner(t *testing.T) {
	r := openTemp(t)

	mustAdd(t, r, Package{Name: "A", DistroPackages: []string{"p"}}, "a.so")
	mustAdd(t, r, Package{Name: "B", DistroPackages: []string{"p"}}, "b.so")
	unneeded := mustAdd(t, r, Package{Name: "A", DistroPackages: []string{"r"}}, "a.so")

	if len(unneeded) != 0 {
		t.Errorf("unneeded = %v, want none while B still owns p", unneeded)
	}
	if got := r.Owners("p"); !slices.Equal(got, []string{"B"}) {
		t.Errorf("Owners(p) = %v, want [B]", got)
	}
}

func TestUpdateReplacesArtifacts(t *testing.T) {
	r := openTemp(t)

	mustAdd(t, r, Package{Name: "A"}, "old.so", "shared.so")
	mustAdd(t, r, Package{Name: "A"}, "shared.so", "new.so")

	if got := r.Artifacts("A"); !slices.Equal(got, []string{"shared.so", "new.so"}) {
		t.Errorf("Artifacts(A) = %v", got)
	}
	if _, err := os.Stat(filepath.Join(r.Dir(), "old.so")); !os.IsNotExist(err) {
		t.Error("old.so should have been removed on update")
	}
	for _, f := range []string{"shared.so", "new.so"} {
		if _, err := os.Stat(filepath.Join(r.Dir(), f)); err != nil {
			t.Errorf("%s missing after update: %v", f, err)
		}
	}
	assertNoTemporaryFiles(t, r)
}

func TestUpdateToleratesMissingOldArtifact(t *testing.T) {
	r := openTemp(t)

	mustAdd(t, r, Package{Name: "A"}, "a.so")
	if err := os.Remove(filepath.Join(r.Dir(), "a.so")); err != nil {
		t.Fatal(err)
	}
	mustAdd(t, r, Package{Name: "A"}, "a.so")

	if _, err := os.Stat(filepath.Join(r.Dir(), "a.so")); err != nil {
		t.Errorf("a.so missing: %v", err)
	}
}

func TestScenarioDependentPackages(t *testing.T) {
	r := openTemp(t)

	mustAdd(t, r, Package{Name: "A", DistroPackages: []string{"libfoo"}}, "a.so")
	mustAdd(t, r, Package{Name: "B", Dependencies: []string{"A"}, DistroPackages: []string{"libfoo", "libbar"}}, "b.so")

	want := map[string][]string{"libfoo": {"A", "B"}, "libbar": {"B"}}
	if got := r.DistroOwners(); !reflect.DeepEqual(got, want) {
		t.Errorf("DistroOwners() = %v, want %v", got, want)
	}

	_, err := r.RemoveExtension("A")
	var de *DependentsError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DependentsError, got %v", err)
	}
	if !slices.Equal(de.Dependents, []string{"B"}) {
		t.Errorf("Dependents = %v, want [B]", de.Dependents)
	}
	if !r.IsInstalled("A") {
		t.Fatal("rejected removal must leave A installed")
	}

	unneeded, err := r.RemoveExtension("A", Force())
	if err != nil {
		t.Fatalf("forced RemoveExtension: %v", err)
	}
	if len(unneeded) != 0 {
		t.Errorf("unneeded = %v, want none", unneeded)
	}
	want = map[string][]string{"libfoo": {"B"}, "libbar": {"B"}}
	if got := r.DistroOwners(); !reflect.DeepEqual(got, want) {
		t.Errorf("DistroOwners() = %v, want %v", got, want)
	}
	if got := r.Dependencies("B"); !slices.Equal(got, []string{"A"}) {
		t.Errorf("B keeps its dangling edge, got %v", got)
	}
}

func TestRemoveNotInstalled(t *testing.T) {
	r := openTemp(t)
	_, err := r.RemoveExtension("ghost")
	if !errors.Is(err, ErrNotInstalled) {
		t.Fatalf("expected ErrNotInstalled, got %v", err)
	}
}

func TestAddValidation(t *testing.T) {
	r := openTemp(t)
	mustAdd(t, r, Package{Name: "owner"}, "taken.so")
	before, err := os.ReadFile(r.Path())
	if err != nil {
		t.Fatal(err)
	}

	notRegular := t.TempDir()

	tests := []struct {
		name  string
		pkg   Package
		paths []string
	}{
		{"empty name", Package{}, buildArtifacts(t, "x.so")},
		{"no artifacts", Package{Name: "A"}, nil},
		{"directory artifact", Package{Name: "A"}, []string{notRegular}},
		{"duplicate basename", Package{Name: "A"}, append(buildArtifacts(t, "d.so"), buildArtifacts(t, "d.so")...)},
		{"reserved name", Package{Name: "A"}, buildArtifacts(t, DocumentFile)},
		{"activation manifest name", Package{Name: "A"}, buildArtifacts(t, ActivationManifest)},
		{"comment character in artifact name", Package{Name: "A"}, buildArtifacts(t, "a;b.so")},
		{"temporary file prefix", Package{Name: "A"}, buildArtifacts(t, asidePrefix+"x.so")},
		{"artifact owned by another package", Package{Name: "A"}, buildArtifacts(t, "taken.so")},
		{"empty distro package", Package{Name: "A", DistroPackages: []string{""}}, buildArtifacts(t, "x.so")},
		{"self dependency", Package{Name: "A", Dependencies: []string{"A"}}, buildArtifacts(t, "x.so")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := r.AddExtension(tt.pkg, tt.paths); err == nil {
				t.Fatal("expected error, got nil")
			}
			if r.IsInstalled("A") {
				t.Error("rejected package must not be recorded")
			}
		})
	}

	t.Run("missing artifact", func(t *testing.T) {
		_, err := r.AddExtension(Package{Name: "A"}, []string{filepath.Join(t.TempDir(), "nope.so")})
		var ioe *IOError
		if !errors.As(err, &ioe) {
			t.Fatalf("expected *IOError, got %v", err)
		}
	})

	after, err := os.ReadFile(r.Path())
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("rejected additions must leave packages.json unchanged")
	}
}

func TestAddFailsWhenOldArtifactCannotBeMoved(t *testing.T) {
	r := openTemp(t)
	mustAdd(t, r, Package{Name: "A", DistroPackages: []string{"p"}}, "a.so")

	// A non-empty directory where the old artifact would be set aside
	// makes the rename fail.
	if err := os.MkdirAll(filepath.Join(r.Dir(), asidePrefix+"a.so", "child"), 0755); err != nil {
		t.Fatal(err)
	}

	_, err := r.AddExtension(Package{Name: "A", DistroPackages: []string{"r"}}, buildArtifacts(t, "new.so"))
	var ioe *IOError
	if !errors.As(err, &ioe) {
		t.Fatalf("expected *IOError, got %v", err)
	}
	if ioe.Op != "rename" {
		t.Errorf("Op = %q, want rename", ioe.Op)
	}
	if _, err := os.Stat(filepath.Join(r.Dir(), "new.so")); !os.IsNotExist(err) {
		t.Error("new artifacts must not be registered over stale ones")
	}
	if _, err := os.Stat(filepath.Join(r.Dir(), "a.so")); err != nil {
		t.Errorf("a.so must stay in place: %v", err)
	}
	if got := r.Owners("p"); !slices.Equal(got, []string{"A"}) {
		t.Errorf("ownership changed despite failure: Owners(p) = %v", got)
	}
}

// breakDocument replaces packages.json with a non-empty directory so the
// next persist fails.
func breakDocument(t *testing.T, r *Registry) {
	t.Helper()
	if err := os.Remove(r.Path()); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(r.Path(), "child"), 0755); err != nil {
		t.Fatal(err)
	}
}

func TestUpdateRestoresArtifactsWhenPersistFails(t *testing.T) {
	r := openTemp(t)
	mustAdd(t, r, Package{Name: "v/a"}, "old.so")
	breakDocument(t, r)

	if _, err := r.AddExtension(Package{Name: "v/a"}, buildArtifacts(t, "new.so")); err == nil {
		t.Fatal("expected persist error, got nil")
	}

	if got := r.Artifacts("v/a"); !slices.Equal(got, []string{"old.so"}) {
		t.Errorf("Artifacts(v/a) = %v, want [old.so]", got)
	}
	if _, err := os.Stat(filepath.Join(r.Dir(), "old.so")); err != nil {
		t.Errorf("recorded artifact old.so must still exist: %v", err)
	}
	if _, err := os.Stat(filepath.Join(r.Dir(), "new.so")); !os.IsNotExist(err) {
		t.Error("new.so must not be left behind")
	}
	assertNoTemporaryFiles(t, r)
}

func TestUpdateSameNameRestoresContentWhenPersistFails(t *testing.T) {
	r := openTemp(t)
	mustAdd(t, r, Package{Name: "A"}, "a.so")
	before, err := os.ReadFile(filepath.Join(r.Dir(), "a.so"))
	if err != nil {
		t.Fatal(err)
	}
	breakDocument(t, r)

	paths := buildArtifacts(t, "a.so")
	if err := os.WriteFile(paths[0], []byte("rebuilt"), 0755); err != nil {
		t.Fatal(err)
	}
	if _, err := r.AddExtension(Package{Name: "A"}, paths); err == nil {
		t.Fatal("expected persist error, got nil")
	}

	after, err := os.ReadFile(filepath.Join(r.Dir(), "a.so"))
	if err != nil {
		t.Fatalf("a.so missing after rollback: %v", err)
	}
	if string(after) != string(before) {
		t.Errorf("a.so = %q, want the previous build %q", after, before)
	}
}

func TestRemoveRestoresArtifactsWhenPersistFails(t *testing.T) {
	r := openTemp(t)
	mustAdd(t, r, Package{Name: "A", DistroPackages: []string{"p"}}, "a.so")
	breakDocument(t, r)

	if _, err := r.RemoveExtension("A"); err == nil {
		t.Fatal("expected persist error, got nil")
	}
	if !r.IsInstalled("A") {
		t.Error("A must stay installed")
	}
	if _, err := os.Stat(filepath.Join(r.Dir(), "a.so")); err != nil {
		t.Errorf("a.so must be restored: %v", err)
	}
	assertNoTemporaryFiles(t, r)
}

func assertNoTemporaryFiles(t *testing.T, r *Registry) {
	t.Helper()
	entries, err := os.ReadDir(r.Dir())
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), stagePrefix) || strings.HasPrefix(e.Name(), asidePrefix) {
			t.Errorf("temporary file %s left behind", e.Name())
		}
	}
}

func TestPersistedDocumentRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ext")
	r, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	mustAdd(t, r, Package{Name: "A", Version: "2.0.0", DistroPackages: []string{"libfoo"}}, "a.so")
	mustAdd(t, r, Package{Name: "B", Dependencies: []string{"A", "A"}, DistroPackages: []string{"libfoo"}}, "b.so")
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer r2.Close()

	if got := r2.Installed(); !slices.Equal(got, []string{"A", "B"}) {
		t.Errorf("Installed() = %v", got)
	}
	if got := r2.Dependencies("B"); !slices.Equal(got, []string{"A"}) {
		t.Errorf("Dependencies(B) = %v, want deduplicated [A]", got)
	}
	if got := r2.Dependencies("A"); got == nil || len(got) != 0 {
		t.Errorf("Dependencies(A) = %#v, want empty non-nil", got)
	}
	if got := r2.Version("A"); got != "2.0.0" {
		t.Errorf("Version(A) = %q", got)
	}
	if got := r2.DistroPackages("B"); !slices.Equal(got, []string{"libfoo"}) {
		t.Errorf("DistroPackages(B) = %v", got)
	}
	if got := r2.Dependents("A"); !slices.Equal(got, []string{"B"}) {
		t.Errorf("Dependents(A) = %v", got)
	}
	nodes := r2.Graph()
	if len(nodes) != 2 || nodes[0].Name != "A" || nodes[1].Name != "B" {
		t.Errorf("Graph() = %+v", nodes)
	}
}
