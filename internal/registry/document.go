package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"sort"
)

// document is the serialized form of packages.json.
type document struct {
	Artifacts    map[string][]string `json:"artifacts"`
	Dependencies map[string][]string `json:"dependencies"`
	DistroOwners map[string][]string `json:"distroOwners"`
	Versions     map[string]string   `json:"versions,omitempty"`
}

func newDocument() *document {
	return &document{
		Artifacts:    make(map[string][]string),
		Dependencies: make(map[string][]string),
		DistroOwners: make(map[string][]string),
		Versions:     make(map[string]string),
	}
}

func (d *document) clone() *document {
	c := newDocument()
	for k, v := range d.Artifacts {
		c.Artifacts[k] = slices.Clone(v)
	}
	for k, v := range d.Dependencies {
		c.Dependencies[k] = slices.Clone(v)
	}
	for k, v := range d.DistroOwners {
		c.DistroOwners[k] = slices.Clone(v)
	}
	for k, v := range d.Versions {
		c.Versions[k] = v
	}
	return c
}

// decodeDocument parses and checks packages.json. It never returns a
// partially usable document.
func decodeDocument(r io.Reader) (*document, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	doc := newDocument()
	if err := dec.Decode(doc); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("unexpected data after registry document")
	}

	if doc.Artifacts == nil {
		doc.Artifacts = make(map[string][]string)
	}
	if doc.Dependencies == nil {
		doc.Dependencies = make(map[string][]string)
	}
	if doc.DistroOwners == nil {
		doc.DistroOwners = make(map[string][]string)
	}
	if doc.Versions == nil {
		doc.Versions = make(map[string]string)
	}

	if err := doc.check(); err != nil {
		return nil, err
	}
	return doc, nil
}

// check rejects shapes that a hand edit could produce but the mutation
// logic relies on never seeing.
func (d *document) check() error {
	for pkg, files := range d.Artifacts {
		if len(files) == 0 {
			return fmt.Errorf("artifacts for %q: empty list", pkg)
		}
		for _, f := range files {
			if !isBaseName(f) {
				return fmt.Errorf("artifacts for %q: %q is not a file name", pkg, f)
			}
		}
	}
	for distro, owners := range d.DistroOwners {
		if len(owners) == 0 {
			return fmt.Errorf("distroOwners for %q: empty owner set", distro)
		}
		sorted := slices.Clone(owners)
		sort.Strings(sorted)
		if len(slices.Compact(sorted)) != len(owners) {
			return fmt.Errorf("distroOwners for %q: duplicate owner", distro)
		}
		// Owner sets are kept sorted in memory.
		d.DistroOwners[distro] = sorted
	}
	return nil
}

func (d *document) encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// reassignOwnership makes name an owner of exactly the distro packages in
// declared. Every known distro package plus every newly declared one is
// visited; entries whose owner set empties are dropped and returned, sorted.
func (d *document) reassignOwnership(name string, declared []string) []string {
	want := make(map[string]bool, len(declared))
	for _, p := range declared {
		want[p] = true
	}

	all := make([]string, 0, len(d.DistroOwners)+len(declared))
	for p := range d.DistroOwners {
		all = append(all, p)
	}
	all = append(all, declared...)
	sort.Strings(all)
	all = slices.Compact(all)

	var unneeded []string
	for _, p := range all {
		owners := d.DistroOwners[p]
		if want[p] {
			d.DistroOwners[p] = insertSorted(owners, name)
			continue
		}

		i, found := slices.BinarySearch(owners, name)
		if !found {
			continue
		}
		owners = slices.Delete(owners, i, i+1)
		if len(owners) == 0 {
			delete(d.DistroOwners, p)
			unneeded = append(unneeded, p)
			continue
		}
		d.DistroOwners[p] = owners
	}
	return unneeded
}

// dependents returns the packages that list name as a dependency, sorted.
func (d *document) dependents(name string) []string {
	var out []string
	for pkg, deps := range d.Dependencies {
		if pkg != name && slices.Contains(deps, name) {
			out = append(out, pkg)
		}
	}
	sort.Strings(out)
	return out
}

// artifactOwner returns the package that recorded file, if any.
func (d *document) artifactOwner(file string) (string, bool) {
	for pkg, files := range d.Artifacts {
		if slices.Contains(files, file) {
			return pkg, true
		}
	}
	return "", false
}

func insertSorted(s []string, v string) []string {
	i, found := slices.BinarySearch(s, v)
	if found {
		return s
	}
	return slices.Insert(s, i, v)
}

// dedupe removes repeated entries, keeping first occurrences in order.
func dedupe(s []string) []string {
	seen := make(map[string]bool, len(s))
	out := make([]string, 0, len(s))
	for _, v := range s {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func isBaseName(name string) bool {
	return name != "" && name != "." && name != ".." && filepath.Base(name) == name
}
