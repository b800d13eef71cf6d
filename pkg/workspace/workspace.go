// Package workspace discovers the members of a cargo workspace by reading
// Cargo.toml manifests.
//
// Members are classified by location: anything whose first path segment is
// the examples directory is an example, everything else is a crate.
package workspace

import (
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// ManifestName is the cargo manifest file name.
const ManifestName = "Cargo.toml"

// Kind classifies a member.
type Kind string

const (
	// KindCrate is a member outside the examples directory.
	KindCrate Kind = "crate"

	// KindExample is a member under the examples directory.
	KindExample Kind = "example"
)

// Member is one buildable package of the workspace.
type Member struct {
	// Name is the package name from [package] name.
	Name string

	// Path is the member directory relative to the root, slash separated.
	// The root package of a single-package repository has Path ".".
	Path string

	Kind Kind
}

// Workspace is the discovered member list of a repository.
type Workspace struct {
	Root    string
	Members []Member
}

// manifest mirrors the parts of Cargo.toml xtask reads.
type manifest struct {
	Package   *packageSection   `toml:"package"`
	Workspace *workspaceSection `toml:"workspace"`
}

type packageSection struct {
	Name string `toml:"name"`

	// Version is either a string or {workspace = true}.
	Version any `toml:"version"`
}

type workspaceSection struct {
	Members []string `toml:"members"`
	Exclude []string `toml:"exclude"`
	Package struct {
		Version string `toml:"version"`
	} `toml:"package"`
}

func readManifest(file string) (*manifest, error) {
	var m manifest
	if _, err := toml.DecodeFile(file, &m); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", file)
	}
	return &m, nil
}

// Load reads the manifest at root and enumerates the workspace members.
//
// Member globs are expanded relative to root in lexicographic order and
// kept in declaration order otherwise. Directories without a manifest,
// excluded paths, and virtual manifests without a [package] name are
// skipped. A repository without a [workspace] table has its root package
// as the single member.
func Load(root, examplesDir string) (*Workspace, error) {
	m, err := readManifest(filepath.Join(root, ManifestName))
	if err != nil {
		return nil, err
	}

	ws := &Workspace{Root: root}
	if m.Workspace == nil {
		if m.Package == nil || m.Package.Name == "" {
			return nil, errors.Errorf("%s has neither [workspace] nor [package] name", filepath.Join(root, ManifestName))
		}
		ws.Members = []Member{{Name: m.Package.Name, Path: ".", Kind: KindCrate}}
		return ws, nil
	}

	seen := make(map[string]bool)
	for _, pattern := range m.Workspace.Members {
		dirs, err := expand(root, pattern)
		if err != nil {
			return nil, err
		}
		for _, dir := range dirs {
			if seen[dir] || excluded(dir, m.Workspace.Exclude) {
				continue
			}
			seen[dir] = true

			member, ok, err := loadMember(root, dir, examplesDir)
			if err != nil {
				return nil, err
			}
			if ok {
				ws.Members = append(ws.Members, member)
			}
		}
	}

	// A root [package] next to [workspace] is itself a member.
	if m.Package != nil && m.Package.Name != "" && !seen["."] {
		ws.Members = append([]Member{{Name: m.Package.Name, Path: ".", Kind: KindCrate}}, ws.Members...)
	}

	return ws, nil
}

// expand resolves a members entry to slash separated relative directories.
func expand(root, pattern string) ([]string, error) {
	pattern = strings.TrimSuffix(filepath.ToSlash(pattern), "/")
	matches, err := filepath.Glob(filepath.Join(root, filepath.FromSlash(pattern)))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid workspace member pattern %q", pattern)
	}

	dirs := make([]string, 0, len(matches))
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || !info.IsDir() {
			continue
		}
		rel, err := filepath.Rel(root, match)
		if err != nil {
			return nil, errors.Wrapf(err, "member %s is outside %s", match, root)
		}
		dirs = append(dirs, filepath.ToSlash(rel))
	}
	sort.Strings(dirs)
	return dirs, nil
}

func excluded(dir string, patterns []string) bool {
	for _, p := range patterns {
		p = strings.TrimSuffix(filepath.ToSlash(p), "/")
		if ok, _ := path.Match(p, dir); ok || dir == p || strings.HasPrefix(dir, p+"/") {
			return true
		}
	}
	return false
}

func loadMember(root, dir, examplesDir string) (Member, bool, error) {
	file := filepath.Join(root, filepath.FromSlash(dir), ManifestName)
	if _, err := os.Stat(file); err != nil {
		return Member{}, false, nil
	}
	m, err := readManifest(file)
	if err != nil {
		return Member{}, false, err
	}
	if m.Package == nil || m.Package.Name == "" {
		return Member{}, false, nil
	}
	return Member{Name: m.Package.Name, Path: dir, Kind: classify(dir, examplesDir)}, true, nil
}

func classify(dir, examplesDir string) Kind {
	first, _, _ := strings.Cut(dir, "/")
	if examplesDir != "" && first == strings.Trim(filepath.ToSlash(examplesDir), "/") {
		return KindExample
	}
	return KindCrate
}

// Crates returns crate members in discovery order.
func (w *Workspace) Crates() []Member {
	return w.filter(KindCrate)
}

// Examples returns example members in discovery order.
func (w *Workspace) Examples() []Member {
	return w.filter(KindExample)
}

func (w *Workspace) filter(kind Kind) []Member {
	var out []Member
	for _, m := range w.Members {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

// Find returns the member called name.
func (w *Workspace) Find(name string) (Member, bool) {
	for _, m := range w.Members {
		if m.Name == name {
			return m, true
		}
	}
	return Member{}, false
}

// ManifestPath returns the absolute manifest path of a member.
func (w *Workspace) ManifestPath(m Member) string {
	return filepath.Join(w.Root, filepath.FromSlash(m.Path), ManifestName)
}

// PackageVersion returns the [package] version of the manifest at file.
// A version inherited with version.workspace = true is read from the
// [workspace.package] table of the manifest at workspaceRoot.
func PackageVersion(file, workspaceRoot string) (string, error) {
	m, err := readManifest(file)
	if err != nil {
		return "", err
	}
	if m.Package == nil {
		return "", errors.Errorf("%s has no [package] table", file)
	}

	switch v := m.Package.Version.(type) {
	case string:
		return v, nil
	case map[string]any:
		if inherit, _ := v["workspace"].(bool); inherit {
			root, err := readManifest(filepath.Join(workspaceRoot, ManifestName))
			if err != nil {
				return "", err
			}
			if root.Workspace == nil || root.Workspace.Package.Version == "" {
				return "", errors.Errorf("%s inherits its version but the workspace declares none", file)
			}
			return root.Workspace.Package.Version, nil
		}
	}
	return "", errors.Errorf("%s declares no package version", file)
}
