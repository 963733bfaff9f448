package project

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// ManifestName is the manifest file every veld package carries at its root.
const ManifestName = "veld.toml"

var (
	// ErrPackageSectionMissing indicates that [package] is missing in veld.toml.
	ErrPackageSectionMissing = errors.New("missing [package]")
	// ErrPackageNameMissing indicates that [package].name is missing in veld.toml.
	ErrPackageNameMissing = errors.New("missing [package].name")
)

// DependencySpec describes one [dependencies.<name>] entry.
// Either Path (a local dependency staged inside the package) or Version
// (a remote dependency fetched from the registry) must be set.
type DependencySpec struct {
	Path    string `toml:"path"`
	Version string `toml:"version"`
	Network string `toml:"network"`
}

// IsLocal reports whether the dependency is staged from a local path.
func (s DependencySpec) IsLocal() bool { return strings.TrimSpace(s.Path) != "" }

// Manifest is the parsed veld.toml of one package.
type Manifest struct {
	Name         string
	Network      string
	Version      string
	Description  string
	Dependencies map[string]DependencySpec

	// Dir is the directory the manifest was read from.
	Dir string
}

type manifestFile struct {
	Package struct {
		Name        string `toml:"name"`
		Network     string `toml:"network"`
		Version     string `toml:"version"`
		Description string `toml:"description"`
	} `toml:"package"`
	Dependencies map[string]DependencySpec `toml:"dependencies"`
}

// LoadManifest parses a veld.toml at path.
func LoadManifest(path string) (*Manifest, error) {
	var cfg manifestFile
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if !meta.IsDefined("package") {
		return nil, fmt.Errorf("%s: %w", path, ErrPackageSectionMissing)
	}
	name := strings.TrimSpace(cfg.Package.Name)
	if !meta.IsDefined("package", "name") || name == "" {
		return nil, fmt.Errorf("%s: %w", path, ErrPackageNameMissing)
	}
	network := strings.TrimSpace(cfg.Package.Network)
	if network == "" {
		network = NetworkTestnet
	}
	m := &Manifest{
		Name:         name,
		Network:      network,
		Version:      strings.TrimSpace(cfg.Package.Version),
		Description:  strings.TrimSpace(cfg.Package.Description),
		Dependencies: cfg.Dependencies,
		Dir:          filepath.Dir(path),
	}
	if m.Dependencies == nil {
		m.Dependencies = map[string]DependencySpec{}
	}
	for depName, spec := range m.Dependencies {
		if !IsValidProgramName(depName) {
			return nil, fmt.Errorf("%s: invalid dependency name %q", path, depName)
		}
		if spec.IsLocal() && strings.TrimSpace(spec.Version) != "" {
			return nil, fmt.Errorf("%s: dependency %q declares both path and version", path, depName)
		}
		if !spec.IsLocal() && strings.TrimSpace(spec.Version) == "" {
			return nil, fmt.Errorf("%s: dependency %q needs either path or version", path, depName)
		}
	}
	return m, nil
}

// ProgramID builds the package's network-qualified identifier.
func (m *Manifest) ProgramID() (ProgramID, error) {
	return ParseProgramID(m.Name + "." + m.Network)
}

// ResolveDependencyPath resolves a local dependency path relative to the
// manifest's directory and validates that it stays inside root, the
// directory of the package whose closure is being walked.
func (m *Manifest) ResolveDependencyPath(root, name string, spec DependencySpec) (string, error) {
	rel := strings.TrimSpace(spec.Path)
	if rel == "" {
		return "", fmt.Errorf("dependency %q has no local path", name)
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("dependency %q: path %q must be relative", name, rel)
	}
	clean := filepath.Clean(filepath.FromSlash(rel))
	full := filepath.Join(m.Dir, clean)
	if !pathWithin(root, full) {
		return "", fmt.Errorf("dependency %q: path %q escapes the package root", name, rel)
	}
	return full, nil
}

func pathWithin(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
