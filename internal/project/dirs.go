package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Well-known directory names inside a veld package.
const (
	SourceDirName  = "src"
	BuildDirName   = "build"
	OutputsDirName = "outputs"
)

// SourceExt is the extension veld source files carry.
const SourceExt = ".vd"

// ErrStaleScratchDir indicates a scratch directory already exists with content
// from a previous run. Scratch space is never merged silently.
var ErrStaleScratchDir = errors.New("scratch directory already exists and is not empty")

// CreateBuildDir creates the build scratch directory under packageDir.
func CreateBuildDir(packageDir string) (string, error) {
	return createScratchDir(filepath.Join(packageDir, BuildDirName))
}

// CreateOutputsDir creates the outputs scratch directory under packageDir.
func CreateOutputsDir(packageDir string) (string, error) {
	return createScratchDir(filepath.Join(packageDir, OutputsDirName))
}

func createScratchDir(path string) (string, error) {
	entries, err := os.ReadDir(path)
	switch {
	case err == nil:
		for _, entry := range entries {
			// The root's build directory is scaffolded fresh at the start
			// of a pass; its marker does not count as stale content.
			if entry.Name() == ScaffoldMarkerName {
				continue
			}
			return "", fmt.Errorf("%w: %s", ErrStaleScratchDir, path)
		}
		return path, nil
	case errors.Is(err, os.ErrNotExist):
	default:
		return "", fmt.Errorf("failed to inspect %q: %w", path, err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %q: %w", path, err)
	}
	return path, nil
}

// SourceFiles enumerates the package's source files, sorted by path.
func SourceFiles(packageDir string) ([]string, error) {
	srcDir := filepath.Join(packageDir, SourceDirName)
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read source directory %q: %w", srcDir, err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if filepath.Ext(entry.Name()) == SourceExt {
			files = append(files, filepath.Join(srcDir, entry.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no %s source files in %q", SourceExt, srcDir)
	}
	sort.Strings(files)
	return files, nil
}

// CheckFiles validates enumerated source paths: extension, UTF-8 validity
// and NFC normalization.
func CheckFiles(paths []string) error {
	for _, path := range paths {
		if !strings.HasSuffix(path, SourceExt) {
			return fmt.Errorf("%s: not a %s source file", path, SourceExt)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %q: %w", path, err)
		}
		if !utf8.Valid(data) {
			return fmt.Errorf("%s: not valid UTF-8", path)
		}
		if !norm.NFC.IsNormal(data) {
			return fmt.Errorf("%s: not NFC-normalized", path)
		}
	}
	return nil
}
