package project

import (
	"fmt"
	"os"
	"path/filepath"
)

// ScaffoldMarkerName is the file CreatePackage drops into a fresh build
// scaffold to record the program identity.
const ScaffoldMarkerName = "program.json"

// CreatePackage lays out a fresh build scaffold for programID at buildPath
// and records the program identifier inside it. The path must not already
// exist; a leftover scaffold from a previous run is removed by the caller
// before a pass starts.
func CreatePackage(buildPath string, programID ProgramID) error {
	if _, err := os.Stat(buildPath); err == nil {
		return fmt.Errorf("build scaffold %q already exists", buildPath)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to inspect %q: %w", buildPath, err)
	}
	if err := os.MkdirAll(buildPath, 0o755); err != nil {
		return fmt.Errorf("failed to create build scaffold %q: %w", buildPath, err)
	}
	marker := filepath.Join(buildPath, ScaffoldMarkerName)
	payload := fmt.Sprintf("{\n  \"program\": %q,\n  \"version\": \"0.0.0\"\n}\n", programID.String())
	if err := os.WriteFile(marker, []byte(payload), 0o644); err != nil {
		return fmt.Errorf("failed to write %q: %w", marker, err)
	}
	return nil
}
