package retriever

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"veld/internal/project"
)

// ErrProgramNotFound indicates the registry has no such program.
var ErrProgramNotFound = errors.New("program not found in registry")

// Fetcher downloads program sources from a registry endpoint and stores
// them in the user's home registry cache.
type Fetcher struct {
	endpoint string
	client   *http.Client
}

func NewFetcher(endpoint string) *Fetcher {
	return &Fetcher{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// CachePath returns where a program's source lives in the home cache.
func CachePath(homePath string, id project.ProgramID, version string) string {
	if version == "" {
		version = "latest"
	}
	name := fmt.Sprintf("%s-%s%s", id.Name, version, project.SourceExt)
	return filepath.Join(homePath, "registry", id.Network, name)
}

// Ensure returns the cached source path for id, fetching from the endpoint
// when the cache misses.
func (f *Fetcher) Ensure(ctx context.Context, homePath string, id project.ProgramID, version string) (string, error) {
	path := CachePath(homePath, id, version)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to inspect cache entry %q: %w", path, err)
	}

	data, err := f.Fetch(ctx, id, version)
	if err != nil {
		return "", err
	}
	if err := writeFileAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// Fetch downloads a program's source text from the registry.
func (f *Fetcher) Fetch(ctx context.Context, id project.ProgramID, version string) ([]byte, error) {
	u, err := url.Parse(f.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", f.endpoint, err)
	}
	u = u.JoinPath(id.Network, "program", id.Name)
	if version != "" {
		q := u.Query()
		q.Set("version", version)
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registry request for %s failed: %w", id, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrProgramNotFound, id)
	default:
		return nil, fmt.Errorf("registry returned %s for %s", resp.Status, id)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry response for %s: %w", id, err)
	}
	return data, nil
}

// writeFileAtomic writes via a temp file and rename so concurrent readers
// never observe a partial download.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %q: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func readFileString(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
