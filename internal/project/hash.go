package project

import (
	"crypto/sha256"
	"fmt"
	"os"
	"sort"
)

// Digest - фиксированный 256 битный хеш.
type Digest [32]byte

// HashBytes digests raw content.
func HashBytes(data []byte) Digest {
	return sha256.Sum256(data)
}

// HashString digests a string key.
func HashString(s string) Digest {
	return sha256.Sum256([]byte(s))
}

// HashFiles digests a set of files by path and content. Порядок путей
// нормализуется, поэтому результат детерминирован.
func HashFiles(paths []string) (Digest, error) {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)
	h := sha256.New()
	for _, path := range sorted {
		data, err := os.ReadFile(path)
		if err != nil {
			return Digest{}, fmt.Errorf("failed to hash %q: %w", path, err)
		}
		_, _ = h.Write([]byte(path))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write(data)
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out, nil
}

// Combine builds an aggregate hash: H( content || dep1 || dep2 ... ).
// Порядок deps должен быть детерминированным.
func Combine(content Digest, deps ...Digest) Digest {
	h := sha256.New()
	_, _ = h.Write(content[:])
	for _, d := range deps {
		_, _ = h.Write(d[:])
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}
