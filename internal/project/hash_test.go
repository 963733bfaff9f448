package project

import (
	"os"
	"path/filepath"
	"testing"
)

func TestHashFilesOrderIndependent(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.vd")
	b := filepath.Join(dir, "b.vd")
	if err := os.WriteFile(a, []byte("program a.tveld {}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte("program b.tveld {}"), 0o644); err != nil {
		t.Fatal(err)
	}

	d1, err := HashFiles([]string{a, b})
	if err != nil {
		t.Fatal(err)
	}
	d2, err := HashFiles([]string{b, a})
	if err != nil {
		t.Fatal(err)
	}
	if d1 != d2 {
		t.Fatal("digest depends on input order")
	}
}

func TestHashFilesSensitiveToContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.vd")
	if err := os.WriteFile(path, []byte("program a.tveld {}"), 0o644); err != nil {
		t.Fatal(err)
	}
	before, err := HashFiles([]string{path})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("program a.tveld { }"), 0o644); err != nil {
		t.Fatal(err)
	}
	after, err := HashFiles([]string{path})
	if err != nil {
		t.Fatal(err)
	}
	if before == after {
		t.Fatal("digest ignores content changes")
	}
}

func TestCombine(t *testing.T) {
	content := HashBytes([]byte("body"))
	dep := HashString("util")

	if Combine(content) == Combine(content, dep) {
		t.Fatal("aggregate must include dependency digests")
	}
	if Combine(content, dep) != Combine(content, dep) {
		t.Fatal("aggregate must be deterministic")
	}
}
