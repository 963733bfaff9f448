package lint

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"veld/internal/compiler"
	"veld/internal/format"
	"veld/internal/project"
	"veld/internal/stub"
	"veld/internal/symbol"
)

type fakeRetriever struct {
	deps  []string
	paths map[string]string
	syms  *symbol.Interner
}

func (f *fakeRetriever) Retrieve(ctx context.Context) ([]symbol.Symbol, error) {
	var out []symbol.Symbol
	for _, name := range f.deps {
		out = append(out, f.syms.Intern(name))
	}
	return out, nil
}

func (f *fakeRetriever) PrepareLocal(sym symbol.Symbol) (string, stub.Set, error) {
	name := f.syms.MustLookup(sym)
	path, ok := f.paths[name]
	if !ok {
		return "", nil, fmt.Errorf("unknown dependency %q", name)
	}
	return path, stub.Set{}, nil
}

// passFixture is a root package with one local dependency, wired through a
// fake retriever and a recording compiler.
type passFixture struct {
	pkgDir   string
	depDir   string
	compiled []string
	linter   *Linter
}

const messySource = "program  %s.tveld{function f(){let x:u8=1;}}"

func newFixture(t *testing.T, compileErr map[string]error) *passFixture {
	t.Helper()
	fx := &passFixture{pkgDir: t.TempDir()}
	fx.depDir = filepath.Join(fx.pkgDir, "deps", "alpha")

	writeSrc := func(dir, name string) {
		if err := os.MkdirAll(filepath.Join(dir, "src"), 0o755); err != nil {
			t.Fatal(err)
		}
		content := fmt.Sprintf(messySource, name)
		if err := os.WriteFile(filepath.Join(dir, "src", "main.vd"), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	writeSrc(fx.pkgDir, "token")
	writeSrc(fx.depDir, "alpha")

	opts := &Options{
		NewRetriever: func(syms *symbol.Interner, main symbol.Symbol) (Retriever, error) {
			return &fakeRetriever{
				deps: []string{"alpha"},
				paths: map[string]string{
					"alpha": fx.depDir,
					"token": fx.pkgDir,
				},
				syms: syms,
			}, nil
		},
		Compile: func(programName, networkTag string, handler compiler.Handler, filePath, outputsPath string, stubs stub.Set) (string, error) {
			fx.compiled = append(fx.compiled, programName)
			if compileErr != nil {
				if err, ok := compileErr[programName]; ok {
					return "", err
				}
			}
			// Scratch dirs must exist while a file is being compiled.
			if _, err := os.Stat(outputsPath); err != nil {
				return "", fmt.Errorf("outputs scratch missing during compile: %w", err)
			}
			return "program " + programName + ";\n", nil
		},
	}

	id := project.ProgramID{Name: "token", Network: project.NetworkTestnet}
	linter, err := New(id, "http://registry.invalid", fx.pkgDir, t.TempDir(), opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	fx.linter = linter
	return fx
}

func (fx *passFixture) source(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, "src", "main.vd"))
	if err != nil {
		return ""
	}
	return string(data)
}

func assertNoScratch(t *testing.T, dirs ...string) {
	t.Helper()
	for _, dir := range dirs {
		for _, scratch := range []string{project.BuildDirName, project.OutputsDirName} {
			path := filepath.Join(dir, scratch)
			if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
				t.Fatalf("scratch directory %q survived the pass", path)
			}
		}
	}
}

func TestLintPass(t *testing.T) {
	fx := newFixture(t, nil)

	if err := fx.linter.Lint(context.Background()); err != nil {
		t.Fatalf("Lint: %v", err)
	}

	// Dependencies compile in order, root last.
	if len(fx.compiled) != 2 || fx.compiled[0] != "alpha" || fx.compiled[1] != "token" {
		t.Fatalf("compile order = %v", fx.compiled)
	}

	// Every file was rewritten in canonical form.
	for dir, name := range map[string]string{fx.depDir: "alpha", fx.pkgDir: "token"} {
		got := fx.source(dir)
		want := format.Normalize(fmt.Sprintf(messySource, name))
		if got != want {
			t.Fatalf("%s not canonical:\nwant %q\ngot  %q", name, want, got)
		}
	}

	assertNoScratch(t, fx.pkgDir, fx.depDir)
}

func TestLintClearsStaleTopLevelBuild(t *testing.T) {
	fx := newFixture(t, nil)
	staleBuild := filepath.Join(fx.pkgDir, project.BuildDirName)
	if err := os.MkdirAll(staleBuild, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(staleBuild, "old.vc"), []byte("junk"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := fx.linter.Lint(context.Background()); err != nil {
		t.Fatalf("Lint: %v", err)
	}
	assertNoScratch(t, fx.pkgDir)
}

func TestLintFailFastOnCompileError(t *testing.T) {
	boom := errors.New("alpha does not compile")
	fx := newFixture(t, map[string]error{"alpha": boom})

	origAlpha := fx.source(fx.depDir)
	origRoot := fx.source(fx.pkgDir)

	err := fx.linter.Lint(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want the compile failure", err)
	}

	// The root was never compiled, and nothing was rewritten: compilation
	// of a dependency precedes its own reformatting.
	for _, name := range fx.compiled {
		if name == "token" {
			t.Fatal("root must not compile after a dependency failed")
		}
	}
	if fx.source(fx.depDir) != origAlpha {
		t.Fatal("failing dependency must not be reformatted")
	}
	if fx.source(fx.pkgDir) != origRoot {
		t.Fatal("root must not be reformatted after an earlier failure")
	}

	// Scratch space of the failing dependency is still torn down.
	assertNoScratch(t, fx.depDir)
}

func TestLintUnconditionalRewrite(t *testing.T) {
	fx := newFixture(t, nil)

	// Make the sources canonical up front; the pass must still rewrite.
	for _, dir := range []string{fx.pkgDir, fx.depDir} {
		path := filepath.Join(dir, "src", "main.vd")
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(format.Normalize(string(data))), 0o644); err != nil {
			t.Fatal(err)
		}
		past := time.Now().Add(-time.Hour)
		if err := os.Chtimes(path, past, past); err != nil {
			t.Fatal(err)
		}
	}
	before := fx.source(fx.pkgDir)

	if err := fx.linter.Lint(context.Background()); err != nil {
		t.Fatalf("Lint: %v", err)
	}

	path := filepath.Join(fx.pkgDir, "src", "main.vd")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if time.Since(info.ModTime()) > time.Minute {
		t.Fatal("canonical file was not rewritten")
	}
	if fx.source(fx.pkgDir) != before {
		t.Fatal("rewriting a canonical file must not change its bytes")
	}
}

func TestLintRejectsStaleScratch(t *testing.T) {
	fx := newFixture(t, nil)
	stale := filepath.Join(fx.depDir, project.OutputsDirName)
	if err := os.MkdirAll(stale, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(stale, "leftover"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := fx.linter.Lint(context.Background())
	if !errors.Is(err, project.ErrStaleScratchDir) {
		t.Fatalf("err = %v, want ErrStaleScratchDir", err)
	}
}

func TestLintCancelled(t *testing.T) {
	fx := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := fx.linter.Lint(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestNewValidatesProgramID(t *testing.T) {
	_, err := New(project.ProgramID{}, "", t.TempDir(), "", nil)
	if !errors.Is(err, project.ErrBadProgramID) {
		t.Fatalf("err = %v, want ErrBadProgramID", err)
	}
}
