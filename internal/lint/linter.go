// Package lint drives the lint/format pass over a package's local
// dependency closure: every dependency is recompiled for verification and
// every source file is rewritten in canonical form.
package lint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"veld/internal/compiler"
	"veld/internal/format"
	"veld/internal/observ"
	"veld/internal/project"
	"veld/internal/retriever"
	"veld/internal/stub"
	"veld/internal/symbol"
)

// Retriever is the dependency-resolution collaborator the pass consumes.
type Retriever interface {
	Retrieve(ctx context.Context) ([]symbol.Symbol, error)
	PrepareLocal(sym symbol.Symbol) (string, stub.Set, error)
}

// RetrieverFactory builds the retriever for one pass. The factory receives
// the pass's interner and the root's interned symbol.
type RetrieverFactory func(syms *symbol.Interner, main symbol.Symbol) (Retriever, error)

// CompileFunc verifies one source file. The returned artifact is discarded
// by the pass; only the verdict matters.
type CompileFunc func(programName, networkTag string, handler compiler.Handler, filePath, outputsPath string, stubs stub.Set) (string, error)

// Options overrides the pass's collaborators. The zero value selects the
// real retriever and compiler.
type Options struct {
	Logger       *logrus.Logger
	Handler      compiler.Handler
	Timer        *observ.Timer
	NewRetriever RetrieverFactory
	Compile      CompileFunc
}

// Linter owns one lint/format pass over a package and its local
// dependency closure. Immutable once constructed.
type Linter struct {
	programID   project.ProgramID
	endpoint    string
	packagePath string
	homePath    string

	log          *logrus.Logger
	handler      compiler.Handler
	timer        *observ.Timer
	newRetriever RetrieverFactory
	compile      CompileFunc
}

// New validates the pass inputs and builds a Linter.
func New(programID project.ProgramID, endpoint, packagePath, homePath string, opts *Options) (*Linter, error) {
	if programID.Name == "" || programID.Network == "" {
		return nil, fmt.Errorf("%w: %q", project.ErrBadProgramID, programID.String())
	}
	if packagePath == "" {
		return nil, errors.New("package path is required")
	}

	var o Options
	if opts != nil {
		o = *opts
	}
	l := &Linter{
		programID:    programID,
		endpoint:     endpoint,
		packagePath:  packagePath,
		homePath:     homePath,
		log:          o.Logger,
		handler:      o.Handler,
		timer:        o.Timer,
		newRetriever: o.NewRetriever,
		compile:      o.Compile,
	}
	if l.log == nil {
		l.log = logrus.New()
		l.log.SetOutput(io.Discard)
	}
	if l.handler == nil {
		l.handler = compiler.DiscardHandler
	}
	if l.timer == nil {
		l.timer = observ.NewTimer()
	}
	if l.newRetriever == nil {
		l.newRetriever = func(syms *symbol.Interner, main symbol.Symbol) (Retriever, error) {
			return retriever.New(syms, main, packagePath, homePath, endpoint)
		}
	}
	if l.compile == nil {
		l.compile = func(programName, networkTag string, handler compiler.Handler, filePath, outputsPath string, stubs stub.Set) (string, error) {
			return compiler.New(programName, networkTag, handler, filePath, outputsPath, nil, stubs).Compile()
		}
	}
	return l, nil
}

// Lint runs the pass: resolve the local dependency closure, then for every
// dependency (root last) verify each source file through the compiler and
// rewrite it in place in canonical form. The first error anywhere aborts
// the pass; files already rewritten stay rewritten.
func (l *Linter) Lint(ctx context.Context) error {
	buildDir := filepath.Join(l.packagePath, project.BuildDirName)
	if _, err := os.Stat(buildDir); err == nil {
		if err := os.RemoveAll(buildDir); err != nil {
			return fmt.Errorf("failed to remove build directory %q: %w", buildDir, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to inspect build directory %q: %w", buildDir, err)
	}
	if err := project.CreatePackage(buildDir, l.programID); err != nil {
		return err
	}

	syms := symbol.NewInterner()
	main := syms.Intern(l.programID.Name)

	ret, err := l.newRetriever(syms, main)
	if err != nil {
		return err
	}
	deps, err := ret.Retrieve(ctx)
	if err != nil {
		return err
	}
	// The root is processed last, after everything it depends on.
	deps = append(deps, main)

	for _, dep := range deps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.lintDependency(syms, ret, dep); err != nil {
			return err
		}
	}
	return nil
}

// lintDependency stages one dependency, verifies its files and rewrites
// them in canonical form.
func (l *Linter) lintDependency(syms *symbol.Interner, ret Retriever, dep symbol.Symbol) error {
	name := syms.MustLookup(dep)
	depID, err := project.ParseProgramID(name + "." + l.programID.Network)
	if err != nil {
		return err
	}
	log := l.log.WithField("dependency", depID.String())

	localPath, stubs, err := ret.PrepareLocal(dep)
	if err != nil {
		return err
	}

	files, err := project.SourceFiles(localPath)
	if err != nil {
		return err
	}
	if err := project.CheckFiles(files); err != nil {
		return err
	}

	phase := l.timer.Begin("verify " + depID.String())
	err = l.verifyFiles(depID, localPath, files, stubs)
	l.timer.End(phase, fmt.Sprintf("%d files", len(files)))
	if err != nil {
		return err
	}
	log.WithField("files", len(files)).Debug("verified")

	phase = l.timer.Begin("rewrite " + depID.String())
	err = l.rewriteFiles(files)
	l.timer.End(phase, fmt.Sprintf("%d files", len(files)))
	if err != nil {
		return err
	}
	log.WithField("files", len(files)).Info("reformatted")
	return nil
}

// verifyFiles compiles every file for its verdict only. The scratch
// directories live exactly as long as this stage, even when a file fails.
func (l *Linter) verifyFiles(depID project.ProgramID, localPath string, files []string, stubs stub.Set) (err error) {
	outputsDir, err := project.CreateOutputsDir(localPath)
	if err != nil {
		return err
	}
	buildDir, err := project.CreateBuildDir(localPath)
	if err != nil {
		// The outputs scratch was already staged; take it back down.
		_ = os.RemoveAll(outputsDir)
		return err
	}
	defer func() {
		for _, dir := range []string{buildDir, outputsDir} {
			if rmErr := os.RemoveAll(dir); rmErr != nil && err == nil {
				err = fmt.Errorf("failed to remove scratch directory %q: %w", dir, rmErr)
			}
		}
	}()

	for _, file := range files {
		// The artifact is discarded: compilation is a correctness gate,
		// nothing downstream of the pass consumes its output.
		if _, compileErr := l.compile(depID.Name, depID.Network, l.handler, file, outputsDir, stubs); compileErr != nil {
			return compileErr
		}
	}
	return nil
}

// rewriteFiles reads, normalizes and overwrites every file, whether or not
// normalization changes its bytes.
func (l *Linter) rewriteFiles(files []string) error {
	for _, file := range files {
		code, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read %q: %w", file, err)
		}
		normalized := format.Normalize(string(code))
		if err := os.WriteFile(file, []byte(normalized), 0o644); err != nil {
			return fmt.Errorf("failed to write %q: %w", file, err)
		}
	}
	return nil
}
