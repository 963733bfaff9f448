// Package retriever resolves and stages the dependency closure of a veld
// package: local dependencies declared by path, and remote dependencies
// fetched from a registry endpoint into the user's home cache.
package retriever

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"

	"veld/internal/project"
	"veld/internal/stub"
	"veld/internal/symbol"
)

// Error is a structured dependency-resolution failure.
type Error struct {
	Dep string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("failed to retrieve dependency %q: %v", e.Dep, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retriever walks a package's dependency closure. Symbols are interned in
// the interner supplied by the caller, so they stay comparable across
// components of one pass.
type Retriever struct {
	syms        *symbol.Interner
	main        symbol.Symbol
	packagePath string
	homePath    string
	endpoint    string

	log     *logrus.Logger
	fetcher *Fetcher
	cache   *StubCache

	manifests map[symbol.Symbol]*project.Manifest
	paths     map[symbol.Symbol]string // local dir per staged dependency
	remote    map[symbol.Symbol]string // cached source file per remote dependency
}

// New builds a retriever rooted at packagePath. The main symbol must name
// the package the manifest at packagePath declares.
func New(syms *symbol.Interner, main symbol.Symbol, packagePath, homePath, endpoint string) (*Retriever, error) {
	if !syms.Has(main) || main == symbol.NoSymbol {
		return nil, &Error{Dep: "", Err: fmt.Errorf("invalid main symbol")}
	}
	cache, err := OpenStubCache(homePath)
	if err != nil {
		return nil, &Error{Dep: syms.MustLookup(main), Err: err}
	}
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	return &Retriever{
		syms:        syms,
		main:        main,
		packagePath: packagePath,
		homePath:    homePath,
		endpoint:    endpoint,
		log:         log,
		fetcher:     NewFetcher(endpoint),
		cache:       cache,
		manifests:   make(map[symbol.Symbol]*project.Manifest),
		paths:       make(map[symbol.Symbol]string),
		remote:      make(map[symbol.Symbol]string),
	}, nil
}

// SetLogger replaces the retriever's logger. A nil logger is ignored.
func (r *Retriever) SetLogger(log *logrus.Logger) {
	if log != nil {
		r.log = log
	}
}

// Symbols exposes the interner shared by this pass.
func (r *Retriever) Symbols() *symbol.Interner { return r.syms }

// Retrieve resolves the local dependency closure of the main symbol and
// returns it in dependency-first order. The root itself is not included;
// callers append it so it is processed last. Remote dependencies in the
// closure are fetched (or taken from the home cache) as a side effect.
func (r *Retriever) Retrieve(ctx context.Context) ([]symbol.Symbol, error) {
	mainName := r.syms.MustLookup(r.main)
	manifest, err := project.LoadManifest(filepath.Join(r.packagePath, project.ManifestName))
	if err != nil {
		return nil, &Error{Dep: mainName, Err: err}
	}
	if manifest.Name != mainName {
		return nil, &Error{Dep: mainName, Err: fmt.Errorf("manifest declares %q, expected %q", manifest.Name, mainName)}
	}
	r.manifests[r.main] = manifest
	r.paths[r.main] = r.packagePath

	var order []symbol.Symbol
	visiting := map[symbol.Symbol]bool{}
	visited := map[symbol.Symbol]bool{}
	if err := r.walk(ctx, r.main, manifest, visiting, visited, &order); err != nil {
		return nil, err
	}

	// The root was appended by the post-order walk; the contract leaves
	// appending it to the caller.
	if len(order) > 0 && order[len(order)-1] == r.main {
		order = order[:len(order)-1]
	}
	return order, nil
}

func (r *Retriever) walk(ctx context.Context, sym symbol.Symbol, manifest *project.Manifest, visiting, visited map[symbol.Symbol]bool, order *[]symbol.Symbol) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name := r.syms.MustLookup(sym)
	if visiting[sym] {
		return &Error{Dep: name, Err: fmt.Errorf("dependency cycle through %q", name)}
	}
	if visited[sym] {
		return nil
	}
	visiting[sym] = true

	for _, depName := range sortedDepNames(manifest) {
		spec := manifest.Dependencies[depName]
		depSym := r.syms.Intern(depName)

		if !spec.IsLocal() {
			if err := r.stageRemote(ctx, depSym, depName, spec); err != nil {
				return err
			}
			continue
		}

		depPath, err := manifest.ResolveDependencyPath(r.packagePath, depName, spec)
		if err != nil {
			return &Error{Dep: depName, Err: err}
		}
		depManifest, err := project.LoadManifest(filepath.Join(depPath, project.ManifestName))
		if err != nil {
			return &Error{Dep: depName, Err: err}
		}
		if depManifest.Name != depName {
			return &Error{Dep: depName, Err: fmt.Errorf("staged manifest declares %q", depManifest.Name)}
		}
		r.manifests[depSym] = depManifest
		r.paths[depSym] = depPath

		if err := r.walk(ctx, depSym, depManifest, visiting, visited, order); err != nil {
			return err
		}
	}

	visiting[sym] = false
	visited[sym] = true
	*order = append(*order, sym)
	r.log.WithField("dependency", name).Debug("resolved")
	return nil
}

// stageRemote ensures a remote dependency's source is present in the home
// registry cache, fetching it from the endpoint when missing.
func (r *Retriever) stageRemote(ctx context.Context, sym symbol.Symbol, name string, spec project.DependencySpec) error {
	if _, ok := r.remote[sym]; ok {
		return nil
	}
	network := spec.Network
	if network == "" {
		network = project.NetworkTestnet
	}
	id, err := project.ParseProgramID(name + "." + network)
	if err != nil {
		return &Error{Dep: name, Err: err}
	}
	path, err := r.fetcher.Ensure(ctx, r.homePath, id, spec.Version)
	if err != nil {
		return &Error{Dep: name, Err: err}
	}
	r.remote[sym] = path
	r.log.WithFields(logrus.Fields{"dependency": name, "path": path}).Debug("staged remote")
	return nil
}

// PrepareLocal stages one dependency of the closure and assembles the stub
// set its files are verified against: the interfaces of that dependency's
// own dependencies.
func (r *Retriever) PrepareLocal(sym symbol.Symbol) (string, stub.Set, error) {
	name := r.syms.MustLookup(sym)
	path, ok := r.paths[sym]
	if !ok {
		return "", nil, &Error{Dep: name, Err: fmt.Errorf("dependency was not staged by Retrieve")}
	}
	manifest := r.manifests[sym]

	stubs := stub.Set{}
	for _, depName := range sortedDepNames(manifest) {
		spec := manifest.Dependencies[depName]
		depSym := r.syms.Intern(depName)

		st, err := r.stubFor(depSym, depName, spec)
		if err != nil {
			return "", nil, err
		}
		stubs[depSym] = st
	}
	return path, stubs, nil
}

func (r *Retriever) stubFor(sym symbol.Symbol, name string, spec project.DependencySpec) (stub.Stub, error) {
	if spec.IsLocal() {
		depManifest, ok := r.manifests[sym]
		if !ok {
			return stub.Stub{}, &Error{Dep: name, Err: fmt.Errorf("dependency was not staged by Retrieve")}
		}
		id, err := depManifest.ProgramID()
		if err != nil {
			return stub.Stub{}, &Error{Dep: name, Err: err}
		}
		files, err := project.SourceFiles(r.paths[sym])
		if err != nil {
			return stub.Stub{}, &Error{Dep: name, Err: err}
		}
		return r.cachedExtract(name, id.String(), files)
	}

	path, ok := r.remote[sym]
	if !ok {
		return stub.Stub{}, &Error{Dep: name, Err: fmt.Errorf("remote dependency was not fetched by Retrieve")}
	}
	network := spec.Network
	if network == "" {
		network = project.NetworkTestnet
	}
	return r.cachedExtract(name, name+"."+network, []string{path})
}

// cachedExtract returns the stub for the given sources, consulting the
// msgpack disk cache keyed by the sources' digest.
func (r *Retriever) cachedExtract(name, program string, files []string) (stub.Stub, error) {
	key, err := project.HashFiles(files)
	if err != nil {
		return stub.Stub{}, &Error{Dep: name, Err: err}
	}
	if st, ok, err := r.cache.Get(key); err == nil && ok {
		return st, nil
	}

	texts := make([]string, 0, len(files))
	for _, f := range files {
		data, err := readFileString(f)
		if err != nil {
			return stub.Stub{}, &Error{Dep: name, Err: err}
		}
		texts = append(texts, data)
	}
	st := stub.Extract(program, texts...)
	if err := r.cache.Put(key, st); err != nil {
		// Cache writes are best-effort; the extracted stub is still good.
		r.log.WithError(err).Warn("stub cache write failed")
	}
	return st, nil
}

func sortedDepNames(m *project.Manifest) []string {
	names := make([]string, 0, len(m.Dependencies))
	for name := range m.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
