// Package compiler verifies that a veld source file is well-formed and
// produces its flat artifact listing. The lint pass consumes only the
// verdict; the artifact itself is discarded by callers that compile for
// verification.
package compiler

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"veld/internal/stub"
)

// Diagnostic describes one problem found while verifying a file.
type Diagnostic struct {
	Path    string
	Line    int
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d: %s", d.Path, d.Line, d.Message)
}

// Handler consumes diagnostics as they are produced.
type Handler interface {
	Report(Diagnostic)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(Diagnostic)

func (f HandlerFunc) Report(d Diagnostic) { f(d) }

// DiscardHandler drops all diagnostics.
var DiscardHandler Handler = HandlerFunc(func(Diagnostic) {})

// Options tunes a verification pass.
type Options struct {
	// MaxDiagnostics bounds how many problems a single file may report
	// before the pass gives up.
	MaxDiagnostics int
}

// DefaultOptions returns the options used when the caller passes none.
func DefaultOptions() Options {
	return Options{MaxDiagnostics: 64}
}

// Error is the structured failure of one file's verification.
type Error struct {
	Path        string
	Diagnostics []Diagnostic
}

func (e *Error) Error() string {
	if len(e.Diagnostics) == 0 {
		return fmt.Sprintf("%s: compilation failed", e.Path)
	}
	return fmt.Sprintf("%s: %s (and %d more)", e.Path, e.Diagnostics[0].Message, len(e.Diagnostics)-1)
}

// Compiler verifies a single source file against a stub set.
type Compiler struct {
	programName string
	networkTag  string
	handler     Handler
	filePath    string
	outputsPath string
	opts        Options
	stubs       stub.Set
}

// New builds a compiler for one file. A nil handler discards diagnostics.
func New(programName, networkTag string, handler Handler, filePath, outputsPath string, opts *Options, stubs stub.Set) *Compiler {
	options := DefaultOptions()
	if opts != nil {
		options = *opts
	}
	if options.MaxDiagnostics <= 0 {
		options.MaxDiagnostics = DefaultOptions().MaxDiagnostics
	}
	if handler == nil {
		handler = DiscardHandler
	}
	return &Compiler{
		programName: programName,
		networkTag:  networkTag,
		handler:     handler,
		filePath:    filePath,
		outputsPath: outputsPath,
		opts:        options,
		stubs:       stubs,
	}
}

// Compile verifies the file and returns its artifact listing.
func (c *Compiler) Compile() (string, error) {
	data, err := os.ReadFile(c.filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read %q: %w", c.filePath, err)
	}
	if !utf8.Valid(data) {
		diag := Diagnostic{Path: c.filePath, Line: 1, Message: "source is not valid UTF-8"}
		c.handler.Report(diag)
		return "", &Error{Path: c.filePath, Diagnostics: []Diagnostic{diag}}
	}

	src := string(data)
	diags := c.verify(src)
	for i, d := range diags {
		if i >= c.opts.MaxDiagnostics {
			break
		}
		c.handler.Report(d)
	}
	if len(diags) > 0 {
		return "", &Error{Path: c.filePath, Diagnostics: diags}
	}

	return c.artifact(src), nil
}

// artifact flattens the file into a signature listing, the target form
// downstream tooling would consume.
func (c *Compiler) artifact(src string) string {
	st := stub.Extract(c.programName+"."+c.networkTag, src)
	var b strings.Builder
	fmt.Fprintf(&b, "program %s;\n", st.Program)
	for _, rec := range st.Records {
		fmt.Fprintf(&b, "record %s/%d;\n", rec.Name, len(rec.Fields))
	}
	for _, fn := range st.Functions {
		fmt.Fprintf(&b, "function %s;\n", fn.Name)
	}
	return b.String()
}
