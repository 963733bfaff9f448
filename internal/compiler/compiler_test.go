package compiler

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"veld/internal/stub"
	"veld/internal/symbol"
)

func writeSource(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "main.vd")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func stubsFor(names ...string) stub.Set {
	in := symbol.NewInterner()
	set := stub.Set{}
	for _, name := range names {
		set[in.Intern(name)] = stub.Stub{Program: name + ".tveld"}
	}
	return set
}

const validSource = `import math_lib;

program token.tveld {
    record Token {
        owner: address;
        amount: u64;
    }

    function mint(owner: address, amount: u64) -> Token {
        let t: Token = Token { owner: owner, amount: amount };
        return t;
    }
}
`

func TestCompileValid(t *testing.T) {
	path := writeSource(t, validSource)
	c := New("token", "tveld", nil, path, t.TempDir(), nil, stubsFor("math_lib"))

	artifact, err := c.Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	for _, want := range []string{"program token.tveld;", "record Token/2;", "function mint;"} {
		if !strings.Contains(artifact, want) {
			t.Fatalf("artifact missing %q:\n%s", want, artifact)
		}
	}
}

func TestCompileFailures(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		stubs   stub.Set
		wantMsg string
	}{
		{
			name:    "unbalanced braces",
			source:  "program token.tveld {\n    function f( ) {\n}\n",
			wantMsg: "unclosed",
		},
		{
			name:    "mismatched delimiters",
			source:  "program token.tveld {\n    let x: u8 = (1};\n}\n",
			wantMsg: "mismatched",
		},
		{
			name:    "missing program declaration",
			source:  "function f( ) {\n}\n",
			wantMsg: "missing program declaration",
		},
		{
			name:    "wrong program id",
			source:  "program other.tveld {\n}\n",
			wantMsg: "does not match",
		},
		{
			name:    "unresolved import",
			source:  "import missing_dep;\nprogram token.tveld {\n}\n",
			wantMsg: "unresolved import",
		},
		{
			name:    "unterminated string",
			source:  "program token.tveld {\n    let s: string = \"oops;\n}\n",
			wantMsg: "unterminated string",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeSource(t, tt.source)
			var reported []Diagnostic
			handler := HandlerFunc(func(d Diagnostic) { reported = append(reported, d) })
			c := New("token", "tveld", handler, path, t.TempDir(), nil, tt.stubs)

			_, err := c.Compile()
			if err == nil {
				t.Fatal("Compile succeeded, want error")
			}
			var cerr *Error
			if !errors.As(err, &cerr) {
				t.Fatalf("error %T is not *compiler.Error", err)
			}
			if cerr.Path != path {
				t.Fatalf("error path = %q, want %q", cerr.Path, path)
			}
			if len(reported) == 0 {
				t.Fatal("no diagnostics reported to handler")
			}
			found := false
			for _, d := range reported {
				if strings.Contains(d.Message, tt.wantMsg) {
					found = true
				}
			}
			if !found {
				t.Fatalf("no diagnostic mentions %q: %v", tt.wantMsg, reported)
			}
		})
	}
}

func TestCompileIgnoresPunctuationInCommentsAndStrings(t *testing.T) {
	source := "program token.tveld {\n" +
		"    // a comment with } and ( and \" inside\n" +
		"    function f( ) {\n" +
		"        let s: string = \"braces { ( } ) in a literal\";\n" +
		"    }\n" +
		"}\n"
	path := writeSource(t, source)
	c := New("token", "tveld", nil, path, t.TempDir(), nil, nil)

	if _, err := c.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}
}

func TestCompileQualifiedImport(t *testing.T) {
	source := "import math_lib.tveld;\nprogram token.tveld {\n}\n"
	path := writeSource(t, source)
	c := New("token", "tveld", nil, path, t.TempDir(), nil, stubsFor("math_lib"))

	if _, err := c.Compile(); err != nil {
		t.Fatalf("qualified import must resolve: %v", err)
	}
}

func TestCompileMissingFile(t *testing.T) {
	c := New("token", "tveld", nil, filepath.Join(t.TempDir(), "absent.vd"), t.TempDir(), nil, nil)
	_, err := c.Compile()
	if err == nil {
		t.Fatal("Compile of a missing file must fail")
	}
	var cerr *Error
	if errors.As(err, &cerr) {
		t.Fatal("filesystem failure must not be a *compiler.Error")
	}
}
