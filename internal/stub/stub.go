// Package stub models signature-only views of veld packages. A stub carries
// just enough of a dependency's interface to verify its callers without
// recompiling the dependency's bodies.
package stub

import (
	"strings"

	"veld/internal/symbol"
)

// Function is a signature-only function declaration.
type Function struct {
	Name      string
	Signature string
}

// Record is a record declaration with field names only.
type Record struct {
	Name   string
	Fields []string
}

// Stub is the externally visible interface of one package.
type Stub struct {
	Program   string // network-qualified program id
	Functions []Function
	Records   []Record
}

// Set maps a dependency symbol to its stub. Borrowed read-only by callers.
type Set map[symbol.Symbol]Stub

// HasFunction reports whether the stub declares a function named name.
func (s Stub) HasFunction(name string) bool {
	for _, fn := range s.Functions {
		if fn.Name == name {
			return true
		}
	}
	return false
}

// Extract scans source text and collects top-level declaration headers.
// Bodies are ignored; only `function` and `record` headers survive.
func Extract(program string, sources ...string) Stub {
	st := Stub{Program: program}
	for _, src := range sources {
		extractInto(&st, src)
	}
	return st
}

func extractInto(st *Stub, src string) {
	var record *Record
	for _, line := range strings.Split(src, "\n") {
		line = strings.TrimSpace(line)
		if idx := strings.Index(line, "//"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "function "):
			record = nil
			header := line
			if idx := strings.IndexByte(header, '{'); idx >= 0 {
				header = strings.TrimSpace(header[:idx])
			}
			name := declName(strings.TrimPrefix(header, "function "))
			if name != "" {
				st.Functions = append(st.Functions, Function{Name: name, Signature: header})
			}
		case strings.HasPrefix(line, "record "):
			name := declName(strings.TrimPrefix(line, "record "))
			if name == "" {
				continue
			}
			st.Records = append(st.Records, Record{Name: name})
			record = &st.Records[len(st.Records)-1]
		case record != nil && strings.Contains(line, ":"):
			field, _, _ := strings.Cut(line, ":")
			field = strings.TrimSpace(field)
			if field != "" {
				record.Fields = append(record.Fields, field)
			}
		case strings.Contains(line, "}"):
			record = nil
		}
	}
}

// declName cuts the identifier off a declaration header remainder.
func declName(rest string) string {
	rest = strings.TrimSpace(rest)
	for i, r := range rest {
		switch {
		case r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r == '_':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return rest[:i]
		}
	}
	return rest
}
