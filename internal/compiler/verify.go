package compiler

import (
	"fmt"
	"strings"
)

type openDelim struct {
	ch   byte
	line int
}

// verify performs the structural checks: delimiter balance outside strings
// and comments, exactly one matching program declaration, and resolvable
// imports.
func (c *Compiler) verify(src string) []Diagnostic {
	var diags []Diagnostic
	report := func(line int, format string, args ...any) {
		diags = append(diags, Diagnostic{Path: c.filePath, Line: line, Message: fmt.Sprintf(format, args...)})
	}

	c.checkDelimiters(src, report)
	c.checkHeaders(src, report)
	return diags
}

func (c *Compiler) checkDelimiters(src string, report func(int, string, ...any)) {
	var stack []openDelim
	line := 1
	inString := false
	inComment := false

	for i := 0; i < len(src); i++ {
		ch := src[i]
		if ch == '\n' {
			if inString {
				report(line, "unterminated string literal")
				inString = false
			}
			inComment = false
			line++
			continue
		}
		if inComment {
			continue
		}
		if inString {
			switch ch {
			case '\\':
				i++ // skip the escaped character
			case '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '/':
			if i+1 < len(src) && src[i+1] == '/' {
				inComment = true
				i++
			}
		case '(', '{', '[':
			stack = append(stack, openDelim{ch: ch, line: line})
		case ')', '}', ']':
			want := matchingOpen(ch)
			if len(stack) == 0 {
				report(line, "unmatched %q", string(ch))
				continue
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if top.ch != want {
				report(line, "mismatched %q: last open was %q on line %d", string(ch), string(top.ch), top.line)
			}
		}
	}
	if inString {
		report(line, "unterminated string literal")
	}
	for _, open := range stack {
		report(open.line, "unclosed %q", string(open.ch))
	}
}

func matchingOpen(close byte) byte {
	switch close {
	case ')':
		return '('
	case '}':
		return '{'
	default:
		return '['
	}
}

func (c *Compiler) checkHeaders(src string, report func(int, string, ...any)) {
	expected := c.programName + "." + c.networkTag
	programSeen := false

	for n, raw := range strings.Split(src, "\n") {
		line := n + 1
		text := raw
		if idx := strings.Index(text, "//"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)

		switch {
		case strings.HasPrefix(text, "program "):
			id := strings.TrimPrefix(text, "program ")
			if cut := strings.IndexAny(id, "{;"); cut >= 0 {
				id = id[:cut]
			}
			id = strings.TrimSpace(id)
			if programSeen {
				report(line, "duplicate program declaration %q", id)
				continue
			}
			programSeen = true
			if id != expected {
				report(line, "program declaration %q does not match %q", id, expected)
			}
		case strings.HasPrefix(text, "import "):
			name := strings.TrimPrefix(text, "import ")
			name, terminated := strings.CutSuffix(name, ";")
			name = strings.TrimSpace(name)
			if !terminated {
				report(line, "import %q is missing a terminating semicolon", name)
			}
			if !c.resolvesImport(name) {
				report(line, "unresolved import %q", name)
			}
		}
	}

	if !programSeen {
		report(1, "missing program declaration; expected program %s", expected)
	}
}

// resolvesImport matches an import against the stub set, by bare name or by
// network-qualified id.
func (c *Compiler) resolvesImport(name string) bool {
	for _, st := range c.stubs {
		if st.Program == name || strings.HasPrefix(st.Program, name+".") {
			return true
		}
	}
	return false
}
