package format

import (
	"strings"
	"unicode"
)

// indentWidth is the number of spaces emitted per brace depth.
const indentWidth = 4

// normState is the whole state the automaton carries across one pass.
type normState struct {
	indent        int
	insideBrace   bool
	insideComment bool
}

// Normalize rewrites source text into canonical form in a single forward
// pass. The pass is pure and total: any input produces some output, and
// Normalize(Normalize(s)) == Normalize(s).
//
// Line breaks in the input carry no meaning outside comments; only `;`,
// `{` and `}` introduce breaks in the output. The automaton has no notion
// of string or character literals, so formatting punctuation inside a
// literal is rewritten as if it were code.
func Normalize(src string) string {
	var st normState
	var out strings.Builder
	out.Grow(len(src) + len(src)/4)

	// last is the most recently emitted byte, 0 before the first emit.
	var last byte
	emit := func(s string) {
		if s == "" {
			return
		}
		out.WriteString(s)
		last = s[len(s)-1]
	}
	emitIndent := func() {
		emit(strings.Repeat(" ", indentWidth*st.indent))
	}

	for i := 0; i < len(src); i++ {
		c := src[i]

		// Comment text is copied verbatim up to the closing newline, so
		// punctuation inside a comment never triggers formatting.
		if st.insideComment {
			if c == '\n' {
				st.insideComment = false
				emit("\n")
				emitIndent()
				continue
			}
			emit(src[i : i+1])
			continue
		}

		switch c {
		case '{':
			emit("{\n")
			st.indent++
			emitIndent()
			st.insideBrace = true
		case '}':
			// A close brace with no open seen by this scan is dropped.
			if st.insideBrace {
				st.indent--
				emit("\n")
				emitIndent()
				emit("}\n")
				emitIndent()
				st.insideBrace = st.indent > 0
			}
		case ';':
			emit(";\n")
			emitIndent()
		case ':':
			emit(": ")
		case '(':
			emit("( ")
		case ')':
			if last != ' ' {
				emit(" ")
			}
			emit(")")
		case '/':
			if i+1 < len(src) && src[i+1] == '/' {
				st.insideComment = true
				emit("//")
				i++
			} else {
				emit("/")
			}
		case '\n':
			// Source-level line breaks are dropped.
		case ' ':
			if last != ' ' {
				emit(" ")
			}
		default:
			emit(src[i : i+1])
		}
	}

	return strings.TrimRightFunc(out.String(), unicode.IsSpace)
}
