// Package format contains the canonical source normalizer: a single-pass,
// character-level rewriting automaton that produces stable textual output
// without building a syntax tree.
//
// Назначение: детерминированная канонизация исходников для lint-прохода.
// Не делает: разбора AST, семантических проверок или IO.
package format
