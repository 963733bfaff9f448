package symbol

import (
	"fmt"

	"fortio.org/safecast"
)

// Symbol identifies an interned dependency package name.
type Symbol uint32

// NoSymbol is the reserved zero value.
const NoSymbol Symbol = 0

// Interner maps dependency names to stable Symbols.
// Идентификаторы стабильны на время одного прохода.
type Interner struct {
	byID  []string
	index map[string]Symbol
}

func NewInterner() *Interner {
	return &Interner{
		byID:  []string{""}, // NoSymbol → пустая строка
		index: map[string]Symbol{"": 0},
	}
}

// Intern returns the Symbol for name, allocating one if needed.
func (i *Interner) Intern(name string) Symbol {
	if id, ok := i.index[name]; ok {
		return id
	}
	value, err := safecast.Conv[uint32](len(i.byID))
	if err != nil {
		panic(fmt.Errorf("symbol interner overflow: %w", err))
	}
	cpy := string([]byte(name))
	id := Symbol(value)
	i.byID = append(i.byID, cpy)
	i.index[cpy] = id
	return id
}

// Lookup returns the name for id.
// Если ID не валиден, возвращает пустую строку и false.
func (i *Interner) Lookup(id Symbol) (string, bool) {
	if !i.Has(id) {
		return "", false
	}
	return i.byID[id], true
}

// MustLookup returns the name for id and panics on an invalid ID.
func (i *Interner) MustLookup(id Symbol) string {
	s, ok := i.Lookup(id)
	if !ok {
		panic("invalid symbol")
	}
	return s
}

// Has reports whether id was allocated by this interner.
func (i *Interner) Has(id Symbol) bool {
	return int(id) < len(i.byID)
}

// Len counts interned names, NoSymbol included.
func (i *Interner) Len() int {
	return len(i.byID)
}
