package project

import (
	"errors"
	"fmt"
	"strings"
)

// Networks a program identifier may be qualified with.
const (
	NetworkMainnet = "veld"
	NetworkTestnet = "tveld"
)

// ErrBadProgramID indicates a malformed network-qualified program identifier.
var ErrBadProgramID = errors.New("malformed program id")

// ProgramID is a network-qualified program identifier, e.g. "token.tveld".
type ProgramID struct {
	Name    string
	Network string
}

// ParseProgramID parses "<name>.<network>".
func ParseProgramID(s string) (ProgramID, error) {
	name, network, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok {
		return ProgramID{}, fmt.Errorf("%w: %q: missing network qualifier", ErrBadProgramID, s)
	}
	if !IsValidProgramName(name) {
		return ProgramID{}, fmt.Errorf("%w: %q: invalid program name %q", ErrBadProgramID, s, name)
	}
	if network != NetworkMainnet && network != NetworkTestnet {
		return ProgramID{}, fmt.Errorf("%w: %q: unknown network %q", ErrBadProgramID, s, network)
	}
	return ProgramID{Name: name, Network: network}, nil
}

func (id ProgramID) String() string {
	return id.Name + "." + id.Network
}

// IsValidProgramName reports whether name is a lowercase identifier:
// [a-z][a-z0-9_]*.
func IsValidProgramName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r == '_' && i > 0:
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
