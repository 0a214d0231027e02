// Package calendar holds the domain types shared by the credential engine,
// its stores and the HTTP adapters.
package calendar

import (
	"fmt"
	"strings"
)

// ProviderKind identifies a calendar provider. It doubles as the
// calendar_type column value.
type ProviderKind string

const (
	ProviderOutlook ProviderKind = "outlook"
	ProviderGoogle  ProviderKind = "google"
	ProviderApple   ProviderKind = "apple"
)

// providerAliases maps route segments to provider kinds.
var providerAliases = map[string]ProviderKind{
	"outlook":   ProviderOutlook,
	"microsoft": ProviderOutlook,
	"google":    ProviderGoogle,
	"apple":     ProviderApple,
}

// ParseProvider resolves a route segment such as "microsoft" to its ProviderKind.
// Recognized-but-unimplemented providers parse fine; whether they can be used is
// decided by the engine.
func ParseProvider(segment string) (ProviderKind, error) {
	kind, ok := providerAliases[strings.ToLower(strings.TrimSpace(segment))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedProvider, segment)
	}
	return kind, nil
}

func (k ProviderKind) String() string {
	return string(k)
}

// Valid reports whether k is one of the known provider kinds.
func (k ProviderKind) Valid() bool {
	switch k {
	case ProviderOutlook, ProviderGoogle, ProviderApple:
		return true
	}
	return false
}
