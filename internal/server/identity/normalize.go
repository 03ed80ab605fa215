// Package identity canonicalizes principal names asserted by the upstream
// authentication layer into directory lookup keys.
package identity

import (
	"strings"

	"github.com/dmitrijs2005/gophtoken/internal/common"
)

// DomainSeparator splits "DOMAIN\name" principals.
const DomainSeparator = `\`

// Normalize trims raw, drops a "DOMAIN\" prefix if present and lowercases the
// rest. Empty input, before or after stripping, yields common.ErrInvalidIdentity.
func Normalize(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", common.ErrInvalidIdentity
	}

	if i := strings.Index(name, DomainSeparator); i >= 0 {
		name = strings.TrimSpace(name[i+len(DomainSeparator):])
	}
	if name == "" {
		return "", common.ErrInvalidIdentity
	}

	return strings.ToLower(name), nil
}
