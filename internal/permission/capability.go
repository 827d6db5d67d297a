package permission

import (
	"fmt"
	"strings"
	"unicode"
)

// Capability is one entry of the shared, tenant-independent catalog.
type Capability struct {
	ID          int64  `json:"id"`
	Module      string `json:"module"`
	Action      string `json:"action"`
	Description string `json:"description,omitempty"`
}

func (c Capability) Key() string {
	return c.Module + ":" + c.Action
}

func (c Capability) String() string {
	return c.Key()
}

// ParseCapability parses "module:action" and normalizes both halves to camelCase.
func ParseCapability(raw string) (Capability, error) {
	trimmed := strings.TrimSpace(raw)
	if strings.Count(trimmed, ":") != 1 {
		return Capability{}, fmt.Errorf("%w: %q", ErrInvalidCapability, raw)
	}

	module, action, _ := strings.Cut(trimmed, ":")
	module = NormalizeName(module)
	action = NormalizeName(action)
	if module == "" || action == "" {
		return Capability{}, fmt.Errorf("%w: %q", ErrInvalidCapability, raw)
	}

	return Capability{Module: module, Action: action}, nil
}

// NormalizeName converts hyphen, underscore or space separated names to
// camelCase: "audit-finding" and "AUDIT_FINDING" both become "auditFinding".
// Names already in camelCase only get their first letter lowered.
func NormalizeName(name string) string {
	parts := strings.FieldsFunc(strings.TrimSpace(name), func(r rune) bool {
		return r == '-' || r == '_' || unicode.IsSpace(r)
	})

	var b strings.Builder
	for i, part := range parts {
		if isAllUpper(part) {
			part = strings.ToLower(part)
		}
		runes := []rune(part)
		if i == 0 {
			runes[0] = unicode.ToLower(runes[0])
		} else {
			runes[0] = unicode.ToUpper(runes[0])
		}
		b.WriteString(string(runes))
	}
	return b.String()
}

func isAllUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasLetter
}
