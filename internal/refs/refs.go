// Package refs rewrites inline textual references of the form
// identifierName.attributeName[namedReference] to their generated values,
// leaving the surrounding text intact.
package refs

import "strings"

// ResolveFunc resolves one reference. The generation phase passes an
// allocating resolver; the matching phase passes a lookup-only one.
type ResolveFunc func(identifierName, attribute, namedRef string) (string, error)

// KnownFunc reports whether a name is a declared identifier. Patterns whose
// leading name is not a declared identifier are left untouched, since they
// may be ordinary literal text.
type KnownFunc func(identifierName string) bool

// Substitute scans s once, left to right, replacing each embedded reference
// with its resolved value. Substituted text is never re-scanned.
func Substitute(s string, known KnownFunc, resolve ResolveFunc) (string, error) {
	if !strings.Contains(s, "[") {
		return s, nil
	}

	var out strings.Builder
	i := 0
	for i < len(s) {
		match, length := matchReference(s[i:])
		if length == 0 {
			out.WriteByte(s[i])
			i++
			continue
		}
		if !known(match.identifier) {
			out.WriteString(s[i : i+length])
			i += length
			continue
		}
		value, err := resolve(match.identifier, match.attribute, match.namedRef)
		if err != nil {
			return "", err
		}
		out.WriteString(value)
		i += length
	}
	return out.String(), nil
}

type reference struct {
	identifier string
	attribute  string
	namedRef   string
}

// matchReference tries to match identifier.attribute[namedRef] at the start
// of s. Returns the parsed reference and the number of bytes consumed, or
// zero if there is no match at this position.
func matchReference(s string) (reference, int) {
	identifier, n := matchName(s)
	if n == 0 || n >= len(s) || s[n] != '.' {
		return reference{}, 0
	}
	rest := s[n+1:]
	attribute, m := matchName(rest)
	if m == 0 || m >= len(rest) || rest[m] != '[' {
		return reference{}, 0
	}
	body := rest[m+1:]
	end := strings.IndexByte(body, ']')
	if end <= 0 {
		return reference{}, 0
	}
	return reference{
		identifier: identifier,
		attribute:  attribute,
		namedRef:   body[:end],
	}, n + 1 + m + 1 + end + 1
}

// matchName consumes a leading [A-Za-z_][A-Za-z0-9_]* name.
func matchName(s string) (string, int) {
	i := 0
	for i < len(s) && isNameByte(s[i], i == 0) {
		i++
	}
	return s[:i], i
}

func isNameByte(b byte, first bool) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b == '_':
		return true
	case b >= '0' && b <= '9':
		return !first
	default:
		return false
	}
}
