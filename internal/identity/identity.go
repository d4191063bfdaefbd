// Package identity derives canonical competitor identity keys from
// tenant-supplied URLs or free-text website strings.
package identity

import (
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrNoIdentity is returned when no canonical key can be derived from the
// input. Callers must surface this for manual correction; an empty key would
// silently merge unrelated entities.
var ErrNoIdentity = eris.New("identity: no canonical identity in input")

// Normalize reduces a raw URL or website string to a canonical domain key:
// lowercase hostname with scheme, www. prefix, port, path, query, and
// trailing slash stripped. Normalize is idempotent.
func Normalize(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrNoIdentity
	}

	// url.Parse treats scheme-less input as a relative path, so prepend a
	// scheme when none is present.
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", ErrNoIdentity
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimSuffix(host, ".")
	if host == "" || !strings.Contains(host, ".") {
		return "", ErrNoIdentity
	}

	return host, nil
}
