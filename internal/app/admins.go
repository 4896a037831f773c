package app

import (
	"strings"

	"github.com/cuetime/reservations/internal/domain"
)

// AdminDirectory is the fixed set of administrators allowed to approve
// reservations. Each admin's email doubles as the token in approve links.
// It is built once at startup and never mutated.
type AdminDirectory struct {
	recipients []string
	identities map[string]string
}

// NewAdminDirectory builds the directory from the configured allow-list and
// the optional token to display-identity mapping. Blank and duplicate
// entries are dropped; order is preserved.
func NewAdminDirectory(emails []string, mapping map[string]string) *AdminDirectory {
	d := &AdminDirectory{identities: make(map[string]string, len(mapping))}
	seen := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		d.recipients = append(d.recipients, e)
	}
	for token, identity := range mapping {
		token = strings.TrimSpace(token)
		identity = strings.TrimSpace(identity)
		if token == "" || identity == "" {
			continue
		}
		d.identities[token] = identity
	}
	return d
}

// Authorize resolves the identity recorded as approvedBy for token.
// Tokens outside the allow-list fail with ErrUnauthorizedAdmin even when
// a mapping entry exists.
func (d *AdminDirectory) Authorize(token string) (string, error) {
	for _, r := range d.recipients {
		if r != token {
			continue
		}
		if identity, ok := d.identities[token]; ok {
			return identity, nil
		}
		return token, nil
	}
	return "", domain.ErrUnauthorizedAdmin
}

// Recipients returns a copy of the allow-list.
func (d *AdminDirectory) Recipients() []string {
	out := make([]string, len(d.recipients))
	copy(out, d.recipients)
	return out
}

// Identity is the display name for token, or token itself when unmapped.
func (d *AdminDirectory) Identity(token string) string {
	if identity, ok := d.identities[token]; ok {
		return identity
	}
	return token
}

func (d *AdminDirectory) Len() int {
	return len(d.recipients)
}
