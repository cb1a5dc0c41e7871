// Package guard decides whether the contents of a locked hisaab (or room) may
// be revealed for a given secret.
//
// The plaintext secret only lives for the duration of a call: it is hashed or
// compared and then dropped. It is never logged, stored or returned.
package guard

import (
	"hisaab/internal/core"
)

// dummySecret is hashed once per Guard. Comparing against that hash on the
// missing-record paths makes them cost as much as a wrong secret.
const dummySecret = "hisaab-guard-dummy"

type Guard struct {
	hasher Hasher
	dummy  string
}

func New(h Hasher) *Guard {
	if h == nil {
		h = NewBcryptHasher(0)
	}
	dummy, _ := h.Hash(dummySecret)
	return &Guard{hasher: h, dummy: dummy}
}

// compare checks secret against hash, falling back to the dummy hash when
// there is nothing to compare against. A fallback never matches.
func (g *Guard) compare(hash, secret string) bool {
	if hash == "" {
		g.hasher.Compare(g.dummy, secret)
		return false
	}
	return g.hasher.Compare(hash, secret)
}

// Protect prepares a new hisaab. An encrypted hisaab must come with a secret.
func (g *Guard) Protect(h *core.Hisaab, secret string) error {
	if !h.Encrypted {
		h.SecretHash = ""
		return nil
	}
	if secret == "" {
		return core.ErrMissingSecret
	}
	hash, err := g.hasher.Hash(secret)
	if err != nil {
		return err
	}
	h.SecretHash = hash
	return nil
}

// UpdateProtection applies the encrypted flag of an update. A nil or empty
// secret keeps the existing hash, so the old secret keeps working.
func (g *Guard) UpdateProtection(h *core.Hisaab, encrypted bool, secret *string) error {
	if !encrypted {
		h.Encrypted = false
		h.SecretHash = ""
		return nil
	}
	if secret != nil && *secret != "" {
		hash, err := g.hasher.Hash(*secret)
		if err != nil {
			return err
		}
		h.Encrypted = true
		h.SecretHash = hash
		return nil
	}
	if h.SecretHash == "" {
		// locking a record for the first time needs a secret
		return core.ErrMissingSecret
	}
	h.Encrypted = true
	return nil
}

// Verify returns h when secret matches its hash. A missing hisaab and a wrong
// secret are indistinguishable to the caller.
func (g *Guard) Verify(h *core.Hisaab, secret string) (*core.Hisaab, error) {
	hash := ""
	if h != nil {
		hash = h.SecretHash
	}
	if !g.compare(hash, secret) {
		return nil, core.ErrAccessDenied
	}
	return h, nil
}

// ProtectRoom hashes the room secret. Rooms always require one.
func (g *Guard) ProtectRoom(r *core.Room, secret string) error {
	if secret == "" {
		return core.ErrMissingSecret
	}
	hash, err := g.hasher.Hash(secret)
	if err != nil {
		return err
	}
	r.SecretHash = hash
	return nil
}

func (g *Guard) VerifyRoom(r *core.Room, secret string) (*core.Room, error) {
	hash := ""
	if r != nil {
		hash = r.SecretHash
	}
	if !g.compare(hash, secret) {
		return nil, core.ErrAccessDenied
	}
	return r, nil
}

// HashPassword and CheckPassword apply the same hashing to account passwords.
func (g *Guard) HashPassword(password string) (string, error) {
	if password == "" {
		return "", core.ErrMissingSecret
	}
	return g.hasher.Hash(password)
}

// CheckPassword with an empty hash still spends one comparison, so unknown
// accounts cost the same as a wrong password.
func (g *Guard) CheckPassword(hash, password string) bool {
	return g.compare(hash, password)
}
