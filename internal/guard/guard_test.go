package guard

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"hisaab/internal/core"
)

func newTestGuard() *Guard {
	return New(NewBcryptHasher(bcrypt.MinCost))
}

func lockedHisaab(t *testing.T, g *Guard, secret string) *core.Hisaab {
	t.Helper()
	h := &core.Hisaab{
		ID:        "h1",
		Title:     "Rent",
		Label:     "Home",
		Encrypted: true,
		Content:   []core.LineItem{{Key: "march", Value: "1000"}},
	}
	require.NoError(t, g.Protect(h, secret))
	return h
}

func TestProtectThenVerifyRoundTrip(t *testing.T) {
	g := newTestGuard()
	for _, secret := range []string{"abc", "correct horse battery staple", "ünïcødé", " "} {
		h := lockedHisaab(t, g, secret)
		assert.NotEmpty(t, h.SecretHash)
		assert.NotEqual(t, secret, h.SecretHash)

		got, err := g.Verify(h, secret)
		require.NoError(t, err, "secret %q", secret)
		assert.Equal(t, h.Content, got.Content)
	}
}

func TestVerifyWrongSecretDenied(t *testing.T) {
	g := newTestGuard()
	h := lockedHisaab(t, g, "s1")

	for _, wrong := range []string{"s2", "", "S1", "s1 "} {
		got, err := g.Verify(h, wrong)
		assert.ErrorIs(t, err, core.ErrAccessDenied)
		assert.Nil(t, got)
	}
}

func TestVerifyMissingHisaabLooksLikeWrongSecret(t *testing.T) {
	g := newTestGuard()
	_, errMissing := g.Verify(nil, "abc")
	_, errWrong := g.Verify(lockedHisaab(t, g, "xyz"), "abc")
	assert.Equal(t, errWrong, errMissing)
}

type countingHasher struct {
	BcryptHasher
	compares int
}

func (h *countingHasher) Compare(hash, secret string) bool {
	h.compares++
	return h.BcryptHasher.Compare(hash, secret)
}

func TestVerifyDenialsAlwaysCompare(t *testing.T) {
	hasher := &countingHasher{BcryptHasher: NewBcryptHasher(bcrypt.MinCost)}
	g := New(hasher)

	tests := []struct {
		name string
		deny func() error
	}{
		{"missing hisaab", func() error { _, err := g.Verify(nil, "abc"); return err }},
		{"open hisaab", func() error { _, err := g.Verify(&core.Hisaab{ID: "h1"}, "abc"); return err }},
		{"wrong secret", func() error { _, err := g.Verify(lockedHisaab(t, g, "xyz"), "abc"); return err }},
		{"missing room", func() error { _, err := g.VerifyRoom(nil, "abc"); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := hasher.compares
			assert.ErrorIs(t, tt.deny(), core.ErrAccessDenied)
			assert.Equal(t, before+1, hasher.compares)
		})
	}

	before := hasher.compares
	assert.False(t, g.CheckPassword("", "abc"))
	assert.Equal(t, before+1, hasher.compares)
}

func TestDummyHashNeverMatches(t *testing.T) {
	g := newTestGuard()
	require.NotEmpty(t, g.dummy)
	_, err := g.Verify(&core.Hisaab{ID: "h1", Encrypted: true}, dummySecret)
	assert.ErrorIs(t, err, core.ErrAccessDenied)
	assert.False(t, g.CheckPassword("", dummySecret))
}

func TestSaltIsPerRecord(t *testing.T) {
	g := newTestGuard()
	a := lockedHisaab(t, g, "same")
	b := lockedHisaab(t, g, "same")
	assert.NotEqual(t, a.SecretHash, b.SecretHash)
}

func TestProtectRequiresSecretWhenEncrypted(t *testing.T) {
	g := newTestGuard()
	h := &core.Hisaab{Title: "t", Label: "l", Encrypted: true}
	assert.ErrorIs(t, g.Protect(h, ""), core.ErrValidation)

	open := &core.Hisaab{Title: "t", Label: "l", SecretHash: "stale"}
	require.NoError(t, g.Protect(open, "ignored"))
	assert.Empty(t, open.SecretHash)
}

func TestProtectRejectsOverlongSecret(t *testing.T) {
	g := newTestGuard()
	h := &core.Hisaab{Title: "t", Label: "l", Encrypted: true}
	assert.ErrorIs(t, g.Protect(h, strings.Repeat("x", 100)), core.ErrValidation)
}

func TestUpdateProtection(t *testing.T) {
	g := newTestGuard()

	t.Run("no new secret keeps the old one", func(t *testing.T) {
		h := lockedHisaab(t, g, "abc")
		h.Title = "Rent (updated)"
		require.NoError(t, g.UpdateProtection(h, true, nil))
		_, err := g.Verify(h, "abc")
		assert.NoError(t, err)

		empty := ""
		require.NoError(t, g.UpdateProtection(h, true, &empty))
		_, err = g.Verify(h, "abc")
		assert.NoError(t, err)
	})

	t.Run("new secret replaces the old one", func(t *testing.T) {
		h := lockedHisaab(t, g, "abc")
		next := "def"
		require.NoError(t, g.UpdateProtection(h, true, &next))
		_, err := g.Verify(h, "def")
		assert.NoError(t, err)
		_, err = g.Verify(h, "abc")
		assert.ErrorIs(t, err, core.ErrAccessDenied)
	})

	t.Run("opening clears the hash", func(t *testing.T) {
		h := lockedHisaab(t, g, "abc")
		require.NoError(t, g.UpdateProtection(h, false, nil))
		assert.False(t, h.Encrypted)
		assert.Empty(t, h.SecretHash)
	})

	t.Run("first lock needs a secret", func(t *testing.T) {
		h := &core.Hisaab{Title: "t", Label: "l"}
		assert.ErrorIs(t, g.UpdateProtection(h, true, nil), core.ErrValidation)
		assert.False(t, h.Encrypted)

		s := "fresh"
		require.NoError(t, g.UpdateProtection(h, true, &s))
		assert.True(t, h.Encrypted)
		_, err := g.Verify(h, "fresh")
		assert.NoError(t, err)
	})
}

func TestRoomSecret(t *testing.T) {
	g := newTestGuard()
	r := &core.Room{Name: "Flat"}
	assert.ErrorIs(t, g.ProtectRoom(r, ""), core.ErrValidation)
	require.NoError(t, g.ProtectRoom(r, "open sesame"))

	got, err := g.VerifyRoom(r, "open sesame")
	require.NoError(t, err)
	assert.Equal(t, r, got)

	_, err = g.VerifyRoom(r, "nope")
	assert.ErrorIs(t, err, core.ErrAccessDenied)
	_, err = g.VerifyRoom(nil, "open sesame")
	assert.ErrorIs(t, err, core.ErrAccessDenied)
}

func TestPasswords(t *testing.T) {
	g := newTestGuard()
	hash, err := g.HashPassword("hunter22")
	require.NoError(t, err)
	assert.True(t, g.CheckPassword(hash, "hunter22"))
	assert.False(t, g.CheckPassword(hash, "hunter23"))
	assert.False(t, g.CheckPassword("", "hunter22"))

	_, err = g.HashPassword("")
	assert.ErrorIs(t, err, core.ErrValidation)
}
